// Package tasks runs user-level operations against a linked provider account with real-time
// progress reporting.
//
// # Core Operations
//
// [Library] composes three collaborators:
//
//  1. [TokenSource] : hands out valid access tokens (services.CredentialVault)
//  2. services.ProviderGateway : lists provider playlists and their items one page at a time
//  3. [PlaylistWriter] : stores imported playlists (repositories.PlaylistRepository)
//
// [Library.Playlists] and [Library.PlaylistItems] proxy single pages. When the provider rejects
// a token the vault still considered valid, the token is force refreshed and the call is
// retried exactly once.
//
// [Library.Import] pages through a provider playlist and stores the videos as a new playlist.
// [Library.BulkImport] does the same for many playlists with a bounded, rate limited worker pool.
//
// # Progress Reporting
//
// All operations accept an optional channel of [ProgressUpdate]. Sends use select with default,
// so a slow or absent consumer never stalls an import.
package tasks
