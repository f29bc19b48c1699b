// Package server exposes the playlist store, the provider library and the account link flow over HTTP.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
// [New] installs [Recover], [Logging] and [Instrument] on every route.
//
// The [BasicRouter] implementation uses [http.ServeMux] method patterns ("GET /api/playlists/{id}").
//
// # Handler Interface
//
// Custom handlers implement the [Handler] interface, which wraps the stdlib handler interface and adds routes,
// allowing handlers to register multiple routes and dispatch on [http.Request.Pattern].
//
//   - [PlaylistHandler] : playlist CRUD. PATCH applies addTrack, else removeTrackId, else name/tracks.
//   - [LibraryHandler] : paged YouTube playlists and items, and import into the playlist store.
//   - [LinkHandler] : OAuth2 authorization code flow with a signed JWT state carrying the user id.
//
// # Errors
//
// Domain errors map to statuses in one place: validation 400, not found 404, unlinked account 409,
// revoked grant 401, transient refresh failure 503, provider 401/403 passed through, anything else
// from the provider 502. Bodies are {"error": "...", "code": "..."}.
package server
