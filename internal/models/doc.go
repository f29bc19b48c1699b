// Package models defines the persistent entities of the tapedeck credential and playlist service.
//
//   - [Credential] : OAuth access/refresh token pair for one (user, provider) link
//   - [Playlist] : user-owned, ordered collection of [TrackRef] documents
//   - [TrackRef] : minimal display metadata for a track from any [Source]
//
// Entities carry no persistence logic; see the repositories package for storage.
package models
