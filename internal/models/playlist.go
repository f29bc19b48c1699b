package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/tapedeck/internal/shared"
)

// TrackRef is a reference to a track hosted by an external provider.
//
// ID is the identity; duplicates within one playlist are allowed.
type TrackRef struct {
	ID           string `json:"id"`
	Title        string `json:"title,omitempty"`
	Artist       string `json:"artist,omitempty"`
	ThumbnailURL string `json:"thumbnailUrl,omitempty"`
	DurationSec  int    `json:"durationSec,omitempty"`
	Source       Source `json:"source,omitempty"`
}

func (t TrackRef) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("%w: track id is required", shared.ErrValidation)
	}
	return nil
}

// Playlist is a named, ordered collection of tracks owned by one user.
type Playlist struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Name      string     `json:"name"`
	Tracks    []TrackRef `json:"tracks"`
	Source    Source     `json:"source"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

func (p *Playlist) Validate() error {
	if strings.TrimSpace(p.UserID) == "" {
		return fmt.Errorf("%w: user id is required", shared.ErrValidation)
	}
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("%w: playlist name is required", shared.ErrValidation)
	}
	if p.Source != "" {
		if _, err := ParseSource(string(p.Source)); err != nil {
			return err
		}
	}
	return ValidateTracks(p.Tracks)
}

// ValidateTracks checks every track in the sequence.
func ValidateTracks(tracks []TrackRef) error {
	for i, t := range tracks {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("track %d: %w", i, err)
		}
	}
	return nil
}

// TrackIDs returns the ids of the playlist's tracks in order.
func (p *Playlist) TrackIDs() []string {
	ids := make([]string, len(p.Tracks))
	for i, t := range p.Tracks {
		ids[i] = t.ID
	}
	return ids
}
