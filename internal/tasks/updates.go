package tasks

import (
	"fmt"

	"github.com/desertthunder/tapedeck/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or HTTP layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	FetchToken Phase = iota
	FetchItems
	CreatePlaylist
	ImportPlaylist
)

func (p Phase) String() string {
	switch p {
	case FetchToken:
		return "fetch_token"
	case FetchItems:
		return "fetch_items"
	case CreatePlaylist:
		return "create_playlist"
	case ImportPlaylist:
		return "import_playlist"
	default:
		return ""
	}
}

func fetchTokenUpdate(userID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchToken,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Resolving access token for %s...", userID),
	}
}

func fetchItemsUpdate(fetched, total, page int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchItems,
		Step:    fetched,
		Total:   total,
		Message: fmt.Sprintf("Fetched page %d (%d/%d items)", page, fetched, total),
	}
}

func createPlaylistUpdate(pl *models.Playlist) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Playlist created: %s (ID: %s, %d tracks)", pl.Name, pl.ID, len(pl.Tracks)),
		Data:    pl,
	}
}

func importCompletedUpdate(step, total int, res ImportResult) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d tracks)", step, total, res.SourceID, res.Imported),
		Data:    res,
	}
}

func importFailedUpdate(step, total int, playlistID string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportPlaylist,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, playlistID, err),
	}
}
