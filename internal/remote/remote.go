// Package remote talks to the shared cross-device store holding the campus
// aggregate. The store offers read and whole-document replace only; there is
// no partial update.
package remote

import (
	"context"
	"errors"

	"campushub/statesync/internal/state"
)

// ErrUnavailable covers every failure the coordinator treats the same way:
// network errors, non-success statuses and malformed payloads. Callers fall
// back to the local mirror rather than surfacing it.
var ErrUnavailable = errors.New("remote store unavailable")

// DefaultSizeLimit is the encoded-byte ceiling the hosted store enforces on
// a document. Large inline images are the usual cause of overflow.
const DefaultSizeLimit = 1_000_000

// Store is the shared-document contract. A nil Store means the service runs
// in local-only mode.
type Store interface {
	// Fetch returns the current document, validated structurally.
	Fetch(ctx context.Context) (*state.AppState, error)
	// Replace overwrites the whole document.
	Replace(ctx context.Context, st *state.AppState) error
}
