package sessions

import "context"

// Repo stores the durable persistent auth record for one browser profile.
// It survives reloads and process restarts.
type Repo interface {
	// Save replaces the stored record
	Save(ctx context.Context, record *Record) error

	// Read returns errors.ErrNotFound when nothing is stored
	Read(ctx context.Context) (*Record, error)

	// Clear removes the stored record; clearing an empty store is not an error
	Clear(ctx context.Context) error
}
