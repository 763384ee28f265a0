package store

import (
	"context"

	"github.com/starford/sagenote/internal/models"
)

// NoteStore defines the persistence operations the repository relies on.
// Consumers should depend on this interface rather than the concrete *Store
// type to facilitate testing with fakes.
type NoteStore interface {
	Insert(ctx context.Context, n models.Note) (int64, error)
	Update(ctx context.Context, n models.Note) error
	Delete(ctx context.Context, n models.Note) error
	DeleteByID(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (models.Note, error)
	All(ctx context.Context) ([]models.Note, error)
	Search(ctx context.Context, query string) ([]models.Note, error)
	WatchAll(ctx context.Context) <-chan Snapshot
	WatchSearch(ctx context.Context, query string) <-chan Snapshot
	AssetPaths(ctx context.Context) (map[string]struct{}, error)
}

// Verify *Store satisfies NoteStore at compile time.
var _ NoteStore = (*Store)(nil)
