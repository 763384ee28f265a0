package store

import (
	"context"

	"github.com/starford/sagenote/internal/models"
)

// Snapshot is one emission of a live query. A snapshot carrying Err does not
// end the stream; the next table change triggers a fresh attempt.
type Snapshot struct {
	Notes []models.Note
	Err   error
}

// WatchAll returns a live query over All. The current result is emitted
// immediately and again after every table change, until ctx is cancelled or
// the store is closed, at which point the channel is closed.
func (s *Store) WatchAll(ctx context.Context) <-chan Snapshot {
	return s.watch(ctx, s.All)
}

// WatchSearch returns a live query over Search(query).
func (s *Store) WatchSearch(ctx context.Context, query string) <-chan Snapshot {
	return s.watch(ctx, func(ctx context.Context) ([]models.Note, error) {
		return s.Search(ctx, query)
	})
}

func (s *Store) watch(ctx context.Context, run func(context.Context) ([]models.Note, error)) <-chan Snapshot {
	out := make(chan Snapshot, 1)
	// Subscribe before the first run so no change can slip in between.
	sig := s.changes.Subscribe()

	if s.obs != nil {
		s.obs.LiveQueries(1)
	}

	go func() {
		defer close(out)
		defer s.changes.Unsubscribe(sig)
		if s.obs != nil {
			defer s.obs.LiveQueries(-1)
		}

		for {
			notes, err := run(ctx)
			if ctx.Err() != nil {
				return
			}

			// A consumer that stops reading still releases the goroutine
			// once the store closes.
			select {
			case out <- Snapshot{Notes: notes, Err: err}:
			case <-ctx.Done():
				return
			case <-s.changes.Done():
				return
			}

			select {
			case _, ok := <-sig:
				if !ok {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	return out
}
