// Package repository enforces the derived-field rules around the note store:
// text color follows the background color and updates are timestamped.
package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/store"
)

// AssetRemover deletes an asset file by name.
type AssetRemover interface {
	Remove(name string) error
}

// Option configures a Repository.
type Option func(*Repository)

// WithClock overrides the time source used for UpdatedAt.
func WithClock(now func() time.Time) Option {
	return func(r *Repository) {
		r.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Repository) {
		r.logger = l
	}
}

// WithAssets makes deletes of drawing and audio notes remove their asset file.
func WithAssets(a AssetRemover) Option {
	return func(r *Repository) {
		r.assets = a
	}
}

// Repository wraps a store.NoteStore. It holds no state of its own; the store
// is the single source of truth.
type Repository struct {
	store  store.NoteStore
	now    func() time.Time
	logger *slog.Logger
	assets AssetRemover
}

// New creates a Repository over st.
func New(st store.NoteStore, opts ...Option) *Repository {
	r := &Repository{
		store:  st,
		now:    time.Now,
		logger: slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// AllNotes returns the store's live query over every note.
func (r *Repository) AllNotes(ctx context.Context) <-chan store.Snapshot {
	return r.store.WatchAll(ctx)
}

// Search returns the store's live query for query. Empty queries are not
// special-cased here.
func (r *Repository) Search(ctx context.Context, query string) <-chan store.Snapshot {
	return r.store.WatchSearch(ctx, query)
}

// List returns the current notes once.
func (r *Repository) List(ctx context.Context) ([]models.Note, error) {
	return r.store.All(ctx)
}

// SearchOnce returns the current matches for query once.
func (r *Repository) SearchOnce(ctx context.Context, query string) ([]models.Note, error) {
	return r.store.Search(ctx, query)
}

// GetByID returns the note with id, or apperr.ErrNotFound.
func (r *Repository) GetByID(ctx context.Context, id int64) (models.Note, error) {
	return r.store.GetByID(ctx, id)
}

// Insert derives TextColor from Color and stores n, returning its id.
func (r *Repository) Insert(ctx context.Context, n models.Note) (int64, error) {
	n.TextColor = colorutil.Foreground(n.Color)
	id, err := r.store.Insert(ctx, n)
	if err != nil {
		return 0, err
	}
	r.logger.Debug("note inserted", slog.Int64("id", id), slog.String("type", string(n.Type)))
	return id, nil
}

// Update stamps UpdatedAt, derives TextColor and replaces the row. Caller
// values for both fields are discarded.
func (r *Repository) Update(ctx context.Context, n models.Note) error {
	n.UpdatedAt = r.stamp(n)
	n.TextColor = colorutil.Foreground(n.Color)
	if err := r.store.Update(ctx, n); err != nil {
		return err
	}
	r.logger.Debug("note updated", slog.Int64("id", n.ID))
	return nil
}

// stamp returns the new UpdatedAt for n: now, but never before the previous
// UpdatedAt and always strictly after CreatedAt at millisecond resolution.
func (r *Repository) stamp(n models.Note) time.Time {
	t := r.now().Truncate(time.Millisecond)
	if prev := n.UpdatedAt.Truncate(time.Millisecond); t.Before(prev) {
		t = prev
	}
	if floor := n.CreatedAt.Truncate(time.Millisecond).Add(time.Millisecond); t.Before(floor) {
		t = floor
	}
	return t
}

// TogglePin flips the pinned flag of the note with id and returns the
// updated note.
func (r *Repository) TogglePin(ctx context.Context, id int64) (models.Note, error) {
	n, err := r.store.GetByID(ctx, id)
	if err != nil {
		return models.Note{}, err
	}
	n.IsPinned = !n.IsPinned
	if err := r.Update(ctx, n); err != nil {
		return models.Note{}, err
	}
	return r.store.GetByID(ctx, id)
}

// Delete removes n and, when assets are configured, its asset file.
func (r *Repository) Delete(ctx context.Context, n models.Note) error {
	if err := r.store.Delete(ctx, n); err != nil {
		return err
	}
	r.removeAsset(n)
	return nil
}

// DeleteByID removes the note with id. A missing note is not an error.
func (r *Repository) DeleteByID(ctx context.Context, id int64) error {
	if r.assets == nil {
		return r.store.DeleteByID(ctx, id)
	}

	n, err := r.store.GetByID(ctx, id)
	if errors.Is(err, apperr.ErrNotFound) {
		return r.store.DeleteByID(ctx, id)
	}
	if err != nil {
		return err
	}
	return r.Delete(ctx, n)
}

// ReferencedAssets returns every asset name a note points at.
func (r *Repository) ReferencedAssets(ctx context.Context) (map[string]struct{}, error) {
	refs, err := r.store.AssetPaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("repository: referenced assets: %w", err)
	}
	return refs, nil
}

func (r *Repository) removeAsset(n models.Note) {
	name := n.AssetPath()
	if r.assets == nil || name == "" {
		return
	}
	if err := r.assets.Remove(name); err != nil {
		r.logger.Warn("asset cleanup failed",
			slog.Int64("id", n.ID),
			slog.String("asset", name),
			slog.String("error", err.Error()))
		return
	}
	r.logger.Debug("asset removed", slog.Int64("id", n.ID), slog.String("asset", name))
}
