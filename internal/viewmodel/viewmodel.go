// Package viewmodel holds the presentation state shared by the front ends:
// the live note list, the live search results, the current query and a
// one-shot error message.
package viewmodel

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/starford/sagenote/internal/hub"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/store"
)

// Message prefixes for errors surfaced through State.ErrorMessage.
const (
	msgLoad   = "Error loading notes: "
	msgCreate = "Error creating note: "
	msgUpdate = "Error updating note: "
	msgDelete = "Error deleting note: "
	msgPin    = "Error updating pin status: "
	msgSearch = "Error searching notes: "
)

// Repository is the subset of repository.Repository the view-model drives.
type Repository interface {
	AllNotes(ctx context.Context) <-chan store.Snapshot
	Search(ctx context.Context, query string) <-chan store.Snapshot
	Insert(ctx context.Context, n models.Note) (int64, error)
	Update(ctx context.Context, n models.Note) error
	Delete(ctx context.Context, n models.Note) error
}

// State is a snapshot of everything a front end renders. An empty
// ErrorMessage means no error is pending.
type State struct {
	Notes         []models.Note
	SearchQuery   string
	SearchResults []models.Note
	ErrorMessage  string
}

// ViewModel brokers front-end intents to the repository and folds the
// repository's live queries into State. Intents never return errors; they
// set ErrorMessage instead.
type ViewModel struct {
	repo   Repository
	logger *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu           sync.Mutex
	state        State
	searchGen    uint64
	searchCancel context.CancelFunc

	changes *hub.Hub[struct{}]
}

// New creates a ViewModel and subscribes to the repository's note list.
// Close releases the subscriptions.
func New(repo Repository, logger *slog.Logger) *ViewModel {
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
	}
	ctx, cancel := context.WithCancel(context.Background())
	vm := &ViewModel{
		repo:    repo,
		logger:  logger,
		ctx:     ctx,
		cancel:  cancel,
		state:   State{Notes: []models.Note{}, SearchResults: []models.Note{}},
		changes: hub.New[struct{}](1),
	}

	all := repo.AllNotes(ctx)
	vm.wg.Add(1)
	go vm.follow(all, func(snap store.Snapshot) bool {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if snap.Err != nil {
			vm.logger.Warn("viewmodel: load notes failed", slog.String("error", snap.Err.Error()))
			vm.state.Notes = []models.Note{}
			vm.state.ErrorMessage = msgLoad + snap.Err.Error()
			return true
		}
		vm.state.Notes = nonNil(snap.Notes)
		return true
	})
	return vm
}

// follow applies every snapshot from ch until ch closes or the view-model
// shuts down. apply reports whether the state changed.
func (vm *ViewModel) follow(ch <-chan store.Snapshot, apply func(store.Snapshot) bool) {
	defer vm.wg.Done()
	for {
		select {
		case <-vm.ctx.Done():
			return
		case snap, ok := <-ch:
			if !ok {
				return
			}
			if apply(snap) {
				vm.notify()
			}
		}
	}
}

func (vm *ViewModel) notify() {
	vm.changes.Publish(struct{}{})
}

// State returns a copy of the current state.
func (vm *ViewModel) State() State {
	vm.mu.Lock()
	defer vm.mu.Unlock()
	return vm.state
}

// Subscribe returns a channel that receives a signal after every state
// change, coalesced, plus a function that ends the subscription. Read the
// new state with State.
func (vm *ViewModel) Subscribe() (<-chan struct{}, func()) {
	ch := vm.changes.Subscribe()
	return ch, func() { vm.changes.Unsubscribe(ch) }
}

// InsertNote stores a new note.
func (vm *ViewModel) InsertNote(ctx context.Context, n models.Note) {
	if _, err := vm.repo.Insert(ctx, n); err != nil {
		vm.fail(msgCreate, err)
	}
}

// UpdateNote saves changes to an existing note.
func (vm *ViewModel) UpdateNote(ctx context.Context, n models.Note) {
	if err := vm.repo.Update(ctx, n); err != nil {
		vm.fail(msgUpdate, err)
	}
}

// DeleteNote removes a note.
func (vm *ViewModel) DeleteNote(ctx context.Context, n models.Note) {
	if err := vm.repo.Delete(ctx, n); err != nil {
		vm.fail(msgDelete, err)
	}
}

// TogglePin flips the pinned flag of n and saves it with every other field
// unchanged.
func (vm *ViewModel) TogglePin(ctx context.Context, n models.Note) {
	n.IsPinned = !n.IsPinned
	if err := vm.repo.Update(ctx, n); err != nil {
		vm.fail(msgPin, err)
	}
}

// Search records query and follows its live results. A blank query clears
// the results without querying the store. Each call replaces the previous
// search subscription.
func (vm *ViewModel) Search(query string) {
	vm.mu.Lock()
	if vm.ctx.Err() != nil {
		vm.mu.Unlock()
		return
	}
	vm.state.SearchQuery = query
	vm.searchGen++
	gen := vm.searchGen
	if vm.searchCancel != nil {
		vm.searchCancel()
		vm.searchCancel = nil
	}

	if strings.TrimSpace(query) == "" {
		vm.state.SearchResults = []models.Note{}
		vm.mu.Unlock()
		vm.notify()
		return
	}

	ctx, cancel := context.WithCancel(vm.ctx)
	vm.searchCancel = cancel
	vm.wg.Add(1)
	vm.mu.Unlock()
	vm.notify()

	results := vm.repo.Search(ctx, query)
	go vm.follow(results, func(snap store.Snapshot) bool {
		vm.mu.Lock()
		defer vm.mu.Unlock()
		if gen != vm.searchGen {
			return false
		}
		if snap.Err != nil {
			vm.logger.Warn("viewmodel: search failed",
				slog.String("query", query),
				slog.String("error", snap.Err.Error()))
			vm.state.SearchResults = []models.Note{}
			vm.state.ErrorMessage = msgSearch + snap.Err.Error()
			return true
		}
		vm.state.SearchResults = nonNil(snap.Notes)
		return true
	})
}

// ClearError drops the pending error message once it has been shown.
func (vm *ViewModel) ClearError() {
	vm.mu.Lock()
	changed := vm.state.ErrorMessage != ""
	vm.state.ErrorMessage = ""
	vm.mu.Unlock()
	if changed {
		vm.notify()
	}
}

// Close cancels every subscription and waits for them to finish.
func (vm *ViewModel) Close() {
	vm.mu.Lock()
	vm.cancel()
	vm.mu.Unlock()
	vm.wg.Wait()
	vm.changes.Close()
}

func (vm *ViewModel) fail(prefix string, err error) {
	vm.logger.Warn("viewmodel: "+strings.TrimSuffix(strings.ToLower(prefix), ": "), slog.String("error", err.Error()))
	vm.mu.Lock()
	vm.state.ErrorMessage = prefix + err.Error()
	vm.mu.Unlock()
	vm.notify()
}

func nonNil(notes []models.Note) []models.Note {
	if notes == nil {
		return []models.Note{}
	}
	return notes
}
