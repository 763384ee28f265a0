package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/models"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	f, err := os.CreateTemp("", "sagenote-test-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	t.Cleanup(func() {
		os.Remove(f.Name())
		os.Remove(f.Name() + "-wal")
		os.Remove(f.Name() + "-shm")
	})

	s, err := Open(context.Background(), f.Name())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func note(title string, pinned bool, updatedMs int64) models.Note {
	ts := time.UnixMilli(updatedMs)
	return models.Note{
		Title:     title,
		Content:   "body of " + title,
		CreatedAt: ts,
		UpdatedAt: ts,
		Color:     models.ColorWhite,
		TextColor: models.ColorBlack,
		IsPinned:  pinned,
		Type:      models.TypeText,
	}
}

func titles(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.Title
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSchemaVersion(t *testing.T) {
	s := testStore(t)
	var v int
	if err := s.conn.QueryRow(`PRAGMA user_version`).Scan(&v); err != nil {
		t.Fatal(err)
	}
	if v != SchemaVersion {
		t.Errorf("user_version = %d, want %d", v, SchemaVersion)
	}
}

func TestOpen_ReopenKeepsRows(t *testing.T) {
	f, err := os.CreateTemp("", "sagenote-reopen-*.db")
	if err != nil {
		t.Fatal(err)
	}
	f.Close()
	defer os.Remove(f.Name())

	ctx := context.Background()
	s, err := Open(ctx, f.Name())
	if err != nil {
		t.Fatal(err)
	}
	id, err := s.Insert(ctx, note("keep", false, 1))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, f.Name())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetByID(ctx, id); err != nil {
		t.Fatalf("row lost across reopen: %v", err)
	}
}

func TestInsertAndGetByID(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	n := note("Groceries", true, 1_700_000_000_123)
	n.Type = models.TypeList
	n.Color = 0xFF202124
	n.TextColor = models.ColorWhite
	n.ListItems = []models.ListItem{{Text: "milk", Position: 0}, {Text: "eggs", IsChecked: true, Position: 1}}

	id, err := s.Insert(ctx, n)
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if id == 0 {
		t.Fatal("expected nonzero id")
	}

	got, err := s.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Title != "Groceries" || !got.IsPinned || got.Type != models.TypeList {
		t.Errorf("unexpected note: %+v", got)
	}
	if got.Color != 0xFF202124 || got.TextColor != models.ColorWhite {
		t.Errorf("colors = %#x/%#x", got.Color, got.TextColor)
	}
	if got.UpdatedAt.UnixMilli() != 1_700_000_000_123 {
		t.Errorf("updated_at = %d", got.UpdatedAt.UnixMilli())
	}
	if len(got.ListItems) != 2 || !got.ListItems[1].IsChecked {
		t.Errorf("list items = %+v", got.ListItems)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	s := testStore(t)
	_, err := s.GetByID(context.Background(), 4242)
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestInsert_ExistingIDReplaces(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, note("first", false, 1))
	replacement := note("second", true, 2)
	replacement.ID = id

	got, err := s.Insert(ctx, replacement)
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if got != id {
		t.Errorf("upsert id = %d, want %d", got, id)
	}

	all, _ := s.All(ctx)
	if len(all) != 1 || all[0].Title != "second" || !all[0].IsPinned {
		t.Errorf("rows after upsert = %+v", all)
	}
}

func TestUpdate(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	id, _ := s.Insert(ctx, note("old", false, 1))
	n, _ := s.GetByID(ctx, id)
	n.Title = "new"
	n.UpdatedAt = time.UnixMilli(99)
	if err := s.Update(ctx, n); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.GetByID(ctx, id)
	if got.Title != "new" || got.UpdatedAt.UnixMilli() != 99 {
		t.Errorf("after update: %+v", got)
	}
}

func TestUpdate_MissingRowIsNoop(t *testing.T) {
	s := testStore(t)
	n := note("ghost", false, 1)
	n.ID = 777
	if err := s.Update(context.Background(), n); err != nil {
		t.Fatalf("Update of missing row: %v", err)
	}
	all, _ := s.All(context.Background())
	if len(all) != 0 {
		t.Errorf("update must not insert, got %d rows", len(all))
	}
}

func TestDeleteByID_Idempotent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := s.DeleteByID(ctx, 12345); err != nil {
			t.Fatalf("delete #%d: %v", i+1, err)
		}
	}

	id, _ := s.Insert(ctx, note("bye", false, 1))
	n, _ := s.GetByID(ctx, id)
	if err := s.Delete(ctx, n); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.GetByID(ctx, id); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("note still present: %v", err)
	}
}

func TestAll_SortOrder(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, _ = s.Insert(ctx, note("A", true, 10))
	_, _ = s.Insert(ctx, note("B", false, 50))
	_, _ = s.Insert(ctx, note("C", true, 5))

	all, err := s.All(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got := titles(all); !equalStrings(got, []string{"A", "C", "B"}) {
		t.Errorf("order = %v, want [A C B]", got)
	}
}

func TestSearch(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	shopping := note("Shopping list", false, 1)
	shopping.Content = "milk"
	meeting := note("Meeting notes", false, 2)
	meeting.Content = "agenda"
	_, _ = s.Insert(ctx, shopping)
	_, _ = s.Insert(ctx, meeting)

	got, err := s.Search(ctx, "shop")
	if err != nil {
		t.Fatal(err)
	}
	if !equalStrings(titles(got), []string{"Shopping list"}) {
		t.Errorf("search shop = %v", titles(got))
	}

	got, _ = s.Search(ctx, "agend")
	if !equalStrings(titles(got), []string{"Meeting notes"}) {
		t.Errorf("content match = %v", titles(got))
	}
}

func TestSearch_WildcardsAreLiteral(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, _ = s.Insert(ctx, note("100% done", false, 1))
	_, _ = s.Insert(ctx, note("1000 things", false, 2))
	_, _ = s.Insert(ctx, note("snake_case", false, 3))
	_, _ = s.Insert(ctx, note("snakeXcase", false, 4))

	got, _ := s.Search(ctx, "100%")
	if !equalStrings(titles(got), []string{"100% done"}) {
		t.Errorf("search 100%% = %v", titles(got))
	}
	got, _ = s.Search(ctx, "e_c")
	if !equalStrings(titles(got), []string{"snake_case"}) {
		t.Errorf("search e_c = %v", titles(got))
	}
}

func TestAssetPaths(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	d := note("sketch", false, 1)
	d.Type = models.TypeDrawing
	d.DrawingPath = "drawing_1.png"
	a := note("memo", false, 2)
	a.Type = models.TypeAudio
	a.AudioPath = "audio_1.3gp"
	_, _ = s.Insert(ctx, d)
	_, _ = s.Insert(ctx, a)
	_, _ = s.Insert(ctx, note("plain", false, 3))

	paths, err := s.AssetPaths(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(paths) != 2 {
		t.Fatalf("paths = %v", paths)
	}
	for _, p := range []string{"drawing_1.png", "audio_1.3gp"} {
		if _, ok := paths[p]; !ok {
			t.Errorf("missing %s", p)
		}
	}
}

func TestUndecodableColumnsDegrade(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	_, err := s.conn.Exec(`
		INSERT INTO notes (title, content, created_at, updated_at, color, text_color, type, list_items)
		VALUES ('legacy', '', 1, 1, 0, 0, 'SKETCH', '{broken')
	`)
	if err != nil {
		t.Fatal(err)
	}
	all, err := s.All(ctx)
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].Type != models.TypeText || len(all[0].ListItems) != 0 {
		t.Errorf("legacy row = %+v", all)
	}
}

func TestConcurrentUpdates_LastWriteWins(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()
	id, _ := s.Insert(ctx, note("race", false, 1))

	a := note("from A", true, 100)
	a.ID = id
	a.Content = "content A"
	b := note("from B", false, 200)
	b.ID = id
	b.Content = "content B"

	var wg sync.WaitGroup
	for _, n := range []models.Note{a, b} {
		wg.Add(1)
		go func(n models.Note) {
			defer wg.Done()
			if err := s.Update(ctx, n); err != nil {
				t.Errorf("update: %v", err)
			}
		}(n)
	}
	wg.Wait()

	all, _ := s.All(ctx)
	if len(all) != 1 {
		t.Fatalf("rows = %d, want 1", len(all))
	}
	got := all[0]
	switch got.Title {
	case "from A":
		if got.Content != "content A" || !got.IsPinned || got.UpdatedAt.UnixMilli() != 100 {
			t.Errorf("merged row: %+v", got)
		}
	case "from B":
		if got.Content != "content B" || got.IsPinned || got.UpdatedAt.UnixMilli() != 200 {
			t.Errorf("merged row: %+v", got)
		}
	default:
		t.Errorf("unexpected title %q", got.Title)
	}
}
