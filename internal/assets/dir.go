// Package assets manages the app-private directory holding drawing and
// audio files referenced by notes.
package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"

	"github.com/starford/sagenote/internal/apperr"
)

// Glob patterns for the asset kinds the app produces.
const (
	AudioPattern   = "audio_*.3gp"
	DrawingPattern = "drawing_*.png"
	AllPattern     = "{" + AudioPattern + "," + DrawingPattern + "}"
)

// Storage is the interface for asset file operations. Names are flat file
// names relative to the asset directory.
type Storage interface {
	Read(name string) ([]byte, error)
	Write(name string, content []byte) error
	Remove(name string) error
	Exists(name string) bool
	List(pattern string) ([]string, error)
}

// Dir implements Storage on the local file system.
type Dir struct {
	root string // absolute path to the asset directory
}

// Verify *Dir satisfies Storage at compile time.
var _ Storage = (*Dir)(nil)

// NewDir returns a Dir rooted at root, creating the directory if needed.
func NewDir(root string) (*Dir, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("assets: resolve root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("assets: create root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("assets: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("assets: root is not a directory: %s", abs)
	}
	return &Dir{root: abs}, nil
}

// Root returns the absolute asset directory.
func (d *Dir) Root() string {
	return d.root
}

// NewAudioName returns a file name for a recording started at t.
func NewAudioName(t time.Time) string {
	return "audio_" + t.Format("20060102_150405") + ".3gp"
}

// maxAudioSuffix bounds the counter CreateAudio appends within one second.
const maxAudioSuffix = 1000

// CreateAudio reserves a file for a recording started at t and returns its
// name. The name is NewAudioName(t), suffixed with a counter when a recording
// from the same second already exists. The file is created empty with
// O_EXCL, so concurrent callers never share a name; the caller fills it with
// Write or a recorder and removes it on failure.
func (d *Dir) CreateAudio(t time.Time) (string, error) {
	base := strings.TrimSuffix(NewAudioName(t), ".3gp")
	name := base + ".3gp"
	for i := 1; i <= maxAudioSuffix; i++ {
		f, err := os.OpenFile(filepath.Join(d.root, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			if err := f.Close(); err != nil {
				return "", fmt.Errorf("assets: reserve %s: %w", name, err)
			}
			return name, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("assets: reserve %s: %w", name, err)
		}
		name = fmt.Sprintf("%s_%d.3gp", base, i)
	}
	return "", fmt.Errorf("assets: reserve %s: too many recordings in one second", base)
}

// NewDrawingName returns a unique file name for a rendered drawing.
func NewDrawingName() string {
	return "drawing_" + uuid.NewString() + ".png"
}

// ValidName reports whether name is a plain file name with no directory
// component or traversal.
func ValidName(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return filepath.Base(name) == name && !strings.ContainsAny(name, `/\`) && !strings.HasPrefix(name, ".")
}

// Path resolves name to an absolute path under the asset directory.
func (d *Dir) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", apperr.ErrInvalidAsset, name)
	}
	return filepath.Join(d.root, name), nil
}

// Read returns the contents of an asset.
func (d *Dir) Read(name string) ([]byte, error) {
	abs, err := d.Path(name)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("assets: read %s: %w", name, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("assets: read %s: %w", name, err)
	}
	return data, nil
}

// Exists reports whether the asset is present.
func (d *Dir) Exists(name string) bool {
	abs, err := d.Path(name)
	if err != nil {
		return false
	}
	_, err = os.Stat(abs)
	return err == nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (d *Dir) Write(name string, content []byte) error {
	abs, err := d.Path(name)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(d.root, ".sagenote-tmp-*")
	if err != nil {
		return fmt.Errorf("assets: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("assets: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("assets: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("assets: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("assets: rename: %w", err)
	}
	success = true
	return nil
}

// Remove deletes an asset. A missing file is not an error.
func (d *Dir) Remove(name string) error {
	abs, err := d.Path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("assets: remove %s: %w", name, err)
	}
	return nil
}

// List returns the sorted names of assets matching a doublestar pattern.
func (d *Dir) List(pattern string) ([]string, error) {
	if pattern == "" {
		pattern = AllPattern
	}
	names, err := doublestar.Glob(os.DirFS(d.root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("assets: list %s: %w", pattern, err)
	}
	out := names[:0]
	for _, n := range names {
		if ValidName(n) {
			out = append(out, n)
		}
	}
	sort.Strings(out)
	return out, nil
}
