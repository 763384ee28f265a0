// Package media owns the audio and drawing capture resources behind audio
// and drawing notes. The actual codecs and devices are supplied by the
// platform through the Recorder, Player and Renderer interfaces.
package media

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/assets"
)

// State of a recording or a playback.
type State int

const (
	Idle State = iota
	Active
	Paused
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Paused:
		return "paused"
	}
	return "idle"
}

// Recording is a platform capture handle.
type Recording interface {
	Pause() error
	Resume() error
	// Stop finalizes the output file and frees the handle.
	Stop() error
}

// Recorder starts captures into an absolute output path.
type Recorder interface {
	Start(path string) (Recording, error)
}

// Playback is a platform playback handle.
type Playback interface {
	Pause() error
	Resume() error
	// Stop halts playback and frees the handle.
	Stop() error
	Position() time.Duration
	Duration() time.Duration
	// Done is closed when playback reaches the end.
	Done() <-chan struct{}
}

// Player opens an absolute input path for playback.
type Player interface {
	Play(path string) (Playback, error)
}

// Session holds at most one active recording and at most one active
// playback. Starting either while one is already running stops and
// releases the previous one first. Close releases both.
type Session struct {
	dir      *assets.Dir
	recorder Recorder
	player   Player
	now      func() time.Time
	logger   *slog.Logger

	mu sync.Mutex

	rec        Recording
	recName    string
	recState   State
	recStarted time.Time
	recTotal   time.Duration

	play       Playback
	playName   string
	playPaused bool
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithSessionClock overrides the time source used for recording names and
// elapsed time.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *Session) {
		s.now = now
	}
}

// WithSessionLogger sets the logger.
func WithSessionLogger(l *slog.Logger) SessionOption {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession creates a Session writing recordings into dir. Either of
// recorder and player may be nil when the platform lacks it.
func NewSession(dir *assets.Dir, recorder Recorder, player Player, opts ...SessionOption) *Session {
	s := &Session{
		dir:      dir,
		recorder: recorder,
		player:   player,
		now:      time.Now,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartRecording begins a new capture and returns its asset name.
func (s *Session) StartRecording() (string, error) {
	if s.recorder == nil {
		return "", fmt.Errorf("media: %w: no recorder available", apperr.ErrNoSession)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.releaseRecordingLocked()

	now := s.now()
	name, err := s.dir.CreateAudio(now)
	if err != nil {
		return "", fmt.Errorf("media: start recording: %w", err)
	}
	path, err := s.dir.Path(name)
	if err != nil {
		return "", err
	}
	rec, err := s.recorder.Start(path)
	if err != nil {
		if rmErr := s.dir.Remove(name); rmErr != nil {
			s.logger.Warn("remove reserved recording failed", slog.String("name", name), slog.String("error", rmErr.Error()))
		}
		return "", fmt.Errorf("media: start recording: %w", err)
	}

	s.rec = rec
	s.recName = name
	s.recState = Active
	s.recStarted = now
	s.recTotal = 0
	s.logger.Debug("recording started", slog.String("name", name))
	return name, nil
}

// PauseRecording pauses the active capture.
func (s *Session) PauseRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recState != Active {
		return fmt.Errorf("media: pause recording: %w", apperr.ErrNoSession)
	}
	if err := s.rec.Pause(); err != nil {
		return fmt.Errorf("media: pause recording: %w", err)
	}
	s.recTotal += s.now().Sub(s.recStarted)
	s.recState = Paused
	return nil
}

// ResumeRecording resumes a paused capture.
func (s *Session) ResumeRecording() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recState != Paused {
		return fmt.Errorf("media: resume recording: %w", apperr.ErrNoSession)
	}
	if err := s.rec.Resume(); err != nil {
		return fmt.Errorf("media: resume recording: %w", err)
	}
	s.recStarted = s.now()
	s.recState = Active
	return nil
}

// StopRecording finalizes the capture and returns the asset name to store
// on the note.
func (s *Session) StopRecording() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.recState == Idle {
		return "", fmt.Errorf("media: stop recording: %w", apperr.ErrNoSession)
	}
	name := s.recName
	err := s.rec.Stop()
	s.clearRecordingLocked()
	if err != nil {
		return "", fmt.Errorf("media: stop recording: %w", err)
	}
	s.logger.Debug("recording finished", slog.String("name", name))
	return name, nil
}

// RecordingState reports the capture state.
func (s *Session) RecordingState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recState
}

// RecordingElapsed returns the captured time so far, excluding pauses.
func (s *Session) RecordingElapsed() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recState == Active {
		return s.recTotal + s.now().Sub(s.recStarted)
	}
	return s.recTotal
}

func (s *Session) releaseRecordingLocked() {
	if s.recState == Idle {
		return
	}
	if err := s.rec.Stop(); err != nil {
		s.logger.Warn("release recording failed", slog.String("name", s.recName), slog.String("error", err.Error()))
	}
	s.clearRecordingLocked()
}

func (s *Session) clearRecordingLocked() {
	s.rec = nil
	s.recName = ""
	s.recState = Idle
	s.recTotal = 0
}

// StartPlayback plays the named asset, releasing any previous playback.
func (s *Session) StartPlayback(name string) error {
	if s.player == nil {
		return fmt.Errorf("media: %w: no player available", apperr.ErrNoSession)
	}
	path, err := s.dir.Path(name)
	if err != nil {
		return err
	}
	if !s.dir.Exists(name) {
		return fmt.Errorf("media: play %s: %w", name, apperr.ErrNotFound)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.releasePlaybackLocked()

	pb, err := s.player.Play(path)
	if err != nil {
		return fmt.Errorf("media: start playback: %w", err)
	}
	s.play = pb
	s.playName = name
	s.playPaused = false
	return nil
}

// PausePlayback pauses the active playback.
func (s *Session) PausePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playbackStateLocked() != Active {
		return fmt.Errorf("media: pause playback: %w", apperr.ErrNoSession)
	}
	if err := s.play.Pause(); err != nil {
		return fmt.Errorf("media: pause playback: %w", err)
	}
	s.playPaused = true
	return nil
}

// ResumePlayback resumes a paused playback.
func (s *Session) ResumePlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.playbackStateLocked() != Paused {
		return fmt.Errorf("media: resume playback: %w", apperr.ErrNoSession)
	}
	if err := s.play.Resume(); err != nil {
		return fmt.Errorf("media: resume playback: %w", err)
	}
	s.playPaused = false
	return nil
}

// StopPlayback halts and releases the playback. Stopping when idle is a
// no-op.
func (s *Session) StopPlayback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.play == nil {
		return nil
	}
	err := s.play.Stop()
	s.play = nil
	s.playName = ""
	s.playPaused = false
	if err != nil {
		return fmt.Errorf("media: stop playback: %w", err)
	}
	return nil
}

// PlaybackState reports the playback state. A playback that reached its end
// is released and reported idle.
func (s *Session) PlaybackState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playbackStateLocked()
}

// PlaybackPosition returns the current position and total duration.
func (s *Session) PlaybackPosition() (pos, total time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.playbackStateLocked() == Idle {
		return 0, 0
	}
	return s.play.Position(), s.play.Duration()
}

func (s *Session) playbackStateLocked() State {
	if s.play == nil {
		return Idle
	}
	select {
	case <-s.play.Done():
		s.releasePlaybackLocked()
		return Idle
	default:
	}
	if s.playPaused {
		return Paused
	}
	return Active
}

func (s *Session) releasePlaybackLocked() {
	if s.play == nil {
		return
	}
	if err := s.play.Stop(); err != nil {
		s.logger.Warn("release playback failed", slog.String("name", s.playName), slog.String("error", err.Error()))
	}
	s.play = nil
	s.playName = ""
	s.playPaused = false
}

// Close releases the recording and the playback.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.releaseRecordingLocked()
	s.releasePlaybackLocked()
}
