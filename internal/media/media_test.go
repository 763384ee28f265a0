package media

import (
	"bytes"
	"errors"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/assets"
	"github.com/starford/sagenote/internal/models"
	"github.com/starford/sagenote/internal/testutil"
)

// fakeHandle implements both Recording and Playback.
type fakeHandle struct {
	mu      sync.Mutex
	path    string
	calls   []string
	stopped bool
	done    chan struct{}
}

func (h *fakeHandle) record(call string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.calls = append(h.calls, call)
	return nil
}

func (h *fakeHandle) Pause() error  { return h.record("pause") }
func (h *fakeHandle) Resume() error { return h.record("resume") }
func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	h.stopped = true
	h.mu.Unlock()
	return h.record("stop")
}
func (h *fakeHandle) Position() time.Duration { return 3 * time.Second }
func (h *fakeHandle) Duration() time.Duration { return 10 * time.Second }
func (h *fakeHandle) Done() <-chan struct{}   { return h.done }

func (h *fakeHandle) isStopped() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stopped
}

type fakeDevice struct {
	handles []*fakeHandle
	err     error
}

func (d *fakeDevice) open(path string) (*fakeHandle, error) {
	if d.err != nil {
		return nil, d.err
	}
	h := &fakeHandle{path: path, done: make(chan struct{})}
	d.handles = append(d.handles, h)
	return h, nil
}

func (d *fakeDevice) Start(path string) (Recording, error) { return d.open(path) }
func (d *fakeDevice) Play(path string) (Playback, error)   { return d.open(path) }

func newSession(t *testing.T, clock func() time.Time) (*Session, *fakeDevice, *fakeDevice, *assets.Dir) {
	t.Helper()
	dir := testutil.TestAssets(t)
	rec, play := &fakeDevice{}, &fakeDevice{}
	return NewSession(dir, rec, play, WithSessionClock(clock)), rec, play, dir
}

func TestRecording_Lifecycle(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s, rec, _, dir := newSession(t, func() time.Time { return now })

	name, err := s.StartRecording()
	require.NoError(t, err)
	assert.Equal(t, "audio_20240506_070809.3gp", name)
	assert.Equal(t, Active, s.RecordingState())
	path, _ := dir.Path(name)
	assert.Equal(t, path, rec.handles[0].path)

	now = now.Add(4 * time.Second)
	require.NoError(t, s.PauseRecording())
	assert.Equal(t, Paused, s.RecordingState())
	now = now.Add(time.Minute)
	assert.Equal(t, 4*time.Second, s.RecordingElapsed())

	require.NoError(t, s.ResumeRecording())
	now = now.Add(2 * time.Second)
	assert.Equal(t, 6*time.Second, s.RecordingElapsed())

	got, err := s.StopRecording()
	require.NoError(t, err)
	assert.Equal(t, name, got)
	assert.Equal(t, Idle, s.RecordingState())
	assert.Equal(t, []string{"pause", "resume", "stop"}, rec.handles[0].calls)

	_, err = s.StopRecording()
	assert.ErrorIs(t, err, apperr.ErrNoSession)
	assert.ErrorIs(t, s.PauseRecording(), apperr.ErrNoSession)
}

func TestRecording_StartReleasesPrevious(t *testing.T) {
	now := time.Now()
	s, rec, _, _ := newSession(t, func() time.Time { return now })

	_, err := s.StartRecording()
	require.NoError(t, err)
	now = now.Add(time.Second)
	_, err = s.StartRecording()
	require.NoError(t, err)

	require.Len(t, rec.handles, 2)
	assert.True(t, rec.handles[0].isStopped())
	assert.False(t, rec.handles[1].isStopped())
}

func TestRecording_StartFailureLeavesIdle(t *testing.T) {
	s, rec, _, dir := newSession(t, time.Now)
	rec.err = errors.New("mic busy")
	_, err := s.StartRecording()
	require.Error(t, err)
	assert.Equal(t, Idle, s.RecordingState())

	names, err := dir.List(assets.AudioPattern)
	require.NoError(t, err)
	assert.Empty(t, names, "reserved file must be removed when the recorder fails")
}

func TestRecording_SameSecondDoesNotReuseSavedFile(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	s, _, _, dir := newSession(t, func() time.Time { return now })

	first, err := s.StartRecording()
	require.NoError(t, err)
	_, err = s.StopRecording()
	require.NoError(t, err)
	require.NoError(t, dir.Write(first, []byte("saved note audio")))

	second, err := s.StartRecording()
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
	assert.Equal(t, "audio_20240506_070809_1.3gp", second)

	data, err := dir.Read(first)
	require.NoError(t, err)
	assert.Equal(t, "saved note audio", string(data))
}

func TestPlayback_Lifecycle(t *testing.T) {
	s, _, play, dir := newSession(t, time.Now)
	require.NoError(t, dir.Write("audio_1.3gp", []byte("amr")))

	assert.ErrorIs(t, s.StartPlayback("audio_missing.3gp"), apperr.ErrNotFound)
	assert.ErrorIs(t, s.StartPlayback("../escape.3gp"), apperr.ErrInvalidAsset)

	require.NoError(t, s.StartPlayback("audio_1.3gp"))
	assert.Equal(t, Active, s.PlaybackState())
	pos, total := s.PlaybackPosition()
	assert.Equal(t, 3*time.Second, pos)
	assert.Equal(t, 10*time.Second, total)

	require.NoError(t, s.PausePlayback())
	assert.Equal(t, Paused, s.PlaybackState())
	require.NoError(t, s.ResumePlayback())

	// A second playback releases the first.
	require.NoError(t, s.StartPlayback("audio_1.3gp"))
	require.Len(t, play.handles, 2)
	assert.True(t, play.handles[0].isStopped())

	// Reaching the end releases the handle.
	close(play.handles[1].done)
	assert.Equal(t, Idle, s.PlaybackState())
	assert.True(t, play.handles[1].isStopped())
	assert.NoError(t, s.StopPlayback())
}

func TestSession_CloseReleasesBoth(t *testing.T) {
	s, rec, play, dir := newSession(t, time.Now)
	require.NoError(t, dir.Write("audio_2.3gp", []byte("amr")))
	_, err := s.StartRecording()
	require.NoError(t, err)
	require.NoError(t, s.StartPlayback("audio_2.3gp"))

	s.Close()
	assert.True(t, rec.handles[0].isStopped())
	assert.True(t, play.handles[0].isStopped())
	assert.Equal(t, Idle, s.RecordingState())
	assert.Equal(t, Idle, s.PlaybackState())
}

func TestSession_NoDevices(t *testing.T) {
	s := NewSession(testutil.TestAssets(t), nil, nil)
	_, err := s.StartRecording()
	assert.ErrorIs(t, err, apperr.ErrNoSession)
	assert.ErrorIs(t, s.StartPlayback("audio_x.3gp"), apperr.ErrNoSession)
}

func TestCanvas(t *testing.T) {
	c := NewCanvas(0, 0)
	assert.Equal(t, DefaultCanvasWidth, c.Width)
	assert.True(t, c.Empty())

	c.Begin(Point{1, 1}, 0xFFFF0000, 0)
	c.Extend(Point{2, 2})
	c.End()
	c.Extend(Point{5, 5}) // starts a new default stroke
	c.End()

	strokes := c.Strokes()
	require.Len(t, strokes, 2)
	assert.Equal(t, float32(DefaultStrokeWidth), strokes[0].Width)
	assert.Len(t, strokes[0].Points, 2)
	assert.Equal(t, models.ColorBlack, strokes[1].Color)

	strokes[0].Points[0] = Point{99, 99}
	assert.Equal(t, Point{1, 1}, c.Strokes()[0].Points[0], "Strokes must return a copy")

	c.Undo()
	assert.Len(t, c.Strokes(), 1)
	c.Clear()
	assert.True(t, c.Empty())
	c.Undo()
	assert.True(t, c.Empty())
}

func TestPNGRenderer(t *testing.T) {
	strokes := []Stroke{{
		Color:  0xFFFF0000,
		Width:  10,
		Points: []Point{{10, 50}, {90, 50}},
	}}
	data, err := PNGRenderer{}.Render(strokes, 100, 100)
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 100, img.Bounds().Dx())

	r, g, b, _ := img.At(50, 50).RGBA()
	assert.Equal(t, uint32(0xFFFF), r, "stroke center should be red")
	assert.Zero(t, g)
	assert.Zero(t, b)

	r, g, b, _ = img.At(50, 10).RGBA()
	assert.Equal(t, [3]uint32{0xFFFF, 0xFFFF, 0xFFFF}, [3]uint32{r, g, b}, "background should be white")
}

func TestSaveDrawing(t *testing.T) {
	dir := testutil.TestAssets(t)
	c := NewCanvas(64, 64)

	_, err := SaveDrawing(c, PNGRenderer{}, dir)
	assert.ErrorIs(t, err, apperr.ErrEmptyDrawing)

	c.Add(Stroke{Color: models.ColorBlack, Points: []Point{{5, 5}, {60, 60}}})
	name, err := SaveDrawing(c, PNGRenderer{}, dir)
	require.NoError(t, err)
	assert.Regexp(t, `^drawing_[0-9a-f-]{36}\.png$`, name)

	data, err := dir.Read(name)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(data))
	assert.NoError(t, err)
}
