package media

import (
	"fmt"
	"sync"

	"github.com/starford/sagenote/internal/apperr"
	"github.com/starford/sagenote/internal/assets"
	"github.com/starford/sagenote/internal/models"
)

// Drawing defaults.
const (
	DefaultStrokeWidth  = 5
	DefaultCanvasWidth  = 800
	DefaultCanvasHeight = 800
)

// Point is a canvas coordinate in pixels.
type Point struct {
	X float32 `json:"x"`
	Y float32 `json:"y"`
}

// Stroke is one freehand line.
type Stroke struct {
	Color  models.Color `json:"color"`
	Width  float32      `json:"width"`
	Points []Point      `json:"points"`
}

// Canvas accumulates strokes as they are drawn.
type Canvas struct {
	Width, Height int

	mu      sync.Mutex
	strokes []Stroke
	open    bool
}

// NewCanvas returns an empty canvas of the given size.
func NewCanvas(width, height int) *Canvas {
	if width <= 0 {
		width = DefaultCanvasWidth
	}
	if height <= 0 {
		height = DefaultCanvasHeight
	}
	return &Canvas{Width: width, Height: height}
}

// Begin starts a new stroke at p.
func (c *Canvas) Begin(p Point, color models.Color, width float32) {
	if width <= 0 {
		width = DefaultStrokeWidth
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = append(c.strokes, Stroke{Color: color, Width: width, Points: []Point{p}})
	c.open = true
}

// Extend adds p to the stroke in progress. Without one it starts a black
// stroke of default width.
func (c *Canvas) Extend(p Point) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		c.Begin(p, models.ColorBlack, DefaultStrokeWidth)
		return
	}
	defer c.mu.Unlock()
	last := &c.strokes[len(c.strokes)-1]
	last.Points = append(last.Points, p)
}

// End finishes the stroke in progress.
func (c *Canvas) End() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open = false
}

// Add appends a complete stroke.
func (c *Canvas) Add(s Stroke) {
	if len(s.Points) == 0 {
		return
	}
	if s.Width <= 0 {
		s.Width = DefaultStrokeWidth
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = append(c.strokes, s)
	c.open = false
}

// Undo removes the most recent stroke.
func (c *Canvas) Undo() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if n := len(c.strokes); n > 0 {
		c.strokes = c.strokes[:n-1]
	}
	c.open = false
}

// Clear removes every stroke.
func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.strokes = nil
	c.open = false
}

// Strokes returns a copy of the strokes drawn so far.
func (c *Canvas) Strokes() []Stroke {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Stroke, len(c.strokes))
	for i, s := range c.strokes {
		s.Points = append([]Point(nil), s.Points...)
		out[i] = s
	}
	return out
}

// Empty reports whether nothing has been drawn.
func (c *Canvas) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.strokes) == 0
}

// Renderer rasterizes strokes into encoded image bytes.
type Renderer interface {
	Render(strokes []Stroke, width, height int) ([]byte, error)
}

// AssetWriter stores an asset file.
type AssetWriter interface {
	Write(name string, content []byte) error
}

// SaveDrawing renders the canvas and stores it under a fresh drawing asset
// name, which it returns.
func SaveDrawing(c *Canvas, r Renderer, w AssetWriter) (string, error) {
	strokes := c.Strokes()
	if len(strokes) == 0 {
		return "", apperr.ErrEmptyDrawing
	}
	img, err := r.Render(strokes, c.Width, c.Height)
	if err != nil {
		return "", fmt.Errorf("media: render drawing: %w", err)
	}
	name := assets.NewDrawingName()
	if err := w.Write(name, img); err != nil {
		return "", fmt.Errorf("media: save drawing: %w", err)
	}
	return name, nil
}
