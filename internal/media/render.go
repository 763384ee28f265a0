package media

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"math"

	"golang.org/x/image/vector"

	"github.com/starford/sagenote/internal/colorutil"
	"github.com/starford/sagenote/internal/models"
)

// kappa places cubic control points for a quarter circle.
const kappa = 0.5522847

// PNGRenderer draws anti-aliased round-capped strokes on an opaque
// background and encodes the result as PNG.
type PNGRenderer struct {
	Background models.Color
}

// Render implements Renderer.
func (r PNGRenderer) Render(strokes []Stroke, width, height int) ([]byte, error) {
	bg := r.Background
	if bg == 0 {
		bg = models.ColorWhite
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.Draw(dst, dst.Bounds(), image.NewUniform(toRGBA(bg)), image.Point{}, draw.Src)

	for _, s := range strokes {
		z := vector.NewRasterizer(width, height)
		traceStroke(z, s)
		z.Draw(dst, dst.Bounds(), image.NewUniform(toRGBA(s.Color)), image.Point{})
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// traceStroke adds the outline of s to z as a union of discs at every point
// and quads along every segment. All subpaths share one winding direction so
// overlaps do not cancel out.
func traceStroke(z *vector.Rasterizer, s Stroke) {
	half := s.Width / 2
	for i, p := range s.Points {
		disc(z, p, half)
		if i == 0 {
			continue
		}
		segment(z, s.Points[i-1], p, half)
	}
}

func disc(z *vector.Rasterizer, c Point, r float32) {
	k := kappa * r
	z.MoveTo(c.X+r, c.Y)
	z.CubeTo(c.X+r, c.Y-k, c.X+k, c.Y-r, c.X, c.Y-r)
	z.CubeTo(c.X-k, c.Y-r, c.X-r, c.Y-k, c.X-r, c.Y)
	z.CubeTo(c.X-r, c.Y+k, c.X-k, c.Y+r, c.X, c.Y+r)
	z.CubeTo(c.X+k, c.Y+r, c.X+r, c.Y+k, c.X+r, c.Y)
	z.ClosePath()
}

func segment(z *vector.Rasterizer, a, b Point, half float32) {
	dx, dy := b.X-a.X, b.Y-a.Y
	l := float32(math.Hypot(float64(dx), float64(dy)))
	if l == 0 {
		return
	}
	// Left normal scaled to half the stroke width.
	nx, ny := -dy/l*half, dx/l*half
	z.MoveTo(a.X+nx, a.Y+ny)
	z.LineTo(b.X+nx, b.Y+ny)
	z.LineTo(b.X-nx, b.Y-ny)
	z.LineTo(a.X-nx, a.Y-ny)
	z.ClosePath()
}

func toRGBA(c models.Color) color.NRGBA {
	a, r, g, b := colorutil.Channels(c)
	return color.NRGBA{R: r, G: g, B: b, A: a}
}
