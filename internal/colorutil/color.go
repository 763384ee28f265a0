// Package colorutil derives readable foreground colors for note backgrounds.
package colorutil

import (
	"fmt"
	"math"

	"github.com/starford/sagenote/internal/models"
)

// Channels splits a packed ARGB color into its components.
func Channels(c models.Color) (a, r, g, b uint8) {
	return uint8(c >> 24), uint8(c >> 16), uint8(c >> 8), uint8(c)
}

// Luminance returns the relative luminance of c in [0, 1] using the sRGB
// transfer function and Rec. 709 weights. Alpha is ignored.
func Luminance(c models.Color) float64 {
	_, r, g, b := Channels(c)
	return 0.2126*linear(r) + 0.7152*linear(g) + 0.0722*linear(b)
}

func linear(v uint8) float64 {
	s := float64(v) / 255
	if s <= 0.04045 {
		return s / 12.92
	}
	return math.Pow((s+0.055)/1.055, 2.4)
}

// IsLight reports whether c is light enough to need a dark foreground.
func IsLight(c models.Color) bool {
	return Luminance(c) > 0.5
}

// Foreground returns black for light backgrounds and white for dark ones.
func Foreground(background models.Color) models.Color {
	if IsLight(background) {
		return models.ColorBlack
	}
	return models.ColorWhite
}

// Hex formats c as #RRGGBB.
func Hex(c models.Color) string {
	_, r, g, b := Channels(c)
	return fmt.Sprintf("#%02X%02X%02X", r, g, b)
}
