// Package dateutil formats timestamps for display.
package dateutil

import (
	"fmt"
	"time"
)

// Layout is the display layout for note timestamps.
const Layout = "Jan 02, 2006 03:04 PM"

// Format renders t in the local time zone.
func Format(t time.Time) string {
	return FormatIn(t, time.Local)
}

// FormatIn renders t in loc.
func FormatIn(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(Layout)
}

// FormatDuration renders d as mm:ss, used for playback positions.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
