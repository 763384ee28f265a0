package assets

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Sweep removes asset files that no note references. Files modified within
// grace are kept so that a recording or drawing saved just before its note
// is inserted survives. It returns the removed names.
func Sweep(ctx context.Context, dir *Dir, referenced map[string]struct{}, grace time.Duration, logger *slog.Logger) ([]string, error) {
	names, err := dir.List("")
	if err != nil {
		return nil, err
	}

	cutoff := time.Now().Add(-grace)
	var removed []string
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		if _, ok := referenced[name]; ok {
			continue
		}
		abs, err := dir.Path(name)
		if err != nil {
			continue
		}
		info, err := os.Stat(abs)
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		if err := dir.Remove(name); err != nil {
			logger.Warn("sweep: remove failed", slog.String("name", name), slog.String("error", err.Error()))
			continue
		}
		logger.Debug("sweep: removed orphan", slog.String("name", name))
		removed = append(removed, name)
	}

	if len(removed) > 0 {
		logger.Info("sweep: orphaned assets removed", slog.Int("count", len(removed)))
	}
	return removed, nil
}
