package kernelfx

import (
	"context"
	"image"
	"log/slog"
	"time"
)

// PassStats describes the most recent render.
type PassStats struct {
	// Passes counts draws issued, the final identity pass included.
	Passes int
	// Skipped lists names that matched no user-selectable kernel.
	Skipped []string
	// Viewport is the size every pass was drawn at.
	Viewport image.Point
	// Duration is the wall time spent submitting the passes.
	Duration time.Duration
}

// Stats returns the statistics of the most recent render.
func (p *Pipeline) Stats() PassStats {
	s := p.stats
	s.Skipped = append([]string(nil), s.Skipped...)
	return s
}

// log writes the stats at debug level. Skipped names get their own record so
// a misspelled effect name is easy to spot.
func (s PassStats) log() {
	l := Logger()
	if !l.Enabled(context.Background(), slog.LevelDebug) {
		return
	}
	for _, name := range s.Skipped {
		l.Debug("kernelfx: skipped unknown kernel", "name", name)
	}
	l.Debug("kernelfx: render",
		"passes", s.Passes,
		"skipped", len(s.Skipped),
		"viewport", s.Viewport.String(),
		"duration", s.Duration)
}
