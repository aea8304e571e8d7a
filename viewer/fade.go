package viewer

import (
	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// fadeDuration is how long a new render takes to fade in, in seconds.
const fadeDuration float32 = 0.15

// fade animates the surface alpha after each render. There is no global
// animation manager; the game calls Update once per tick.
type fade struct {
	tween *gween.Tween
	alpha float32
	Done  bool
}

func newFade() *fade {
	return &fade{alpha: 1, Done: true}
}

// Restart fades in from transparent.
func (f *fade) Restart() {
	f.tween = gween.New(0, 1, fadeDuration, ease.OutQuad)
	f.alpha = 0
	f.Done = false
}

// Update advances the fade by dt seconds.
func (f *fade) Update(dt float32) {
	if f.Done {
		return
	}
	val, finished := f.tween.Update(dt)
	f.alpha = val
	if finished {
		f.alpha = 1
		f.Done = true
	}
}

// Alpha returns the current alpha in [0, 1].
func (f *fade) Alpha() float32 { return f.alpha }
