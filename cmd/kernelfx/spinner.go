package main

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// spinner shows a progress indicator on a terminal while work runs.
type spinner struct {
	w        io.Writer
	stopChan chan struct{}
	done     chan struct{}
}

func newSpinner(w io.Writer) *spinner {
	return &spinner{w: w}
}

// start draws message followed by a rotating bar until stop is called.
func (s *spinner) start(message string) {
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})

	go func() {
		defer close(s.done)
		for {
			for _, r := range `-\|/` {
				select {
				case <-s.stopChan:
					fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", len(message)+2))
					return
				default:
					fmt.Fprintf(s.w, "\r%s \x1b[92m%c\x1b[39m", message, r)
					time.Sleep(100 * time.Millisecond)
				}
			}
		}
	}()
}

// stop erases the indicator and waits for it to exit.
func (s *spinner) stop() {
	close(s.stopChan)
	<-s.done
}
