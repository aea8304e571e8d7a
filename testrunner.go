package kernelfx

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
)

// scriptStep is one action in a script.
type scriptStep struct {
	Action  string    `json:"action"`
	Ref     string    `json:"ref,omitempty"`
	Width   int       `json:"width,omitempty"`
	Height  int       `json:"height,omitempty"`
	Effects []string  `json:"effects,omitempty"`
	Name    string    `json:"name,omitempty"`
	Kernel  []float32 `json:"kernel,omitempty"`
	Path    string    `json:"path,omitempty"`
}

type scriptFile struct {
	Steps []scriptStep `json:"steps"`
}

// Script is a parsed sequence of pipeline operations:
//
//	{"steps": [
//	  {"action": "load", "ref": "photo.png"},
//	  {"action": "viewport", "width": 640, "height": 480},
//	  {"action": "register", "name": "soft", "kernel": [0,1,0, 1,4,1, 0,1,0]},
//	  {"action": "effects", "effects": ["soft", "sharpen"]},
//	  {"action": "snapshot", "path": "out/soft.png"}
//	]}
type Script struct {
	steps []scriptStep
}

// LoadScript parses and validates a JSON script.
func LoadScript(data []byte) (*Script, error) {
	var f scriptFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("kernelfx: parse script: %w", err)
	}
	if len(f.Steps) == 0 {
		return nil, fmt.Errorf("kernelfx: parse script: no steps")
	}
	for i, st := range f.Steps {
		if err := st.validate(); err != nil {
			return nil, fmt.Errorf("kernelfx: script step %d (%s): %w", i, st.Action, err)
		}
	}
	return &Script{steps: f.Steps}, nil
}

// Len returns the number of steps.
func (s *Script) Len() int { return len(s.steps) }

func (st scriptStep) validate() error {
	switch st.Action {
	case "load":
		if st.Ref == "" {
			return fmt.Errorf("missing ref")
		}
	case "viewport":
		if st.Width <= 0 || st.Height <= 0 {
			return ErrInvalidSize
		}
	case "effects":
	case "register":
		if st.Name == "" {
			return ErrEmptyKernelName
		}
		if len(st.Kernel) != len(Kernel{}) {
			return ErrKernelSize
		}
	case "snapshot":
		if st.Path == "" {
			return fmt.Errorf("missing path")
		}
	default:
		return fmt.Errorf("unknown action")
	}
	return nil
}

// Run executes every step against p in order and stops at the first error.
// Relative load and snapshot paths resolve against dir.
func (s *Script) Run(ctx context.Context, p *Pipeline, dir string) error {
	for i, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := st.run(ctx, p, dir); err != nil {
			return fmt.Errorf("kernelfx: script step %d (%s): %w", i, st.Action, err)
		}
	}
	return nil
}

func (st scriptStep) run(ctx context.Context, p *Pipeline, dir string) error {
	switch st.Action {
	case "load":
		return p.LoadImage(ctx, resolveScriptPath(dir, st.Ref))
	case "viewport":
		return p.SetViewport(st.Width, st.Height)
	case "effects":
		return p.ApplyEffects(st.Effects...)
	case "register":
		var k Kernel
		copy(k[:], st.Kernel)
		return p.RegisterKernel(st.Name, k)
	case "snapshot":
		img, err := p.Snapshot()
		if err != nil {
			return err
		}
		return SavePNG(resolveScriptPath(dir, st.Path), img)
	}
	return nil
}

// resolveScriptPath joins relative file paths onto dir. URLs and data URIs
// pass through.
func resolveScriptPath(dir, ref string) string {
	if dir == "" || filepath.IsAbs(ref) || isRemoteRef(ref) {
		return ref
	}
	return filepath.Join(dir, ref)
}

func isRemoteRef(ref string) bool {
	return strings.HasPrefix(ref, "http://") ||
		strings.HasPrefix(ref, "https://") ||
		strings.HasPrefix(ref, "data:")
}
