package kernelfx

import (
	"bytes"
	"context"
	"image/color"
	"log/slog"
	"strings"
	"testing"
)

func captureLogs(t *testing.T, level slog.Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: level})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

func TestDefaultLoggerIsSilent(t *testing.T) {
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("default logger enabled at error level")
	}
	SetLogger(slog.Default())
	SetLogger(nil)
	if Logger().Enabled(context.Background(), slog.LevelError) {
		t.Error("SetLogger(nil) did not restore the silent logger")
	}
}

func TestRenderLogsSkippedKernels(t *testing.T) {
	buf := captureLogs(t, slog.LevelDebug)
	p := newSoftPipeline(t, solidImage(2, 2, color.NRGBA{A: 255}))
	if err := p.ApplyEffects("sharpen", "blurry"); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{
		"image loaded",
		"kernel=sharpen",
		"skipped unknown kernel",
		"name=blurry",
		"passes=2",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q", want)
		}
	}
}

func TestInfoLevelOmitsPassDetails(t *testing.T) {
	buf := captureLogs(t, slog.LevelInfo)
	p := newSoftPipeline(t, solidImage(2, 2, color.NRGBA{A: 255}))
	if err := p.SetViewport(3, 3); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	if !strings.Contains(out, "viewport changed") {
		t.Error("viewport change not logged at info level")
	}
	if strings.Contains(out, "kernelfx: pass") {
		t.Error("pass details logged at info level")
	}
}

func TestSupersededLoadWarns(t *testing.T) {
	buf := captureLogs(t, slog.LevelWarn)
	p, err := New(NewSoftDevice(), WithViewport(1, 1))
	if err != nil {
		t.Fatal(err)
	}
	defer p.Dispose()
	stale := p.BeginLoad()
	p.BeginLoad()
	_ = p.CommitLoad(stale, solidImage(1, 1, color.NRGBA{A: 255}))
	if !strings.Contains(buf.String(), "load superseded") {
		t.Errorf("log = %q, want superseded warning", buf.String())
	}
}
