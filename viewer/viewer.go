// Package viewer is an interactive window around a kernelfx pipeline.
//
// Keys:
//
//	1-9, 0      toggle the kernel in that slot (appended to the chain)
//	PgUp/PgDn   change the page of kernel slots
//	Backspace   clear the chain
//	O           open an image with the native file dialog
//	C           copy the rendered image to the clipboard as PNG
//	S           save a snapshot PNG to Config.SnapshotDir
//	H           toggle the help overlay
//
// Resizing the window resizes the pipeline viewport; the chain is applied
// again afterwards.
package viewer

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"log/slog"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/sqweek/dialog"
	"golang.design/x/clipboard"

	"github.com/phanxgames/kernelfx"
)

// Config configures Run.
type Config struct {
	Title  string
	Width  int
	Height int
	// Image is loaded at startup when set. Any reference DefaultFetcher
	// understands works.
	Image string
	// Effects is the initial chain.
	Effects []string
	// Registry replaces the built-in kernels when set.
	Registry *kernelfx.KernelRegistry
	// SnapshotDir receives S snapshots. Defaults to "snapshots".
	SnapshotDir string
	// ShowHelp draws the chain and key help over the image.
	ShowHelp bool
}

func (c *Config) defaults() {
	if c.Title == "" {
		c.Title = "kernelfx"
	}
	if c.Width <= 0 {
		c.Width = kernelfx.DefaultViewportWidth * 2
	}
	if c.Height <= 0 {
		c.Height = kernelfx.DefaultViewportHeight * 2
	}
	if c.SnapshotDir == "" {
		c.SnapshotDir = "snapshots"
	}
}

// loadResult carries a decoded image back to the game loop.
type loadResult struct {
	ticket kernelfx.LoadTicket
	ref    string
	img    image.Image
	err    error
}

// Game is the ebiten.Game driving the viewer. Use Run unless the window is
// managed elsewhere.
type Game struct {
	cfg     Config
	dev     *kernelfx.EbitenDevice
	p       *kernelfx.Pipeline
	fetcher kernelfx.Fetcher

	sel     selection
	page    int
	fade    *fade
	loads   chan loadResult
	pending image.Point
	status  string

	clipboardOK bool
}

// NewGame builds the device and pipeline. The initial image, if any, is
// fetched in the background.
func NewGame(cfg Config) (*Game, error) {
	cfg.defaults()
	dev := kernelfx.NewEbitenDevice()
	opts := []kernelfx.Option{kernelfx.WithViewport(cfg.Width, cfg.Height)}
	if cfg.Registry != nil {
		opts = append(opts, kernelfx.WithRegistry(cfg.Registry))
	}
	p, err := kernelfx.New(dev, opts...)
	if err != nil {
		dev.Dispose()
		return nil, err
	}
	g := &Game{
		cfg:     cfg,
		dev:     dev,
		p:       p,
		fetcher: kernelfx.DefaultFetcher{},
		fade:    newFade(),
		loads:   make(chan loadResult, 1),
		pending: image.Pt(cfg.Width, cfg.Height),
	}
	g.sel.Set(cfg.Effects)
	g.clipboardOK = clipboard.Init() == nil
	if cfg.Image != "" {
		g.startLoad(cfg.Image)
	}
	return g, nil
}

// Run opens the window and blocks until it is closed.
func Run(cfg Config) error {
	g, err := NewGame(cfg)
	if err != nil {
		return err
	}
	defer g.Dispose()
	ebiten.SetWindowTitle(g.cfg.Title)
	ebiten.SetWindowSize(g.cfg.Width, g.cfg.Height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	return ebiten.RunGame(g)
}

// Dispose releases the pipeline and device.
func (g *Game) Dispose() {
	g.p.Dispose()
	g.dev.Dispose()
}

// startLoad fetches ref off the game loop. Only the newest load is applied.
func (g *Game) startLoad(ref string) {
	ticket := g.p.BeginLoad()
	g.status = "loading " + ref
	go func() {
		img, err := g.fetcher.Fetch(context.Background(), ref)
		g.loads <- loadResult{ticket: ticket, ref: ref, img: img, err: err}
	}()
}

func (g *Game) openDialog() {
	// Run dialog in goroutine to avoid blocking Ebiten's main thread
	go func() {
		path, err := dialog.File().
			Title("Open image").
			Filter("Images", "png", "jpg", "jpeg", "gif", "webp", "bmp", "tif", "tiff").
			Load()
		if err != nil {
			return // cancelled
		}
		img, ferr := g.fetcher.Fetch(context.Background(), path)
		g.loads <- loadResult{ticket: 0, ref: path, img: img, err: ferr}
	}()
}

// Update implements ebiten.Game.
func (g *Game) Update() error {
	g.fade.Update(1 / float32(ebiten.TPS()))

	select {
	case res := <-g.loads:
		g.commit(res)
	default:
	}

	if g.pending != g.p.Viewport() && g.pending.X > 0 && g.pending.Y > 0 {
		if err := g.p.SetViewport(g.pending.X, g.pending.Y); err != nil {
			return err
		}
		if g.p.ImageSize() != (image.Point{}) {
			g.render()
		}
	}

	g.handleKeys()
	return nil
}

func (g *Game) commit(res loadResult) {
	if res.err != nil {
		kernelfx.Logger().Warn("viewer: load failed", "ref", res.ref, "err", res.err)
		g.status = "load failed: " + res.err.Error()
		return
	}
	ticket := res.ticket
	if ticket == 0 {
		// Dialog loads start when the file is chosen; claim the newest ticket.
		ticket = g.p.BeginLoad()
	}
	if err := g.p.CommitLoad(ticket, res.img); err != nil {
		g.status = err.Error()
		return
	}
	g.status = res.ref
	g.render()
}

func (g *Game) render() {
	if err := g.p.ApplyEffects(g.sel.Names()...); err != nil {
		g.status = err.Error()
		return
	}
	g.fade.Restart()
	if s := g.p.Stats(); len(s.Skipped) > 0 {
		g.status = "unknown: " + strings.Join(s.Skipped, ", ")
	}
}

var digitKeys = [slotsPerPage]ebiten.Key{
	ebiten.KeyDigit1, ebiten.KeyDigit2, ebiten.KeyDigit3, ebiten.KeyDigit4, ebiten.KeyDigit5,
	ebiten.KeyDigit6, ebiten.KeyDigit7, ebiten.KeyDigit8, ebiten.KeyDigit9, ebiten.KeyDigit0,
}

func (g *Game) handleKeys() {
	names := g.p.KernelNames()
	for slot, key := range digitKeys {
		if !inpututil.IsKeyJustPressed(key) {
			continue
		}
		if name := slotName(names, g.page, slot); name != "" {
			g.sel.Toggle(name)
			g.render()
		}
	}
	switch {
	case inpututil.IsKeyJustPressed(ebiten.KeyPageDown):
		g.page = (g.page + 1) % pageCount(len(names))
	case inpututil.IsKeyJustPressed(ebiten.KeyPageUp):
		g.page = (g.page + pageCount(len(names)) - 1) % pageCount(len(names))
	case inpututil.IsKeyJustPressed(ebiten.KeyBackspace):
		g.sel.Clear()
		g.render()
	case inpututil.IsKeyJustPressed(ebiten.KeyO):
		g.openDialog()
	case inpututil.IsKeyJustPressed(ebiten.KeyC):
		g.copyToClipboard()
	case inpututil.IsKeyJustPressed(ebiten.KeyS):
		g.saveSnapshot()
	case inpututil.IsKeyJustPressed(ebiten.KeyH):
		g.cfg.ShowHelp = !g.cfg.ShowHelp
	}
}

func (g *Game) copyToClipboard() {
	if !g.clipboardOK {
		g.status = "clipboard unavailable"
		return
	}
	img, err := g.p.Snapshot()
	if err != nil {
		g.status = err.Error()
		return
	}
	var buf bytes.Buffer
	if err := kernelfx.WritePNG(&buf, img); err != nil {
		g.status = err.Error()
		return
	}
	clipboard.Write(clipboard.FmtImage, buf.Bytes())
	g.status = "copied"
}

func (g *Game) saveSnapshot() {
	img, err := g.p.Snapshot()
	if err != nil {
		g.status = err.Error()
		return
	}
	label := strings.Join(g.sel.Names(), "_")
	path := kernelfx.SnapshotPath(g.cfg.SnapshotDir, label, time.Now())
	if err := kernelfx.SavePNG(path, img); err != nil {
		g.status = err.Error()
		return
	}
	kernelfx.Logger().Info("viewer: snapshot saved", slog.String("path", path))
	g.status = "saved " + path
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	if surface := g.dev.Surface(); surface != nil && g.p.ImageSize() != (image.Point{}) {
		var op ebiten.DrawImageOptions
		op.ColorScale.ScaleAlpha(g.fade.Alpha())
		screen.DrawImage(surface, &op)
	}
	if g.cfg.ShowHelp {
		ebitenutil.DebugPrint(screen, g.helpText())
	}
}

func (g *Game) helpText() string {
	names := g.p.KernelNames()
	var b strings.Builder
	fmt.Fprintf(&b, "chain: %s\n", strings.Join(g.sel.Names(), " > "))
	fmt.Fprintf(&b, "page %d/%d:", g.page+1, pageCount(len(names)))
	for slot := range slotsPerPage {
		if name := slotName(names, g.page, slot); name != "" {
			fmt.Fprintf(&b, " %d=%s", (slot+1)%slotsPerPage, name)
		}
	}
	fmt.Fprintf(&b, "\nFPS: %.1f  %s", ebiten.ActualFPS(), g.status)
	return b.String()
}

// Layout implements ebiten.Game. A new outside size is applied on the next
// Update.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.pending = image.Pt(outsideWidth, outsideHeight)
	return outsideWidth, outsideHeight
}
