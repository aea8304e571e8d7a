package kernelfx

import (
	"context"
	"fmt"
	"image"
	"slices"
	"time"
)

// Default viewport, the size of an unsized drawing surface.
const (
	DefaultViewportWidth  = 300
	DefaultViewportHeight = 150
)

type pipelineConfig struct {
	viewport image.Point
	registry *KernelRegistry
	fetcher  Fetcher
}

// Option configures a Pipeline at construction.
type Option func(*pipelineConfig)

// WithViewport sets the initial surface size.
func WithViewport(width, height int) Option {
	return func(c *pipelineConfig) { c.viewport = image.Pt(width, height) }
}

// WithRegistry makes the pipeline use r instead of a fresh copy of the
// built-in kernels.
func WithRegistry(r *KernelRegistry) Option {
	return func(c *pipelineConfig) { c.registry = r }
}

// WithFetcher replaces DefaultFetcher for LoadImage.
func WithFetcher(f Fetcher) Option {
	return func(c *pipelineConfig) { c.fetcher = f }
}

// LoadTicket identifies one load started with BeginLoad.
type LoadTicket uint64

// Pipeline applies chains of 3x3 convolution kernels to one source image and
// renders the result to the device's visible surface.
//
// Every pass reads the previous pass's output (the source texture for the
// first pass) and writes the other target of a ping-pong pair, so a chain of
// any length needs exactly two offscreen targets. The last pass always draws
// the identity kernel to the visible surface.
//
// A Pipeline is not safe for concurrent use; every method must be called on
// the goroutine that owns the Device.
type Pipeline struct {
	dev      Device
	registry *KernelRegistry
	fetcher  Fetcher

	program  *ShaderProgram
	bindings passBindings
	surface  *SurfaceBinding
	units    TextureUnit
	source   Texture
	pair     *FrameBufferPair

	sourceLoaded bool
	imageSize    image.Point
	writeIndex   int
	chain        []string
	loadSeq      LoadTicket

	stats    PassStats
	disposed bool
}

// New builds a pipeline on dev: program, bindings, surface, source texture
// and framebuffer pair, in that order. Any failure releases what was already
// built and is returned.
func New(dev Device, opts ...Option) (*Pipeline, error) {
	cfg := pipelineConfig{viewport: image.Pt(DefaultViewportWidth, DefaultViewportHeight)}
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.registry == nil {
		cfg.registry = NewKernelRegistry()
	}
	if cfg.fetcher == nil {
		cfg.fetcher = DefaultFetcher{}
	}

	p := &Pipeline{
		dev:      dev,
		registry: cfg.registry,
		fetcher:  cfg.fetcher,
		units:    NewTextureUnit(dev),
	}
	if err := p.build(cfg.viewport); err != nil {
		p.release()
		return nil, err
	}
	return p, nil
}

func (p *Pipeline) build(viewport image.Point) error {
	var err error
	if p.program, err = CompileAndLink(p.dev, ConvolutionSource(p.dev.ShaderLanguage())); err != nil {
		return err
	}
	if p.bindings, err = locateBindings(p.program); err != nil {
		Logger().Error("kernelfx: convolution program bindings", "err", err)
		return err
	}
	if p.surface, err = NewSurfaceBinding(p.dev, viewport.X, viewport.Y); err != nil {
		return err
	}
	if p.source, err = p.units.Create(); err != nil {
		return err
	}
	if p.pair, err = NewFrameBufferPair(p.units, p.dev, viewport.X, viewport.Y); err != nil {
		return err
	}
	return nil
}

// LoadImage fetches and decodes ref with the pipeline's Fetcher, then commits
// it. Fetching blocks the caller; use BeginLoad and CommitLoad to decode on
// another goroutine. A failed decode leaves the pipeline unchanged.
func (p *Pipeline) LoadImage(ctx context.Context, ref string) error {
	if p.disposed {
		return ErrDisposed
	}
	ticket := p.BeginLoad()
	img, err := p.fetcher.Fetch(ctx, ref)
	if err != nil {
		return &DecodeError{Ref: ref, Err: err}
	}
	return p.CommitLoad(ticket, img)
}

// LoadDecoded commits an already decoded image.
func (p *Pipeline) LoadDecoded(img image.Image) error {
	return p.CommitLoad(p.BeginLoad(), img)
}

// BeginLoad starts a load and returns its ticket. Starting a load supersedes
// every earlier ticket.
func (p *Pipeline) BeginLoad() LoadTicket {
	p.loadSeq++
	return p.loadSeq
}

// CommitLoad uploads img as the new source image and re-renders the last
// chain passed to ApplyEffects. A ticket older than the newest BeginLoad
// returns ErrLoadSuperseded and changes nothing.
func (p *Pipeline) CommitLoad(ticket LoadTicket, img image.Image) error {
	if p.disposed {
		return ErrDisposed
	}
	if ticket != p.loadSeq {
		Logger().Warn("kernelfx: load superseded", "ticket", uint64(ticket), "current", uint64(p.loadSeq))
		return ErrLoadSuperseded
	}
	if img == nil || img.Bounds().Empty() {
		return &DecodeError{Ref: "image", Err: ErrInvalidSize}
	}
	w, h, pix := opaquePixels(img)
	if err := p.units.Upload(p.source, w, h, pix); err != nil {
		return err
	}
	p.imageSize = image.Pt(w, h)
	p.sourceLoaded = true
	Logger().Info("kernelfx: image loaded", "width", w, "height", h)
	return p.render(p.chain)
}

// ApplyEffects renders the source image through the named kernels in order,
// then draws the identity kernel to the visible surface. Unknown names are
// skipped without consuming a target. The chain is remembered and reapplied
// when a new image is loaded.
func (p *Pipeline) ApplyEffects(names ...string) error {
	if p.disposed {
		return ErrDisposed
	}
	if !p.sourceLoaded {
		return ErrNoImage
	}
	p.chain = slices.Clone(names)
	return p.render(p.chain)
}

// HandleEffect is ApplyEffects taking a slice.
func (p *Pipeline) HandleEffect(names []string) error {
	return p.ApplyEffects(names...)
}

// SetViewport resizes the surface and both offscreen targets, forgets the
// last chain and re-renders the unfiltered source at the new size. Selecting
// effects again is the caller's job.
func (p *Pipeline) SetViewport(width, height int) error {
	if p.disposed {
		return ErrDisposed
	}
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if err := p.surface.SetViewport(width, height); err != nil {
		return err
	}
	if err := p.pair.Resize(width, height); err != nil {
		return err
	}
	p.chain = nil
	Logger().Info("kernelfx: viewport changed", "width", width, "height", height)
	if !p.sourceLoaded {
		return nil
	}
	return p.render(nil)
}

// RegisterKernel adds or replaces a user-selectable kernel. Passes already
// rendered are unaffected.
func (p *Pipeline) RegisterKernel(name string, k Kernel) error {
	return p.registry.Register(name, k)
}

// KernelNames lists the user-selectable kernels in a stable order. The
// identity kernel is never listed.
func (p *Pipeline) KernelNames() []string {
	return p.registry.Names()
}

// Registry returns the pipeline's kernel registry.
func (p *Pipeline) Registry() *KernelRegistry { return p.registry }

// Viewport returns the current surface size.
func (p *Pipeline) Viewport() image.Point { return p.surface.Size() }

// ImageSize returns the size of the loaded source image, or the zero point.
func (p *Pipeline) ImageSize() image.Point { return p.imageSize }

// Chain returns a copy of the chain the next load will reapply.
func (p *Pipeline) Chain() []string { return slices.Clone(p.chain) }

// Snapshot reads back the visible surface.
func (p *Pipeline) Snapshot() (*image.NRGBA, error) {
	if p.disposed {
		return nil, ErrDisposed
	}
	img, err := p.surface.Read()
	if err != nil {
		return nil, &ResourceError{Op: "read surface", Err: err}
	}
	return img, nil
}

// Dispose releases the program, textures and framebuffers. Every later call
// returns ErrDisposed. Dispose is idempotent.
func (p *Pipeline) Dispose() {
	if p.disposed {
		return
	}
	p.release()
	p.disposed = true
}

func (p *Pipeline) release() {
	if p.pair != nil {
		p.pair.Dispose()
		p.pair = nil
	}
	if p.source != nil {
		p.source.Dispose()
		p.source = nil
	}
	if p.program != nil {
		p.program.Dispose()
		p.program = nil
	}
}

// render draws one full chain starting from the source texture. The write
// index restarts at 0 on every call, so repeated calls never compound.
func (p *Pipeline) render(names []string) error {
	start := time.Now()
	plan, skipped := planPasses(p.registry, names)
	viewport := p.surface.Size()

	input := p.source
	p.writeIndex = 0
	for _, nk := range plan {
		target := p.pair.Target(p.writeIndex)
		if err := p.dev.Draw(p.passCall(nk.kernel, input, target.Framebuffer(), viewport)); err != nil {
			return fmt.Errorf("kernelfx: pass %q: %w", nk.name, err)
		}
		Logger().Debug("kernelfx: pass", "kernel", nk.name, "write", p.writeIndex,
			"weight", KernelWeight(nk.kernel))
		input = target.Texture()
		p.writeIndex ^= 1
	}
	if err := p.dev.Draw(p.passCall(p.registry.identity(), input, nil, viewport)); err != nil {
		return fmt.Errorf("kernelfx: final pass: %w", err)
	}

	p.stats = PassStats{
		Passes:   len(plan) + 1,
		Skipped:  skipped,
		Viewport: viewport,
		Duration: time.Since(start),
	}
	p.stats.log()
	return nil
}

// passCall builds the complete state for one pass. Target nil draws to the
// visible surface.
func (p *Pipeline) passCall(k Kernel, input Texture, target Framebuffer, viewport image.Point) DrawCall {
	kernel := k
	return DrawCall{
		Program:  p.program.Program(),
		Input:    input,
		Target:   target,
		Viewport: viewport,
		Vertices: QuadVertices(),
		Position: p.bindings.position,
		TexCoord: p.bindings.texCoord,
		Uniforms: []Uniform{
			{Location: p.bindings.viewportSize, Kind: UniformVec2, Value: []float32{float32(viewport.X), float32(viewport.Y)}},
			{Location: p.bindings.kernel, Kind: UniformFloatArray, Value: kernel[:]},
			{Location: p.bindings.kernelWeight, Kind: UniformFloat, Value: []float32{KernelWeight(k)}},
		},
	}
}

// planPasses resolves names against r. Unknown names (and "normal", which is
// not user-selectable) are returned in skipped and produce no pass.
func planPasses(r *KernelRegistry, names []string) (valid []namedKernel, skipped []string) {
	for _, name := range names {
		k, ok := r.Lookup(name)
		if !ok {
			skipped = append(skipped, name)
			continue
		}
		valid = append(valid, namedKernel{name: name, kernel: k})
	}
	return valid, skipped
}
