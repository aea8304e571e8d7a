package kernelfx

import (
	"context"
	"errors"
	"image"
	"image/color"
	"slices"
	"testing"
)

// --- Recording device ---

type recTexture struct {
	params   TextureParams
	size     image.Point
	uploads  int
	disposed bool
}

func (t *recTexture) Size() image.Point { return t.size }
func (t *recTexture) Dispose()          { t.disposed = true }

type recFramebuffer struct {
	tex      *recTexture
	disposed bool
}

func (f *recFramebuffer) Texture() Texture { return f.tex }
func (f *recFramebuffer) Dispose()         { f.disposed = true }

type recProgram struct {
	refl     KageReflection
	disposed bool
}

func (p *recProgram) AttributeLocation(name string) (int, error) {
	return p.refl.attributeLocation(name)
}
func (p *recProgram) UniformLocation(name string) (int, error) {
	return p.refl.uniformLocation(name)
}

func (p *recProgram) Dispose() { p.disposed = true }

// recordingDevice records every call and draws nothing.
type recordingDevice struct {
	draws        []DrawCall
	programs     []*recProgram
	textures     []*recTexture
	framebuffers []*recFramebuffer
	viewport     image.Point

	compileErr     error
	framebufferErr error // returned by the second NewFramebuffer
	drawErr        error
	dropUniform    string
}

func (d *recordingDevice) ShaderLanguage() ShaderLanguage { return LanguageKage }

func (d *recordingDevice) CompileProgram(src ProgramSource) (Program, error) {
	if d.compileErr != nil {
		return nil, d.compileErr
	}
	refl, err := ReflectKage(src.Fragment)
	if err != nil {
		return nil, err
	}
	if d.dropUniform != "" {
		refl.Uniforms = slices.DeleteFunc(refl.Uniforms, func(s string) bool { return s == d.dropUniform })
	}
	p := &recProgram{refl: refl}
	d.programs = append(d.programs, p)
	return p, nil
}

func (d *recordingDevice) NewTexture(params TextureParams) (Texture, error) {
	t := &recTexture{params: params}
	d.textures = append(d.textures, t)
	return t, nil
}

func (d *recordingDevice) TexImage(tex Texture, width, height int, pix []byte) error {
	t := tex.(*recTexture)
	t.size = image.Pt(width, height)
	if pix != nil {
		t.uploads++
	}
	return nil
}

func (d *recordingDevice) NewFramebuffer(tex Texture) (Framebuffer, error) {
	if d.framebufferErr != nil && len(d.framebuffers) == 1 {
		return nil, d.framebufferErr
	}
	f := &recFramebuffer{tex: tex.(*recTexture)}
	d.framebuffers = append(d.framebuffers, f)
	return f, nil
}

func (d *recordingDevice) SetViewport(width, height int) error {
	d.viewport = image.Pt(width, height)
	return nil
}

func (d *recordingDevice) Draw(call DrawCall) error {
	if d.drawErr != nil {
		return d.drawErr
	}
	d.draws = append(d.draws, call)
	return nil
}

func (d *recordingDevice) ReadSurface() (*image.NRGBA, error) {
	return image.NewNRGBA(image.Rectangle{Max: d.viewport}), nil
}

func (d *recordingDevice) Dispose() {}

// uniform returns the value of the named uniform in call.
func (d *recordingDevice) uniform(t *testing.T, call DrawCall, name string) []float32 {
	t.Helper()
	prog := call.Program.(*recProgram)
	loc := slices.Index(prog.refl.Uniforms, name)
	for _, u := range call.Uniforms {
		if u.Location == loc {
			return u.Value
		}
	}
	t.Fatalf("uniform %s not set", name)
	return nil
}

func (d *recordingDevice) kernel(t *testing.T, call DrawCall) Kernel {
	t.Helper()
	var k Kernel
	copy(k[:], d.uniform(t, call, "Kernel"))
	return k
}

// --- Helpers ---

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

func newRecordedPipeline(t *testing.T, opts ...Option) (*Pipeline, *recordingDevice) {
	t.Helper()
	dev := &recordingDevice{}
	p, err := New(dev, opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return p, dev
}

func loadedPipeline(t *testing.T) (*Pipeline, *recordingDevice) {
	t.Helper()
	p, dev := newRecordedPipeline(t, WithViewport(8, 6))
	if err := p.LoadDecoded(solidImage(8, 6, color.NRGBA{R: 10, G: 20, B: 30, A: 255})); err != nil {
		t.Fatalf("LoadDecoded: %v", err)
	}
	dev.draws = nil
	return p, dev
}

// --- Construction ---

func TestNewBuildsResources(t *testing.T) {
	p, dev := newRecordedPipeline(t)
	if len(dev.programs) != 1 {
		t.Errorf("programs = %d, want 1", len(dev.programs))
	}
	if len(dev.textures) != 3 {
		t.Errorf("textures = %d, want 3 (source + pair)", len(dev.textures))
	}
	if len(dev.framebuffers) != 2 {
		t.Errorf("framebuffers = %d, want 2", len(dev.framebuffers))
	}
	want := image.Pt(DefaultViewportWidth, DefaultViewportHeight)
	if p.Viewport() != want || dev.viewport != want {
		t.Errorf("viewport = %v (device %v), want %v", p.Viewport(), dev.viewport, want)
	}
	for i, tex := range dev.textures {
		if tex.params != convolutionTextureParams {
			t.Errorf("texture %d params = %+v, want clamp/nearest", i, tex.params)
		}
	}
	if len(dev.draws) != 0 {
		t.Errorf("draws = %d before any load, want 0", len(dev.draws))
	}
}

func TestNewCompileFailure(t *testing.T) {
	dev := &recordingDevice{compileErr: &ShaderError{Stage: "fragment", Log: "boom"}}
	_, err := New(dev)
	if !errors.Is(err, ErrCompile) {
		t.Fatalf("err = %v, want ErrCompile", err)
	}
	if len(dev.textures) != 0 {
		t.Errorf("textures created after compile failure: %d", len(dev.textures))
	}
}

func TestNewMissingBinding(t *testing.T) {
	dev := &recordingDevice{dropUniform: "ViewportSize"}
	_, err := New(dev)
	if !errors.Is(err, ErrMissingBinding) {
		t.Fatalf("err = %v, want ErrMissingBinding", err)
	}
	var be *BindingError
	if !errors.As(err, &be) || be.Name != "ViewportSize" || be.Kind != BindingUniform {
		t.Errorf("binding error = %+v, want uniform ViewportSize", be)
	}
	if !dev.programs[0].disposed {
		t.Error("program not disposed after binding failure")
	}
}

func TestNewResourceFailureReleases(t *testing.T) {
	dev := &recordingDevice{framebufferErr: errors.New("out of memory")}
	_, err := New(dev)
	if !errors.Is(err, ErrResource) {
		t.Fatalf("err = %v, want ErrResource", err)
	}
	for i, tex := range dev.textures {
		if !tex.disposed {
			t.Errorf("texture %d not disposed", i)
		}
	}
	for i, fb := range dev.framebuffers {
		if !fb.disposed {
			t.Errorf("framebuffer %d not disposed", i)
		}
	}
	if !dev.programs[0].disposed {
		t.Error("program not disposed")
	}
}

func TestNewInvalidViewport(t *testing.T) {
	_, err := New(&recordingDevice{}, WithViewport(0, 10))
	if !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

// --- ApplyEffects ---

func TestApplyEffectsBeforeLoad(t *testing.T) {
	p, _ := newRecordedPipeline(t)
	if err := p.ApplyEffects("sharpen"); !errors.Is(err, ErrNoImage) {
		t.Errorf("err = %v, want ErrNoImage", err)
	}
}

func TestApplyEffectsEmptyChain(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects(); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 1 {
		t.Fatalf("draws = %d, want 1", len(dev.draws))
	}
	call := dev.draws[0]
	if call.Target != nil {
		t.Error("final pass must target the surface")
	}
	if call.Input != p.source {
		t.Error("final pass of an empty chain must read the source texture")
	}
	if k := dev.kernel(t, call); k != IdentityKernel {
		t.Errorf("kernel = %v, want identity", k)
	}
	if w := dev.uniform(t, call, "KernelWeight"); w[0] != 1 {
		t.Errorf("weight = %v, want 1", w[0])
	}
}

func TestApplyEffectsPingPong(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects("gaussianBlur", "doesNotExist", "sharpen", "emboss"); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 4 {
		t.Fatalf("draws = %d, want 4 (3 passes + final)", len(dev.draws))
	}
	t0, t1 := p.pair.Target(0), p.pair.Target(1)
	tests := []struct {
		input  Texture
		target Framebuffer
		kernel string
	}{
		{p.source, t0.Framebuffer(), "gaussianBlur"},
		{t0.Texture(), t1.Framebuffer(), "sharpen"},
		{t1.Texture(), t0.Framebuffer(), "emboss"},
		{t0.Texture(), nil, NormalKernel},
	}
	for i, tt := range tests {
		call := dev.draws[i]
		if call.Input != tt.input {
			t.Errorf("pass %d: wrong input texture", i)
		}
		if call.Target != tt.target {
			t.Errorf("pass %d: wrong target", i)
		}
		want, _ := BuiltinKernel(tt.kernel)
		if got := dev.kernel(t, call); got != want {
			t.Errorf("pass %d: kernel = %v, want %s", i, got, tt.kernel)
		}
		if len(call.Vertices) != 6 {
			t.Errorf("pass %d: %d vertices, want 6", i, len(call.Vertices))
		}
		if vp := dev.uniform(t, call, "ViewportSize"); vp[0] != 8 || vp[1] != 6 {
			t.Errorf("pass %d: ViewportSize = %v, want [8 6]", i, vp)
		}
	}
}

func TestApplyEffectsRestartsFromSource(t *testing.T) {
	p, dev := loadedPipeline(t)
	for range 2 {
		dev.draws = nil
		if err := p.ApplyEffects("sharpen"); err != nil {
			t.Fatal(err)
		}
		if dev.draws[0].Input != p.source {
			t.Fatal("first pass must read the source texture")
		}
		if dev.draws[0].Target != p.pair.Target(0).Framebuffer() {
			t.Fatal("first pass must write target 0")
		}
	}
}

func TestApplyEffectsKernelWeights(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects("edgeDetect2", "gaussianBlur2"); err != nil {
		t.Fatal(err)
	}
	if w := dev.uniform(t, dev.draws[0], "KernelWeight"); w[0] != 1 {
		t.Errorf("edgeDetect2 weight = %v, want 1", w[0])
	}
	if w := dev.uniform(t, dev.draws[1], "KernelWeight"); w[0] != 16 {
		t.Errorf("gaussianBlur2 weight = %v, want 16", w[0])
	}
}

func TestNormalIsNotSelectable(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects(NormalKernel); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 1 {
		t.Errorf("draws = %d, want 1", len(dev.draws))
	}
	if s := p.Stats(); !slices.Equal(s.Skipped, []string{NormalKernel}) || s.Passes != 1 {
		t.Errorf("stats = %+v", s)
	}
}

func TestHandleEffect(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.HandleEffect([]string{"sharpen", "emboss"}); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 3 {
		t.Errorf("draws = %d, want 3", len(dev.draws))
	}
}

func TestDrawErrorPropagates(t *testing.T) {
	p, dev := loadedPipeline(t)
	boom := errors.New("device lost")
	dev.drawErr = boom
	if err := p.ApplyEffects("sharpen"); !errors.Is(err, boom) {
		t.Errorf("err = %v, want %v", err, boom)
	}
}

// --- Loading ---

func TestLoadReappliesLastChain(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects("emboss", "sharpen"); err != nil {
		t.Fatal(err)
	}
	dev.draws = nil
	if err := p.LoadDecoded(solidImage(4, 4, color.NRGBA{A: 255})); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 3 {
		t.Errorf("draws after reload = %d, want 3", len(dev.draws))
	}
	if p.ImageSize() != image.Pt(4, 4) {
		t.Errorf("ImageSize = %v, want 4x4", p.ImageSize())
	}
	if got := p.source.Size(); got != image.Pt(4, 4) {
		t.Errorf("source texture size = %v, want 4x4", got)
	}
}

func TestCommitLoadSuperseded(t *testing.T) {
	p, dev := newRecordedPipeline(t)
	first := p.BeginLoad()
	second := p.BeginLoad()
	img := solidImage(2, 2, color.NRGBA{A: 255})

	if err := p.CommitLoad(first, img); !errors.Is(err, ErrLoadSuperseded) {
		t.Fatalf("stale commit err = %v, want ErrLoadSuperseded", err)
	}
	if p.ImageSize() != (image.Point{}) || len(dev.draws) != 0 {
		t.Fatal("stale commit changed pipeline state")
	}
	if err := p.CommitLoad(second, img); err != nil {
		t.Fatalf("current commit: %v", err)
	}
	if len(dev.draws) != 1 {
		t.Errorf("draws = %d, want 1", len(dev.draws))
	}
}

func TestLoadImageDecodeError(t *testing.T) {
	boom := errors.New("not an image")
	fail := false
	fetcher := FetcherFunc(func(ctx context.Context, ref string) (image.Image, error) {
		if fail {
			return nil, boom
		}
		return solidImage(3, 3, color.NRGBA{A: 255}), nil
	})
	p, dev := newRecordedPipeline(t, WithFetcher(fetcher))
	if err := p.LoadImage(context.Background(), "ok.png"); err != nil {
		t.Fatal(err)
	}
	uploads := dev.textures[0].uploads
	draws := len(dev.draws)

	fail = true
	err := p.LoadImage(context.Background(), "bad.png")
	if !errors.Is(err, ErrDecode) || !errors.Is(err, boom) {
		t.Fatalf("err = %v, want ErrDecode wrapping cause", err)
	}
	var de *DecodeError
	if !errors.As(err, &de) || de.Ref != "bad.png" {
		t.Errorf("DecodeError = %+v", de)
	}
	if dev.textures[0].uploads != uploads || len(dev.draws) != draws {
		t.Error("failed load touched the source texture or rendered")
	}
	if p.ImageSize() != image.Pt(3, 3) {
		t.Errorf("ImageSize = %v, want unchanged 3x3", p.ImageSize())
	}
}

func TestLoadEmptyImage(t *testing.T) {
	p, _ := newRecordedPipeline(t)
	if err := p.LoadDecoded(image.NewNRGBA(image.Rect(0, 0, 0, 0))); !errors.Is(err, ErrDecode) {
		t.Errorf("err = %v, want ErrDecode", err)
	}
}

// --- Viewport ---

func TestSetViewportForgetsChain(t *testing.T) {
	p, dev := loadedPipeline(t)
	if err := p.ApplyEffects("sharpen", "emboss"); err != nil {
		t.Fatal(err)
	}
	dev.draws = nil
	if err := p.SetViewport(40, 30); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 1 {
		t.Fatalf("draws after resize = %d, want 1 (identity only)", len(dev.draws))
	}
	call := dev.draws[0]
	if call.Viewport != image.Pt(40, 30) || call.Input != p.source {
		t.Errorf("resize render: viewport %v, input source %v", call.Viewport, call.Input == p.source)
	}
	if len(p.Chain()) != 0 {
		t.Errorf("chain = %v after resize, want empty", p.Chain())
	}
	for i := 0; i < 2; i++ {
		if got := p.pair.Target(i).Texture().Size(); got != image.Pt(40, 30) {
			t.Errorf("target %d size = %v, want 40x30", i, got)
		}
	}
	if dev.viewport != image.Pt(40, 30) {
		t.Errorf("device viewport = %v", dev.viewport)
	}
	// Framebuffers are kept, not recreated.
	if len(dev.framebuffers) != 2 {
		t.Errorf("framebuffers = %d, want 2", len(dev.framebuffers))
	}
}

func TestSetViewportBeforeLoad(t *testing.T) {
	p, dev := newRecordedPipeline(t)
	if err := p.SetViewport(10, 10); err != nil {
		t.Fatal(err)
	}
	if len(dev.draws) != 0 {
		t.Errorf("draws = %d, want 0 without an image", len(dev.draws))
	}
	if err := p.SetViewport(-1, 10); !errors.Is(err, ErrInvalidSize) {
		t.Errorf("err = %v, want ErrInvalidSize", err)
	}
}

// --- Registry ---

func TestRegisterKernelAffectsLaterPasses(t *testing.T) {
	p, dev := loadedPipeline(t)
	custom := Kernel{1, 0, 0, 0, 0, 0, 0, 0, 0}
	if err := p.RegisterKernel("sharpen", custom); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyEffects("sharpen"); err != nil {
		t.Fatal(err)
	}
	if got := dev.kernel(t, dev.draws[0]); got != custom {
		t.Errorf("kernel = %v, want %v", got, custom)
	}
	if err := p.RegisterKernel(NormalKernel, custom); !errors.Is(err, ErrReservedKernel) {
		t.Errorf("err = %v, want ErrReservedKernel", err)
	}
	if slices.Contains(p.KernelNames(), NormalKernel) {
		t.Error("KernelNames lists normal")
	}
}

func TestWithRegistry(t *testing.T) {
	r := NewKernelRegistry()
	_ = r.Register("mine", IdentityKernel)
	p, _ := newRecordedPipeline(t, WithRegistry(r))
	if p.Registry() != r {
		t.Error("Registry() is not the configured registry")
	}
	if !slices.Contains(p.KernelNames(), "mine") {
		t.Error("configured kernel not listed")
	}
}

// --- Dispose ---

func TestDisposeReleases(t *testing.T) {
	p, dev := loadedPipeline(t)
	p.Dispose()
	p.Dispose()
	for i, tex := range dev.textures {
		if !tex.disposed {
			t.Errorf("texture %d not disposed", i)
		}
	}
	for i, fb := range dev.framebuffers {
		if !fb.disposed {
			t.Errorf("framebuffer %d not disposed", i)
		}
	}
	if !dev.programs[0].disposed {
		t.Error("program not disposed")
	}
	if err := p.ApplyEffects(); !errors.Is(err, ErrDisposed) {
		t.Errorf("ApplyEffects err = %v, want ErrDisposed", err)
	}
	if err := p.LoadDecoded(solidImage(1, 1, color.NRGBA{})); !errors.Is(err, ErrDisposed) {
		t.Errorf("LoadDecoded err = %v, want ErrDisposed", err)
	}
	if _, err := p.Snapshot(); !errors.Is(err, ErrDisposed) {
		t.Errorf("Snapshot err = %v, want ErrDisposed", err)
	}
}

// --- Pure helpers ---

func TestPlanPasses(t *testing.T) {
	r := NewKernelRegistry()
	valid, skipped := planPasses(r, []string{"blur", "sharpen", "doesNotExist", "emboss", NormalKernel})
	var names []string
	for _, nk := range valid {
		names = append(names, nk.name)
	}
	if !slices.Equal(names, []string{"sharpen", "emboss"}) {
		t.Errorf("valid = %v, want [sharpen emboss]", names)
	}
	if !slices.Equal(skipped, []string{"blur", "doesNotExist", NormalKernel}) {
		t.Errorf("skipped = %v", skipped)
	}
}

func TestQuadVertices(t *testing.T) {
	vs := QuadVertices()
	if len(vs) != 6 {
		t.Fatalf("len = %d, want 6", len(vs))
	}
	vs[0].X = 42
	if QuadVertices()[0].X != -1 {
		t.Error("QuadVertices returned shared storage")
	}
	for i, v := range QuadVertices() {
		// Texture coordinates follow positions: u = (x+1)/2, v = (y+1)/2.
		if v.U != (v.X+1)/2 || v.V != (v.Y+1)/2 {
			t.Errorf("vertex %d = %+v: texcoord does not match position", i, v)
		}
	}
}

func TestStatsReturnsCopy(t *testing.T) {
	p, _ := loadedPipeline(t)
	if err := p.ApplyEffects("nope", "sharpen"); err != nil {
		t.Fatal(err)
	}
	s := p.Stats()
	if s.Passes != 2 || s.Viewport != image.Pt(8, 6) {
		t.Errorf("stats = %+v", s)
	}
	s.Skipped[0] = "changed"
	if p.Stats().Skipped[0] != "nope" {
		t.Error("Stats shares its Skipped slice")
	}
}
