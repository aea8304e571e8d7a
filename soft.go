package kernelfx

import (
	"errors"
	"fmt"
	"image"
	"math"
	"slices"

	"golang.org/x/exp/constraints"
)

// SoftDevice is a CPU Device that executes the Kage convolution program
// exactly as the fragment stage defines it: nearest sampling clamped to the
// edge, one viewport pixel per tap, RGBA8 quantization after every pass and
// opaque output. It needs no window or GPU, which makes it suitable for
// headless rendering and pixel-exact tests.
//
// Programs are reflected from their Kage source like on the Ebitengine
// device, so binding mismatches fail the same way on both.
type SoftDevice struct {
	surface  *softTexture
	viewport image.Point
	disposed bool
}

// NewSoftDevice returns a device with no surface; the pipeline sizes it.
func NewSoftDevice() *SoftDevice {
	return &SoftDevice{surface: &softTexture{params: convolutionTextureParams}}
}

var errSoftDisposed = errors.New("soft device disposed")

type softProgram struct {
	refl     KageReflection
	disposed bool
}

func (p *softProgram) AttributeLocation(name string) (int, error) {
	return p.refl.attributeLocation(name)
}

func (p *softProgram) UniformLocation(name string) (int, error) {
	return p.refl.uniformLocation(name)
}

func (p *softProgram) Dispose() { p.disposed = true }

type softTexture struct {
	params   TextureParams
	w, h     int
	pix      []byte
	disposed bool
}

func (t *softTexture) Size() image.Point { return image.Pt(t.w, t.h) }
func (t *softTexture) Dispose()          { t.disposed = true; t.pix = nil }

type softFramebuffer struct {
	tex      *softTexture
	disposed bool
}

func (f *softFramebuffer) Texture() Texture { return f.tex }
func (f *softFramebuffer) Dispose()         { f.disposed = true }

// ShaderLanguage implements Device.
func (d *SoftDevice) ShaderLanguage() ShaderLanguage { return LanguageKage }

// CompileProgram parses src and accepts it only if it is the convolution
// program; the CPU rasterizer cannot run arbitrary Kage.
func (d *SoftDevice) CompileProgram(src ProgramSource) (Program, error) {
	if d.disposed {
		return nil, errSoftDisposed
	}
	refl, err := ReflectKage(src.Fragment)
	if err != nil {
		return nil, err
	}
	if src.Fragment != convolutionKage {
		return nil, fmt.Errorf("%w: soft device runs only the convolution program", ErrUnsupportedProgram)
	}
	return &softProgram{refl: refl}, nil
}

// NewTexture implements Device.
func (d *SoftDevice) NewTexture(params TextureParams) (Texture, error) {
	if d.disposed {
		return nil, errSoftDisposed
	}
	return &softTexture{params: params}, nil
}

// TexImage implements Device.
func (d *SoftDevice) TexImage(tex Texture, width, height int, pix []byte) error {
	t, ok := tex.(*softTexture)
	if !ok || t.disposed {
		return fmt.Errorf("texture %T not owned by soft device", tex)
	}
	t.w, t.h = width, height
	t.pix = make([]byte, width*height*4)
	copy(t.pix, pix)
	return nil
}

// NewFramebuffer implements Device.
func (d *SoftDevice) NewFramebuffer(tex Texture) (Framebuffer, error) {
	t, ok := tex.(*softTexture)
	if !ok || t.disposed {
		return nil, fmt.Errorf("texture %T not owned by soft device", tex)
	}
	return &softFramebuffer{tex: t}, nil
}

// SetViewport reallocates the surface; its contents are cleared.
func (d *SoftDevice) SetViewport(width, height int) error {
	if d.disposed {
		return errSoftDisposed
	}
	d.viewport = image.Pt(width, height)
	d.surface.w, d.surface.h = width, height
	d.surface.pix = make([]byte, width*height*4)
	return nil
}

// ReadSurface implements Device.
func (d *SoftDevice) ReadSurface() (*image.NRGBA, error) {
	if d.disposed {
		return nil, errSoftDisposed
	}
	img := image.NewNRGBA(image.Rect(0, 0, d.surface.w, d.surface.h))
	copy(img.Pix, d.surface.pix)
	return img, nil
}

// Dispose implements Device.
func (d *SoftDevice) Dispose() {
	d.disposed = true
	d.surface.Dispose()
}

// convolutionUniforms are the values of one draw, resolved by name.
type convolutionUniforms struct {
	kernel   Kernel
	weight   float32
	viewport [2]float32
}

// Draw runs the convolution over the viewport of the target.
func (d *SoftDevice) Draw(call DrawCall) error {
	if d.disposed {
		return errSoftDisposed
	}
	prog, ok := call.Program.(*softProgram)
	if !ok || prog.disposed {
		return fmt.Errorf("%w: program %T not linked on soft device", ErrUnsupportedProgram, call.Program)
	}
	src, ok := call.Input.(*softTexture)
	if !ok || src.disposed || src.pix == nil {
		return fmt.Errorf("soft draw: input texture has no storage")
	}
	dst := d.surface
	if call.Target != nil {
		fb, ok := call.Target.(*softFramebuffer)
		if !ok || fb.disposed || fb.tex.disposed {
			return fmt.Errorf("soft draw: invalid framebuffer %T", call.Target)
		}
		dst = fb.tex
	}
	if dst == src {
		return fmt.Errorf("soft draw: input texture is the render target")
	}
	if !slices.Equal(call.Vertices, quad[:]) {
		return fmt.Errorf("%w: soft device rasterizes only the full-screen quad", ErrUnsupportedProgram)
	}
	if call.Position != slices.Index(prog.refl.Attributes, "dst") || call.TexCoord != slices.Index(prog.refl.Attributes, "src") {
		return fmt.Errorf("soft draw: vertex attributes bound to wrong locations")
	}
	u, err := prog.resolveUniforms(call.Uniforms)
	if err != nil {
		return err
	}
	convolve(dst, src, call.Viewport, u)
	return nil
}

func (p *softProgram) resolveUniforms(uniforms []Uniform) (convolutionUniforms, error) {
	var u convolutionUniforms
	seen := make(map[string]bool, 3)
	for _, v := range uniforms {
		if v.Location < 0 || v.Location >= len(p.refl.Uniforms) {
			return u, fmt.Errorf("soft draw: uniform location %d out of range", v.Location)
		}
		name := p.refl.Uniforms[v.Location]
		switch name {
		case "Kernel":
			if v.Kind != UniformFloatArray || len(v.Value) != len(u.kernel) {
				return u, fmt.Errorf("soft draw: Kernel: %w", ErrKernelSize)
			}
			copy(u.kernel[:], v.Value)
		case "KernelWeight":
			if v.Kind != UniformFloat || len(v.Value) != 1 {
				return u, fmt.Errorf("soft draw: KernelWeight must be a float")
			}
			u.weight = v.Value[0]
		case "ViewportSize":
			if v.Kind != UniformVec2 || len(v.Value) != 2 {
				return u, fmt.Errorf("soft draw: ViewportSize must be a vec2")
			}
			u.viewport = [2]float32{v.Value[0], v.Value[1]}
		}
		seen[name] = true
	}
	for _, name := range p.refl.Uniforms {
		if !seen[name] {
			return u, fmt.Errorf("soft draw: uniform %s not set", name)
		}
	}
	return u, nil
}

// convolve writes the filtered source into the viewport region of dst. Tap i
// of the kernel reads the texel TapOffset(i) viewport pixels away from the
// fragment, mapped into source texels and clamped to the edge.
func convolve(dst, src *softTexture, viewport image.Point, u convolutionUniforms) {
	w := min(viewport.X, dst.w)
	h := min(viewport.Y, dst.h)
	stepX := float64(src.w) / float64(u.viewport[0])
	stepY := float64(src.h) / float64(u.viewport[1])
	var taps [9]struct{ dx, dy int }
	for i := range taps {
		taps[i].dx, taps[i].dy = TapOffset(i)
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum [3]float32
			for i, tap := range taps {
				k := u.kernel[i]
				if k == 0 {
					continue
				}
				sx := clamp(int(math.Floor((float64(x)+0.5+float64(tap.dx))*stepX)), 0, src.w-1)
				sy := clamp(int(math.Floor((float64(y)+0.5+float64(tap.dy))*stepY)), 0, src.h-1)
				o := (sy*src.w + sx) * 4
				sum[0] += float32(src.pix[o]) / 255 * k
				sum[1] += float32(src.pix[o+1]) / 255 * k
				sum[2] += float32(src.pix[o+2]) / 255 * k
			}
			o := (y*dst.w + x) * 4
			dst.pix[o] = quantize(sum[0] / u.weight)
			dst.pix[o+1] = quantize(sum[1] / u.weight)
			dst.pix[o+2] = quantize(sum[2] / u.weight)
			dst.pix[o+3] = 0xff
		}
	}
}

// quantize stores a normalized channel value in 8 bits.
func quantize(v float32) uint8 {
	return uint8(math.Round(float64(clamp(v, 0, 1)) * 255))
}

func clamp[T constraints.Ordered](v, lo, hi T) T {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
