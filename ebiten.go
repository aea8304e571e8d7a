package kernelfx

import (
	"errors"
	"fmt"
	"image"
	"slices"

	"github.com/hajimehoshi/ebiten/v2"
)

// EbitenDevice renders through Ebitengine. Programs are Kage fragment
// shaders; textures and framebuffers are *ebiten.Image. The visible surface
// is a persistent offscreen image, so results stay intact across frames until
// the next render. Call Present from the game's Draw to show it.
//
// Textures can be written at any time, but ReadSurface only works once the
// game loop is running.
type EbitenDevice struct {
	surface *ebiten.Image
	vp      image.Point
}

// NewEbitenDevice returns a device with no surface; the pipeline sizes it.
func NewEbitenDevice() *EbitenDevice {
	return &EbitenDevice{}
}

type ebitenProgram struct {
	shader *ebiten.Shader
	refl   KageReflection
}

func (p *ebitenProgram) AttributeLocation(name string) (int, error) {
	return p.refl.attributeLocation(name)
}

func (p *ebitenProgram) UniformLocation(name string) (int, error) {
	return p.refl.uniformLocation(name)
}

func (p *ebitenProgram) Dispose() {
	if p.shader != nil {
		p.shader.Deallocate()
		p.shader = nil
	}
}

// ebitenTexture is a handle whose image is replaced when its storage is
// reallocated. Framebuffers keep the handle, not the image.
type ebitenTexture struct {
	img *ebiten.Image
}

func (t *ebitenTexture) Size() image.Point {
	if t.img == nil {
		return image.Point{}
	}
	return t.img.Bounds().Size()
}

func (t *ebitenTexture) Dispose() {
	if t.img != nil {
		t.img.Deallocate()
		t.img = nil
	}
}

type ebitenFramebuffer struct {
	tex *ebitenTexture
}

func (f *ebitenFramebuffer) Texture() Texture { return f.tex }
func (f *ebitenFramebuffer) Dispose()         {}

// ShaderLanguage implements Device.
func (d *EbitenDevice) ShaderLanguage() ShaderLanguage { return LanguageKage }

// CompileProgram reflects the Kage source and compiles it with
// ebiten.NewShader.
func (d *EbitenDevice) CompileProgram(src ProgramSource) (Program, error) {
	if src.Language != LanguageKage {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedProgram, src.Language)
	}
	refl, err := ReflectKage(src.Fragment)
	if err != nil {
		return nil, err
	}
	shader, err := ebiten.NewShader([]byte(src.Fragment))
	if err != nil {
		return nil, &ShaderError{Stage: "fragment", Log: err.Error()}
	}
	return &ebitenProgram{shader: shader, refl: refl}, nil
}

// NewTexture implements Device. Ebitengine images always clamp and the
// convolution program samples texel centers, which is nearest filtering.
func (d *EbitenDevice) NewTexture(params TextureParams) (Texture, error) {
	if params != convolutionTextureParams {
		return nil, fmt.Errorf("%w: texture params %+v", ErrUnsupportedProgram, params)
	}
	return &ebitenTexture{}, nil
}

// TexImage implements Device.
func (d *EbitenDevice) TexImage(tex Texture, width, height int, pix []byte) error {
	t, ok := tex.(*ebitenTexture)
	if !ok {
		return fmt.Errorf("texture %T not owned by ebiten device", tex)
	}
	if t.img == nil || t.img.Bounds().Size() != image.Pt(width, height) {
		if t.img != nil {
			t.img.Deallocate()
		}
		t.img = ebiten.NewImage(width, height)
	}
	if pix != nil {
		t.img.WritePixels(pix)
	}
	return nil
}

// NewFramebuffer implements Device.
func (d *EbitenDevice) NewFramebuffer(tex Texture) (Framebuffer, error) {
	t, ok := tex.(*ebitenTexture)
	if !ok {
		return nil, fmt.Errorf("texture %T not owned by ebiten device", tex)
	}
	return &ebitenFramebuffer{tex: t}, nil
}

// SetViewport replaces the surface image.
func (d *EbitenDevice) SetViewport(width, height int) error {
	if d.surface != nil {
		d.surface.Deallocate()
	}
	d.surface = ebiten.NewImage(width, height)
	d.vp = image.Pt(width, height)
	return nil
}

// Draw issues one DrawTrianglesShader call with copy blending, so every
// target pixel is replaced.
func (d *EbitenDevice) Draw(call DrawCall) error {
	prog, ok := call.Program.(*ebitenProgram)
	if !ok || prog.shader == nil {
		return fmt.Errorf("%w: program %T not linked on ebiten device", ErrUnsupportedProgram, call.Program)
	}
	in, ok := call.Input.(*ebitenTexture)
	if !ok || in.img == nil {
		return errors.New("ebiten draw: input texture has no storage")
	}
	dst := d.surface
	if call.Target != nil {
		fb, ok := call.Target.(*ebitenFramebuffer)
		if !ok || fb.tex.img == nil {
			return fmt.Errorf("ebiten draw: invalid framebuffer %T", call.Target)
		}
		dst = fb.tex.img
	}
	if dst == nil {
		return errors.New("ebiten draw: no surface")
	}
	// Ebitengine's vertex stage is fixed: dst position, then src position.
	if call.Position != slices.Index(prog.refl.Attributes, "dst") || call.TexCoord != slices.Index(prog.refl.Attributes, "src") {
		return errors.New("ebiten draw: vertex attributes bound to wrong locations")
	}

	uniforms := make(map[string]any, len(call.Uniforms))
	for _, u := range call.Uniforms {
		if u.Location < 0 || u.Location >= len(prog.refl.Uniforms) {
			return fmt.Errorf("ebiten draw: uniform location %d out of range", u.Location)
		}
		name := prog.refl.Uniforms[u.Location]
		if u.Kind == UniformFloat {
			uniforms[name] = u.Value[0]
		} else {
			uniforms[name] = u.Value
		}
	}

	vs, is := ebitenVertices(call.Vertices, call.Viewport, in.img.Bounds().Size())
	op := &ebiten.DrawTrianglesShaderOptions{
		Uniforms: uniforms,
		Blend:    ebiten.BlendCopy,
	}
	op.Images[0] = in.img
	dst.DrawTrianglesShader(vs, is, prog.shader, op)
	return nil
}

// ebitenVertices maps clip-space positions onto the viewport in pixels and
// texture coordinates onto the source in pixels. V grows upwards, Ebitengine
// source rows grow downwards.
func ebitenVertices(vertices []Vertex, viewport, src image.Point) ([]ebiten.Vertex, []uint16) {
	vs := make([]ebiten.Vertex, len(vertices))
	is := make([]uint16, len(vertices))
	for i, v := range vertices {
		vs[i] = ebiten.Vertex{
			DstX:   (v.X + 1) / 2 * float32(viewport.X),
			DstY:   (1 - v.Y) / 2 * float32(viewport.Y),
			SrcX:   v.U * float32(src.X),
			SrcY:   (1 - v.V) * float32(src.Y),
			ColorR: 1,
			ColorG: 1,
			ColorB: 1,
			ColorA: 1,
		}
		is[i] = uint16(i)
	}
	return vs, is
}

// ReadSurface reads the surface back. Ebitengine stores premultiplied alpha;
// the result is straight alpha.
func (d *EbitenDevice) ReadSurface() (*image.NRGBA, error) {
	if d.surface == nil {
		return nil, errors.New("ebiten: no surface")
	}
	w, h := d.vp.X, d.vp.Y
	pixels := make([]byte, 4*w*h)
	d.surface.ReadPixels(pixels)

	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for i := 0; i < len(pixels); i += 4 {
		r, g, b, a := pixels[i], pixels[i+1], pixels[i+2], pixels[i+3]
		if a > 0 && a < 255 {
			r = uint8(min(int(r)*255/int(a), 255))
			g = uint8(min(int(g)*255/int(a), 255))
			b = uint8(min(int(b)*255/int(a), 255))
		}
		img.Pix[i] = r
		img.Pix[i+1] = g
		img.Pix[i+2] = b
		img.Pix[i+3] = a
	}
	return img, nil
}

// Surface returns the retained surface image, or nil before the first
// SetViewport.
func (d *EbitenDevice) Surface() *ebiten.Image { return d.surface }

// Present draws the surface onto screen at the origin, unscaled.
func (d *EbitenDevice) Present(screen *ebiten.Image) {
	if d.surface == nil {
		return
	}
	screen.DrawImage(d.surface, nil)
}

// Dispose releases the surface.
func (d *EbitenDevice) Dispose() {
	if d.surface != nil {
		d.surface.Deallocate()
		d.surface = nil
	}
}
