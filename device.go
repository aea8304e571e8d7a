package kernelfx

import "image"

// ShaderLanguage identifies the source language a Device compiles.
type ShaderLanguage uint8

const (
	LanguageKage    ShaderLanguage = iota // Ebitengine Kage, fragment stage only
	LanguageGLSL330                       // OpenGL 3.3 core GLSL
)

func (l ShaderLanguage) String() string {
	switch l {
	case LanguageKage:
		return "kage"
	case LanguageGLSL330:
		return "glsl330"
	default:
		return "unknown"
	}
}

// Bindings names the attributes and uniforms a convolution program must
// declare. Names differ per language; their meaning does not.
type Bindings struct {
	Position     string // clip-space vertex position attribute
	TexCoord     string // texture coordinate attribute
	Kernel       string // float[9] coefficients
	KernelWeight string // float divisor
	ViewportSize string // vec2 viewport size in pixels
}

// ProgramSource is a vertex/fragment source pair plus the binding names the
// pipeline will locate once the program is linked. Languages with a fixed
// vertex stage leave Vertex empty.
type ProgramSource struct {
	Language ShaderLanguage
	Vertex   string
	Fragment string
	Bindings Bindings
}

// WrapMode selects texture addressing outside [0, 1].
type WrapMode uint8

const (
	WrapClampToEdge WrapMode = iota
)

// FilterMode selects texture sampling.
type FilterMode uint8

const (
	FilterNearest FilterMode = iota
)

// TextureParams configures sampling for a texture. Convolution reads exact
// texel values, so only edge clamping and nearest filtering exist.
type TextureParams struct {
	Wrap   WrapMode
	Filter FilterMode
}

// Program is a compiled and linked shader program on a Device.
type Program interface {
	// AttributeLocation returns the location of a vertex attribute or an
	// error wrapping ErrMissingBinding.
	AttributeLocation(name string) (int, error)
	// UniformLocation returns the location of a uniform or an error wrapping
	// ErrMissingBinding.
	UniformLocation(name string) (int, error)
	Dispose()
}

// Texture is a 2D RGBA8 texture on a Device.
type Texture interface {
	// Size returns the texture's storage size in texels.
	Size() image.Point
	Dispose()
}

// Framebuffer is an offscreen render target with one color attachment.
type Framebuffer interface {
	// Texture returns the attached color texture.
	Texture() Texture
	Dispose()
}

// Vertex is one corner of the full-screen quad. X and Y are clip-space
// coordinates in [-1, 1]; U and V are texture coordinates with V = 1 at the
// top edge of the image.
type Vertex struct {
	X, Y float32
	U, V float32
}

// quad is the full-screen quad: two triangles, six vertices, unindexed.
var quad = [6]Vertex{
	{X: -1, Y: 1, U: 0, V: 1},
	{X: 1, Y: 1, U: 1, V: 1},
	{X: -1, Y: -1, U: 0, V: 0},
	{X: 1, Y: -1, U: 1, V: 0},
	{X: 1, Y: 1, U: 1, V: 1},
	{X: -1, Y: -1, U: 0, V: 0},
}

// QuadVertices returns the six vertices of the full-screen quad.
func QuadVertices() []Vertex {
	v := quad
	return v[:]
}

// UniformKind describes the shape of a uniform value.
type UniformKind uint8

const (
	UniformFloat      UniformKind = iota // float
	UniformVec2                          // vec2
	UniformFloatArray                    // float[n]
)

// Uniform is one uniform value for a draw, addressed by the location the
// program reported.
type Uniform struct {
	Location int
	Kind     UniformKind
	Value    []float32
}

// DrawCall carries the complete state of one pass. Nothing is inherited from
// a previous call.
type DrawCall struct {
	Program Program
	// Input is sampled by the fragment stage.
	Input Texture
	// Target receives the output. Nil draws to the visible surface.
	Target   Framebuffer
	Viewport image.Point
	Vertices []Vertex
	// Position and TexCoord are the attribute locations the vertices feed.
	Position int
	TexCoord int
	Uniforms []Uniform
}

// Device is the graphics context a Pipeline renders through. All methods must
// be called from the goroutine that owns the context.
type Device interface {
	ShaderLanguage() ShaderLanguage
	// CompileProgram compiles both stages and links them. Failures return a
	// *ShaderError.
	CompileProgram(src ProgramSource) (Program, error)
	// NewTexture creates a texture with no storage.
	NewTexture(params TextureParams) (Texture, error)
	// TexImage (re)allocates a texture's storage. pix holds tightly packed
	// RGBA8 rows, top row first; nil leaves the contents undefined.
	TexImage(tex Texture, width, height int, pix []byte) error
	// NewFramebuffer creates a framebuffer with tex as its color attachment.
	NewFramebuffer(tex Texture) (Framebuffer, error)
	// SetViewport resizes the visible surface and its viewport together.
	SetViewport(width, height int) error
	Draw(call DrawCall) error
	// ReadSurface copies the visible surface into a new image.
	ReadSurface() (*image.NRGBA, error)
	Dispose()
}
