// Package gldevice implements kernelfx.Device on OpenGL 3.3 core through
// go-gl. The caller owns the window and must make its context current on the
// calling goroutine before New and keep it current for every later call.
package gldevice

import (
	"errors"
	"fmt"
	"image"
	"strings"
	"unsafe"

	"github.com/go-gl/gl/v3.3-core/gl"

	"github.com/phanxgames/kernelfx"
)

// Device renders into an offscreen surface framebuffer. The default
// framebuffer is only touched by Present, so the rendered image survives
// buffer swaps and is redrawn without re-running the chain.
type Device struct {
	vao, vbo uint32

	surfaceTex uint32
	surfaceFBO uint32
	size       image.Point

	disposed bool
}

// New initializes the GL bindings and creates the quad vertex buffer.
func New() (*Device, error) {
	if err := gl.Init(); err != nil {
		return nil, fmt.Errorf("gldevice: init: %w", err)
	}
	d := &Device{}
	gl.GenVertexArrays(1, &d.vao)
	gl.GenBuffers(1, &d.vbo)
	gl.GenTextures(1, &d.surfaceTex)
	gl.GenFramebuffers(1, &d.surfaceFBO)
	setTextureParams(d.surfaceTex)
	if err := glError("init"); err != nil {
		d.Dispose()
		return nil, err
	}
	return d, nil
}

// Version returns the GL_VERSION string of the current context.
func Version() string {
	return gl.GoStr(gl.GetString(gl.VERSION))
}

type program struct {
	id uint32
}

func (p *program) AttributeLocation(name string) (int, error) {
	loc := gl.GetAttribLocation(p.id, gl.Str(name+"\x00"))
	if loc < 0 {
		return -1, &kernelfx.BindingError{Kind: kernelfx.BindingAttribute, Name: name}
	}
	return int(loc), nil
}

func (p *program) UniformLocation(name string) (int, error) {
	loc := gl.GetUniformLocation(p.id, gl.Str(name+"\x00"))
	if loc < 0 {
		return -1, &kernelfx.BindingError{Kind: kernelfx.BindingUniform, Name: name}
	}
	return int(loc), nil
}

func (p *program) Dispose() {
	if p.id != 0 {
		gl.DeleteProgram(p.id)
		p.id = 0
	}
}

type texture struct {
	id   uint32
	w, h int
}

func (t *texture) Size() image.Point { return image.Pt(t.w, t.h) }

func (t *texture) Dispose() {
	if t.id != 0 {
		gl.DeleteTextures(1, &t.id)
		t.id = 0
	}
}

type framebuffer struct {
	id  uint32
	tex *texture
}

func (f *framebuffer) Texture() kernelfx.Texture { return f.tex }

func (f *framebuffer) Dispose() {
	if f.id != 0 {
		gl.DeleteFramebuffers(1, &f.id)
		f.id = 0
	}
}

// ShaderLanguage implements kernelfx.Device.
func (d *Device) ShaderLanguage() kernelfx.ShaderLanguage { return kernelfx.LanguageGLSL330 }

// CompileProgram compiles both stages, links them and binds the image
// sampler to texture unit 0.
func (d *Device) CompileProgram(src kernelfx.ProgramSource) (kernelfx.Program, error) {
	if src.Language != kernelfx.LanguageGLSL330 {
		return nil, fmt.Errorf("%w: %s", kernelfx.ErrUnsupportedProgram, src.Language)
	}
	vs, err := compileShader(src.Vertex, gl.VERTEX_SHADER, "vertex")
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(vs)
	fs, err := compileShader(src.Fragment, gl.FRAGMENT_SHADER, "fragment")
	if err != nil {
		return nil, err
	}
	defer gl.DeleteShader(fs)

	id := gl.CreateProgram()
	gl.AttachShader(id, vs)
	gl.AttachShader(id, fs)
	gl.LinkProgram(id)

	var status int32
	gl.GetProgramiv(id, gl.LINK_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetProgramiv(id, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetProgramInfoLog(id, logLength, nil, &log[0])
		gl.DeleteProgram(id)
		return nil, &kernelfx.ShaderError{Stage: "link", Log: cString(log)}
	}

	gl.UseProgram(id)
	if loc := gl.GetUniformLocation(id, gl.Str(kernelfx.ImageUniformGLSL+"\x00")); loc >= 0 {
		gl.Uniform1i(loc, 0)
	}
	return &program{id: id}, nil
}

func compileShader(source string, kind uint32, stage string) (uint32, error) {
	shader := gl.CreateShader(kind)
	csource, free := gl.Strs(source + "\x00")
	gl.ShaderSource(shader, 1, csource, nil)
	free()
	gl.CompileShader(shader)

	var status int32
	gl.GetShaderiv(shader, gl.COMPILE_STATUS, &status)
	if status == gl.FALSE {
		var logLength int32
		gl.GetShaderiv(shader, gl.INFO_LOG_LENGTH, &logLength)
		log := make([]byte, logLength+1)
		gl.GetShaderInfoLog(shader, logLength, nil, &log[0])
		gl.DeleteShader(shader)
		return 0, &kernelfx.ShaderError{Stage: stage, Log: cString(log)}
	}
	return shader, nil
}

// NewTexture implements kernelfx.Device.
func (d *Device) NewTexture(params kernelfx.TextureParams) (kernelfx.Texture, error) {
	if params.Wrap != kernelfx.WrapClampToEdge || params.Filter != kernelfx.FilterNearest {
		return nil, fmt.Errorf("%w: texture params %+v", kernelfx.ErrUnsupportedProgram, params)
	}
	t := &texture{}
	gl.GenTextures(1, &t.id)
	setTextureParams(t.id)
	if err := glError("create texture"); err != nil {
		t.Dispose()
		return nil, err
	}
	return t, nil
}

func setTextureParams(id uint32) {
	gl.BindTexture(gl.TEXTURE_2D, id)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, gl.CLAMP_TO_EDGE)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
}

// TexImage uploads rows bottom first, so texture coordinate V = 1 addresses
// the top row of the image.
func (d *Device) TexImage(tex kernelfx.Texture, width, height int, pix []byte) error {
	t, ok := tex.(*texture)
	if !ok || t.id == 0 {
		return fmt.Errorf("gldevice: texture %T not owned by device", tex)
	}
	var data unsafe.Pointer
	if pix != nil {
		data = gl.Ptr(flipRows(pix, width*4))
	}
	gl.BindTexture(gl.TEXTURE_2D, t.id)
	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, data)
	if err := glError("upload texture"); err != nil {
		return err
	}
	t.w, t.h = width, height
	return nil
}

// NewFramebuffer implements kernelfx.Device.
func (d *Device) NewFramebuffer(tex kernelfx.Texture) (kernelfx.Framebuffer, error) {
	t, ok := tex.(*texture)
	if !ok || t.id == 0 {
		return nil, fmt.Errorf("gldevice: texture %T not owned by device", tex)
	}
	f := &framebuffer{tex: t}
	gl.GenFramebuffers(1, &f.id)
	if err := attach(f.id, t.id); err != nil {
		f.Dispose()
		return nil, err
	}
	return f, nil
}

func attach(fbo, tex uint32) error {
	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	defer gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.FramebufferTexture2D(gl.FRAMEBUFFER, gl.COLOR_ATTACHMENT0, gl.TEXTURE_2D, tex, 0)
	if status := gl.CheckFramebufferStatus(gl.FRAMEBUFFER); status != gl.FRAMEBUFFER_COMPLETE {
		return fmt.Errorf("gldevice: framebuffer incomplete: 0x%x", status)
	}
	return nil
}

// SetViewport reallocates the surface framebuffer and sets the viewport.
func (d *Device) SetViewport(width, height int) error {
	if d.disposed {
		return errors.New("gldevice: disposed")
	}
	gl.BindTexture(gl.TEXTURE_2D, d.surfaceTex)
	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(width), int32(height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
	if err := attach(d.surfaceFBO, d.surfaceTex); err != nil {
		return err
	}
	gl.Viewport(0, 0, int32(width), int32(height))
	d.size = image.Pt(width, height)
	return glError("resize surface")
}

// vertexStride is the byte size of one interleaved x, y, u, v vertex.
const vertexStride = 4 * 4

// Draw implements kernelfx.Device. All state the pass needs is bound here.
func (d *Device) Draw(call kernelfx.DrawCall) error {
	prog, ok := call.Program.(*program)
	if !ok || prog.id == 0 {
		return fmt.Errorf("%w: program %T not linked on gl device", kernelfx.ErrUnsupportedProgram, call.Program)
	}
	in, ok := call.Input.(*texture)
	if !ok || in.id == 0 {
		return errors.New("gldevice: draw: invalid input texture")
	}
	fbo := d.surfaceFBO
	if call.Target != nil {
		f, ok := call.Target.(*framebuffer)
		if !ok || f.id == 0 {
			return fmt.Errorf("gldevice: draw: invalid framebuffer %T", call.Target)
		}
		fbo = f.id
	}

	gl.BindFramebuffer(gl.FRAMEBUFFER, fbo)
	gl.Viewport(0, 0, int32(call.Viewport.X), int32(call.Viewport.Y))
	gl.UseProgram(prog.id)
	gl.ActiveTexture(gl.TEXTURE0)
	gl.BindTexture(gl.TEXTURE_2D, in.id)

	data := make([]float32, 0, len(call.Vertices)*4)
	for _, v := range call.Vertices {
		data = append(data, v.X, v.Y, v.U, v.V)
	}
	gl.BindVertexArray(d.vao)
	gl.BindBuffer(gl.ARRAY_BUFFER, d.vbo)
	gl.BufferData(gl.ARRAY_BUFFER, len(data)*4, gl.Ptr(data), gl.STREAM_DRAW)
	pos, tex := uint32(call.Position), uint32(call.TexCoord)
	gl.EnableVertexAttribArray(pos)
	gl.VertexAttribPointerWithOffset(pos, 2, gl.FLOAT, false, vertexStride, 0)
	gl.EnableVertexAttribArray(tex)
	gl.VertexAttribPointerWithOffset(tex, 2, gl.FLOAT, false, vertexStride, 2*4)

	for _, u := range call.Uniforms {
		loc := int32(u.Location)
		switch u.Kind {
		case kernelfx.UniformFloat:
			gl.Uniform1f(loc, u.Value[0])
		case kernelfx.UniformVec2:
			gl.Uniform2f(loc, u.Value[0], u.Value[1])
		case kernelfx.UniformFloatArray:
			gl.Uniform1fv(loc, int32(len(u.Value)), &u.Value[0])
		}
	}

	gl.DrawArrays(gl.TRIANGLES, 0, int32(len(call.Vertices)))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	return glError("draw")
}

// ReadSurface implements kernelfx.Device.
func (d *Device) ReadSurface() (*image.NRGBA, error) {
	w, h := d.size.X, d.size.Y
	if w == 0 || h == 0 {
		return nil, errors.New("gldevice: no surface")
	}
	pix := make([]byte, w*h*4)
	gl.BindFramebuffer(gl.FRAMEBUFFER, d.surfaceFBO)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.ReadPixels(0, 0, int32(w), int32(h), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pix))
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	if err := glError("read surface"); err != nil {
		return nil, err
	}
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	copy(img.Pix, flipRows(pix, w*4))
	return img, nil
}

// Present copies the surface into the default framebuffer, scaled to
// width x height. Swap buffers afterwards.
func (d *Device) Present(width, height int) {
	gl.BindFramebuffer(gl.READ_FRAMEBUFFER, d.surfaceFBO)
	gl.BindFramebuffer(gl.DRAW_FRAMEBUFFER, 0)
	gl.ClearColor(0, 0, 0, 1)
	gl.Clear(gl.COLOR_BUFFER_BIT)
	gl.BlitFramebuffer(0, 0, int32(d.size.X), int32(d.size.Y),
		0, 0, int32(width), int32(height), gl.COLOR_BUFFER_BIT, gl.NEAREST)
	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
}

// Dispose deletes the surface and quad buffers.
func (d *Device) Dispose() {
	if d.disposed {
		return
	}
	d.disposed = true
	gl.DeleteFramebuffers(1, &d.surfaceFBO)
	gl.DeleteTextures(1, &d.surfaceTex)
	gl.DeleteBuffers(1, &d.vbo)
	gl.DeleteVertexArrays(1, &d.vao)
}

func glError(op string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return &kernelfx.ResourceError{Op: op, Err: fmt.Errorf("gl error 0x%x", code)}
	}
	return nil
}

// flipRows returns a copy of pix with its rows in reverse order.
func flipRows(pix []byte, stride int) []byte {
	out := make([]byte, len(pix))
	rows := len(pix) / stride
	for y := 0; y < rows; y++ {
		copy(out[(rows-1-y)*stride:(rows-y)*stride], pix[y*stride:(y+1)*stride])
	}
	return out
}

func cString(b []byte) string {
	s, _, _ := strings.Cut(string(b), "\x00")
	return strings.TrimSpace(s)
}

var _ kernelfx.Device = (*Device)(nil)
