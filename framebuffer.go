package kernelfx

import "image"

// RenderTarget pairs one texture with the framebuffer it is attached to.
type RenderTarget struct {
	tex Texture
	fbo Framebuffer
}

// Texture returns the target's color texture.
func (rt *RenderTarget) Texture() Texture { return rt.tex }

// Framebuffer returns the target's framebuffer.
func (rt *RenderTarget) Framebuffer() Framebuffer { return rt.fbo }

func (rt *RenderTarget) dispose() {
	if rt.fbo != nil {
		rt.fbo.Dispose()
		rt.fbo = nil
	}
	if rt.tex != nil {
		rt.tex.Dispose()
		rt.tex = nil
	}
}

// FrameBufferPair holds the two interchangeable offscreen targets the
// pipeline ping-pongs between. Which one is written on a given pass is the
// pipeline's decision.
type FrameBufferPair struct {
	units   TextureUnit
	dev     Device
	targets [2]RenderTarget
	size    image.Point
}

// NewFrameBufferPair creates two targets of width x height texels with
// undefined contents.
func NewFrameBufferPair(units TextureUnit, dev Device, width, height int) (*FrameBufferPair, error) {
	p := &FrameBufferPair{units: units, dev: dev}
	for i := range p.targets {
		tex, err := units.Create()
		if err != nil {
			p.Dispose()
			return nil, err
		}
		p.targets[i].tex = tex
		if err := units.Upload(tex, width, height, nil); err != nil {
			p.Dispose()
			return nil, err
		}
		fbo, err := dev.NewFramebuffer(tex)
		if err != nil {
			p.Dispose()
			return nil, &ResourceError{Op: "create framebuffer", Err: err}
		}
		p.targets[i].fbo = fbo
	}
	p.size = image.Pt(width, height)
	return p, nil
}

// Target returns target i (0 or 1).
func (p *FrameBufferPair) Target(i int) *RenderTarget {
	return &p.targets[i&1]
}

// Size returns the current size of both targets.
func (p *FrameBufferPair) Size() image.Point { return p.size }

// Resize reallocates both targets' texture storage in place. The framebuffer
// objects are kept; prior contents become undefined.
func (p *FrameBufferPair) Resize(width, height int) error {
	for i := range p.targets {
		if err := p.units.Upload(p.targets[i].tex, width, height, nil); err != nil {
			return err
		}
	}
	p.size = image.Pt(width, height)
	return nil
}

// Dispose releases both targets.
func (p *FrameBufferPair) Dispose() {
	for i := range p.targets {
		p.targets[i].dispose()
	}
}
