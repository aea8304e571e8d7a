package kernelfx

import (
	"image"
	"image/draw"
)

// convolutionTextureParams is the only sampling configuration the pipeline
// uses: exact texel reads, clamped at the edges.
var convolutionTextureParams = TextureParams{
	Wrap:   WrapClampToEdge,
	Filter: FilterNearest,
}

// TextureUnit creates and fills textures configured for convolution
// sampling.
type TextureUnit struct {
	dev Device
}

// NewTextureUnit returns a TextureUnit on dev.
func NewTextureUnit(dev Device) TextureUnit {
	return TextureUnit{dev: dev}
}

// Create returns a new edge-clamped, nearest-filtered texture with no storage.
func (u TextureUnit) Create() (Texture, error) {
	tex, err := u.dev.NewTexture(convolutionTextureParams)
	if err != nil {
		return nil, &ResourceError{Op: "create texture", Err: err}
	}
	return tex, nil
}

// Upload populates tex with pix (tightly packed RGBA8, top row first) or,
// when pix is nil, allocates width x height texels with undefined contents.
func (u TextureUnit) Upload(tex Texture, width, height int, pix []byte) error {
	if width <= 0 || height <= 0 {
		return ErrInvalidSize
	}
	if pix != nil && len(pix) != width*height*4 {
		return &ResourceError{Op: "upload texture", Err: ErrInvalidSize}
	}
	if err := u.dev.TexImage(tex, width, height, pix); err != nil {
		return &ResourceError{Op: "upload texture", Err: err}
	}
	return nil
}

// opaquePixels converts img to tightly packed RGBA8 with every alpha set to
// 255. Color channels keep their straight (non-premultiplied) values, the
// same as uploading only the RGB channels.
func opaquePixels(img image.Image) (width, height int, pix []byte) {
	b := img.Bounds()
	width, height = b.Dx(), b.Dy()
	dst := image.NewNRGBA(image.Rect(0, 0, width, height))
	if src, ok := img.(*image.NRGBA); ok {
		// Straight alpha already; copying keeps the color of transparent texels.
		for y := 0; y < height; y++ {
			i := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(dst.Pix[y*dst.Stride:y*dst.Stride+width*4], src.Pix[i:i+width*4])
		}
	} else {
		draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	}
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return width, height, dst.Pix
}
