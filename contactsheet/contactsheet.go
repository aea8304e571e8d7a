// Package contactsheet renders every kernel of a pipeline side by side.
package contactsheet

import (
	"errors"
	"image"
	"image/color"

	"github.com/fogleman/gg"
	"golang.org/x/image/draw"

	"github.com/phanxgames/kernelfx"
)

// SourceLabel labels the unfiltered tile.
const SourceLabel = "source"

// Options configures Render. Zero values pick the defaults.
type Options struct {
	// Names selects the kernels to show, in order. Nil shows every kernel
	// the pipeline lists.
	Names []string
	// Columns is the grid width in tiles. Default 4.
	Columns int
	// ThumbWidth is the tile width in pixels; the height keeps the viewport
	// aspect ratio. Default 200.
	ThumbWidth int
	// Padding separates tiles and surrounds the grid. Default 8.
	Padding int
	// Background fills the sheet. Default dark grey.
	Background color.Color
	// Foreground colors the labels. Default white.
	Foreground color.Color
}

const labelHeight = 18

func (o *Options) defaults() {
	if o.Columns <= 0 {
		o.Columns = 4
	}
	if o.ThumbWidth <= 0 {
		o.ThumbWidth = 200
	}
	if o.Padding <= 0 {
		o.Padding = 8
	}
	if o.Background == nil {
		o.Background = color.RGBA{R: 0x22, G: 0x22, B: 0x26, A: 0xff}
	}
	if o.Foreground == nil {
		o.Foreground = color.White
	}
}

// Tile is one rendered cell.
type Tile struct {
	Label string
	Image image.Image
}

// Tiles renders the source and each selected kernel alone. The pipeline's
// previous chain is applied again before returning.
func Tiles(p *kernelfx.Pipeline, names []string) ([]Tile, error) {
	if names == nil {
		names = p.KernelNames()
	}
	prev := p.Chain()
	tiles := make([]Tile, 0, len(names)+1)

	render := func(label string, chain ...string) error {
		if err := p.ApplyEffects(chain...); err != nil {
			return err
		}
		img, err := p.Snapshot()
		if err != nil {
			return err
		}
		tiles = append(tiles, Tile{Label: label, Image: img})
		return nil
	}
	err := render(SourceLabel)
	for _, name := range names {
		if err != nil {
			break
		}
		err = render(name, name)
	}
	if rerr := p.ApplyEffects(prev...); err == nil {
		err = rerr
	}
	if err != nil {
		return nil, err
	}
	return tiles, nil
}

// Render lays the tiles of p out in a labelled grid.
func Render(p *kernelfx.Pipeline, opts Options) (image.Image, error) {
	tiles, err := Tiles(p, opts.Names)
	if err != nil {
		return nil, err
	}
	return Compose(tiles, opts)
}

// Compose draws tiles in a grid, each scaled to opts.ThumbWidth with its
// label centered beneath it.
func Compose(tiles []Tile, opts Options) (image.Image, error) {
	if len(tiles) == 0 {
		return nil, errors.New("contactsheet: no tiles")
	}
	opts.defaults()
	b := tiles[0].Image.Bounds()
	if b.Empty() {
		return nil, kernelfx.ErrInvalidSize
	}
	tw := opts.ThumbWidth
	th := max(1, tw*b.Dy()/b.Dx())
	cols := min(opts.Columns, len(tiles))
	rows := (len(tiles) + cols - 1) / cols
	cellW := tw + opts.Padding
	cellH := th + labelHeight + opts.Padding

	dc := gg.NewContext(opts.Padding+cols*cellW, opts.Padding+rows*cellH)
	dc.SetColor(opts.Background)
	dc.Clear()
	dc.SetColor(opts.Foreground)

	for i, t := range tiles {
		x := opts.Padding + (i%cols)*cellW
		y := opts.Padding + (i/cols)*cellH
		dc.DrawImage(thumbnail(t.Image, tw, th), x, y)
		dc.DrawStringAnchored(t.Label, float64(x)+float64(tw)/2, float64(y+th)+labelHeight/2, 0.5, 0.5)
	}
	return dc.Image(), nil
}

func thumbnail(src image.Image, w, h int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
