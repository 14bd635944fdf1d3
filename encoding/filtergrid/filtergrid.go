// Package filtergrid renders the weight filters of a layer as an
// animated GIF, one frame per training epoch, with a caption carrying
// the epoch number and reconstruction error. It implements
// trainer.Watcher, so it can observe training directly.
package filtergrid

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/XDimage/dll/trainer"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
)

var tt font.Face
var regular *truetype.Font

const (
	dpi      = 144.0
	fontsize = 8.0
	scale    = 3 // pixels per weight
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}

	tt = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}

var grays = func() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{uint8(i)}
	}
	return p
}()

// Encoder renders filter weights into GIF frames according to the
// trainer.Watcher interface.
type Encoder struct {
	H, W int // geometry of one filter
	font.Drawer

	weights func() [][]float32 // filter supplier, one row per filter

	out *gif.GIF
	io.Writer

	padH, padW int
}

// New builds an Encoder writing to w. Filters are fetched from the
// supplier at every epoch end and interpreted as h×w images.
func New(w io.Writer, h, width int, weights func() [][]float32) *Encoder {
	return &Encoder{
		H:       h,
		W:       width,
		weights: weights,
		Writer:  w,
		padH:    10,
		padW:    10,
		Drawer: font.Drawer{
			Src: image.Black,
		},
		out: &gif.GIF{LoopCount: -1},
	}
}

// TrainingBegin implements trainer.Watcher.
func (enc *Encoder) TrainingBegin(layer trainer.Trainee) {}

// BatchEnd implements trainer.Watcher.
func (enc *Encoder) BatchEnd(layer trainer.Trainee, ctx *trainer.Context, batch, totalBatches int) {
}

// EpochEnd implements trainer.Watcher. It appends one frame showing the
// current filters.
func (enc *Encoder) EpochEnd(epoch int, ctx *trainer.Context, layer trainer.Trainee) {
	enc.frame(fmt.Sprintf("Epoch %d, error %.5f", epoch, ctx.ReconstructionError))
}

// TrainingEnd implements trainer.Watcher.
func (enc *Encoder) TrainingEnd(layer trainer.Trainee) {}

// Flush encodes the collected frames to the underlying writer.
func (enc *Encoder) Flush() error {
	if len(enc.out.Image) == 0 {
		return nil
	}
	return gif.EncodeAll(enc.Writer, enc.out)
}

func (enc *Encoder) frame(caption string) {
	filters := enc.weights()
	if len(filters) == 0 {
		return
	}

	cols := int(math.Ceil(math.Sqrt(float64(len(filters)))))
	rows := (len(filters) + cols - 1) / cols

	cellH, cellW := enc.H*scale+1, enc.W*scale+1
	width := enc.padW*2 + cols*cellW
	height := enc.padH*2 + rows*cellH + 24

	img := image.NewPaletted(image.Rect(0, 0, width, height), grays)
	draw.Draw(img, img.Bounds(), image.White, image.Point{}, draw.Src)

	for f, filter := range filters {
		if len(filter) < enc.H*enc.W {
			continue
		}
		min, max := filter[0], filter[0]
		for _, v := range filter {
			if v < min {
				min = v
			}
			if v > max {
				max = v
			}
		}
		span := max - min
		if span == 0 {
			span = 1
		}

		x0 := enc.padW + (f%cols)*cellW
		y0 := enc.padH + (f/cols)*cellH
		for y := 0; y < enc.H; y++ {
			for x := 0; x < enc.W; x++ {
				v := filter[y*enc.W+x]
				g := uint8(255 * (v - min) / span)
				for dy := 0; dy < scale; dy++ {
					for dx := 0; dx < scale; dx++ {
						img.SetColorIndex(x0+x*scale+dx, y0+y*scale+dy, g)
					}
				}
			}
		}
	}

	enc.Dst = img
	enc.Face = tt
	enc.Dot = fixed.P(enc.padW, height-enc.padH)
	enc.DrawString(caption)

	enc.out.Image = append(enc.out.Image, img)
	enc.out.Delay = append(enc.out.Delay, 20)
}
