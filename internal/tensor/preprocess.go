package tensor

import (
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"

	"github.com/nfnt/resize"
)

type Channel string

const (
	// ChannelRed reads the first color channel, the way a single channel
	// pixel read of an RGBA canvas behaves in the browser.
	ChannelRed   Channel = "red"
	ChannelAlpha Channel = "alpha"
	ChannelLuma  Channel = "luma"
)

type Resampler string

const (
	// ResamplerTF matches the bilinear op the models were trained against:
	// no corner alignment and no half pixel centers.
	ResamplerTF   Resampler = "tf"
	ResamplerNfnt Resampler = "nfnt"
)

// Preprocessor turns a raster into the base input tensor of shape BaseShape.
// Scale multiplies every resized intensity; 1 keeps the raw 0..255 range.
type Preprocessor struct {
	Channel   Channel
	Scale     float32
	Resampler Resampler
}

func DefaultPreprocessor() Preprocessor {
	return Preprocessor{Channel: ChannelRed, Scale: 1, Resampler: ResamplerTF}
}

func (p Preprocessor) Validate() error {
	switch p.Channel {
	case ChannelRed, ChannelAlpha, ChannelLuma:
	default:
		return fmt.Errorf("unknown pixel channel %q", p.Channel)
	}
	switch p.Resampler {
	case ResamplerTF, ResamplerNfnt:
	default:
		return fmt.Errorf("unknown resampler %q", p.Resampler)
	}
	if p.Scale <= 0 || math.IsNaN(float64(p.Scale)) || math.IsInf(float64(p.Scale), 0) {
		return fmt.Errorf("pixel scale must be a positive number, got %v", p.Scale)
	}
	return nil
}

func (p Preprocessor) FromImage(img image.Image) (Tensor, error) {
	if err := p.Validate(); err != nil {
		return Tensor{}, err
	}
	b := img.Bounds()
	if b.Empty() {
		return Tensor{}, fmt.Errorf("empty image")
	}

	plane := p.extract(img)

	var out []float32
	switch p.Resampler {
	case ResamplerNfnt:
		out = resizeNfnt(plane, b.Dx(), b.Dy(), Side, Side)
	default:
		out = resizeBilinear(plane, b.Dx(), b.Dy(), Side, Side)
	}

	if p.Scale != 1 {
		for i := range out {
			out[i] *= p.Scale
		}
	}

	slog.Debug("preprocessed raster", "width", b.Dx(), "height", b.Dy(), "channel", p.Channel, "resampler", p.Resampler)

	return New(BaseShape, out)
}

// FromValues wraps an already resized Side x Side intensity plane.
func FromValues(values []float32) (Tensor, error) {
	data := make([]float32, len(values))
	copy(data, values)
	return New(BaseShape, data)
}

// extract returns one 0..255 value per pixel, read from non premultiplied color.
func (p Preprocessor) extract(img image.Image) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	plane := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := color.NRGBAModel.Convert(img.At(b.Min.X+x, b.Min.Y+y)).(color.NRGBA)
			var v float32
			switch p.Channel {
			case ChannelAlpha:
				v = float32(c.A)
			case ChannelLuma:
				v = 0.299*float32(c.R) + 0.587*float32(c.G) + 0.114*float32(c.B)
			default:
				v = float32(c.R)
			}
			plane[y*w+x] = v
		}
	}
	return plane
}

func resizeBilinear(src []float32, inW, inH, outW, outH int) []float32 {
	out := make([]float32, outW*outH)
	ratioY := float64(inH) / float64(outH)
	ratioX := float64(inW) / float64(outW)

	for y := 0; y < outH; y++ {
		srcY := ratioY * float64(y)
		top := int(math.Floor(srcY))
		bottom := min(inH-1, int(math.Ceil(srcY)))
		dy := srcY - float64(top)

		for x := 0; x < outW; x++ {
			srcX := ratioX * float64(x)
			left := int(math.Floor(srcX))
			right := min(inW-1, int(math.Ceil(srcX)))
			dx := srcX - float64(left)

			tl := float64(src[top*inW+left])
			tr := float64(src[top*inW+right])
			bl := float64(src[bottom*inW+left])
			br := float64(src[bottom*inW+right])

			t := tl + (tr-tl)*dx
			bt := bl + (br-bl)*dx
			out[y*outW+x] = float32(t + (bt-t)*dy)
		}
	}
	return out
}

func resizeNfnt(src []float32, inW, inH, outW, outH int) []float32 {
	gray := image.NewGray16(image.Rect(0, 0, inW, inH))
	for y := 0; y < inH; y++ {
		for x := 0; x < inW; x++ {
			v := math.Round(float64(src[y*inW+x]) * 257)
			gray.SetGray16(x, y, color.Gray16{Y: uint16(min(max(v, 0), 65535))})
		}
	}

	resized := resize.Resize(uint(outW), uint(outH), gray, resize.Bilinear)

	out := make([]float32, outW*outH)
	rb := resized.Bounds()
	for y := 0; y < outH; y++ {
		for x := 0; x < outW; x++ {
			c := color.Gray16Model.Convert(resized.At(rb.Min.X+x, rb.Min.Y+y)).(color.Gray16)
			out[y*outW+x] = float32(c.Y) / 257
		}
	}
	return out
}
