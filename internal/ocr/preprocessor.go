package ocr

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"math"
	"os"

	"github.com/disintegration/imaging"
)

// Preprocessor normalizes a raw image into a single-channel bitmap suited for
// OCR: grayscale followed by adaptive thresholding, so text stays legible
// under uneven lighting. Pure function of the input bytes, no side effects.
type Preprocessor struct {
	blockSize int
	offset    float64
}

// NewPreprocessor creates a preprocessor with the fixed binarization strategy
// (Gaussian-weighted local mean over an 11x11 block, constant offset 2,
// inverted binary output).
func NewPreprocessor() *Preprocessor {
	return &Preprocessor{
		blockSize: 11,
		offset:    2,
	}
}

// PreprocessImage reads and normalizes an image file.
func (p *Preprocessor) PreprocessImage(imagePath string) (*image.Gray, error) {
	data, err := os.ReadFile(imagePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrImageRead, imagePath, err)
	}
	return p.PreprocessImageFromBytes(data)
}

// PreprocessImageFromBytes decodes, grayscales and binarizes image bytes.
func (p *Preprocessor) PreprocessImageFromBytes(data []byte) (*image.Gray, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrImageRead, err)
	}

	gray := toGray(imaging.Grayscale(img))
	return p.adaptiveThreshold(gray), nil
}

// toGray flattens the NRGBA image produced by imaging.Grayscale to one channel.
func toGray(src *image.NRGBA) *image.Gray {
	bounds := src.Bounds()
	dst := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			// Channels are equal after grayscale conversion; red suffices.
			dst.SetGray(x, y, color.Gray{Y: src.NRGBAAt(x, y).R})
		}
	}
	return dst
}

// adaptiveThreshold binarizes with a per-pixel cutoff: the Gaussian-weighted
// mean of the surrounding block minus a constant offset. Output is inverted
// (text becomes white on black), which the recognition engines prefer.
func (p *Preprocessor) adaptiveThreshold(src *image.Gray) *image.Gray {
	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	kernel := gaussianKernel(p.blockSize)
	radius := p.blockSize / 2

	// Separable convolution: horizontal pass into a float buffer, then
	// vertical pass while thresholding. Borders replicate edge pixels.
	horiz := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var sum float64
			for k := -radius; k <= radius; k++ {
				sum += kernel[k+radius] * float64(src.GrayAt(clamp(x+k, w-1)+bounds.Min.X, y+bounds.Min.Y).Y)
			}
			horiz[y*w+x] = sum
		}
	}

	dst := image.NewGray(bounds)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var mean float64
			for k := -radius; k <= radius; k++ {
				mean += kernel[k+radius] * horiz[clamp(y+k, h-1)*w+x]
			}
			cutoff := mean - p.offset
			v := float64(src.GrayAt(x+bounds.Min.X, y+bounds.Min.Y).Y)
			if v > cutoff {
				dst.Pix[y*dst.Stride+x] = 0
			} else {
				dst.Pix[y*dst.Stride+x] = 255
			}
		}
	}
	return dst
}

func clamp(i, max int) int {
	if i < 0 {
		return 0
	}
	if i > max {
		return max
	}
	return i
}

// gaussianKernel builds a normalized 1D kernel for the given block size, with
// sigma derived from the size the same way common vision libraries do.
func gaussianKernel(size int) []float64 {
	sigma := 0.3*(float64(size-1)*0.5-1) + 0.8
	kernel := make([]float64, size)
	radius := size / 2
	var sum float64
	for i := 0; i < size; i++ {
		d := float64(i - radius)
		kernel[i] = math.Exp(-(d * d) / (2 * sigma * sigma))
		sum += kernel[i]
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}
