// Package imageio decodes images into normalized NCHW input data and writes
// feature maps as NumPy .npy files.
package imageio

import (
	"fmt"
	"image"
	"image/color"
	_ "image/jpeg" // register decoder
	_ "image/png"  // register decoder
	"io"
	"os"

	"golang.org/x/image/draw"
)

// ImageNet channel statistics used by the reference backbones.
var (
	ImageNetMean = [3]float32{0.485, 0.456, 0.406}
	ImageNetSTD  = [3]float32{0.229, 0.224, 0.225}
)

// Decode reads a PNG or JPEG image.
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// Load decodes the image file at path.
func Load(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return img, nil
}

// Composite drops the alpha channel by drawing img over a white background.
func Composite(img image.Image) image.Image {
	dst := image.NewRGBA(img.Bounds())
	draw.Draw(dst, dst.Bounds(), &image.Uniform{color.White}, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, img.Bounds().Min, draw.Over)
	return dst
}

// Resize scales img to width x height with bilinear filtering.
func Resize(img image.Image, width, height int) image.Image {
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.BiLinear.Scale(dst, dst.Rect, img, img.Bounds(), draw.Over, nil)
	return dst
}

// Normalize converts img to channel-first float32 values
// (pixel/255 - mean[c]) / std[c], laid out as [3, H, W].
func Normalize(img image.Image, mean, std [3]float32) []float32 {
	bounds := img.Bounds()
	plane := bounds.Dx() * bounds.Dy()
	out := make([]float32, 3*plane)

	i := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			out[i] = (float32(r>>8)/255.0 - mean[0]) / std[0]
			out[plane+i] = (float32(g>>8)/255.0 - mean[1]) / std[1]
			out[2*plane+i] = (float32(b>>8)/255.0 - mean[2]) / std[2]
			i++
		}
	}
	return out
}

// Options controls Preprocess.
type Options struct {
	// Width and Height resize the image when both are positive.
	Width, Height int
	Mean, STD     [3]float32
}

// DefaultOptions keeps the image size and applies ImageNet normalization.
func DefaultOptions() Options {
	return Options{Mean: ImageNetMean, STD: ImageNetSTD}
}

// Preprocess composites, optionally resizes and normalizes img. It returns
// the [3, H, W] data and the final height and width.
func Preprocess(img image.Image, opts Options) (data []float32, height, width int) {
	img = Composite(img)
	if opts.Width > 0 && opts.Height > 0 {
		img = Resize(img, opts.Width, opts.Height)
	}
	b := img.Bounds()
	return Normalize(img, opts.Mean, opts.STD), b.Dy(), b.Dx()
}
