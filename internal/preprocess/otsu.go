// Package preprocess prepares raster images for text recognition.
package preprocess

import (
	"image"
	"image/color"
)

// Grayscale converts an image to single-channel 8-bit grayscale.
func Grayscale(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			gray.Set(x, y, color.GrayModel.Convert(img.At(x, y)))
		}
	}
	return gray
}

// Histogram builds a 256-bin intensity histogram of a grayscale image.
func Histogram(gray *image.Gray) [256]int {
	var hist [256]int
	b := gray.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := gray.Pix[(y-b.Min.Y)*gray.Stride : (y-b.Min.Y)*gray.Stride+b.Dx()]
		for _, v := range row {
			hist[v]++
		}
	}
	return hist
}

// OtsuThreshold computes the threshold that maximizes between-class variance
// over the grayscale histogram. Candidates leaving either class empty are
// skipped; ties keep the lowest threshold. A uniform image yields 0.
func OtsuThreshold(gray *image.Gray) uint8 {
	hist := Histogram(gray)

	total := 0
	sum := 0.0
	for i, n := range hist {
		total += n
		sum += float64(i) * float64(n)
	}
	if total == 0 {
		return 0
	}

	var (
		best     float64
		bestT    uint8
		wB, sumB float64
	)
	for t := 0; t < 256; t++ {
		wB += float64(hist[t])
		if wB == 0 {
			continue
		}
		wF := float64(total) - wB
		if wF == 0 {
			break
		}
		sumB += float64(t) * float64(hist[t])
		meanB := sumB / wB
		meanF := (sum - sumB) / wF
		diff := meanB - meanF
		between := wB * wF * diff * diff
		if between > best {
			best = between
			bestT = uint8(t)
		}
	}
	return bestT
}

// Binarize converts an image to a black-and-white bitmap using Otsu's
// threshold: pixels above the threshold become white, the rest black.
// Deterministic for a given input; performs no I/O.
func Binarize(img image.Image) *image.Gray {
	gray := Grayscale(img)
	threshold := OtsuThreshold(gray)

	b := gray.Bounds()
	out := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			if gray.GrayAt(x, y).Y > threshold {
				out.SetGray(x, y, color.Gray{Y: 255})
			} else {
				out.SetGray(x, y, color.Gray{Y: 0})
			}
		}
	}
	return out
}
