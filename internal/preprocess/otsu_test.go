package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func twoLevelImage(w, h, split int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			if x < split {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestOtsuThreshold_TwoLevelImage(t *testing.T) {
	// 30 black columns, 70 white columns
	img := twoLevelImage(100, 10, 30)

	threshold := OtsuThreshold(img)
	assert.GreaterOrEqual(t, threshold, uint8(0))
	assert.Less(t, threshold, uint8(255))

	// binarizing an already bipartite image must reproduce it
	out := Binarize(img)
	require.Equal(t, img.Bounds(), out.Bounds())
	for y := 0; y < 10; y++ {
		for x := 0; x < 100; x++ {
			assert.Equal(t, img.GrayAt(x, y).Y, out.GrayAt(x, y).Y,
				"pixel (%d,%d)", x, y)
		}
	}
}

func TestOtsuThreshold_UniformImage(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 20, 20))
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			img.SetGray(x, y, color.Gray{Y: 128})
		}
	}

	// a flat histogram has no separable classes
	assert.Equal(t, uint8(0), OtsuThreshold(img))

	out := Binarize(img)
	for y := 0; y < 20; y++ {
		for x := 0; x < 20; x++ {
			assert.Equal(t, uint8(255), out.GrayAt(x, y).Y)
		}
	}
}

func TestOtsuThreshold_Deterministic(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 64, 64))
	for y := 0; y < 64; y++ {
		for x := 0; x < 64; x++ {
			img.SetGray(x, y, color.Gray{Y: uint8((x*7 + y*13) % 256)})
		}
	}

	first := OtsuThreshold(img)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, OtsuThreshold(img))
	}
}

func TestOtsuThreshold_SeparatesDistinctClusters(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 10, 10))
	for y := 0; y < 10; y++ {
		for x := 0; x < 10; x++ {
			if (x+y)%3 == 0 {
				img.SetGray(x, y, color.Gray{Y: 40})
			} else {
				img.SetGray(x, y, color.Gray{Y: 200})
			}
		}
	}

	threshold := OtsuThreshold(img)
	assert.GreaterOrEqual(t, threshold, uint8(40))
	assert.Less(t, threshold, uint8(200))
}

func TestGrayscale_SubImage(t *testing.T) {
	base := image.NewRGBA(image.Rect(0, 0, 40, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 40; x++ {
			base.Set(x, y, color.RGBA{R: uint8(x * 6), G: uint8(x * 6), B: uint8(x * 6), A: 255})
		}
	}
	sub := base.SubImage(image.Rect(10, 10, 30, 30))

	gray := Grayscale(sub)
	assert.Equal(t, image.Rect(10, 10, 30, 30), gray.Bounds())

	out := Binarize(sub)
	assert.Equal(t, image.Rect(10, 10, 30, 30), out.Bounds())
	for y := 10; y < 30; y++ {
		for x := 10; x < 30; x++ {
			v := out.GrayAt(x, y).Y
			assert.True(t, v == 0 || v == 255)
		}
	}
}
