package api

import (
	"image"
	"image/color"
)

// solid returns a w×h mid-grey image with one dark corner pixel.
func solid(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 128
	}
	img.SetGray(0, 0, color.Gray{Y: 0})
	return img
}
