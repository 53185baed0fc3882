package vision

import (
	"image"

	"github.com/disintegration/gift"
)

var grayscale = gift.New(gift.Grayscale())

// ToGray converts any image to *image.Gray, keeping its bounds.
// Gray images are returned unchanged.
func ToGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}

	src := img.Bounds()
	dst := image.NewGray(grayscale.Bounds(src))
	grayscale.Draw(dst, img)

	// gift renders at the origin; shift back so captures of a secondary
	// display keep their desktop coordinates.
	dst.Rect = dst.Rect.Add(src.Min)
	return dst
}
