// Package feature turns decoded images into fixed-size embedding vectors
// for the similarity index.
//
// The descriptor is a 4x4x4 RGB color histogram: each channel is
// quantized into four bins, giving 64 buckets, and the bucket counts are
// L1-normalized over the pixel count. It is cheap, deterministic and
// independent of image dimensions, which is all the indexing path needs.
package feature

import "image"

// Dim is the length of every descriptor vector.
const Dim = 64

// bits of color resolution kept per channel (4 bins = 2 bits).
const binShift = 6

// Descriptor computes the color-histogram embedding of img.
func Descriptor(img image.Image) []float32 {
	hist := make([]float32, Dim)
	bounds := img.Bounds()

	total := bounds.Dx() * bounds.Dy()
	if total == 0 {
		return hist
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			// RGBA returns 16-bit channels; keep the top two bits each.
			rb := r >> (8 + binShift)
			gb := g >> (8 + binShift)
			bb := b >> (8 + binShift)
			hist[rb<<4|gb<<2|bb]++
		}
	}

	inv := 1 / float32(total)
	for i := range hist {
		hist[i] *= inv
	}
	return hist
}
