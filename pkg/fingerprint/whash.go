package fingerprint

import (
	"image"
	"sort"

	"golang.org/x/image/draw"
)

// waveletHash reduces the image to a 64x64 grayscale plane, cascades a 2D
// Haar transform down to its 8x8 low-frequency band, and thresholds the
// band at its median to produce a 64-bit fingerprint.
func waveletHash(img image.Image) Fingerprint {
	const side = 64

	gray := image.NewGray(image.Rect(0, 0, side, side))
	draw.ApproxBiLinear.Scale(gray, gray.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := make([]float64, side*side)
	for y := 0; y < side; y++ {
		for x := 0; x < side; x++ {
			plane[y*side+x] = float64(gray.GrayAt(x, y).Y)
		}
	}

	// Each Haar level keeps the low-frequency band: the mean of every 2x2
	// block. Three levels take 64x64 down to 8x8.
	for n := side; n > 8; n /= 2 {
		half := n / 2
		next := make([]float64, half*half)
		for y := 0; y < half; y++ {
			for x := 0; x < half; x++ {
				next[y*half+x] = (plane[(2*y)*n+2*x] +
					plane[(2*y)*n+2*x+1] +
					plane[(2*y+1)*n+2*x] +
					plane[(2*y+1)*n+2*x+1]) / 4
			}
		}
		plane = next
	}

	sorted := append([]float64(nil), plane...)
	sort.Float64s(sorted)
	median := (sorted[len(sorted)/2-1] + sorted[len(sorted)/2]) / 2

	var bits uint64
	for i, v := range plane {
		if v > median {
			bits |= 1 << uint(63-i)
		}
	}
	return New(Whash, bits, 64)
}
