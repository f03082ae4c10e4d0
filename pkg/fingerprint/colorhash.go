package fingerprint

import "image"

// colorHash summarizes the color distribution of the image: the fraction
// of near-black pixels, the fraction of unsaturated (gray) pixels, and a
// six-bin hue histogram over the saturated remainder. Each of the eight
// fractions is quantized to three bits, giving a 24-bit fingerprint.
func colorHash(img image.Image) Fingerprint {
	const (
		binbits  = 3
		binCount = 8 // black, gray, six hue sextants
	)

	var counts [binCount]int
	total := 0

	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			r, g, b, _ := img.At(x, y).RGBA()
			rr, gg, bb := int(r>>8), int(g>>8), int(b>>8)

			max := rr
			if gg > max {
				max = gg
			}
			if bb > max {
				max = bb
			}
			min := rr
			if gg < min {
				min = gg
			}
			if bb < min {
				min = bb
			}

			switch {
			case max < 32:
				counts[0]++
			case max-min < 16: // low saturation
				counts[1]++
			default:
				counts[2+hueSextant(rr, gg, bb, max, min)]++
			}
			total++
		}
	}

	var bits uint64
	if total > 0 {
		maxBin := 1<<binbits - 1
		for i, c := range counts {
			q := c * maxBin / total
			bits |= uint64(q) << uint(binbits*(binCount-1-i))
		}
	}
	return New(Colorhash, bits, binbits*binCount)
}

// hueSextant maps an RGB pixel to one of six 60-degree hue bins.
func hueSextant(r, g, b, max, min int) int {
	delta := max - min
	var hue int // degrees, 0..359
	switch max {
	case r:
		hue = (60*(g-b)/delta + 360) % 360
	case g:
		hue = 60*(b-r)/delta + 120
	default:
		hue = 60*(r-g)/delta + 240
	}
	hue = ((hue % 360) + 360) % 360
	return hue / 60
}
