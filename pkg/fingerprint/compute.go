package fingerprint

import (
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	"github.com/corona10/goimagehash"
	_ "golang.org/x/image/webp"
)

// ErrUnreadable marks files that cannot be opened or decoded as a raster
// image. Callers treat such files as "cannot fingerprint", never as a
// pipeline failure.
var ErrUnreadable = errors.New("unreadable image")

// Compute decodes the image at path and produces fingerprints for all
// five algorithms.
func Compute(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s: %v", ErrUnreadable, path, err)
	}
	return computeAll(img)
}

func computeAll(img image.Image) (Set, error) {
	ph, err := goimagehash.PerceptionHash(img)
	if err != nil {
		return nil, fmt.Errorf("%w: phash: %v", ErrUnreadable, err)
	}
	dh, err := goimagehash.DifferenceHash(img)
	if err != nil {
		return nil, fmt.Errorf("%w: dhash: %v", ErrUnreadable, err)
	}
	ah, err := goimagehash.AverageHash(img)
	if err != nil {
		return nil, fmt.Errorf("%w: ahash: %v", ErrUnreadable, err)
	}

	return Set{
		Phash:     New(Phash, ph.GetHash(), 64),
		Dhash:     New(Dhash, dh.GetHash(), 64),
		Ahash:     New(Ahash, ah.GetHash(), 64),
		Whash:     waveletHash(img),
		Colorhash: colorHash(img),
	}, nil
}
