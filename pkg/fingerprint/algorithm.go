package fingerprint

import (
	"fmt"
	"math/bits"
)

// Algorithm identifies one of the perceptual hash algorithms.
type Algorithm int

const (
	Phash Algorithm = iota
	Dhash
	Ahash
	Whash
	Colorhash
)

// Algorithms returns the full algorithm set in a fixed order. Callers
// iterate this list rather than dispatching on names.
func Algorithms() []Algorithm {
	return []Algorithm{Phash, Dhash, Ahash, Whash, Colorhash}
}

func (a Algorithm) String() string {
	switch a {
	case Phash:
		return "phash"
	case Dhash:
		return "dhash"
	case Ahash:
		return "ahash"
	case Whash:
		return "whash"
	case Colorhash:
		return "colorhash"
	}
	return fmt.Sprintf("algorithm(%d)", int(a))
}

// ParseAlgorithm maps a configuration name to an Algorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	for _, a := range Algorithms() {
		if a.String() == name {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown fingerprint algorithm %q", name)
}

// Fingerprint is a fixed-size bit string produced by one algorithm,
// comparable to others of the same algorithm by Hamming distance.
type Fingerprint struct {
	algorithm Algorithm
	bits      uint64
	size      int
}

// New builds a fingerprint from raw bits. size is the number of
// significant bits, at most 64.
func New(algorithm Algorithm, bits uint64, size int) Fingerprint {
	return Fingerprint{algorithm: algorithm, bits: bits, size: size}
}

// Algorithm returns the algorithm that produced this fingerprint.
func (f Fingerprint) Algorithm() Algorithm { return f.algorithm }

// Distance returns the Hamming distance to another fingerprint of the
// same algorithm.
func (f Fingerprint) Distance(other Fingerprint) (int, error) {
	if f.algorithm != other.algorithm {
		return 0, fmt.Errorf("cannot compare %s fingerprint with %s", f.algorithm, other.algorithm)
	}
	if f.size != other.size {
		return 0, fmt.Errorf("%s fingerprint size mismatch: %d vs %d bits", f.algorithm, f.size, other.size)
	}
	return bits.OnesCount64(f.bits ^ other.bits), nil
}

func (f Fingerprint) String() string {
	return fmt.Sprintf("%s:%0*x", f.algorithm, (f.size+3)/4, f.bits)
}

// Set maps each algorithm to the fingerprint it produced for one image.
// A Set is immutable once computed.
type Set map[Algorithm]Fingerprint
