package fingerprint

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestPNG renders a deterministic gradient with a colored block whose
// position depends on seed, so different seeds give visually different
// images.
func writeTestPNG(t *testing.T, path string, seed int) {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	for y := 0; y < 128; y++ {
		for x := 0; x < 128; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 2), G: uint8(y * 2), B: uint8((x + y + seed*16) % 256), A: 255})
		}
	}
	off := (seed * 24) % 96
	for y := off; y < off+32 && y < 128; y++ {
		for x := off; x < off+32 && x < 128; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: uint8(seed * 40), B: 0, A: 255})
		}
	}

	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func TestComputeProducesAllAlgorithms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.png")
	writeTestPNG(t, path, 1)

	set, err := Compute(path)
	require.NoError(t, err)
	for _, algo := range Algorithms() {
		fp, ok := set[algo]
		assert.True(t, ok, "missing %s", algo)
		assert.Equal(t, algo, fp.Algorithm())
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.png")
	second := filepath.Join(dir, "b.png")
	writeTestPNG(t, first, 3)
	writeTestPNG(t, second, 3)

	setA, err := Compute(first)
	require.NoError(t, err)
	setB, err := Compute(second)
	require.NoError(t, err)

	for _, algo := range Algorithms() {
		d, err := setA[algo].Distance(setB[algo])
		require.NoError(t, err)
		assert.Zero(t, d, "identical images must match exactly on %s", algo)
	}
}

func TestComputeDistinguishesImages(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "a.png")
	second := filepath.Join(dir, "b.png")
	writeTestPNG(t, first, 0)
	writeTestPNG(t, second, 4)

	setA, err := Compute(first)
	require.NoError(t, err)
	setB, err := Compute(second)
	require.NoError(t, err)

	total := 0
	for _, algo := range Algorithms() {
		d, err := setA[algo].Distance(setB[algo])
		require.NoError(t, err)
		total += d
	}
	assert.Positive(t, total, "different images should differ on at least one algorithm")
}

func TestComputeUnreadable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-image.png")
	require.NoError(t, os.WriteFile(path, []byte("plain text"), 0644))

	_, err := Compute(path)
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestComputeMissingFile(t *testing.T) {
	_, err := Compute(filepath.Join(t.TempDir(), "missing.png"))
	assert.ErrorIs(t, err, ErrUnreadable)
}

func TestDistanceMismatch(t *testing.T) {
	a := New(Phash, 0xff, 64)
	b := New(Dhash, 0xff, 64)
	_, err := a.Distance(b)
	assert.Error(t, err)

	c := New(Phash, 0xff, 32)
	_, err = a.Distance(c)
	assert.Error(t, err)
}

func TestDistanceCountsBits(t *testing.T) {
	a := New(Ahash, 0b1010, 64)
	b := New(Ahash, 0b0110, 64)
	d, err := a.Distance(b)
	require.NoError(t, err)
	assert.Equal(t, 2, d)
}

func TestParseAlgorithm(t *testing.T) {
	for _, algo := range Algorithms() {
		parsed, err := ParseAlgorithm(algo.String())
		require.NoError(t, err)
		assert.Equal(t, algo, parsed)
	}
	_, err := ParseAlgorithm("md5")
	assert.Error(t, err)
}
