package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// ContentHash computes the SHA-256 digest of the file at path as a hex
// string. This is the ledger key component: it detects byte-identical
// re-uploads, where perceptual fingerprints detect visually similar ones.
func ContentHash(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}

// StreamHash computes the SHA-256 digest from a reader.
func StreamHash(r io.Reader) (string, error) {
	hash := sha256.New()
	if _, err := io.Copy(hash, r); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
