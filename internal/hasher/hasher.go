package hasher

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go-voxura-native/internal/errs"

	"lukechampine.com/blake3"
)

// Algorithm selects the digest used as the mod cache key.
type Algorithm string

const (
	MD5    Algorithm = "md5"
	BLAKE3 Algorithm = "blake3"
)

// digestSize is 128 bits for both algorithms.
const digestSize = 16

// ParseAlgorithm validates an algorithm name (case-insensitive).
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case MD5, "":
		return MD5, nil
	case BLAKE3:
		return BLAKE3, nil
	default:
		return "", fmt.Errorf("unknown digest algorithm %q", name)
	}
}

// Digest reads the whole file and returns its lowercase hex digest.
func Digest(path string, algo Algorithm) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: reading %s for digest: %v", errs.ErrIO, path, err)
	}
	return Sum(data, algo), nil
}

// Sum returns the hex digest of data.
func Sum(data []byte, algo Algorithm) string {
	switch algo {
	case BLAKE3:
		sum := blake3.Sum256(data)
		return hex.EncodeToString(sum[:digestSize])
	default:
		sum := md5.Sum(data)
		return hex.EncodeToString(sum[:])
	}
}
