package signing

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// hashChunkSize matches original_source's calculate_file_hash, which reads
// in 4 KiB blocks to bound memory use on large DeviceFiles.
const hashChunkSize = 4096

// HashFile returns the SHA-256 hex digest of the file at path, read in
// bounded chunks rather than loaded wholesale.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("signing: open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("signing: hash %s: %w", path, err)
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashBytes returns the SHA-256 hex digest of b, used for hashing
// decompressed archive content held in memory (spec.md §9's normalization
// to content hashing rather than compressed-bytes hashing).
func HashBytes(b []byte) string {
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum)
}
