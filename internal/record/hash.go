package record

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashBlockSize bounds the read buffer while hashing so large files never
// load into memory at once.
const hashBlockSize = 4096

// HashFile streams the file at path through SHA-256 in fixed-size blocks and
// returns its content digest.
func HashFile(path string) (Digest, error) {
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening file for hash: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	buf := make([]byte, hashBlockSize)

	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return Digest{}, fmt.Errorf("hashing %s: %w", path, err)
	}

	return Digest{hex: hex.EncodeToString(h.Sum(nil))}, nil
}
