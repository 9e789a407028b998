package checkpoint

import (
	"crypto/sha256"
	"fmt"
	"io"
)

// verifyDataSection hashes the n data bytes at off and compares them with
// the checksum stored in the fixed header.
func verifyDataSection(src io.ReaderAt, off, n int64, stored [32]byte) error {
	h := sha256.New()
	if _, err := io.Copy(h, io.NewSectionReader(src, off, n)); err != nil {
		return fmt.Errorf("failed to read tensor data for checksum: %w", err)
	}
	if [32]byte(h.Sum(nil)) != stored {
		return ErrChecksumMismatch
	}
	return nil
}
