package crypto

import (
	"crypto/sha1"
	"fmt"
	"hash"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// BLAKE3File computes the BLAKE3 hash of a file
func BLAKE3File(filename string) (string, error) {
	return hashFile(filename, blake3.New())
}

// SHA1File computes the SHA-1 hash of a file, the digest the version
// manifests publish for every artifact.
func SHA1File(filename string) (string, error) {
	return hashFile(filename, sha1.New())
}

func hashFile(filename string, h hash.Hash) (string, error) {
	f, err := os.Open(filename)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// VerifySHA1 checks a file against an expected hex digest. An empty
// expectation always passes.
func VerifySHA1(filename, expected string) error {
	if expected == "" {
		return nil
	}
	actual, err := SHA1File(filename)
	if err != nil {
		return fmt.Errorf("failed to calculate SHA-1: %w", err)
	}
	if !strings.EqualFold(actual, expected) {
		return fmt.Errorf("SHA-1 mismatch: expected %s, got %s", expected, actual)
	}
	slog.Debug("SHA-1 verified", "file", filename, "hash", actual)
	return nil
}

// VerifyBLAKE3 checks a file against a digest recorded in an install receipt.
func VerifyBLAKE3(filename, expected string) error {
	actual, err := BLAKE3File(filename)
	if err != nil {
		return fmt.Errorf("failed to calculate BLAKE3: %w", err)
	}
	if actual != expected {
		return fmt.Errorf("BLAKE3 mismatch: expected %s, got %s", expected, actual)
	}
	slog.Info("BLAKE3 verified", "file", filename, "hash", actual)
	return nil
}
