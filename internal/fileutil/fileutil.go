// Package fileutil copies recording artifacts into the spool directory.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// CopyFileVerified copies src to dst and verifies the written file by
// re-reading it from disk and comparing size and SHA256 against the source.
// dst is removed on any mismatch so a corrupt spool copy never survives.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}

	srcSum, written, err := copyHashed(src, dst)
	if err != nil {
		_ = os.Remove(dst)
		return err
	}
	if written != srcInfo.Size() {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcInfo.Size(), written)
	}

	dstSum, err := hashFile(dst)
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("verify copy: %w", err)
	}
	if !bytes.Equal(srcSum, dstSum) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: %s corrupted during copy", dst)
	}
	return nil
}

func copyHashed(src, dst string) (sum []byte, written int64, err error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return nil, 0, err
	}

	hasher := sha256.New()
	written, err = io.Copy(io.MultiWriter(out, hasher), in)
	if err != nil {
		_ = out.Close()
		return nil, written, err
	}
	if err := out.Close(); err != nil {
		return nil, written, err
	}
	return hasher.Sum(nil), written, nil
}

func hashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return nil, err
	}
	return hasher.Sum(nil), nil
}
