package fileutil

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// WriteFunc streams content into w and reports how many bytes it wrote.
type WriteFunc func(w io.Writer) (int64, error)

// WriteAtomic streams content into a temporary file next to path and renames
// it into place once write succeeds. On failure path is left untouched.
func WriteAtomic(path string, mode os.FileMode, write WriteFunc) (int64, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create directory %q: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, err
	}
	tmpName := tmp.Name()
	defer func() {
		if tmpName != "" {
			_ = os.Remove(tmpName)
		}
	}()

	written, err := write(tmp)
	if err != nil {
		_ = tmp.Close()
		return written, err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return written, err
	}
	if err := tmp.Close(); err != nil {
		return written, err
	}
	if err := os.Chmod(tmpName, mode); err != nil {
		return written, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return written, err
	}
	tmpName = ""
	return written, nil
}

// WriteBytesAtomic writes data to path through WriteAtomic.
func WriteBytesAtomic(path string, data []byte, mode os.FileMode) error {
	_, err := WriteAtomic(path, mode, func(w io.Writer) (int64, error) {
		n, err := w.Write(data)
		return int64(n), err
	})
	return err
}

// VerifyFile checks that path holds exactly want, by size and SHA256.
func VerifyFile(path string, want []byte) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	if info.Size() != int64(len(want)) {
		return fmt.Errorf("size mismatch: expected %d bytes, found %d bytes", len(want), info.Size())
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	hasher := sha256.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return err
	}
	wantSum := sha256.Sum256(want)
	if !bytes.Equal(hasher.Sum(nil), wantSum[:]) {
		return fmt.Errorf("hash mismatch: file content differs")
	}
	return nil
}
