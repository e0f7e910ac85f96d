package fileutil

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "nested", "clip.mp4")

	written, err := WriteAtomic(dst, 0o644, func(w io.Writer) (int64, error) {
		return io.Copy(w, strings.NewReader("hello world"))
	})
	if err != nil {
		t.Fatal(err)
	}
	if written != 11 {
		t.Fatalf("written = %d, want 11", written)
	}
	if err := VerifyFile(dst, []byte("hello world")); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(filepath.Dir(dst))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected only the final file, found %d entries", len(entries))
	}
}

func TestWriteAtomicFailureKeepsExistingFile(t *testing.T) {
	dir := t.TempDir()
	dst := filepath.Join(dir, "frame.jpg")
	if err := os.WriteFile(dst, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	_, err := WriteAtomic(dst, 0o644, func(w io.Writer) (int64, error) {
		_, _ = w.Write([]byte("partial"))
		return 7, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if err := VerifyFile(dst, []byte("old")); err != nil {
		t.Fatalf("existing file changed: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary file left behind: %d entries", len(entries))
	}
}

func TestWriteBytesAtomicMode(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "preview.jpg")
	if err := WriteBytesAtomic(dst, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %o, want 600", info.Mode().Perm())
	}
}

func TestVerifyFileMismatch(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "a.bin")
	if err := os.WriteFile(dst, []byte("abcd"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := VerifyFile(dst, []byte("abc")); err == nil || !strings.Contains(err.Error(), "size mismatch") {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if err := VerifyFile(dst, []byte("abce")); err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
}
