package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CopyFile streams src to dst using io.Copy with default permissions (0o644).
func CopyFile(src, dst string) error {
	return CopyFileMode(src, dst, 0o644)
}

// CopyFileMode streams src to dst, setting the given file mode on dst.
func CopyFileMode(src, dst string, mode os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}

// CopyFileVerified streams src to dst with SHA256 + size integrity verification.
// Removes dst on mismatch.
func CopyFileVerified(src, dst string) error {
	srcInfo, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("stat source: %w", err)
	}
	srcSize := srcInfo.Size()

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer func() {
		_ = out.Close()
	}()

	srcHasher := sha256.New()
	dstHasher := sha256.New()
	tee := io.TeeReader(in, srcHasher)
	multi := io.MultiWriter(out, dstHasher)

	written, err := io.Copy(multi, tee)
	if err != nil {
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}

	if written != srcSize {
		_ = os.Remove(dst)
		return fmt.Errorf("copy size mismatch: source %d bytes, copied %d bytes", srcSize, written)
	}

	if !bytes.Equal(srcHasher.Sum(nil), dstHasher.Sum(nil)) {
		_ = os.Remove(dst)
		return fmt.Errorf("copy hash mismatch: file corrupted during copy")
	}

	return nil
}

// ResetDir removes dir and recreates it empty. The directory must be a
// descendant of allowedBase; refusing anything else guards the wipe against a
// misresolved path.
func ResetDir(dir, allowedBase string) error {
	resolvedDir, err := filepath.Abs(filepath.Clean(dir))
	if err != nil {
		return fmt.Errorf("resolve %q: %w", dir, err)
	}
	resolvedBase, err := filepath.Abs(filepath.Clean(allowedBase))
	if err != nil {
		return fmt.Errorf("resolve base %q: %w", allowedBase, err)
	}

	if !IsWithin(resolvedBase, resolvedDir) {
		return fmt.Errorf("refusing to wipe %q: outside allowed base %q", resolvedDir, resolvedBase)
	}
	for _, critical := range []string{"/", "/home", "/root", "/var", "/tmp", "/usr"} {
		if resolvedDir == critical {
			return fmt.Errorf("refusing to wipe critical path %q", resolvedDir)
		}
	}

	if err := os.RemoveAll(resolvedDir); err != nil {
		return fmt.Errorf("remove %q: %w", resolvedDir, err)
	}
	return os.MkdirAll(resolvedDir, 0o755)
}

// IsWithin reports whether path is base itself or a descendant of base.
// Both arguments must already be absolute and cleaned.
func IsWithin(base, path string) bool {
	if path == base {
		return true
	}
	rel, err := filepath.Rel(base, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// RemoveWithRetry deletes path, retrying transient failures with backoff.
// Useful for staged files that a virus scanner or indexer may briefly hold.
func RemoveWithRetry(path string, attempts int, delay time.Duration) error {
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		lastErr = os.Remove(path)
		if lastErr == nil || errors.Is(lastErr, os.ErrNotExist) {
			return nil
		}
		time.Sleep(delay)
	}
	return lastErr
}
