package fileutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "dst.txt")

	content := []byte("hello world")
	if err := os.WriteFile(src, content, 0o644); err != nil {
		t.Fatal(err)
	}

	if err := CopyFile(src, dst); err != nil {
		t.Fatal(err)
	}

	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != string(content) {
		t.Fatalf("content mismatch: got %q, want %q", got, content)
	}
}

func TestCopyFileVerified(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	dst := filepath.Join(dir, "dst.bin")

	if err := os.WriteFile(src, []byte("payload"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := CopyFileVerified(src, dst); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "payload" {
		t.Fatalf("content mismatch: got %q", got)
	}
}

func TestResetDirScoped(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "processed")
	if err := os.MkdirAll(target, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(target, "leftover.mp3"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := ResetDir(target, base); err != nil {
		t.Fatal(err)
	}

	entries, err := os.ReadDir(target)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty directory, got %d entries", len(entries))
	}
}

func TestResetDirRefusesOutsideBase(t *testing.T) {
	base := t.TempDir()
	outside := t.TempDir()

	if err := ResetDir(outside, base); err == nil {
		t.Fatal("expected refusal for directory outside base")
	}
}

func TestIsWithin(t *testing.T) {
	cases := []struct {
		base, path string
		want       bool
	}{
		{"/a/b", "/a/b", true},
		{"/a/b", "/a/b/c", true},
		{"/a/b", "/a/bc", false},
		{"/a/b", "/a", false},
		{"/a/b", "/other", false},
	}
	for _, tc := range cases {
		if got := IsWithin(tc.base, tc.path); got != tc.want {
			t.Fatalf("IsWithin(%q, %q) = %v, want %v", tc.base, tc.path, got, tc.want)
		}
	}
}

func TestRemoveWithRetry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "staged.img")
	if err := os.WriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := RemoveWithRetry(path, 3, time.Millisecond); err != nil {
		t.Fatal(err)
	}
	// Missing file is not an error.
	if err := RemoveWithRetry(path, 3, time.Millisecond); err != nil {
		t.Fatalf("expected nil for missing file, got %v", err)
	}
}
