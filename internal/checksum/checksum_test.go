package checksum

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestTreeDeterministic(t *testing.T) {
	files := map[string]string{
		"001_A.mp3":             "first",
		"002_B.mp3":             "second",
		"bookInfo/id.txt":       "sku-1",
		"bookInfo/count.txt":    "2",
		".metadata_never_index": "",
	}

	first := t.TempDir()
	writeTree(t, first, files)
	second := t.TempDir()
	writeTree(t, second, files)

	a, err := Tree(first)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Tree(second)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatalf("identical trees hashed differently: %s vs %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestTreeSensitiveToContentAndPath(t *testing.T) {
	base := t.TempDir()
	writeTree(t, base, map[string]string{"a.mp3": "content"})
	baseSum, err := Tree(base)
	if err != nil {
		t.Fatal(err)
	}

	changed := t.TempDir()
	writeTree(t, changed, map[string]string{"a.mp3": "different"})
	changedSum, err := Tree(changed)
	if err != nil {
		t.Fatal(err)
	}
	if changedSum == baseSum {
		t.Fatal("content change did not change hash")
	}

	renamed := t.TempDir()
	writeTree(t, renamed, map[string]string{"b.mp3": "content"})
	renamedSum, err := Tree(renamed)
	if err != nil {
		t.Fatal(err)
	}
	if renamedSum == baseSum {
		t.Fatal("path change did not change hash")
	}
}

func TestTreeIgnoresChecksumFileAndJunk(t *testing.T) {
	clean := t.TempDir()
	writeTree(t, clean, map[string]string{"a.mp3": "content"})
	cleanSum, err := Tree(clean)
	if err != nil {
		t.Fatal(err)
	}

	dirty := t.TempDir()
	writeTree(t, dirty, map[string]string{
		"a.mp3":                 "content",
		"bookInfo/checksum.txt": "stale",
		".DS_Store":             "finder",
		"._a.mp3":               "resource fork",
		"upload.tmp":            "partial",
		".Trashes/leftover":     "junk dir content",
		"Thumbs.db":             "thumbnails",
	})
	dirtySum, err := Tree(dirty)
	if err != nil {
		t.Fatal(err)
	}
	if dirtySum != cleanSum {
		t.Fatalf("junk files influenced hash: %s vs %s", dirtySum, cleanSum)
	}
}

func TestTreeNaturalOrderIndependentOfCreation(t *testing.T) {
	// Create files in reverse order; the hash must match a tree created in
	// forward order because paths are sorted before hashing.
	forward := t.TempDir()
	for _, name := range []string{"track1.mp3", "track2.mp3", "track10.mp3"} {
		if err := os.WriteFile(filepath.Join(forward, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	reverse := t.TempDir()
	for _, name := range []string{"track10.mp3", "track2.mp3", "track1.mp3"} {
		if err := os.WriteFile(filepath.Join(reverse, name), []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	a, err := Tree(forward)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Tree(reverse)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("creation order influenced hash")
	}
}

func TestIsJunk(t *testing.T) {
	junk := []string{".DS_Store", "Thumbs.db", "._cover.jpg", "part.tmp", ".Spotlight-V100", "System Volume Information"}
	for _, name := range junk {
		if !IsJunk(name) {
			t.Fatalf("expected %q to be junk", name)
		}
	}
	keep := []string{"001_A.mp3", "id.txt", ".metadata_never_index", "tmp.mp3"}
	for _, name := range keep {
		if IsJunk(name) {
			t.Fatalf("expected %q to be kept", name)
		}
	}
}
