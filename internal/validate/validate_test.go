package validate

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"bindery/internal/checksum"
)

// buildMaster writes a canonical master structure with a correct checksum.
func buildMaster(t *testing.T, trackNames ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, dir := range []string{"tracks", "bookInfo"} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	for _, name := range trackNames {
		if err := os.WriteFile(filepath.Join(root, "tracks", name), []byte("audio "+name), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	writeInfo(t, root, "id.txt", "9780000000000")
	writeInfo(t, root, "count.txt", "3")
	if err := os.WriteFile(filepath.Join(root, ".metadata_never_index"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	sum, err := checksum.Tree(root)
	if err != nil {
		t.Fatal(err)
	}
	writeInfo(t, root, "checksum.txt", sum)
	return root
}

func writeInfo(t *testing.T, root, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(root, "bookInfo", name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func defaultTracks() []string {
	return []string{"001_00000ABCD.mp3", "002_00000ABCD.mp3", "003_00000ABCD.mp3"}
}

func TestValidateCleanMaster(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)

	result := Validate(root, Options{ExpectedISBN: "9780000000000", ExpectedCount: 3}, nil)
	if !result.OK {
		t.Fatalf("expected OK, got errors: %v", result.Errors)
	}
	if len(result.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", result.Warnings)
	}
}

func TestValidateMissingRoot(t *testing.T) {
	result := Validate(filepath.Join(t.TempDir(), "nope"), Options{}, nil)
	if result.OK || len(result.Errors) != 1 {
		t.Fatalf("expected single root error, got %+v", result)
	}
}

func TestValidateReportsAllProblemsAtOnce(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)

	// Break several things at once: count, isbn, checksum.
	writeInfo(t, root, "count.txt", "7")
	writeInfo(t, root, "id.txt", "")
	if err := os.WriteFile(filepath.Join(root, "tracks", "001_00000ABCD.mp3"), []byte("tampered"), 0o644); err != nil {
		t.Fatal(err)
	}

	result := Validate(root, Options{}, nil)
	if result.OK {
		t.Fatal("expected validation failure")
	}
	if len(result.Errors) < 3 {
		t.Fatalf("expected all problems reported together, got %v", result.Errors)
	}
	joined := strings.Join(result.Errors, "\n")
	for _, want := range []string{"count mismatch", "id.txt is empty", "checksum mismatch"} {
		if !strings.Contains(joined, want) {
			t.Fatalf("missing %q in errors: %v", want, result.Errors)
		}
	}
}

func TestValidateISBNMismatch(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)
	result := Validate(root, Options{ExpectedISBN: "9999999999999"}, nil)
	if result.OK {
		t.Fatal("expected isbn mismatch failure")
	}
	if !strings.Contains(strings.Join(result.Errors, "\n"), "isbn mismatch") {
		t.Fatalf("expected isbn mismatch error, got %v", result.Errors)
	}
}

func TestValidateCallerCountMismatch(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)
	result := Validate(root, Options{ExpectedCount: 5}, nil)
	if result.OK {
		t.Fatal("expected caller count mismatch failure")
	}
}

func TestValidateMissingSentinelIsWarningOnly(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)
	if err := os.Remove(filepath.Join(root, ".metadata_never_index")); err != nil {
		t.Fatal(err)
	}
	// The sentinel is part of the checksum; rewrite it after removal.
	sum, err := checksum.Tree(root)
	if err != nil {
		t.Fatal(err)
	}
	writeInfo(t, root, "checksum.txt", sum)

	result := Validate(root, Options{}, nil)
	if !result.OK {
		t.Fatalf("missing sentinel must not fail validation: %v", result.Errors)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected sentinel warning")
	}
}

func TestValidateFixCreatesSentinel(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)
	if err := os.Remove(filepath.Join(root, ".metadata_never_index")); err != nil {
		t.Fatal(err)
	}
	sum, err := checksum.Tree(root)
	if err != nil {
		t.Fatal(err)
	}
	writeInfo(t, root, "checksum.txt", sum)

	result := Validate(root, Options{FixSystemFiles: true}, nil)
	if _, err := os.Stat(filepath.Join(root, ".metadata_never_index")); err != nil {
		t.Fatalf("sentinel not recreated: %v", err)
	}
	if len(result.Warnings) == 0 {
		t.Fatal("expected creation warning")
	}
	// The checksum predates the recreated sentinel. An empty file at a new
	// path changes the digest, so this must now mismatch.
	if result.OK {
		t.Fatal("expected checksum mismatch after sentinel recreation")
	}
}

func TestValidateStraySystemFiles(t *testing.T) {
	root := buildMaster(t, defaultTracks()...)
	junk := []string{".DS_Store", "tracks/._001_00000ABCD.mp3", "Thumbs.db"}
	for _, rel := range junk {
		if err := os.WriteFile(filepath.Join(root, filepath.FromSlash(rel)), []byte("junk"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	report := Validate(root, Options{}, nil)
	if !report.OK {
		t.Fatalf("junk files must be warnings, got errors: %v", report.Errors)
	}
	if len(report.Warnings) != len(junk) {
		t.Fatalf("expected %d warnings, got %v", len(junk), report.Warnings)
	}

	fixed := Validate(root, Options{FixSystemFiles: true}, nil)
	if !fixed.OK {
		t.Fatalf("fix run failed: %v", fixed.Errors)
	}
	for _, rel := range junk {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel))); err == nil {
			t.Fatalf("junk file %s not deleted", rel)
		}
	}

	clean := Validate(root, Options{}, nil)
	if !clean.OK || len(clean.Warnings) != 0 {
		t.Fatalf("expected clean result after fix, got %+v", clean)
	}
}

func TestValidateEmptyTracksDirectory(t *testing.T) {
	root := buildMaster(t)
	writeInfo(t, root, "count.txt", "0")
	sum, err := checksum.Tree(root)
	if err != nil {
		t.Fatal(err)
	}
	writeInfo(t, root, "checksum.txt", sum)

	result := Validate(root, Options{}, nil)
	if result.OK {
		t.Fatal("expected failure for empty tracks directory")
	}
	if !strings.Contains(strings.Join(result.Errors, "\n"), "no recognized audio") {
		t.Fatalf("expected no-audio error, got %v", result.Errors)
	}
}
