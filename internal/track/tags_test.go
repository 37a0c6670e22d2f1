package track

import (
	"os"
	"path/filepath"
	"testing"
)

func TestTagRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.mp3")
	if err := os.WriteFile(path, []byte("not really mpeg frames"), 0o644); err != nil {
		t.Fatal(err)
	}

	in := Tags{Title: "The Long Winter", Author: "L. Wilder", ISBN: "9780064400077"}
	if err := WriteTags(path, in); err != nil {
		t.Fatalf("WriteTags: %v", err)
	}

	out, err := ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags: %v", err)
	}
	if out != in {
		t.Fatalf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestISBNObfuscation(t *testing.T) {
	obfuscated := ObfuscateISBN("9780064400077")
	if obfuscated == "9780064400077" {
		t.Fatal("obfuscated value must differ from plaintext")
	}
	if decodeISBN(obfuscated) != "9780064400077" {
		t.Fatalf("decode mismatch: %q", decodeISBN(obfuscated))
	}
}

func TestDecodeISBNAcceptsLegacyPlaintext(t *testing.T) {
	// Not valid base64, so the raw value passes through.
	if got := decodeISBN("978-006-44!"); got != "978-006-44!" {
		t.Fatalf("legacy plaintext mangled: %q", got)
	}
}

func TestReadTagsMissingTag(t *testing.T) {
	path := filepath.Join(t.TempDir(), "untagged.mp3")
	if err := os.WriteFile(path, []byte("frames only"), 0o644); err != nil {
		t.Fatal(err)
	}
	tags, err := ReadTags(path)
	if err != nil {
		t.Fatalf("ReadTags on untagged file: %v", err)
	}
	if tags != (Tags{}) {
		t.Fatalf("expected zero tags, got %+v", tags)
	}
}
