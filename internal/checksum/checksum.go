// Package checksum computes the deterministic content hash over a master
// directory tree.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"bindery/internal/textutil"
)

// ChecksumFileName is the integrity file, excluded from its own hash.
const ChecksumFileName = "checksum.txt"

// junkNames are desktop-OS droppings that must never influence the hash and
// must never be copied onto the drive image.
var junkNames = map[string]bool{
	".DS_Store":                 true,
	"Thumbs.db":                 true,
	".Spotlight-V100":           true,
	".Trashes":                  true,
	".fseventsd":                true,
	".TemporaryItems":           true,
	"System Volume Information": true,
}

// IsJunk reports whether a base name is a desktop-OS artifact to ignore.
func IsJunk(name string) bool {
	if junkNames[name] {
		return true
	}
	if strings.HasPrefix(name, "._") {
		return true
	}
	return strings.HasSuffix(name, ".tmp")
}

// Tree hashes every file under root in natural-sort order of slash-separated
// relative paths, mixing each path into the digest before its content. The
// checksum file itself and junk files are excluded, so the result is stable
// across recomputation and across host filesystems.
func Tree(root string) (string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != root && IsJunk(name) {
				return filepath.SkipDir
			}
			return nil
		}
		if IsJunk(name) || name == ChecksumFileName {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		paths = append(paths, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("walk tree: %w", err)
	}

	textutil.NaturalSort(paths)

	digest := sha256.New()
	for _, rel := range paths {
		digest.Write([]byte(rel))
		if err := hashFile(digest, filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(digest.Sum(nil)), nil
}

func hashFile(digest io.Writer, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open for hashing: %w", err)
	}
	defer file.Close()
	if _, err := io.Copy(digest, file); err != nil {
		return fmt.Errorf("hash %s: %w", path, err)
	}
	return nil
}
