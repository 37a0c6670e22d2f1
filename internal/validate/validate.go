// Package validate checks a finished master directory against the canonical
// structure contract: layout, identity files, track count, and content
// checksum.
package validate

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"bindery/internal/checksum"
	"bindery/internal/fileutil"
	"bindery/internal/logging"
)

// Options tunes one validation run.
type Options struct {
	// ExpectedISBN, when non-empty, must match bookInfo/id.txt.
	ExpectedISBN string

	// ExpectedCount, when positive, must match the observed track count.
	// This is a caller-supplied expectation for checking pre-existing
	// drives; it is never what count.txt was written from.
	ExpectedCount int

	// FixSystemFiles deletes stray junk files instead of reporting them.
	FixSystemFiles bool

	// Extensions recognized as audio inside tracks/. Defaults to .mp3.
	ValidExtensions []string
}

// Result separates structural errors from advisory warnings. Only errors
// affect OK.
type Result struct {
	OK       bool
	Errors   []string
	Warnings []string
}

func (r *Result) errorf(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// exemptDotNames are dotfiles that belong in a master and are never junk.
var exemptDotNames = map[string]bool{
	".metadata_never_index": true,
}

// Validate runs every check against root and reports all findings at once
// rather than stopping at the first problem.
func Validate(root string, opts Options, logger *slog.Logger) Result {
	log := logging.NewComponentLogger(logger, "validate")
	result := Result{}

	extensions := opts.ValidExtensions
	if len(extensions) == 0 {
		extensions = []string{".mp3"}
	}

	rootInfo, err := os.Stat(root)
	if err != nil || !rootInfo.IsDir() {
		result.errorf("master root %s does not exist or is not a directory", root)
		return result
	}

	checkSentinel(root, opts.FixSystemFiles, &result)
	observedCount := checkTracks(root, extensions, &result)
	checkIdentity(root, opts.ExpectedISBN, &result)
	checkCount(root, observedCount, opts.ExpectedCount, &result)
	checkChecksum(root, &result)
	checkStraySystemFiles(root, opts.FixSystemFiles, log, &result)

	result.OK = len(result.Errors) == 0
	return result
}

func checkSentinel(root string, fix bool, result *Result) {
	sentinel := filepath.Join(root, ".metadata_never_index")
	if _, err := os.Stat(sentinel); err == nil {
		return
	}
	if fix {
		if err := os.WriteFile(sentinel, nil, 0o644); err != nil {
			result.warnf("no-index sentinel missing and could not be created: %v", err)
			return
		}
		result.warnf("no-index sentinel was missing, created")
		return
	}
	result.warnf("no-index sentinel .metadata_never_index is missing")
}

// checkTracks verifies the tracks directory and returns the number of
// recognized audio files, or -1 when the directory is unusable.
func checkTracks(root string, extensions []string, result *Result) int {
	tracksDir := filepath.Join(root, "tracks")
	info, err := os.Stat(tracksDir)
	if err != nil {
		result.errorf("tracks directory is missing")
		return -1
	}
	if !info.IsDir() {
		result.errorf("tracks exists but is not a directory")
		return -1
	}

	entries, err := os.ReadDir(tracksDir)
	if err != nil {
		result.errorf("tracks directory unreadable: %v", err)
		return -1
	}
	count := 0
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		for _, allowed := range extensions {
			if ext == allowed {
				count++
				break
			}
		}
	}
	if count == 0 {
		result.errorf("tracks directory contains no recognized audio files")
	}
	return count
}

func checkIdentity(root, expectedISBN string, result *Result) {
	idPath := filepath.Join(root, "bookInfo", "id.txt")
	content, err := os.ReadFile(idPath)
	if err != nil {
		result.errorf("bookInfo/id.txt is missing or unreadable")
		return
	}
	isbn := strings.TrimSpace(string(content))
	if isbn == "" {
		result.errorf("bookInfo/id.txt is empty")
		return
	}
	if expectedISBN != "" && isbn != expectedISBN {
		result.errorf("isbn mismatch: id.txt has %q, expected %q", isbn, expectedISBN)
	}
}

func checkCount(root string, observed, expected int, result *Result) {
	countPath := filepath.Join(root, "bookInfo", "count.txt")
	content, err := os.ReadFile(countPath)
	if err != nil {
		result.errorf("bookInfo/count.txt is missing or unreadable")
		return
	}
	stored, err := strconv.Atoi(strings.TrimSpace(string(content)))
	if err != nil {
		result.errorf("bookInfo/count.txt is not a decimal integer: %q", strings.TrimSpace(string(content)))
		return
	}
	if observed >= 0 && stored != observed {
		result.errorf("count mismatch: count.txt says %d, tracks directory has %d", stored, observed)
	}
	if expected > 0 && stored != expected {
		result.errorf("count mismatch: count.txt says %d, caller expected %d", stored, expected)
	}
}

func checkChecksum(root string, result *Result) {
	sumPath := filepath.Join(root, "bookInfo", "checksum.txt")
	content, err := os.ReadFile(sumPath)
	if err != nil {
		result.errorf("bookInfo/checksum.txt is missing or unreadable")
		return
	}
	stored := strings.TrimSpace(string(content))

	recomputed, err := checksum.Tree(root)
	if err != nil {
		result.errorf("checksum recomputation failed: %v", err)
		return
	}
	if stored != recomputed {
		result.errorf("checksum mismatch: stored %s, recomputed %s", stored, recomputed)
	}
}

// checkStraySystemFiles reports junk files and dot-entries not on the
// exemption list, deleting them when fixing is requested. Deletion is scoped
// strictly to descendants of root.
func checkStraySystemFiles(root string, fix bool, log *slog.Logger, result *Result) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		result.warnf("could not resolve root for system-file scan: %v", err)
		return
	}

	var stray []string
	walkErr := filepath.WalkDir(absRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == absRoot {
			return nil
		}
		name := d.Name()
		isDot := strings.HasPrefix(name, ".")
		if (isDot && !exemptDotNames[name]) || checksum.IsJunk(name) {
			stray = append(stray, path)
			if d.IsDir() {
				return filepath.SkipDir
			}
		}
		return nil
	})
	if walkErr != nil {
		result.warnf("system-file scan incomplete: %v", walkErr)
	}

	for _, path := range stray {
		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			rel = path
		}
		if !fix {
			result.warnf("stray system file: %s", rel)
			continue
		}
		if !fileutil.IsWithin(absRoot, path) {
			result.warnf("refusing to delete %s: outside master root", path)
			continue
		}
		if err := os.RemoveAll(path); err != nil {
			result.warnf("could not delete stray system file %s: %v", rel, err)
			continue
		}
		log.Info("deleted stray system file", logging.String("path", rel))
		result.warnf("deleted stray system file: %s", rel)
	}
}
