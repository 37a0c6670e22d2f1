package textutil

import (
	"sort"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// naturalCollator orders embedded digit runs numerically, so "2.mp3" sorts
// before "10.mp3".
var naturalCollator = collate.New(language.Und, collate.Numeric)

// NaturalSort sorts names in place using natural (numeric-aware) ordering.
func NaturalSort(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		return naturalCollator.CompareString(names[i], names[j]) < 0
	})
}

// NaturalLess reports whether a orders before b under natural ordering.
func NaturalLess(a, b string) bool {
	return naturalCollator.CompareString(a, b) < 0
}

// SanitizeVolumeLabel reduces a SKU to a FAT volume label: uppercased,
// non-alphanumeric characters (other than underscore) removed, at most 11
// characters.
func SanitizeVolumeLabel(sku string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(strings.TrimSpace(sku)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		}
		if b.Len() == 11 {
			break
		}
	}
	return b.String()
}

// Slug keeps only letters and digits from value, preserving case.
func Slug(value string) string {
	var b strings.Builder
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// TailSlug returns the slug of the last n characters of value.
func TailSlug(value string, n int) string {
	value = strings.TrimSpace(value)
	if len(value) > n {
		value = value[len(value)-n:]
	}
	return Slug(value)
}
