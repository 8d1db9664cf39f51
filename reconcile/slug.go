package reconcile

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugBase = 200

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases name, strips diacritics, replaces every run of
// non-alphanumeric characters with a dash and caps the result at 200 bytes
// without leaving a trailing dash.
func Slugify(name string) string {
	s := removeDiacritics(strings.ToLower(name))
	s = nonAlphanumeric.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if len(s) > maxSlugBase {
		s = strings.TrimRight(s[:maxSlugBase], "-")
	}
	return s
}

// ProductSlug returns the store slug of a product: its slugified name
// followed by its slugified reference.
func ProductSlug(name, reference string) string {
	parts := make([]string, 0, 2)
	for _, part := range []string{Slugify(name), Slugify(reference)} {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, "-")
}

func removeDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}
