package ingest

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// maxSlugLen bounds listing slugs for URL friendliness.
const maxSlugLen = 90

// deaccent strips combining marks after NFD decomposition, so "Calle Málaga"
// slugs the same as "Calle Malaga".
var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify derives a deterministic URL-safe slug from the given parts:
// lower-cased, diacritics stripped, runs of non-alphanumerics collapsed to
// single hyphens, truncated to 90 characters.
func Slugify(parts ...string) string {
	joined := strings.Join(parts, " ")
	if s, _, err := transform.String(deaccent, joined); err == nil {
		joined = s
	}
	joined = strings.ToLower(joined)

	var b strings.Builder
	b.Grow(len(joined))
	lastHyphen := true // suppress a leading hyphen
	for _, r := range joined {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastHyphen = false
			continue
		}
		if !lastHyphen {
			b.WriteByte('-')
			lastHyphen = true
		}
	}

	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	return slug
}
