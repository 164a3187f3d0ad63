package service

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const fallbackSlug = "article"

// Slugify lowercases title, strips diacritics and joins alphanumeric runs with dashes.
func Slugify(title string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	pendingDash := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if pendingDash && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingDash = false
			b.WriteRune(r)
		default:
			pendingDash = true
		}
	}
	if b.Len() == 0 {
		return fallbackSlug
	}
	return b.String()
}

// slugTaken reports whether slug is used by another article of the company.
type slugTaken func(ctx context.Context, slug string) (bool, error)

// resolveSlug returns base when free, otherwise base-N for the smallest free
// N in [1, attempts]. ok is false when every candidate is taken.
func resolveSlug(ctx context.Context, base string, attempts int, taken slugTaken) (slug string, ok bool, err error) {
	used, err := taken(ctx, base)
	if err != nil {
		return "", false, err
	}
	if !used {
		return base, true, nil
	}
	for i := 1; i <= attempts; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		used, err := taken(ctx, candidate)
		if err != nil {
			return "", false, err
		}
		if !used {
			return candidate, true, nil
		}
	}
	return "", false, nil
}
