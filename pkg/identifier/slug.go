package identifier

import (
	"fmt"
	"strconv"
	"strings"
)

// Slugify converts raw text into a URL-safe slug. Characters outside
// [A-Za-z0-9_.~] are dropped, with each run of dropped characters collapsed
// into a single hyphen. The result is lower-cased and stripped of leading
// and trailing hyphens. An input with no safe characters produces the empty
// slug, never an error; callers that need uniqueness disambiguate with a
// numeric suffix.
func Slugify(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))

	pendingHyphen := false
	for _, r := range raw {
		if isSlugRune(r) {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
		} else {
			pendingHyphen = true
		}
	}

	return strings.Trim(strings.ToLower(b.String()), "-")
}

func isSlugRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= 'A' && r <= 'Z':
		return true
	case r >= '0' && r <= '9':
		return true
	case r == '_' || r == '.' || r == '~':
		return true
	}
	return false
}

// UniqueSlug generates a slug for raw and resolves collisions by probing
// candidate-1, candidate-2, ... in increasing order until exists reports the
// candidate free. The exists predicate must exclude the entity being updated
// so a record keeps its slug across updates that don't change its title.
func UniqueSlug(raw string, exists func(slug string) bool) string {
	base := Slugify(raw)

	candidate := base
	for i := 1; exists(candidate); i++ {
		candidate = fmt.Sprintf("%s-%d", base, i)
	}
	return candidate
}

// NextSlug generates a slug for raw given the set of sibling slugs that share
// the same base. Unlike UniqueSlug it doesn't re-probe from -1 on every call:
// it finds the maximum numeric suffix already in use among the siblings and
// increments it. A sibling whose suffix is non-numeric counts as suffix 0, so
// the next candidate falls back to base-1. With no siblings the bare base is
// returned.
func NextSlug(raw string, siblings []string) string {
	base := Slugify(raw)

	max := -1
	for _, s := range siblings {
		if s == base {
			if max < 0 {
				max = 0
			}
			continue
		}
		suffix, ok := strings.CutPrefix(s, base+"-")
		if !ok {
			continue
		}
		n, err := strconv.Atoi(suffix)
		if err != nil {
			// Non-numeric suffix: treat as occupying the base slot only.
			if max < 0 {
				max = 0
			}
			continue
		}
		if n > max {
			max = n
		}
	}

	if max < 0 {
		return base
	}
	return fmt.Sprintf("%s-%d", base, max+1)
}
