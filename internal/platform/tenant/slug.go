package tenant

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

const (
	slugMinLen = 2
	slugMaxLen = 50
)

var slugPattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]*[a-z0-9])?$`)

// ValidSlug reports whether s satisfies the tenant identifier grammar:
// lowercase alphanumerics and internal hyphens, length 2-50, no leading or
// trailing hyphen.
func ValidSlug(s string) bool {
	if len(s) < slugMinLen || len(s) > slugMaxLen {
		return false
	}
	return slugPattern.MatchString(s)
}

// GenerateSlug derives a slug from a display name: lowercased, runs of
// non-alphanumerics collapsed into single hyphens, trimmed to the length
// limit. The result may still fail ValidSlug for degenerate names (all
// punctuation, single character), so callers must validate.
func GenerateSlug(name string) string {
	lower := strings.ToLower(name)
	var b strings.Builder
	lastHyphen := true // suppress leading hyphen
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				b.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > slugMaxLen {
		slug = strings.Trim(slug[:slugMaxLen], "-")
	}
	return slug
}

// SlugExistsFunc reports whether a slug is already taken.
type SlugExistsFunc func(ctx context.Context, slug string) (bool, error)

// UniqueSlug disambiguates base against existing slugs by appending a
// numeric suffix: "demo-clinic", "demo-clinic-1", "demo-clinic-2", ...
func UniqueSlug(ctx context.Context, base string, exists SlugExistsFunc) (string, error) {
	if !ValidSlug(base) {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, base)
	}

	taken, err := exists(ctx, base)
	if err != nil {
		return "", fmt.Errorf("check slug %s: %w", base, err)
	}
	if !taken {
		return base, nil
	}

	for i := 1; i <= 1000; i++ {
		suffix := fmt.Sprintf("-%d", i)
		candidate := base
		if len(candidate)+len(suffix) > slugMaxLen {
			candidate = strings.Trim(candidate[:slugMaxLen-len(suffix)], "-")
		}
		candidate += suffix

		taken, err := exists(ctx, candidate)
		if err != nil {
			return "", fmt.Errorf("check slug %s: %w", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("no free slug variant for %q", base)
}
