package ingestion

import (
	"slices"
	"strings"
	"time"

	apperrors "github.com/killallgit/testimony-api/pkg/errors"
)

// ParseOrigin validates origin against the allowed set. Empty input
// yields the default. Matching is case-insensitive on both sides and the
// result is always lower case, so stored origins compare equal however
// the config spells them.
func ParseOrigin(origin string, allowed []string, defaultOrigin string) (string, error) {
	origin = strings.ToLower(strings.TrimSpace(origin))
	if origin == "" {
		return strings.ToLower(strings.TrimSpace(defaultOrigin)), nil
	}
	if slices.ContainsFunc(allowed, func(a string) bool {
		return strings.EqualFold(strings.TrimSpace(a), origin)
	}) {
		return origin, nil
	}
	return "", apperrors.InvalidOrigin(origin, allowed)
}

// ParseTags splits a comma separated list, trimming entries and dropping
// empty ones. Order is preserved.
func ParseTags(raw string) []string {
	tags := []string{}
	for _, part := range strings.Split(raw, ",") {
		if t := strings.TrimSpace(part); t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}

var recordedAtLayouts = []string{
	time.DateOnly,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"02.01.2006",
	"02/01/2006",
}

// ParseRecordedAt parses a recording date. Missing or unparseable input
// falls back to the UTC date of now.
func ParseRecordedAt(raw string, now time.Time) time.Time {
	raw = strings.TrimSpace(raw)
	for _, layout := range recordedAtLayouts {
		if raw == "" {
			break
		}
		if t, err := time.Parse(layout, raw); err == nil {
			return dateOf(t)
		}
	}
	return dateOf(now.UTC())
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
