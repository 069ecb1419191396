package summary

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const (
	MinTags = 3
	MaxTags = 7
)

var nonTagChars = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeTag lowercases, strips accents and joins words with "_":
// "Promesa Cumplida" and "#promesa_cumplída" both become "promesa_cumplida".
func NormalizeTag(tag string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, tag)
	if err != nil {
		out = tag
	}
	out = strings.ToLower(out)
	out = nonTagChars.ReplaceAllString(out, "_")
	return strings.Trim(out, "_")
}

// tagLine matches the trailing tag block in its current and older forms
var tagLine = regexp.MustCompile(`(?im)^\s*\**\s*etiquetas(?:\s+doctrinales)?\s*:?\**\s*:?\s*(.*)$`)

// SplitSummary separates the narrative from the trailing tag block
func SplitSummary(summary string) (body string, tags []string) {
	locs := tagLine.FindAllStringSubmatchIndex(summary, -1)
	if len(locs) == 0 {
		return strings.TrimSpace(summary), nil
	}

	last := locs[len(locs)-1]
	body = strings.TrimSpace(summary[:last[0]])
	// Tags may continue on the following lines
	rest := summary[last[2]:]

	seen := map[string]bool{}
	for _, raw := range strings.FieldsFunc(rest, func(r rune) bool {
		return r == ',' || r == '\n' || r == '#' || r == ';' || r == '·'
	}) {
		tag := NormalizeTag(raw)
		if tag == "" || seen[tag] {
			continue
		}
		seen[tag] = true
		tags = append(tags, tag)
		if len(tags) == MaxTags {
			break
		}
	}
	return body, tags
}

// ExtractTags returns the normalized doctrinal tags of a summary
func ExtractTags(summary string) []string {
	_, tags := SplitSummary(summary)
	return tags
}

const (
	legacySummaryMarker = "**Resumen:**"
	legacyTagsMarker    = "**Etiquetas doctrinales:**"
)

// StripLegacySections removes the "**Resumen:**" heading and the
// "**Etiquetas doctrinales:**" block that older prompts produced.
func StripLegacySections(summary string) string {
	out := summary
	if i := strings.Index(out, legacySummaryMarker); i >= 0 {
		out = out[i+len(legacySummaryMarker):]
	}
	if i := strings.Index(out, legacyTagsMarker); i >= 0 {
		out = out[:i]
	}
	return strings.TrimSpace(out)
}
