package chunker

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// SentenceSplitter breaks text into sentences
type SentenceSplitter interface {
	Split(text string) []string
}

// spanishAbbreviations end with a period without ending the sentence
var spanishAbbreviations = map[string]bool{
	"sr": true, "sra": true, "srta": true, "dr": true, "dra": true,
	"ud": true, "uds": true, "vd": true, "vds": true, "lic": true,
	"ing": true, "prof": true, "pág": true, "pag": true, "cap": true,
	"vers": true, "etc": true, "aprox": true, "ej": true, "núm": true,
	"mr": true, "mrs": true, "hno": true, "hna": true,
	"pr": true, "past": true,
}

// PunctuationSplitter splits on ".", "!", "?" and "…" followed by
// whitespace, keeping common Spanish abbreviations and initials intact.
type PunctuationSplitter struct {
	Abbreviations map[string]bool
}

// NewPunctuationSplitter creates a splitter with the Spanish abbreviation list
func NewPunctuationSplitter() *PunctuationSplitter {
	return &PunctuationSplitter{Abbreviations: spanishAbbreviations}
}

func (s *PunctuationSplitter) Split(text string) []string {
	var sentences []string
	start := 0

	for i, r := range text {
		if i < start || !isTerminator(r) {
			continue
		}
		end := i + utf8.RuneLen(r)
		// absorb runs like "?!" or "..." and closing quotes
		for end < len(text) {
			next, size := utf8.DecodeRuneInString(text[end:])
			if !isTerminator(next) && !isCloser(next) {
				break
			}
			end += size
		}
		if end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			if !unicode.IsSpace(next) {
				continue
			}
		}
		if r == '.' && s.isAbbreviation(text[start:i]) {
			continue
		}

		if sentence := strings.TrimSpace(text[start:end]); sentence != "" {
			sentences = append(sentences, sentence)
		}
		start = end
	}

	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func (s *PunctuationSplitter) isAbbreviation(before string) bool {
	fields := strings.Fields(before)
	if len(fields) == 0 {
		return false
	}
	word := strings.TrimLeft(fields[len(fields)-1], "¿¡\"'(«")
	if utf8.RuneCountInString(word) == 1 {
		r, _ := utf8.DecodeRuneInString(word)
		return unicode.IsUpper(r)
	}
	return s.Abbreviations[strings.ToLower(word)]
}

func isTerminator(r rune) bool {
	return r == '.' || r == '!' || r == '?' || r == '…'
}

func isCloser(r rune) bool {
	return r == '"' || r == '\'' || r == ')' || r == '»' || r == '”'
}
