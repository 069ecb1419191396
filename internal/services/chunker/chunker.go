// Package chunker splits transcripts into token-bounded, overlapping
// chunks for embedding.
package chunker

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/killallgit/testimony-api/pkg/config"
)

const (
	DefaultMaxTokens = 400
	DefaultOverlap   = 2
)

// Chunk is one slice of a transcript
type Chunk struct {
	Index      int    `json:"index"`
	Text       string `json:"text"`
	TokenCount int    `json:"token_count"`
}

// Chunker packs sentences greedily into chunks of at most maxTokens.
// Each chunk after the first starts with the last overlap sentences of
// the previous one. Without a splitter the units are words.
type Chunker struct {
	tokenizer Tokenizer
	splitter  SentenceSplitter
	maxTokens int
	overlap   int
}

// Option configures a Chunker
type Option func(*Chunker)

// WithTokenizer sets the token counter (default WordTokenizer)
func WithTokenizer(t Tokenizer) Option {
	return func(c *Chunker) { c.tokenizer = t }
}

// WithSplitter sets the sentence splitter. A nil splitter windows by words.
func WithSplitter(s SentenceSplitter) Option {
	return func(c *Chunker) { c.splitter = s }
}

// New creates a chunker; overlap must be smaller than maxTokens
func New(maxTokens, overlap int, opts ...Option) (*Chunker, error) {
	if maxTokens <= 0 {
		return nil, fmt.Errorf("max tokens must be positive, got %d", maxTokens)
	}
	if overlap < 0 || overlap >= maxTokens {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxTokens, overlap)
	}

	c := &Chunker{
		tokenizer: WordTokenizer{},
		splitter:  NewPunctuationSplitter(),
		maxTokens: maxTokens,
		overlap:   overlap,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.tokenizer == nil {
		return nil, errors.New("tokenizer is required")
	}
	return c, nil
}

// FromConfig builds a chunker from the chunking settings
func FromConfig(cfg config.ChunkingConfig) (*Chunker, error) {
	tok, err := NewTokenizer(cfg.Tokenizer)
	if err != nil {
		return nil, err
	}
	maxTokens := cfg.MaxTokens
	if maxTokens == 0 {
		maxTokens = DefaultMaxTokens
	}
	return New(maxTokens, cfg.Overlap, WithTokenizer(tok))
}

// MaxTokens returns the per-chunk token budget
func (c *Chunker) MaxTokens() int { return c.maxTokens }

// Tokenizer returns the token counter in use
func (c *Chunker) Tokenizer() Tokenizer { return c.tokenizer }

// Chunks yields the chunks of text in order, indexed from 0. Text within
// the budget is a single chunk; blank text yields nothing.
func (c *Chunker) Chunks(text string) iter.Seq[Chunk] {
	return func(yield func(Chunk) bool) {
		text = strings.TrimSpace(text)
		if text == "" {
			return
		}

		if n := c.tokenizer.Count(text); n <= c.maxTokens {
			yield(Chunk{Index: 0, Text: text, TokenCount: n})
			return
		}

		var buf []string
		index := 0
		emit := func() bool {
			joined := strings.Join(buf, " ")
			ok := yield(Chunk{Index: index, Text: joined, TokenCount: c.tokenizer.Count(joined)})
			index++
			return ok
		}

		for _, unit := range c.units(text) {
			if len(buf) > 0 && c.tokenizer.Count(strings.Join(append(buf, unit), " ")) > c.maxTokens {
				if !emit() {
					return
				}
				buf = c.carry(buf, unit)
			}
			buf = append(buf, unit)
		}
		if len(buf) > 0 {
			emit()
		}
	}
}

// carry returns the trailing overlap units of buf, trimmed from the front
// until they fit in one chunk together with next.
func (c *Chunker) carry(buf []string, next string) []string {
	if c.overlap == 0 {
		return nil
	}
	start := max(len(buf)-c.overlap, 0)
	carried := append([]string(nil), buf[start:]...)
	for len(carried) > 0 && c.tokenizer.Count(strings.Join(append(carried, next), " ")) > c.maxTokens {
		carried = carried[1:]
	}
	return carried
}

// units splits text into sentences, breaking any sentence that alone
// exceeds the budget into words.
func (c *Chunker) units(text string) []string {
	if c.splitter == nil {
		return c.words(text)
	}

	var units []string
	for _, sentence := range c.splitter.Split(text) {
		if c.tokenizer.Count(sentence) > c.maxTokens {
			units = append(units, c.words(sentence)...)
			continue
		}
		units = append(units, sentence)
	}
	return units
}

// words splits text on whitespace; a single word over budget is cut by runes
func (c *Chunker) words(text string) []string {
	var out []string
	for _, w := range strings.Fields(text) {
		if c.tokenizer.Count(w) <= c.maxTokens {
			out = append(out, w)
			continue
		}
		out = append(out, c.cutRunes(w)...)
	}
	return out
}

func (c *Chunker) cutRunes(word string) []string {
	var out []string
	runes := []rune(word)
	for len(runes) > 0 {
		n := len(runes)
		for n > 1 && c.tokenizer.Count(string(runes[:n])) > c.maxTokens {
			n /= 2
		}
		out = append(out, string(runes[:n]))
		runes = runes[n:]
	}
	return out
}

// Collect drains the chunk sequence into a slice
func (c *Chunker) Collect(text string) []Chunk {
	var out []Chunk
	for chunk := range c.Chunks(text) {
		out = append(out, chunk)
	}
	return out
}

// MakeChunks chunks text with the word tokenizer and punctuation splitter
func MakeChunks(text string, maxTokens, overlap int) ([]Chunk, error) {
	c, err := New(maxTokens, overlap)
	if err != nil {
		return nil, err
	}
	return c.Collect(text), nil
}
