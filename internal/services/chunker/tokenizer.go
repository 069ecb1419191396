package chunker

import (
	"fmt"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

const (
	TokenizerWords  = "words"
	TokenizerCL100K = "cl100k"
)

// Tokenizer measures text in model tokens
type Tokenizer interface {
	Name() string
	Count(text string) int
}

// WordTokenizer counts whitespace separated words
type WordTokenizer struct{}

func (WordTokenizer) Name() string { return TokenizerWords }

func (WordTokenizer) Count(text string) int {
	return len(strings.Fields(text))
}

// CL100KTokenizer counts tokens with the cl100k_base BPE used by the
// OpenAI embedding models. The vocabulary is compiled in, no download.
type CL100KTokenizer struct {
	enc *tiktoken.Tiktoken
}

var (
	cl100kOnce sync.Once
	cl100kEnc  *tiktoken.Tiktoken
	cl100kErr  error
)

// NewCL100KTokenizer loads the shared cl100k encoding
func NewCL100KTokenizer() (*CL100KTokenizer, error) {
	cl100kOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
		cl100kEnc, cl100kErr = tiktoken.GetEncoding("cl100k_base")
	})
	if cl100kErr != nil {
		return nil, fmt.Errorf("load cl100k encoding: %w", cl100kErr)
	}
	return &CL100KTokenizer{enc: cl100kEnc}, nil
}

func (t *CL100KTokenizer) Name() string { return TokenizerCL100K }

func (t *CL100KTokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.enc.Encode(text, nil, nil))
}

// NewTokenizer returns the tokenizer registered under name
func NewTokenizer(name string) (Tokenizer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", TokenizerWords:
		return WordTokenizer{}, nil
	case TokenizerCL100K, "cl100k_base":
		return NewCL100KTokenizer()
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", name)
	}
}
