package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"time"

	"github.com/killallgit/testimony-api/internal/services/cache"
)

// CachedEmbedder remembers vectors per text so repeated search queries do
// not hit the provider again.
type CachedEmbedder struct {
	inner Embedder
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedEmbedder wraps inner with c
func NewCachedEmbedder(inner Embedder, c cache.Cache, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{inner: inner, cache: c, ttl: ttl}
}

func (e *CachedEmbedder) Model() string   { return e.inner.Model() }
func (e *CachedEmbedder) Dimensions() int { return e.inner.Dimensions() }

// Embed serves cached texts and sends only the misses to inner, in one call
func (e *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if raw, ok := e.cache.Get(ctx, e.key(text)); ok {
			if vec, err := decodeVector(raw); err == nil {
				out[i] = vec
				continue
			}
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := e.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(vecs))
	}
	for j, vec := range vecs {
		out[slots[j]] = vec
		_ = e.cache.Set(ctx, e.key(missing[j]), encodeVector(vec), e.ttl)
	}
	return out, nil
}

func (e *CachedEmbedder) key(text string) string {
	sum := sha256.Sum256([]byte(e.inner.Model() + "\x00" + text))
	return "emb:" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(raw []byte) ([]float32, error) {
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("corrupt cached vector of %d bytes", len(raw))
	}
	vec := make([]float32, len(raw)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
	return vec, nil
}
