// Package hashing provides a deterministic bag-of-words embedder that maps
// tokens onto a fixed number of buckets. It needs no network access.
package hashing

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const DefaultDimension = 384

type Embedder struct {
	dim int
}

func New(dim int) *Embedder {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Embedder{dim: dim}
}

func (e *Embedder) Dimension() int {
	return e.dim
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out = append(out, e.vector(t))
	}
	return out, nil
}

func (e *Embedder) vector(text string) []float32 {
	acc := make([]float64, e.dim)
	for _, tok := range Tokens(text) {
		h := fnv.New32a()
		h.Write([]byte(tok))
		sum := h.Sum32()

		sign := 1.0
		if sum&(1<<31) != 0 {
			sign = -1.0
		}
		acc[int(sum%uint32(e.dim))] += sign
	}

	var norm float64
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)

	out := make([]float32, e.dim)
	if norm == 0 {
		return out
	}
	for i, v := range acc {
		out[i] = float32(v / norm)
	}
	return out
}

// Tokens lowercases text, splits it on anything that is not a letter or
// digit, drops stopwords and stems what remains.
func Tokens(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if stopwords[f] {
			continue
		}
		out = append(out, stem(f))
	}
	return out
}

var suffixes = []string{"ing", "ed", "es", "s", "ler", "lar", "leri", "ları"}

func stem(tok string) string {
	for _, suf := range suffixes {
		if len(tok) > len(suf)+2 && strings.HasSuffix(tok, suf) {
			return strings.TrimSuffix(tok, suf)
		}
	}
	return tok
}

var stopwords = map[string]bool{
	"a": true, "an": true, "and": true, "are": true, "as": true, "at": true,
	"be": true, "by": true, "do": true, "for": true, "from": true, "how": true,
	"i": true, "in": true, "is": true, "it": true, "of": true, "on": true,
	"or": true, "that": true, "the": true, "this": true, "to": true, "was": true,
	"what": true, "with": true, "you": true, "your": true, "can": true,
	"ve": true, "ile": true, "bir": true, "bu": true, "da": true, "de": true,
	"için": true, "mi": true, "ne": true, "nasıl": true, "çok": true,
}
