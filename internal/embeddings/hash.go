package embeddings

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
)

// HashDimension matches the output size of bge-base models.
const HashDimension = 768

// HashEmbedder is an offline stand-in that hashes tokens into a fixed-size,
// L2-normalized vector. Identical text always yields an identical vector.
type HashEmbedder struct {
	dim int
}

func NewHashEmbedder(dim int) *HashEmbedder {
	if dim <= 0 {
		dim = HashDimension
	}
	return &HashEmbedder{dim: dim}
}

func (h *HashEmbedder) Model() string { return "hash" }

func (h *HashEmbedder) Embed(_ context.Context, text string) (Vector, error) {
	vec := make(Vector, h.dim)
	for _, tok := range strings.Fields(strings.ToLower(text)) {
		f := fnv.New64a()
		_, _ = f.Write([]byte(tok))
		sum := f.Sum64()
		sign := float32(1)
		if sum&1 == 1 {
			sign = -1
		}
		vec[(sum>>1)%uint64(h.dim)] += sign
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}
