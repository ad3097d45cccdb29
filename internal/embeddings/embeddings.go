package embeddings

import (
	"context"
	"errors"
	"fmt"
)

// Vector is a simple float32 slice wrapper.
type Vector []float32

// Embedder turns text into a vector using a pretrained model.
type Embedder interface {
	Embed(ctx context.Context, text string) (Vector, error)
	Model() string
}

const (
	// DemoModel is the pretrained model the demo always requests.
	DemoModel = "bge-base-zh-v1.5"
	// DemoText is the fixed input the demo encodes.
	DemoText = "This column contains order dates such as: 2024-01-01, 2024-01-15"
)

var (
	ErrEmptyEmbedding    = errors.New("embedding response contained no vector")
	ErrUnstableDimension = errors.New("embedding dimension changed between calls")
)

// EncodeDemo encodes DemoText.
func EncodeDemo(ctx context.Context, e Embedder) (Vector, error) {
	return e.Embed(ctx, DemoText)
}

// CheckStable embeds text n times and fails if the vector length varies.
// It returns the first vector.
func CheckStable(ctx context.Context, e Embedder, text string, n int) (Vector, error) {
	if n <= 0 {
		n = 1
	}
	var first Vector
	for i := 0; i < n; i++ {
		vec, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			first = vec
			continue
		}
		if len(vec) != len(first) {
			return nil, fmt.Errorf("%w: call %d returned %d dimensions, first returned %d",
				ErrUnstableDimension, i+1, len(vec), len(first))
		}
	}
	return first, nil
}
