package vectorstore

import (
	"context"
	"errors"
)

// ErrDimensionMismatch is returned when a vector does not match the index dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Document is a reference text stored alongside its embedding.
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]interface{}
	Embedding []float32
}

// Match is a document returned from a similarity search.
type Match struct {
	Document
	Score float32
}

// Index stores embedded documents and answers nearest-neighbour queries.
type Index interface {
	Upsert(ctx context.Context, docs []Document) error
	Search(ctx context.Context, vector []float32, topK int) ([]Match, error)
	Name() string
}
