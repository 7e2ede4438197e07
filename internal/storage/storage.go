package storage

import (
	"context"
	"io"
)

// PutInput names an object. Key is chosen by the caller and may contain "/"
// separated path segments.
type PutInput struct {
	Key         string
	ContentType string
}

type PutResult struct {
	Key      string
	Location string
}

// Storage keeps raw payloads (provider callback bodies) for later audit.
type Storage interface {
	Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error)
}

// Discard accepts and drops everything; it is the disabled archive.
type Discard struct{}

func (Discard) Put(ctx context.Context, r io.Reader, in PutInput) (PutResult, error) {
	_, err := io.Copy(io.Discard, r)
	return PutResult{Key: in.Key}, err
}

func (Discard) String() string { return "discard" }
