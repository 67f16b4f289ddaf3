package ports

import (
	"context"
	"io"
)

type PutObjectInput struct {
	ObjectKey   string
	ContentType string
	Reader      io.Reader
	Size        int64
}

type PutObjectOutput struct {
	ObjectKey string
	Size      int64
}

// StorageProvider is the durable object storage for rendered artifacts.
// Object keys are stable across providers; the gdrive adapter resolves
// keys to Drive file ids internally.
type StorageProvider interface {
	Provider() string

	PutObject(ctx context.Context, in PutObjectInput) (PutObjectOutput, error)
	GetObject(ctx context.Context, objectKey string) (rc io.ReadCloser, contentType string, size int64, err error)
	DeleteObject(ctx context.Context, objectKey string) error
	ExistsObject(ctx context.Context, objectKey string) (bool, error)
}
