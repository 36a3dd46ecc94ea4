// Package statichandler implements File and Static endpoints:
// content-addressed file upload/download/list/delete with a pluggable
// backing store, and conditional-GET static payload serving.
package statichandler

import (
	"context"
	"io"
)

// FileMeta is the sidecar metadata persisted alongside a file's bytes.
type FileMeta struct {
	ID           string `json:"id"`
	OriginalName string `json:"originalName"`
	ContentType  string `json:"contentType"`
	Size         int64  `json:"size"`
	UploadedAt   string `json:"uploadedAt"`
}

// FileStore persists file bytes and their sidecar metadata, keyed by
// content-addressed id, scoped beneath one endpoint's StorageRoot.
type FileStore interface {
	Put(ctx context.Context, endpointName, id string, meta FileMeta, r io.Reader) error
	Get(ctx context.Context, endpointName, id string) (io.ReadCloser, FileMeta, error)
	Delete(ctx context.Context, endpointName, id string) error
	List(ctx context.Context, endpointName string) ([]FileMeta, error)
	Exists(ctx context.Context, endpointName, id string) (bool, error)
}
