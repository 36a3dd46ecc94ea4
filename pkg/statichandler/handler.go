package statichandler

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/odata"
)

// Handler executes File and Static endpoint operations.
type Handler struct {
	Endpoint *endpoint.Definition
	Store    FileStore
}

// Upload validates and persists an uploaded file, returning its metadata.
func (h *Handler) Upload(ctx context.Context, fh *multipart.FileHeader) (*FileMeta, error) {
	spec := h.Endpoint.File
	if spec.MaxBytes > 0 && fh.Size > spec.MaxBytes {
		return nil, apierrors.Newf(apierrors.PayloadTooLarge, "file exceeds maximum size of %d bytes", spec.MaxBytes)
	}
	if len(spec.AllowedExtensions) > 0 {
		ext := strings.ToLower(filepath.Ext(fh.Filename))
		allowed := false
		for _, a := range spec.AllowedExtensions {
			if strings.EqualFold(a, ext) {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, apierrors.Newf(apierrors.Forbidden, "file extension %q is not allowed", ext)
		}
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apierrors.Wrap(apierrors.BadRequest, "open uploaded file", err)
	}
	defer f.Close()

	hasher := sha256.New()
	tee := &teeCounter{r: f, h: hasher}
	data, err := readAllCapped(tee, spec.MaxBytes)
	if err != nil {
		return nil, err
	}

	id := ComputeFileID(h.Endpoint.FullPath(), fh.Filename, data)
	meta := FileMeta{
		ID:           id,
		OriginalName: fh.Filename,
		ContentType:  fh.Header.Get("Content-Type"),
		Size:         int64(len(data)),
		UploadedAt:   time.Now().UTC().Format(time.RFC3339),
	}
	if err := h.Store.Put(ctx, h.Endpoint.FullPath(), id, meta, newByteReader(data)); err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, "store file", err)
	}
	return &meta, nil
}

// Download retrieves a stored file's content and metadata.
func (h *Handler) Download(ctx context.Context, id string) (readCloser, *FileMeta, error) {
	r, meta, err := h.Store.Get(ctx, h.Endpoint.FullPath(), id)
	if err != nil {
		if err == ErrNotFound {
			return nil, nil, apierrors.New(apierrors.NotFound, "file not found")
		}
		return nil, nil, apierrors.Wrap(apierrors.Internal, "retrieve file", err)
	}
	return r, &meta, nil
}

// Delete removes a stored file.
func (h *Handler) Delete(ctx context.Context, id string) error {
	exists, err := h.Store.Exists(ctx, h.Endpoint.FullPath(), id)
	if err != nil {
		return apierrors.Wrap(apierrors.Internal, "check file existence", err)
	}
	if !exists {
		return apierrors.New(apierrors.NotFound, "file not found")
	}
	if err := h.Store.Delete(ctx, h.Endpoint.FullPath(), id); err != nil {
		return apierrors.Wrap(apierrors.Internal, "delete file", err)
	}
	return nil
}

// List returns the metadata of every file stored for this endpoint.
func (h *Handler) List(ctx context.Context) ([]FileMeta, error) {
	metas, err := h.Store.List(ctx, h.Endpoint.FullPath())
	if err != nil {
		return nil, apierrors.Wrap(apierrors.Internal, "list files", err)
	}
	return metas, nil
}

// StaticETag computes the weak validator for a static endpoint's cached
// payload.
func StaticETag(payload []byte) string {
	sum := sha256.Sum256(payload)
	return `"` + hex.EncodeToString(sum[:]) + `"`
}

// ServeStatic writes a static endpoint's payload with conditional-GET
// support (ETag/If-None-Match), applying client-side OData filtering over
// the JSON payload when EnableFiltering is set.
func ServeStatic(w http.ResponseWriter, r *http.Request, def *endpoint.Definition) error {
	spec := def.Static
	etag := StaticETag(spec.Payload)
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", contentTypeOr(spec.ContentType, "application/octet-stream"))

	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.WriteHeader(http.StatusNotModified)
		return nil
	}

	payload := spec.Payload
	if spec.EnableFiltering && r.URL.RawQuery != "" {
		filtered, err := filterJSON(payload, r.URL.Query())
		if err != nil {
			return apierrors.Wrap(apierrors.BadRequest, "invalid query", err)
		}
		payload = filtered
	}

	w.WriteHeader(http.StatusOK)
	_, err := w.Write(payload)
	return err
}

func contentTypeOr(declared, fallback string) string {
	if declared != "" {
		return declared
	}
	return fallback
}

// filterJSON applies $select/$filter/$orderby/$top/$skip to a JSON array
// payload in-process (no SQL involved), for static endpoints serving a
// fixed dataset.
func filterJSON(payload []byte, values map[string][]string) ([]byte, error) {
	var rows []map[string]any
	if err := json.Unmarshal(payload, &rows); err != nil {
		return nil, fmt.Errorf("static payload is not a JSON array of objects: %w", err)
	}

	q, err := odata.Parse(urlValues(values))
	if err != nil {
		return nil, err
	}

	filtered := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		if q.Filter == nil || evalFilter(q.Filter, row) {
			filtered = append(filtered, row)
		}
	}
	if q.Skip != nil && *q.Skip < len(filtered) {
		filtered = filtered[*q.Skip:]
	} else if q.Skip != nil {
		filtered = nil
	}
	if q.Top != nil && *q.Top < len(filtered) {
		filtered = filtered[:*q.Top]
	}
	if len(q.Select) > 0 {
		for i, row := range filtered {
			narrowed := make(map[string]any, len(q.Select))
			for _, alias := range q.Select {
				narrowed[alias] = row[alias]
			}
			filtered[i] = narrowed
		}
	}
	return json.Marshal(filtered)
}
