package statichandler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

// memStore is a minimal in-memory FileStore for handler tests.
type memStore struct {
	data map[string][]byte
	meta map[string]FileMeta
}

func newMemStore() *memStore {
	return &memStore{data: map[string][]byte{}, meta: map[string]FileMeta{}}
}

func (m *memStore) key(endpointName, id string) string { return endpointName + "/" + id }

func (m *memStore) Put(ctx context.Context, endpointName, id string, meta FileMeta, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.data[m.key(endpointName, id)] = data
	m.meta[m.key(endpointName, id)] = meta
	return nil
}

func (m *memStore) Get(ctx context.Context, endpointName, id string) (io.ReadCloser, FileMeta, error) {
	data, ok := m.data[m.key(endpointName, id)]
	if !ok {
		return nil, FileMeta{}, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), m.meta[m.key(endpointName, id)], nil
}

func (m *memStore) Delete(ctx context.Context, endpointName, id string) error {
	delete(m.data, m.key(endpointName, id))
	delete(m.meta, m.key(endpointName, id))
	return nil
}

func (m *memStore) List(ctx context.Context, endpointName string) ([]FileMeta, error) {
	var out []FileMeta
	for k, meta := range m.meta {
		if len(k) > len(endpointName) && k[:len(endpointName)+1] == endpointName+"/" {
			out = append(out, meta)
		}
	}
	return out, nil
}

func (m *memStore) Exists(ctx context.Context, endpointName, id string) (bool, error) {
	_, ok := m.data[m.key(endpointName, id)]
	return ok, nil
}

func newFileHeader(t *testing.T, fieldName, filename string, content []byte) *multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	part, err := w.CreateFormFile(fieldName, filename)
	if err != nil {
		t.Fatalf("CreateFormFile: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if err := req.ParseMultipartForm(32 << 20); err != nil {
		t.Fatalf("ParseMultipartForm: %v", err)
	}
	fh := req.MultipartForm.File[fieldName][0]
	return fh
}

func newFileHandler(store FileStore, spec FileSpecOverrides) *Handler {
	def := &endpoint.Definition{
		Name:      "uploads",
		Namespace: "orders",
		Kind:      endpoint.KindFile,
		File: &endpoint.FileSpec{
			AllowedExtensions: spec.AllowedExtensions,
			MaxBytes:          spec.MaxBytes,
		},
	}
	return &Handler{Endpoint: def, Store: store}
}

// FileSpecOverrides narrows endpoint.FileSpec to the fields handler tests
// exercise.
type FileSpecOverrides struct {
	AllowedExtensions []string
	MaxBytes          int64
}

func TestHandlerUploadDownloadRoundTrip(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{})
	fh := newFileHeader(t, "file", "invoice.pdf", []byte("file contents"))

	meta, err := h.Upload(context.Background(), fh)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if meta.OriginalName != "invoice.pdf" {
		t.Errorf("OriginalName = %q, want invoice.pdf", meta.OriginalName)
	}

	r, gotMeta, err := h.Download(context.Background(), meta.ID)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	defer r.Close()
	data, _ := io.ReadAll(r)
	if string(data) != "file contents" {
		t.Errorf("downloaded data = %q", data)
	}
	if gotMeta.ID != meta.ID {
		t.Errorf("downloaded meta ID = %q, want %q", gotMeta.ID, meta.ID)
	}
}

func TestHandlerUploadRejectsDisallowedExtension(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{AllowedExtensions: []string{".pdf"}})
	fh := newFileHeader(t, "file", "payload.exe", []byte("x"))

	_, err := h.Upload(context.Background(), fh)
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.Forbidden {
		t.Errorf("Upload(disallowed ext) = %v, want apierrors.Forbidden", err)
	}
}

func TestHandlerUploadRejectsOversizedFile(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{MaxBytes: 4})
	fh := newFileHeader(t, "file", "big.txt", []byte("this is too big"))

	_, err := h.Upload(context.Background(), fh)
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.PayloadTooLarge {
		t.Errorf("Upload(oversized) = %v, want apierrors.PayloadTooLarge", err)
	}
}

func TestHandlerDownloadMissingReturnsNotFound(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{})
	_, _, err := h.Download(context.Background(), "missing")
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.NotFound {
		t.Errorf("Download(missing) = %v, want apierrors.NotFound", err)
	}
}

func TestHandlerDeleteMissingReturnsNotFound(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{})
	err := h.Delete(context.Background(), "missing")
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.NotFound {
		t.Errorf("Delete(missing) = %v, want apierrors.NotFound", err)
	}
}

func TestHandlerDeleteThenListExcludesFile(t *testing.T) {
	store := newMemStore()
	h := newFileHandler(store, FileSpecOverrides{})
	fh := newFileHeader(t, "file", "a.txt", []byte("x"))
	meta, err := h.Upload(context.Background(), fh)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if err := h.Delete(context.Background(), meta.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}

	metas, err := h.List(context.Background())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, m := range metas {
		if m.ID == meta.ID {
			t.Error("deleted file still appears in List")
		}
	}
}

func TestServeStaticSetsETagAndHonorsIfNoneMatch(t *testing.T) {
	def := &endpoint.Definition{
		Kind: endpoint.KindStatic,
		Static: &endpoint.StaticSpec{
			ContentType: "application/json",
			Payload:     []byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`),
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/static", nil)
	if err := ServeStatic(rec, req, def); err != nil {
		t.Fatalf("ServeStatic: %v", err)
	}
	etag := rec.Header().Get("ETag")
	if etag == "" {
		t.Fatal("expected an ETag header")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("Code = %d, want 200", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/static", nil)
	req2.Header.Set("If-None-Match", etag)
	if err := ServeStatic(rec2, req2, def); err != nil {
		t.Fatalf("ServeStatic (conditional): %v", err)
	}
	if rec2.Code != http.StatusNotModified {
		t.Errorf("Code = %d, want 304", rec2.Code)
	}
}

func TestServeStaticAppliesODataFilteringWhenEnabled(t *testing.T) {
	def := &endpoint.Definition{
		Kind: endpoint.KindStatic,
		Static: &endpoint.StaticSpec{
			ContentType:     "application/json",
			EnableFiltering: true,
			Payload:         []byte(`[{"id":1,"name":"a"},{"id":2,"name":"b"}]`),
		},
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/static?$filter=id eq 2", nil)
	if err := ServeStatic(rec, req, def); err != nil {
		t.Fatalf("ServeStatic: %v", err)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"name":"b"`)) {
		t.Errorf("filtered body = %s, want only id=2 row", rec.Body.String())
	}
	if bytes.Contains(rec.Body.Bytes(), []byte(`"name":"a"`)) {
		t.Errorf("filtered body = %s, should not contain id=1 row", rec.Body.String())
	}
}

func TestServeStaticIgnoresQueryWhenFilteringDisabled(t *testing.T) {
	def := &endpoint.Definition{
		Kind: endpoint.KindStatic,
		Static: &endpoint.StaticSpec{
			Payload: []byte(`[{"id":1,"name":"a"}]`),
		},
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/static?$filter=id eq 2", nil)
	if err := ServeStatic(rec, req, def); err != nil {
		t.Fatalf("ServeStatic: %v", err)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"name":"a"`)) {
		t.Errorf("body should be returned unfiltered, got %s", rec.Body.String())
	}
}

func TestHandlerUploadWithZeroMaxBytesIsUnbounded(t *testing.T) {
	h := newFileHandler(newMemStore(), FileSpecOverrides{MaxBytes: 0})
	fh := newFileHeader(t, "file", "a.txt", bytes.Repeat([]byte("x"), 1<<20))
	if _, err := h.Upload(context.Background(), fh); err != nil {
		t.Errorf("Upload with MaxBytes=0 should be unbounded, got %v", err)
	}
}
