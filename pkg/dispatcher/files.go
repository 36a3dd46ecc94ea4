package dispatcher

import (
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/response"
	"github.com/melosso/portway/pkg/statichandler"
)

func (d *Dispatcher) fileEndpoint(w http.ResponseWriter, r *http.Request) (*authContext, bool) {
	endpointName := chi.URLParam(r, "endpoint")
	ac, ok := d.resolve(w, r, endpointName)
	if !ok {
		return nil, false
	}
	if ac.def.Kind != endpoint.KindFile {
		response.Error(w, ac.correlationID, notFoundf("endpoint %q is not a file endpoint", ac.def.FullPath()))
		return nil, false
	}
	return ac, true
}

func (d *Dispatcher) handleFileUpload(w http.ResponseWriter, r *http.Request) {
	ac, ok := d.fileEndpoint(w, r)
	if !ok {
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}

	maxBytes := ac.def.File.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	if err := r.ParseMultipartForm(maxBytes); err != nil {
		response.Error(w, ac.correlationID, badRequestf("parse multipart form: %v", err))
		return
	}
	_, fh, err := r.FormFile("file")
	if err != nil {
		response.Error(w, ac.correlationID, badRequestf("missing \"file\" multipart field: %v", err))
		return
	}

	h := &statichandler.Handler{Endpoint: ac.def, Store: d.Files}
	meta, err := h.Upload(r.Context(), fh)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	response.Item(w, http.StatusCreated, ac.correlationID, meta)
}

func (d *Dispatcher) handleFileList(w http.ResponseWriter, r *http.Request) {
	ac, ok := d.fileEndpoint(w, r)
	if !ok {
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}
	h := &statichandler.Handler{Endpoint: ac.def, Store: d.Files}
	metas, err := h.List(r.Context())
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	count := int64(len(metas))
	response.Collection(w, ac.correlationID, metas, &count, nil)
}

func (d *Dispatcher) handleFileDownload(w http.ResponseWriter, r *http.Request) {
	ac, ok := d.fileEndpoint(w, r)
	if !ok {
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}
	id := chi.URLParam(r, "fileId")
	h := &statichandler.Handler{Endpoint: ac.def, Store: d.Files}
	rc, meta, err := h.Download(r.Context(), id)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", contentTypeOrDefault(meta.ContentType))
	w.Header().Set("Content-Disposition", `attachment; filename="`+meta.OriginalName+`"`)
	w.WriteHeader(http.StatusOK)
	_, _ = io.Copy(w, rc)
}

func (d *Dispatcher) handleFileDelete(w http.ResponseWriter, r *http.Request) {
	ac, ok := d.fileEndpoint(w, r)
	if !ok {
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}
	id := chi.URLParam(r, "fileId")
	h := &statichandler.Handler{Endpoint: ac.def, Store: d.Files}
	if err := h.Delete(r.Context(), id); err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func contentTypeOrDefault(ct string) string {
	if ct != "" {
		return ct
	}
	return "application/octet-stream"
}

func (d *Dispatcher) handleStatic(w http.ResponseWriter, r *http.Request) {
	endpointName := chi.URLParam(r, "endpoint")
	ac, ok := d.resolve(w, r, endpointName)
	if !ok {
		return
	}
	if ac.def.Kind != endpoint.KindStatic {
		response.Error(w, ac.correlationID, notFoundf("endpoint %q is not a static endpoint", ac.def.FullPath()))
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}
	if err := statichandler.ServeStatic(w, r, ac.def); err != nil {
		response.Error(w, ac.correlationID, apierrors.Wrap(apierrors.Internal, "serve static endpoint", err))
	}
}
