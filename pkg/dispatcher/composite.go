package dispatcher

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/composite"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/proxyhandler"
	"github.com/melosso/portway/pkg/response"
)

// bufferedResponseWriter captures a proxy step's response in-process, so
// composite orchestration never makes a real network hop back to itself.
type bufferedResponseWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedResponseWriter() *bufferedResponseWriter {
	return &bufferedResponseWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedResponseWriter) Header() http.Header { return b.header }

func (b *bufferedResponseWriter) Write(p []byte) (int, error) { return b.body.Write(p) }

func (b *bufferedResponseWriter) WriteHeader(status int) { b.status = status }

// handleComposite executes a composite endpoint's DAG of proxy calls and
// returns every step's outcome in one response envelope.
func (d *Dispatcher) handleComposite(w http.ResponseWriter, r *http.Request) {
	endpointName := chi.URLParam(r, "endpoint")
	ac, ok := d.resolve(w, r, endpointName)
	if !ok {
		return
	}
	if ac.def.Kind != endpoint.KindComposite {
		response.Error(w, ac.correlationID, notFoundf("endpoint %q is not a composite endpoint", ac.def.FullPath()))
		return
	}

	requestBody, err := decodeJSONBody(r)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}

	snap := d.Registry.Current()
	exec := d.compositeExecutor(ac.env, snap)

	result, err := composite.Run(r.Context(), ac.def, requestBody, exec)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}

	status := http.StatusOK
	if result.Aborted {
		status = http.StatusMultiStatus
	}
	body, err := composite.MarshalResponses(result)
	if err != nil {
		response.Error(w, ac.correlationID, apierrors.Wrap(apierrors.Internal, "marshal composite response", err))
		return
	}
	w.Header().Set("X-Correlation-Id", ac.correlationID)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// compositeLookup resolves a composite step's target Proxy endpoint. The
// registry validates at load time that every step references one, so a
// miss here means the registry was reloaded out from under this request.
type compositeLookup interface {
	Lookup(fullPath string) (*endpoint.Definition, bool)
}

func (d *Dispatcher) compositeExecutor(env string, snap compositeLookup) composite.StepExecutor {
	return func(ctx context.Context, step endpoint.CompositeStep, requestBody string) (any, error) {
		target, ok := snap.Lookup(step.Endpoint)
		if !ok || target.Kind != endpoint.KindProxy {
			return nil, apierrors.Newf(apierrors.Internal, "composite step %q references unknown proxy endpoint %q", step.Name, step.Endpoint)
		}

		h := proxyhandler.New(target, d.ProxyConfig.DialTimeout, d.ProxyConfig.ResponseTimeout, d.ProxyConfig.MaxProxyBufferBytes)

		method := step.Method
		if method == "" {
			method = endpoint.MethodPost
		}
		req, err := http.NewRequestWithContext(ctx, string(method), "/", bytes.NewBufferString(requestBody))
		if err != nil {
			return nil, apierrors.Wrap(apierrors.Internal, "build composite step request", err)
		}
		req.Header.Set("Content-Type", "application/json")
		rec := newBufferedResponseWriter()

		if err := h.Forward(ctx, rec, req, env, ""); err != nil {
			return nil, err
		}

		var decoded any
		if rec.body.Len() > 0 {
			if err := json.Unmarshal(rec.body.Bytes(), &decoded); err != nil {
				decoded = rec.body.String()
			}
		}
		return decoded, nil
	}
}
