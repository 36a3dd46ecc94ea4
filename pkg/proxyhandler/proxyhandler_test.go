package proxyhandler

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

func TestBuildTargetURLSubstitutesEnvAndRemainder(t *testing.T) {
	got := buildTargetURL("https://api.internal/{env}/orders/{*}", "prod", "/42", "")
	want := "https://api.internal/prod/orders/42"
	if got != want {
		t.Errorf("buildTargetURL = %q, want %q", got, want)
	}
}

func TestBuildTargetURLAppendsQueryWithoutExistingQuery(t *testing.T) {
	got := buildTargetURL("https://api.internal/orders", "prod", "", "limit=10")
	if got != "https://api.internal/orders?limit=10" {
		t.Errorf("buildTargetURL = %q", got)
	}
}

func TestBuildTargetURLAppendsQueryWithExistingQuery(t *testing.T) {
	got := buildTargetURL("https://api.internal/orders?source=gw", "prod", "", "limit=10")
	if got != "https://api.internal/orders?source=gw&limit=10" {
		t.Errorf("buildTargetURL = %q", got)
	}
}

func TestApplyHeaderAppendSkipsOnConflictByDefault(t *testing.T) {
	spec := &endpoint.ProxySpec{
		HeaderAppend: map[endpoint.Method][]endpoint.HeaderKV{
			endpoint.MethodGet: {{Key: "X-Source", Value: "gateway"}},
		},
	}
	h := http.Header{}
	h.Set("X-Source", "original")
	applyHeaderAppend(h, spec, endpoint.MethodGet, endpoint.MethodGet)
	if h.Get("X-Source") != "original" {
		t.Errorf("X-Source = %q, want original (skip policy)", h.Get("X-Source"))
	}
}

func TestApplyHeaderAppendOverwritesWhenPolicySet(t *testing.T) {
	spec := &endpoint.ProxySpec{
		ConflictPolicy: endpoint.HeaderOverwrite,
		HeaderAppend: map[endpoint.Method][]endpoint.HeaderKV{
			endpoint.MethodGet: {{Key: "X-Source", Value: "gateway"}},
		},
	}
	h := http.Header{}
	h.Set("X-Source", "original")
	applyHeaderAppend(h, spec, endpoint.MethodGet, endpoint.MethodGet)
	if h.Get("X-Source") != "gateway" {
		t.Errorf("X-Source = %q, want gateway (overwrite policy)", h.Get("X-Source"))
	}
}

func TestApplyHeaderAppendAddsWhenPolicyLogAndAdd(t *testing.T) {
	spec := &endpoint.ProxySpec{
		ConflictPolicy: endpoint.HeaderLogAndAdd,
		HeaderAppend: map[endpoint.Method][]endpoint.HeaderKV{
			endpoint.MethodGet: {{Key: "X-Source", Value: "gateway"}},
		},
	}
	h := http.Header{}
	h.Set("X-Source", "original")
	applyHeaderAppend(h, spec, endpoint.MethodGet, endpoint.MethodGet)
	if len(h.Values("X-Source")) != 2 {
		t.Errorf("X-Source values = %v, want 2 (log_and_add policy)", h.Values("X-Source"))
	}
}

func TestApplyHeaderAppendSubstitutesMethodPlaceholders(t *testing.T) {
	spec := &endpoint.ProxySpec{
		HeaderAppend: map[endpoint.Method][]endpoint.HeaderKV{
			endpoint.MethodPatch: {{Key: "X-Method-Info", Value: "{ORIGINAL_METHOD}->{TRANSLATED_METHOD}"}},
		},
	}
	h := http.Header{}
	applyHeaderAppend(h, spec, endpoint.MethodPatch, endpoint.MethodPut)
	if got := h.Get("X-Method-Info"); got != "PATCH->PUT" {
		t.Errorf("X-Method-Info = %q, want PATCH->PUT", got)
	}
}

func TestIsHopByHopIsCaseInsensitive(t *testing.T) {
	if !isHopByHop("connection") {
		t.Error("isHopByHop(connection) should match Connection")
	}
	if isHopByHop("X-Custom") {
		t.Error("isHopByHop(X-Custom) should not match")
	}
}

func TestClassifyTimeoutError(t *testing.T) {
	err := classify(timeoutErr{})
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.GatewayTimeout {
		t.Errorf("classify(timeout) = %v, want GatewayTimeout", err)
	}
}

func TestClassifyOtherTransportError(t *testing.T) {
	err := classify(errors.New("connection refused"))
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.BadGateway {
		t.Errorf("classify(other) = %v, want BadGateway", err)
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestForwardStripsHopByHopAndTranslatesMethod(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("upstream saw method %s, want PUT", r.Method)
		}
		if r.Header.Get("Connection") != "" {
			t.Error("upstream should not see a Connection header")
		}
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Upstream", "yes")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer upstream.Close()

	def := &endpoint.Definition{
		Proxy: &endpoint.ProxySpec{
			TargetURLTemplate: upstream.URL + "/{*}",
			MethodTranslation: map[endpoint.Method]endpoint.Method{endpoint.MethodPatch: endpoint.MethodPut},
		},
	}
	h := New(def, time.Second, time.Second, 1<<20)

	req := httptest.NewRequest(http.MethodPatch, "/orders/1", strings.NewReader(""))
	req.Header.Set("Connection", "keep-alive")
	rec := httptest.NewRecorder()

	if err := h.Forward(context.Background(), rec, req, "default", "/orders/1"); err != nil {
		t.Fatalf("Forward: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Errorf("Code = %d, want 201", rec.Code)
	}
	if rec.Header().Get("Connection") != "" {
		t.Error("response should not carry a Connection header")
	}
	if rec.Header().Get("X-Upstream") != "yes" {
		t.Error("non-hop-by-hop response headers should pass through")
	}
	if rec.Body.String() != `{"ok":true}` {
		t.Errorf("body = %q", rec.Body.String())
	}
}

func TestForwardRejectsOversizedUpstreamResponse(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer upstream.Close()

	def := &endpoint.Definition{Proxy: &endpoint.ProxySpec{TargetURLTemplate: upstream.URL}}
	h := New(def, time.Second, time.Second, 10)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	err := h.Forward(context.Background(), rec, req, "default", "")
	apiErr, ok := apierrors.As(err)
	if !ok || apiErr.Kind != apierrors.PayloadTooLarge {
		t.Errorf("Forward(oversized) = %v, want apierrors.PayloadTooLarge", err)
	}
}
