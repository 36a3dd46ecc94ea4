// Package proxyhandler forwards requests to an upstream HTTP service:
// URL templating, method translation, header append with conflict policy,
// and streaming passthrough bounded by a buffer cap.
package proxyhandler

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
)

// hopByHopHeaders are stripped from both the outbound request and the
// inbound response per RFC 7230 §6.1.
var hopByHopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Handler forwards one inbound request to a proxy endpoint's upstream.
type Handler struct {
	Endpoint            *endpoint.Definition
	Client              *http.Client
	MaxProxyBufferBytes int64
}

// New builds a Handler with dial/response timeouts bound to the proxy
// endpoint's configuration.
func New(def *endpoint.Definition, dialTimeout, responseTimeout time.Duration, maxBufferBytes int64) *Handler {
	return &Handler{
		Endpoint: def,
		Client: &http.Client{
			Timeout: responseTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: dialTimeout}).DialContext,
			},
		},
		MaxProxyBufferBytes: maxBufferBytes,
	}
}

// Forward builds and issues the upstream request, copying the response back
// onto w. env and pathRemainder substitute into TargetUrlTemplate's {env}
// and {*} placeholders respectively.
func (h *Handler) Forward(ctx context.Context, w http.ResponseWriter, r *http.Request, env, pathRemainder string) error {
	spec := h.Endpoint.Proxy
	targetURL := buildTargetURL(spec.TargetURLTemplate, env, pathRemainder, r.URL.RawQuery)

	method := endpoint.Method(r.Method)
	if translated, ok := spec.MethodTranslation[method]; ok {
		method = translated
	}

	var body io.Reader = r.Body
	if r.ContentLength == 0 {
		body = nil
	}
	req, err := http.NewRequestWithContext(ctx, string(method), targetURL, body)
	if err != nil {
		return apierrors.Wrap(apierrors.Internal, "build upstream request", err)
	}
	copyHeaders(req.Header, r.Header)
	applyHeaderAppend(req.Header, spec, endpoint.Method(r.Method), method)

	resp, err := h.Client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	for _, h := range hopByHopHeaders {
		resp.Header.Del(h)
	}
	for k, vals := range resp.Header {
		for _, v := range vals {
			w.Header().Add(k, v)
		}
	}
	w.WriteHeader(resp.StatusCode)

	limited := io.LimitReader(resp.Body, h.MaxProxyBufferBytes+1)
	written, err := io.Copy(w, limited)
	if err != nil {
		return apierrors.Wrap(apierrors.BadGateway, "upstream response copy failed", err)
	}
	if written > h.MaxProxyBufferBytes {
		return apierrors.New(apierrors.PayloadTooLarge, "upstream response exceeded maximum proxy buffer size")
	}
	return nil
}

func buildTargetURL(template, env, pathRemainder, rawQuery string) string {
	url := strings.ReplaceAll(template, "{env}", env)
	url = strings.ReplaceAll(url, "{*}", strings.TrimPrefix(pathRemainder, "/"))
	if rawQuery != "" {
		if strings.Contains(url, "?") {
			url += "&" + rawQuery
		} else {
			url += "?" + rawQuery
		}
	}
	return url
}

func copyHeaders(dst, src http.Header) {
	for k, vals := range src {
		if isHopByHop(k) {
			continue
		}
		for _, v := range vals {
			dst.Add(k, v)
		}
	}
}

func isHopByHop(key string) bool {
	for _, h := range hopByHopHeaders {
		if strings.EqualFold(h, key) {
			return true
		}
	}
	return false
}

func applyHeaderAppend(dst http.Header, spec *endpoint.ProxySpec, originalMethod, translatedMethod endpoint.Method) {
	rules, ok := spec.HeaderAppend[originalMethod]
	if !ok {
		return
	}
	policy := spec.ConflictPolicy
	if policy == "" {
		policy = endpoint.HeaderSkip
	}
	for _, kv := range rules {
		value := strings.ReplaceAll(kv.Value, "{ORIGINAL_METHOD}", string(originalMethod))
		value = strings.ReplaceAll(value, "{TRANSLATED_METHOD}", string(translatedMethod))

		if dst.Get(kv.Key) != "" {
			switch policy {
			case endpoint.HeaderOverwrite:
				dst.Set(kv.Key, value)
			case endpoint.HeaderLogAndAdd:
				dst.Add(kv.Key, value)
			default: // HeaderSkip
			}
			continue
		}
		dst.Set(kv.Key, value)
	}
}

// classify maps a transport-level error onto the gateway's error taxonomy.
func classify(err error) error {
	if ne, ok := err.(interface{ Timeout() bool }); ok && ne.Timeout() {
		return apierrors.Wrap(apierrors.GatewayTimeout, "upstream request timed out", err)
	}
	return apierrors.Wrap(apierrors.BadGateway, "upstream request failed", err)
}
