// Package dispatcher wires chi routes for the gateway's single catch-all
// entry point: /<prefix>/{env}/... and runs every request
// through the shared auth/scope/environment/lookup/method pipeline before
// handing off to the backend-specific handler.
package dispatcher

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/melosso/portway/internal/config"
	"github.com/melosso/portway/internal/logger"
	"github.com/melosso/portway/pkg/authcore"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/envregistry"
	"github.com/melosso/portway/pkg/metrics"
	"github.com/melosso/portway/pkg/registry"
	"github.com/melosso/portway/pkg/response"
	"github.com/melosso/portway/pkg/statichandler"
)

// Dispatcher holds every collaborator a request needs to be routed and
// executed.
type Dispatcher struct {
	Registry    *registry.Registry
	Envs        *envregistry.Registry
	TokenStore  *authcore.Store
	Files       statichandler.FileStore
	Metrics     *metrics.Registry
	ProxyConfig config.ProxyConfig
	Prefix      string
}

// NewRouter builds the chi router for the whole gateway.
func NewRouter(d *Dispatcher) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(60 * time.Second))

	prefix := strings.TrimSuffix(d.Prefix, "/")
	if prefix == "" {
		prefix = "/api"
	}

	r.Route(prefix+"/{env}", func(r chi.Router) {
		r.Get("/files/{endpoint}", d.handleFileList)
		r.Post("/files/{endpoint}", d.handleFileUpload)
		r.Get("/files/{endpoint}/{fileId}", d.handleFileDownload)
		r.Delete("/files/{endpoint}/{fileId}", d.handleFileDelete)

		r.Post("/composite/{endpoint}", d.handleComposite)

		r.Get("/static/{endpoint}", d.handleStatic)

		r.Get("/{endpoint}", d.handleSQLOrProxy)
		r.Post("/{endpoint}", d.handleSQLOrProxy)
		r.Put("/{endpoint}", d.handleSQLOrProxy)
		r.Patch("/{endpoint}", d.handleSQLOrProxy)
		r.Method("MERGE", "/{endpoint}", http.HandlerFunc(d.handleSQLOrProxy))
		r.Delete("/{endpoint}", d.handleSQLOrProxy)
		r.Get("/{endpoint}/{key}", d.handleSQLOrProxy)
		r.Put("/{endpoint}/{key}", d.handleSQLOrProxy)
		r.Patch("/{endpoint}/{key}", d.handleSQLOrProxy)
		r.Method("MERGE", "/{endpoint}/{key}", http.HandlerFunc(d.handleSQLOrProxy))
		r.Delete("/{endpoint}/{key}", d.handleSQLOrProxy)

		r.Post("/webhook/{id}", d.handleWebhook)
	})

	return r
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		ctx := logger.WithRequestContext(r.Context(), &logger.RequestContext{
			CorrelationID: correlationID,
			Method:        r.Method,
			StartTime:     start,
		})
		logger.DebugCtx(ctx, "request started", "path", r.URL.Path)
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		ww.Header().Set("X-Correlation-Id", correlationID)
		next.ServeHTTP(ww, r.WithContext(ctx))
		logger.InfoCtx(ctx, "request completed", "status", ww.Status(), "duration", time.Since(start))
	})
}

// authContext is the result of steps 1-5 of the pipeline:
// authenticate, resolve environment, resolve endpoint, check scope, check
// method.
type authContext struct {
	token         *authcore.Token
	env           string
	def           *endpoint.Definition
	correlationID string
}

// resolve runs the shared pipeline steps common to every route:
//  1. authenticate the bearer token
//  2. resolve {env} against the environment allow-list
//  3. resolve {endpoint} against the current registry snapshot
//  4. check the token's environment/endpoint scope
//  5. check the token's private-endpoint access
// Method-allow-list checking (step 6) is left to the caller since the verb
// set differs by route.
func (d *Dispatcher) resolve(w http.ResponseWriter, r *http.Request, endpointName string) (*authContext, bool) {
	correlationID := chimiddleware.GetReqID(r.Context())
	if correlationID == "" {
		correlationID = r.Header.Get("X-Correlation-Id")
	}

	token, err := d.authenticate(r)
	if err != nil {
		if d.Metrics != nil {
			d.Metrics.AuthFailures.WithLabelValues("unauthenticated").Inc()
		}
		response.Error(w, correlationID, err)
		return nil, false
	}

	env := chi.URLParam(r, "env")
	if !d.Envs.Allowed(env) {
		if d.Metrics != nil {
			d.Metrics.AuthFailures.WithLabelValues("forbidden_environment").Inc()
		}
		response.Error(w, correlationID, forbiddenf("Environment '%s' is not allowed", env))
		return nil, false
	}
	if !token.AllowsEnvironment(env) {
		if d.Metrics != nil {
			d.Metrics.AuthFailures.WithLabelValues("forbidden_environment").Inc()
		}
		response.Error(w, correlationID, forbidden("Forbidden"))
		return nil, false
	}

	snap := d.Registry.Current()
	def, ok := snap.Lookup(endpointName)
	if !ok {
		response.Error(w, correlationID, notFoundf("unknown endpoint %q", endpointName))
		return nil, false
	}
	if !token.AllowsEndpoint(def.FullPath()) {
		if d.Metrics != nil {
			d.Metrics.AuthFailures.WithLabelValues("forbidden_scope").Inc()
		}
		response.Error(w, correlationID, forbidden("Forbidden"))
		return nil, false
	}
	if def.IsPrivate {
		response.Error(w, correlationID, notFoundf("unknown endpoint %q", endpointName))
		return nil, false
	}

	return &authContext{token: token, env: env, def: def, correlationID: correlationID}, true
}

func (d *Dispatcher) checkMethod(w http.ResponseWriter, r *http.Request, ac *authContext) bool {
	method := endpoint.Method(r.Method)
	if method == endpoint.MethodMerge {
		method = endpoint.MethodPatch
	}
	if !ac.def.AllowsMethod(method) {
		response.Error(w, ac.correlationID, methodNotAllowedf("method %s is not allowed on endpoint %q", r.Method, ac.def.FullPath()))
		return false
	}
	return true
}
