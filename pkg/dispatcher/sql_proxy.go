package dispatcher

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/melosso/portway/pkg/apierrors"
	"github.com/melosso/portway/pkg/endpoint"
	"github.com/melosso/portway/pkg/odata"
	"github.com/melosso/portway/pkg/proxyhandler"
	"github.com/melosso/portway/pkg/response"
	"github.com/melosso/portway/pkg/sqlhandler"
)

// handleSQLOrProxy dispatches /{env}/{endpoint}[/{key}] to the SQL or Proxy
// handler according to the resolved endpoint's Kind.
func (d *Dispatcher) handleSQLOrProxy(w http.ResponseWriter, r *http.Request) {
	endpointName := chi.URLParam(r, "endpoint")
	ac, ok := d.resolve(w, r, endpointName)
	if !ok {
		return
	}
	if !d.checkMethod(w, r, ac) {
		return
	}

	switch ac.def.Kind {
	case endpoint.KindSQL:
		d.dispatchSQL(w, r, ac)
	case endpoint.KindProxy:
		d.dispatchProxy(w, r, ac)
	default:
		response.Error(w, ac.correlationID, notFoundf("endpoint %q is not a SQL or proxy endpoint", ac.def.FullPath()))
	}
}

func (d *Dispatcher) dispatchSQL(w http.ResponseWriter, r *http.Request, ac *authContext) {
	conn, err := d.Envs.Acquire(r.Context(), ac.env)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	defer conn.Release()

	h := &sqlhandler.Handler{Endpoint: ac.def, Conn: conn}
	key := chi.URLParam(r, "key")

	switch ac.def.SQL.ObjectType {
	case endpoint.ObjectTableValuedFunction:
		d.dispatchTVF(w, r, ac, h, key)
		return
	case endpoint.ObjectStoredProcedure:
		d.dispatchProcedure(w, r, ac, h, key)
		return
	}

	switch r.Method {
	case http.MethodGet:
		q, err := odata.Parse(r.URL.Query())
		if err != nil {
			response.Error(w, ac.correlationID, badRequestf("invalid query: %v", err))
			return
		}
		if key != "" {
			row, err := h.Get(r.Context(), key, q)
			if err != nil {
				response.Error(w, ac.correlationID, err)
				return
			}
			response.Item(w, http.StatusOK, ac.correlationID, row)
			return
		}
		rows, err := h.List(r.Context(), q)
		if err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		count := int64(len(rows))
		var nextLink *string
		if q.Top != nil && len(rows) == *q.Top {
			skip := 0
			if q.Skip != nil {
				skip = *q.Skip
			}
			link := nextPageLink(r, skip+*q.Top)
			nextLink = &link
		}
		response.Collection(w, ac.correlationID, rows, &count, nextLink)

	case http.MethodPost:
		body, err := decodeJSONBody(r)
		if err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		row, err := h.Create(r.Context(), body)
		if err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		response.Item(w, http.StatusCreated, ac.correlationID, row)

	case http.MethodPut, http.MethodPatch:
		if key == "" {
			response.Error(w, ac.correlationID, badRequestf("a primary key is required for %s", r.Method))
			return
		}
		body, err := decodeJSONBody(r)
		if err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		row, err := h.Update(r.Context(), key, body, r.Method == http.MethodPatch)
		if err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		response.Item(w, http.StatusOK, ac.correlationID, row)

	case http.MethodDelete:
		if key == "" {
			response.Error(w, ac.correlationID, badRequestf("a primary key is required for DELETE"))
			return
		}
		if err := h.Delete(r.Context(), key); err != nil {
			response.Error(w, ac.correlationID, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		response.Error(w, ac.correlationID, methodNotAllowedf("method %s is not supported on SQL endpoints", r.Method))
	}
}

// dispatchTVF invokes a table-valued-function endpoint and returns its
// rowset as the same {count,value,nextLink} envelope a table GET would.
// TVFs don't paginate, so nextLink is always nil.
func (d *Dispatcher) dispatchTVF(w http.ResponseWriter, r *http.Request, ac *authContext, h *sqlhandler.Handler, key string) {
	if r.Method != http.MethodGet {
		response.Error(w, ac.correlationID, methodNotAllowedf("method %s is not supported on table-valued-function endpoint %q", r.Method, ac.def.FullPath()))
		return
	}
	params := buildParamValues(ac.def.SQL.Parameters, r, key)
	rows, err := h.InvokeTVF(r.Context(), params)
	if err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	count := int64(len(rows))
	response.Collection(w, ac.correlationID, rows, &count, nil)
}

// dispatchProcedure calls a stored-procedure endpoint with its declared
// parameters and reports success; procedures return no rowset.
func (d *Dispatcher) dispatchProcedure(w http.ResponseWriter, r *http.Request, ac *authContext, h *sqlhandler.Handler, key string) {
	if r.Method == http.MethodGet {
		response.Error(w, ac.correlationID, methodNotAllowedf("method %s is not supported on stored-procedure endpoint %q", r.Method, ac.def.FullPath()))
		return
	}
	params := buildParamValues(ac.def.SQL.Parameters, r, key)
	if err := h.CallProcedure(r.Context(), params); err != nil {
		response.Error(w, ac.correlationID, err)
		return
	}
	response.Item(w, http.StatusOK, ac.correlationID, map[string]any{"success": true})
}

// buildParamValues resolves a TVF/procedure's declared parameters against
// the request: path-sourced parameters come from the single trailing path
// segment the router captures as key (only Position 1 is addressable this
// way), query-sourced from the URL's query string, header-sourced from the
// request headers.
func buildParamValues(params []endpoint.TVFParameter, r *http.Request, key string) sqlhandler.ParamValues {
	values := make(sqlhandler.ParamValues, len(params))
	for _, p := range params {
		switch p.Source {
		case endpoint.ParamSourcePath:
			if p.Position == 1 {
				values[p.Name] = key
			}
		case endpoint.ParamSourceQuery:
			values[p.Name] = r.URL.Query().Get(p.Key)
		case endpoint.ParamSourceHeader:
			values[p.Name] = r.Header.Get(p.Key)
		}
	}
	return values
}

// nextPageLink rebuilds the request's query string with $skip advanced to
// the next page's offset, keeping every other parameter as-is.
func nextPageLink(r *http.Request, skip int) string {
	q := r.URL.Query()
	q.Set("$skip", strconv.Itoa(skip))
	return r.URL.Path + "?" + q.Encode()
}

func (d *Dispatcher) dispatchProxy(w http.ResponseWriter, r *http.Request, ac *authContext) {
	h := proxyhandler.New(ac.def, d.ProxyConfig.DialTimeout, d.ProxyConfig.ResponseTimeout, d.ProxyConfig.MaxProxyBufferBytes)
	pathRemainder := chi.URLParam(r, "key")
	if err := h.Forward(r.Context(), w, r, ac.env, pathRemainder); err != nil {
		response.Error(w, ac.correlationID, err)
	}
}

func (d *Dispatcher) handleWebhook(w http.ResponseWriter, r *http.Request) {
	endpointName := "webhook/" + chi.URLParam(r, "id")
	ac, ok := d.resolve(w, r, endpointName)
	if !ok {
		return
	}
	if ac.def.Kind != endpoint.KindProxy {
		response.Error(w, ac.correlationID, notFoundf("endpoint %q is not a webhook-capable proxy endpoint", ac.def.FullPath()))
		return
	}
	d.dispatchProxy(w, r, ac)
}

func decodeJSONBody(r *http.Request) (map[string]any, error) {
	defer r.Body.Close()
	var body map[string]any
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&body); err != nil {
		if err == io.EOF {
			return map[string]any{}, nil
		}
		return nil, apierrors.Wrap(apierrors.BadRequest, "decode request body", err)
	}
	return body, nil
}
