// Package server wires endpoints, middlewares and the MCP surface onto the
// HTTP router.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/errors"
	"github.com/datazoode/flapi/pkg/executor"
	"github.com/datazoode/flapi/pkg/template"
	"github.com/datazoode/flapi/pkg/validation"
)

// successEnvelope is the REST success body.
type successEnvelope struct {
	Data       []map[string]any `json:"data"`
	Next       string           `json:"next,omitempty"`
	TotalCount *int             `json:"total_count,omitempty"`
}

// RestHandler serves one endpoint: parameter extraction, validation, template
// rendering, execution and pagination.
type RestHandler struct {
	endpoint     *config.EndpointConfig
	executor     *executor.Executor
	renderer     template.Renderer
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error)
}

// NewRestHandler creates the handler for one endpoint.
func NewRestHandler(ep *config.EndpointConfig, exec *executor.Executor, renderer template.Renderer,
	readTemplate func(ctx context.Context, ep *config.EndpointConfig) (string, error)) *RestHandler {
	return &RestHandler{endpoint: ep, executor: exec, renderer: renderer, readTemplate: readTemplate}
}

// ServeHTTP implements http.Handler.
func (h *RestHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	params, err := h.extractParameters(r)
	if err != nil {
		errors.WriteHTTP(w, errors.NewValidationError("Request body must be valid JSON"))
		return
	}

	if errs := validation.ValidateRequestFields(h.endpoint.Request, params); len(errs) > 0 {
		errors.WriteHTTPDetails(w, errors.NewValidationError(errs[0].Message), errs)
		return
	}
	if errs := validation.ValidateRequestParameters(h.endpoint.Request, params); len(errs) > 0 {
		errors.WriteHTTPDetails(w, errors.NewValidationError(errs[0].Message), errs)
		return
	}

	offset, limit, err := parsePagination(params)
	if err != nil {
		errors.WriteHTTP(w, errors.AsError(err))
		return
	}

	renderParams := make(map[string]any, len(params))
	for k, v := range params {
		if k == "offset" || k == "limit" {
			continue
		}
		renderParams[k] = v
	}
	for i := range h.endpoint.Request {
		f := &h.endpoint.Request[i]
		if _, ok := renderParams[f.FieldName]; !ok && f.Default != "" {
			renderParams[f.FieldName] = f.Default
		}
	}

	source, err := h.readTemplate(r.Context(), h.endpoint)
	if err != nil {
		errors.WriteHTTP(w, errors.NewInternalError("Failed to load endpoint template", err))
		return
	}
	sql, err := h.renderer.Render(source, renderParams)
	if err != nil {
		errors.WriteHTTP(w, errors.NewInternalError("Failed to render endpoint template", err))
		return
	}

	rows, err := h.executor.Execute(r.Context(), sql, nil)
	if err != nil {
		errors.WriteHTTP(w, errors.AsError(err))
		return
	}

	writeSuccess(w, paginate(rows, offset, limit))
}

// extractParameters collects path, query, header and JSON-body parameters
// into one string map. Query values replace path values and header values
// replace both; JSON-body values only fill names not already set.
func (h *RestHandler) extractParameters(r *http.Request) (map[string]string, error) {
	params := map[string]string{}

	// Path parameters bind by position: declared path fields map onto the
	// route's URL parameters in order.
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		pathFields := make([]string, 0, 2)
		for i := range h.endpoint.Request {
			if h.endpoint.Request[i].FieldIn == "path" {
				pathFields = append(pathFields, h.endpoint.Request[i].FieldName)
			}
		}
		for i, value := range rctx.URLParams.Values {
			if i < len(pathFields) {
				params[pathFields[i]] = value
			}
		}
	}

	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}

	for i := range h.endpoint.Request {
		f := &h.endpoint.Request[i]
		if f.FieldIn == "header" {
			if v := r.Header.Get(f.FieldName); v != "" {
				params[f.FieldName] = v
			}
		}
	}

	if isJSONBody(r) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			return nil, err
		}
		for k, v := range body {
			if _, exists := params[k]; exists {
				continue
			}
			switch s := v.(type) {
			case string:
				params[k] = s
			case nil:
				params[k] = ""
			default:
				raw, _ := json.Marshal(v)
				params[k] = string(raw)
			}
		}
	}

	return params, nil
}

func isJSONBody(r *http.Request) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return false
	}
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// parsePagination reads the always-permitted offset and limit parameters.
func parsePagination(params map[string]string) (offset, limit int, err error) {
	limit = -1
	if raw, ok := params["offset"]; ok {
		offset, err = strconv.Atoi(raw)
		if err != nil || offset < 0 {
			return 0, 0, errors.NewValidationError("offset must be a non-negative integer")
		}
	}
	if raw, ok := params["limit"]; ok {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return 0, 0, errors.NewValidationError("limit must be a positive integer")
		}
	}
	return offset, limit, nil
}

// paginate applies offset/limit and computes the next cursor.
func paginate(rows []map[string]any, offset, limit int) successEnvelope {
	total := len(rows)
	if offset >= len(rows) {
		rows = nil
	} else {
		rows = rows[offset:]
	}
	env := successEnvelope{TotalCount: &total}
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
		env.Next = strconv.Itoa(offset + limit)
	}
	env.Data = rows
	return env
}

func writeSuccess(w http.ResponseWriter, env successEnvelope) {
	if env.Data == nil {
		env.Data = []map[string]any{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(env)
}
