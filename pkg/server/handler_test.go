package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/datazoode/flapi/pkg/auth"
	"github.com/datazoode/flapi/pkg/config"
	"github.com/datazoode/flapi/pkg/endpoints"
	"github.com/datazoode/flapi/pkg/engine"
	"github.com/datazoode/flapi/pkg/engine/enginetest"
	"github.com/datazoode/flapi/pkg/executor"
	"github.com/datazoode/flapi/pkg/template"
)

func customersEndpoint() *config.EndpointConfig {
	return &config.EndpointConfig{
		URLPath:        "/customers",
		Method:         "GET",
		TemplateSource: "customers.sql",
		Request: []config.RequestFieldConfig{
			{
				FieldName:  "id",
				FieldIn:    "query",
				Required:   true,
				Validators: []config.ValidatorConfig{{Type: "int", Min: 1, Max: 1000000}},
			},
		},
	}
}

func newTestServer(eng *enginetest.FakeEngine, eps ...*config.EndpointConfig) *Server {
	repo := endpoints.New()
	for _, ep := range eps {
		repo.Add(ep)
	}
	return New(repo, executor.New(eng), template.NewDefaultRenderer(),
		func(context.Context, *config.EndpointConfig) (string, error) {
			return "SELECT * FROM customers WHERE id = {{id}}", nil
		},
		auth.NewMiddleware(nil, nil), nil)
}

func TestRestHandler_ValidatedQueryParameter(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.StubDefault(enginetest.QueryResult{
		Columns: []engine.Column{
			{Name: "id", TypeName: "INTEGER"},
			{Name: "name", TypeName: "VARCHAR"},
		},
		Rows: [][]any{{int32(42), "Ada"}},
	})
	router := newTestServer(eng, customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers?id=42", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	data := body["data"].([]any)
	require.Len(t, data, 1)
	row := data[0].(map[string]any)
	assert.Equal(t, float64(42), row["id"])
	assert.Equal(t, "Ada", row["name"])

	assert.Equal(t, "SELECT * FROM customers WHERE id = 42", eng.Queries[0].SQL)
}

func TestRestHandler_ValidationFailure(t *testing.T) {
	t.Parallel()

	router := newTestServer(enginetest.New(), customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers?id=-1", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, false, body["success"])
	errObj := body["error"].(map[string]any)
	assert.Equal(t, "Validation", errObj["category"])
	assert.Equal(t, "Integer is less than the minimum allowed value", errObj["message"])
}

func TestRestHandler_MissingRequiredField(t *testing.T) {
	t.Parallel()

	router := newTestServer(enginetest.New(), customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Required field is missing")
}

func TestRestHandler_UnknownParameterRejected(t *testing.T) {
	t.Parallel()

	router := newTestServer(enginetest.New(), customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers?id=42&bogus=1", nil))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Unknown parameter")
}

func TestRestHandler_NotFound(t *testing.T) {
	t.Parallel()

	router := newTestServer(enginetest.New(), customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"NotFound"`)
}

func TestRestHandler_DatabaseError(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.StubDefault(enginetest.QueryResult{Err: assert.AnError})
	router := newTestServer(eng, customersEndpoint()).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers?id=42", nil))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), `"category":"Database"`)
}

func TestRestHandler_Pagination(t *testing.T) {
	t.Parallel()

	rows := make([][]any, 10)
	for i := range rows {
		rows[i] = []any{int32(i + 1)}
	}
	eng := enginetest.New()
	eng.StubDefault(enginetest.QueryResult{
		Columns: []engine.Column{{Name: "id", TypeName: "INTEGER"}},
		Rows:    rows,
	})

	ep := customersEndpoint()
	ep.Request[0].Required = false
	router := newTestServer(eng, ep).Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers?id=1&offset=2&limit=3", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	data := body["data"].([]any)
	require.Len(t, data, 3)
	assert.Equal(t, float64(3), data[0].(map[string]any)["id"])
	assert.Equal(t, "5", body["next"], "next cursor points at the following offset")
	assert.Equal(t, float64(10), body["total_count"])
}

func TestRestHandler_PathParametersByPosition(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.StubDefault(enginetest.QueryResult{
		Columns: []engine.Column{{Name: "ok", TypeName: "BOOLEAN"}},
		Rows:    [][]any{{true}},
	})

	ep := &config.EndpointConfig{
		URLPath:        "/customers/{cid}/orders/{oid}",
		Method:         "GET",
		TemplateSource: "t.sql",
		Request: []config.RequestFieldConfig{
			{FieldName: "customer_id", FieldIn: "path", Required: true},
			{FieldName: "order_id", FieldIn: "path", Required: true},
		},
	}
	repo := endpoints.New()
	repo.Add(ep)
	srv := New(repo, executor.New(eng), template.NewDefaultRenderer(),
		func(context.Context, *config.EndpointConfig) (string, error) {
			return "SELECT {{customer_id}}, {{order_id}}", nil
		},
		auth.NewMiddleware(nil, nil), nil)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/customers/7/orders/9", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT 7, 9", eng.Queries[0].SQL,
		"path parameters bind by declaration order")
}

func TestRestHandler_JSONBodyParameters(t *testing.T) {
	t.Parallel()

	eng := enginetest.New()
	eng.StubDefault(enginetest.QueryResult{
		Columns: []engine.Column{{Name: "ok", TypeName: "BOOLEAN"}},
		Rows:    [][]any{{true}},
	})

	ep := &config.EndpointConfig{
		URLPath:        "/search",
		Method:         "POST",
		TemplateSource: "t.sql",
		Request: []config.RequestFieldConfig{
			{FieldName: "name", FieldIn: "body", Required: true},
		},
	}
	repo := endpoints.New()
	repo.Add(ep)
	srv := New(repo, executor.New(eng), template.NewDefaultRenderer(),
		func(context.Context, *config.EndpointConfig) (string, error) {
			return "SELECT '{{name}}'", nil
		},
		auth.NewMiddleware(nil, nil), nil)

	req := httptest.NewRequest(http.MethodPost, "/search", strings.NewReader(`{"name":"ada"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "SELECT 'ada'", eng.Queries[0].SQL)
}

func TestServer_AtomicReplace(t *testing.T) {
	t.Parallel()

	srv := newTestServer(enginetest.New(), customersEndpoint())
	assert.Equal(t, 1, srv.Repository().Count())

	fresh := endpoints.New()
	fresh.Add(customersEndpoint())
	fresh.Add(&config.EndpointConfig{URLPath: "/other", TemplateSource: "o.sql"})
	srv.Replace(fresh)

	assert.Equal(t, 2, srv.Repository().Count())
}
