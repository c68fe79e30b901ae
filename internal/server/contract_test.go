package server

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const specServer = "http://localhost:8080"

// loadSpec loads and validates the OpenAPI document.
func loadSpec(t *testing.T) (*openapi3.T, routers.Router) {
	t.Helper()

	path := filepath.Join("..", "..", "docs", "api", "openapi.yaml")

	loader := openapi3.NewLoader()
	spec, err := loader.LoadFromFile(path)
	require.NoError(t, err, "load OpenAPI document from %s", path)
	require.NoError(t, spec.Validate(context.Background()), "OpenAPI document validation")

	router, err := gorillamux.NewRouter(spec)
	require.NoError(t, err, "create router from document")

	return spec, router
}

func TestOpenAPISpecValid(t *testing.T) {
	_, _ = loadSpec(t)
}

// TestOpenAPIDocumentsEveryRoute keeps the document in step with the router.
func TestOpenAPIDocumentsEveryRoute(t *testing.T) {
	spec, _ := loadSpec(t)
	env := newTestEnv(t, nil)

	routes, ok := env.handler.(chi.Routes)
	require.True(t, ok, "router does not expose its routes")

	err := chi.Walk(routes, func(method, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		if route == "/metrics" {
			return nil
		}
		if len(route) > 1 {
			route = strings.TrimSuffix(route, "/")
		}

		item := spec.Paths.Find(route)
		if !assert.NotNil(t, item, "route %s %s is not documented", method, route) {
			return nil
		}
		assert.NotNil(t, item.GetOperation(method), "operation %s %s is not documented", method, route)
		return nil
	})
	require.NoError(t, err)
}

// TestResponsesMatchSpec drives the real router and validates each response
// against the document.
func TestResponsesMatchSpec(t *testing.T) {
	_, specRouter := loadSpec(t)
	env := newTestEnv(t, nil)
	env.admins.grant("admin-1")
	adminToken := env.token(t, "admin-1")

	issued := env.do(t, http.MethodPost, "/api/v1/licenses", adminToken, `{"count": 2}`)
	require.Equal(t, http.StatusCreated, issued.Code, issued.Body.String())
	existingKey := env.licenses.keys()[0]

	testCases := []struct {
		name         string
		method       string
		path         string
		token        string
		body         string
		wantStatus   int
		validRequest bool
	}{
		{"service info", http.MethodGet, "/", "", "", http.StatusOK, true},
		{"healthz", http.MethodGet, "/healthz", "", "", http.StatusOK, true},
		{"readyz", http.MethodGet, "/readyz", "", "", http.StatusOK, true},
		{"session", http.MethodGet, "/api/v1/session", adminToken, "", http.StatusOK, true},
		{"session unauthorized", http.MethodGet, "/api/v1/session", "", "", http.StatusUnauthorized, true},
		{"issue", http.MethodPost, "/api/v1/licenses", adminToken, `{"count": 3}`, http.StatusCreated, true},
		{"issue invalid count", http.MethodPost, "/api/v1/licenses", adminToken, `{"count": 0}`, http.StatusBadRequest, false},
		{"list", http.MethodGet, "/api/v1/licenses?limit=2&offset=1", adminToken, "", http.StatusOK, true},
		{"list bad limit", http.MethodGet, "/api/v1/licenses?limit=500", adminToken, "", http.StatusBadRequest, false},
		{"get", http.MethodGet, "/api/v1/licenses/" + existingKey, adminToken, "", http.StatusOK, true},
		{"get missing", http.MethodGet, "/api/v1/licenses/ZZZZ-ZZZZ-ZZZZ-ZZZZ", adminToken, "", http.StatusNotFound, true},
		{"get malformed", http.MethodGet, "/api/v1/licenses/bad", adminToken, "", http.StatusBadRequest, true},
		{"non-admin denied", http.MethodGet, "/api/v1/licenses", env.token(t, "user-1"), "", http.StatusForbidden, true},
		{"sign out", http.MethodPost, "/api/v1/session/signout", env.token(t, "admin-1"), "", http.StatusNoContent, true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			req := newRequest(tc.method, specServer+tc.path, tc.token, tc.body)

			route, pathParams, err := specRouter.FindRoute(req)
			require.NoError(t, err, "find route in document")

			reqInput := &openapi3filter.RequestValidationInput{
				Request:    req,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
				},
			}
			if tc.validRequest {
				require.NoError(t, openapi3filter.ValidateRequest(context.Background(), reqInput), "request does not match document")
			}

			rec := httptest.NewRecorder()
			env.handler.ServeHTTP(rec, newRequest(tc.method, specServer+tc.path, tc.token, tc.body))

			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			respInput := &openapi3filter.ResponseValidationInput{
				RequestValidationInput: reqInput,
				Status:                 rec.Code,
				Header:                 rec.Header(),
				Body:                   io.NopCloser(bytes.NewReader(rec.Body.Bytes())),
				Options:                &openapi3filter.Options{IncludeResponseStatus: true},
			}
			assert.NoError(t, openapi3filter.ValidateResponse(context.Background(), respInput), "body: %s", rec.Body.String())
		})
	}
}
