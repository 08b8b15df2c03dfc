package transport

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marcus-ai/marcus/pkg/config"
	"github.com/marcus-ai/marcus/pkg/infrastructure/eventbus"
	"github.com/marcus-ai/marcus/pkg/logger"
)

func testHTTPServer(t *testing.T, apiKey string) (*HTTPServer, http.Handler) {
	t.Helper()
	d := NewDispatcher(testContainer(t, newFakeKanban()))
	log := logger.New(io.Discard, logger.LevelError)
	s := NewHTTPServer(config.TransportConfig{APIKey: apiKey}, d, eventbus.New(), log)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/agent", s.endpointHandler(EndpointAgent))
	mux.HandleFunc("/human", s.endpointHandler(EndpointHuman))
	handler := corsMiddleware(s.authMiddleware(mux))
	return s, handler
}

func postJSON(t *testing.T, handler http.Handler, path string, body map[string]interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHandleHealthIsExemptFromAuth(t *testing.T) {
	_, handler := testHTTPServer(t, "secret-key")
	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpointHandlerRejectsRequestWithoutToken(t *testing.T) {
	_, handler := testHTTPServer(t, "secret-key")
	rec := postJSON(t, handler, "/agent", map[string]interface{}{"tool": "ping", "args": map[string]interface{}{}}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestEndpointHandlerAcceptsBearerToken(t *testing.T) {
	_, handler := testHTTPServer(t, "secret-key")
	rec := postJSON(t, handler, "/agent", map[string]interface{}{"tool": "ping", "args": map[string]interface{}{}},
		map[string]string{"Authorization": "Bearer secret-key"})

	assert.Equal(t, http.StatusOK, rec.Code)
	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, true, env["success"])
}

func TestEndpointHandlerAcceptsAPIKeyHeader(t *testing.T) {
	_, handler := testHTTPServer(t, "secret-key")
	rec := postJSON(t, handler, "/agent", map[string]interface{}{"tool": "ping", "args": map[string]interface{}{}},
		map[string]string{"X-API-Key": "secret-key"})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestEndpointHandlerRejectsMethodOtherThanPost(t *testing.T) {
	_, handler := testHTTPServer(t, "")
	req := httptest.NewRequest(http.MethodGet, "/agent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEndpointHandlerRejectsMalformedBody(t *testing.T) {
	_, handler := testHTTPServer(t, "")
	req := httptest.NewRequest(http.MethodPost, "/agent", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEndpointHandlerRoutesToCorrectEndpointToolSet(t *testing.T) {
	_, handler := testHTTPServer(t, "")
	rec := postJSON(t, handler, "/human", map[string]interface{}{"tool": "register_agent", "args": map[string]interface{}{}}, nil)

	var env map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, false, env["success"], "register_agent is not available on the human endpoint")
	assert.Equal(t, "UNKNOWN_TOOL", env["code"])
}

func TestCORSMiddlewareHandlesPreflightRequest(t *testing.T) {
	_, handler := testHTTPServer(t, "")
	req := httptest.NewRequest(http.MethodOptions, "/agent", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractTokenPrefersBearerOverAPIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/agent", nil)
	req.Header.Set("Authorization", "Bearer from-bearer")
	req.Header.Set("X-API-Key", "from-api-key")
	assert.Equal(t, "from-bearer", extractToken(req))
}
