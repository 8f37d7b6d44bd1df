package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/gateway"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/scope"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/secret"
	"github.com/winnieniu/turnstile-audirectdebit-gw/internal/webform"
)

var authKey = []byte("service shared key")

func newTestServer(t *testing.T) *Server {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("http test signing secret"), 0o600))
	store, err := secret.NewStore(path, secret.AlgorithmHmacSHA256)
	require.NoError(t, err)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(webform.NewAuthenticator(store), nil, log)
	return New(":0", gw, scope.NewParser(authKey), log)
}

func bearer(t *testing.T) string {
	t.Helper()
	token, err := scope.NewParser(authKey).Sign(scope.Scope{
		TID:       42,
		Principal: uuid.MustParse("11111111-1111-1111-1111-111111111111"),
	})
	require.NoError(t, err)
	return "Bearer " + token
}

func postJSON(t *testing.T, handler http.Handler, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestServer(t).Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGatewayRoutesRequireAuth(t *testing.T) {
	router := newTestServer(t).Router()

	rec := postJSON(t, router, "/gateway/audirectdebit/capture-url", "", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = postJSON(t, router, "/gateway/audirectdebit/capture-url", "Bearer garbage", map[string]any{})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCaptureURLEndpoint(t *testing.T) {
	router := newTestServer(t).Router()
	body := gateway.TokeniseRequest{
		EndUserIPAddress: "203.0.113.5",
		AccountID:        "22222222-2222-2222-2222-222222222222",
		PaymentMethodID:  "33333333-3333-3333-3333-333333333333",
		ReturnURL:        "https://portal.example.com/done",
		Config:           json.RawMessage(`{"institution":701,"tokenCaptureUrl":"https://pay.example.com/{gw}"}`),
	}

	rec := postJSON(t, router, "/gateway/audirectdebit/capture-url", bearer(t), body)
	require.Equal(t, http.StatusOK, rec.Code)

	var result gateway.WebFormResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, gateway.WebFormOK, result.Status)
	assert.Contains(t, result.RedirectURL, "hmac=")
	assert.Contains(t, result.RedirectURL, "fct=")
}

func TestCaptureURLEndpointBadRequest(t *testing.T) {
	router := newTestServer(t).Router()
	body := gateway.TokeniseRequest{
		EndUserIPAddress: "not-an-ip",
		AccountID:        "22222222-2222-2222-2222-222222222222",
		PaymentMethodID:  "33333333-3333-3333-3333-333333333333",
		ReturnURL:        "https://portal.example.com/done",
		Config:           json.RawMessage(`{"institution":701,"tokenCaptureUrl":"https://pay.example.com/{gw}"}`),
	}
	rec := postJSON(t, router, "/gateway/audirectdebit/capture-url", bearer(t), body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	// Error responses never include MAC material.
	assert.NotContains(t, rec.Body.String(), "hmac=")
}

func TestNotSupportedEndpoints(t *testing.T) {
	router := newTestServer(t).Router()
	for _, path := range []string{
		"/gateway/audirectdebit/cpp-url",
		"/gateway/audirectdebit/cpp-query",
		"/gateway/audirectdebit/cnp-transfer",
		"/gateway/audirectdebit/token-delete",
	} {
		rec := postJSON(t, router, path, bearer(t), map[string]any{})
		require.Equal(t, http.StatusOK, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "OPERATION_NOT_SUPPORTED", path)
	}
}

func TestRunReturnsListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	s := newTestServer(t)
	s.addr = ln.Addr().String()

	done := make(chan error, 1)
	go func() {
		done <- s.Run(context.Background())
	}()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the listener failed to bind")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s := newTestServer(t)

	done := make(chan error, 1)
	go func() {
		done <- s.Run(ctx)
	}()
	// Give the listener a moment to come up before asking it to stop.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after the context was cancelled")
	}
}

func TestMalformedBody(t *testing.T) {
	router := newTestServer(t).Router()
	req := httptest.NewRequest(http.MethodPost, "/gateway/audirectdebit/capture-url",
		bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", bearer(t))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
