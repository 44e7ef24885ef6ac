package api

import (
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/vendora/ledger-service/internal/config"
)

func newTestRouter() http.Handler {
	cfg := &config.Config{
		JWKSURL:        "http://localhost/.well-known/jwks.json",
		InternalAPIKey: "secret",
	}
	return NewRouter(newTestHandlers(&handlersRepoStub{}), cfg)
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != `{"status": "ok"}` {
		t.Fatalf("unexpected health body: %s", rec.Body.String())
	}
}

func TestRouter_PublicRoutesRequireToken(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/accounts/me", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without a bearer token, got %d", rec.Code)
	}
}

func TestRouter_InternalRoutesRequireKey(t *testing.T) {
	router := newTestRouter()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/internal/accounts", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without the internal key, got %d", rec.Code)
	}
}

func TestAllowedOrigins(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{name: "defaults when empty", raw: "", want: []string{"https://*", "http://*"}},
		{name: "defaults when blank", raw: "  ", want: []string{"https://*", "http://*"}},
		{name: "splits and trims", raw: "https://vendora.app, https://admin.vendora.app", want: []string{"https://vendora.app", "https://admin.vendora.app"}},
		{name: "drops empty entries", raw: "https://vendora.app,,", want: []string{"https://vendora.app"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := allowedOrigins(tt.raw)
			if !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
