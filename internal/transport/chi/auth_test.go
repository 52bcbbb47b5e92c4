package chi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestBearerAuth(t *testing.T) {
	tests := []struct {
		name     string
		keys     []string
		path     string
		header   string
		wantCode int
	}{
		{"no keys configured", nil, "/progress", "", http.StatusOK},
		{"only empty keys", []string{""}, "/progress", "", http.StatusOK},
		{"missing header", []string{"secret"}, "/progress", "", http.StatusUnauthorized},
		{"basic scheme", []string{"secret"}, "/progress", "Basic c2VjcmV0", http.StatusUnauthorized},
		{"wrong token", []string{"secret"}, "/progress", "Bearer nope", http.StatusUnauthorized},
		{"token prefix only", []string{"secret"}, "/progress", "Bearer secre", http.StatusUnauthorized},
		{"valid token", []string{"secret"}, "/progress", "Bearer secret", http.StatusOK},
		{"second key", []string{"k1", "k2"}, "/progress", "Bearer k2", http.StatusOK},
		{"healthz exempt", []string{"secret"}, "/healthz", "", http.StatusOK},
		{"metrics exempt", []string{"secret"}, "/metrics", "", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, http.NoBody)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			BearerAuthMiddleware(tt.keys)(okHandler()).ServeHTTP(rr, req)

			if rr.Code != tt.wantCode {
				t.Fatalf("got %d, want %d", rr.Code, tt.wantCode)
			}
			if tt.wantCode != http.StatusUnauthorized {
				return
			}
			var body errorResponse
			if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != codeUnauthorized || body.Message == "" {
				t.Errorf("unexpected error body %+v", body)
			}
		})
	}
}
