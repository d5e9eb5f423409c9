package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	tests := []struct {
		name       string
		allowed    []string
		origin     string
		method     string
		wantAllow  string
		wantStatus int
	}{
		{
			name:       "listed origin allowed",
			allowed:    []string{"https://dash.example.com"},
			origin:     "https://dash.example.com",
			method:     http.MethodGet,
			wantAllow:  "https://dash.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "unlisted origin gets no header",
			allowed:    []string{"https://dash.example.com"},
			origin:     "https://evil.example.com",
			method:     http.MethodGet,
			wantAllow:  "",
			wantStatus: http.StatusOK,
		},
		{
			name:       "empty allow-list permits every origin",
			allowed:    nil,
			origin:     "https://anywhere.example.com",
			method:     http.MethodGet,
			wantAllow:  "https://anywhere.example.com",
			wantStatus: http.StatusOK,
		},
		{
			name:       "preflight short-circuits",
			allowed:    []string{"*"},
			origin:     "https://dash.example.com",
			method:     http.MethodOptions,
			wantAllow:  "https://dash.example.com",
			wantStatus: http.StatusNoContent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/health", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()

			CORS(tt.allowed)(next).ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.wantAllow {
				t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, tt.wantAllow)
			}
		})
	}
}
