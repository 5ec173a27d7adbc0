package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSecurity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		isDev       bool
		checkHeader string
		wantValue   string
	}{
		{name: "nosniff", checkHeader: "X-Content-Type-Options", wantValue: "nosniff"},
		{name: "frame options", checkHeader: "X-Frame-Options", wantValue: "DENY"},
		{name: "no referrer", checkHeader: "Referrer-Policy", wantValue: "no-referrer"},
		{name: "csp", checkHeader: "Content-Security-Policy", wantValue: "default-src 'none'; frame-ancestors 'none'"},
		{name: "no store", checkHeader: "Cache-Control", wantValue: "no-store"},
		{name: "hsts in production", checkHeader: "Strict-Transport-Security", wantValue: "max-age=31536000; includeSubDomains"},
		{name: "no hsts in development", isDev: true, checkHeader: "Strict-Transport-Security", wantValue: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := Security(SecurityConfig{IsDevelopment: tt.isDev})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

			if got := rec.Header().Get(tt.checkHeader); got != tt.wantValue {
				t.Errorf("header %s = %q, want %q", tt.checkHeader, got, tt.wantValue)
			}
		})
	}
}

func TestMaxBodySize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		maxBytes      int64
		contentLength int64
		body          string
		wantStatus    int
	}{
		{
			name:          "small body allowed",
			maxBytes:      1024,
			contentLength: 10,
			body:          "small body",
			wantStatus:    http.StatusOK,
		},
		{
			name:          "declared length exceeds limit",
			maxBytes:      10,
			contentLength: 100,
			body:          strings.Repeat("x", 100),
			wantStatus:    http.StatusRequestEntityTooLarge,
		},
		{
			name:          "undeclared length fails on read",
			maxBytes:      10,
			contentLength: -1,
			body:          strings.Repeat("x", 100),
			wantStatus:    http.StatusBadRequest,
		},
		{
			name:          "zero limit uses default",
			maxBytes:      0,
			contentLength: 1000,
			body:          strings.Repeat("x", 1000),
			wantStatus:    http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			handler := MaxBodySize(tt.maxBytes)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if _, err := io.Copy(io.Discard, r.Body); err != nil {
					w.WriteHeader(http.StatusBadRequest)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))
			req.ContentLength = tt.contentLength
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusRequestEntityTooLarge {
				if detail := decodeError(t, rec.Body.Bytes()); detail.Code != "PAYLOAD_TOO_LARGE" {
					t.Errorf("code = %q, want PAYLOAD_TOO_LARGE", detail.Code)
				}
			}
		})
	}
}
