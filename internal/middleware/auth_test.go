package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/partnerportal/portal/internal/auth"
	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/service"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTokens(t *testing.T, now func() time.Time) *auth.TokenService {
	t.Helper()
	tokens, err := auth.NewTokenService(auth.TokenConfig{Secret: []byte(testSecret), Now: now})
	if err != nil {
		t.Fatalf("NewTokenService failed: %v", err)
	}
	return tokens
}

func decodeError(t *testing.T, body []byte) errorDetail {
	t.Helper()
	var env errorBody
	if err := json.Unmarshal(body, &env); err != nil {
		t.Fatalf("response is not an error envelope: %v (%s)", err, body)
	}
	return env.Error
}

func TestRequireSession(t *testing.T) {
	t.Parallel()

	tokens := newTokens(t, nil)
	session, _ := tokens.IssueSession("01HUSER", "ada@example.com")
	reset, _ := tokens.IssuePasswordReset("01HUSER", "ada@example.com")

	past := newTokens(t, func() time.Time { return time.Now().Add(-8 * 24 * time.Hour) })
	expired, _ := past.IssueSession("01HUSER", "ada@example.com")

	tests := []struct {
		name       string
		header     string
		wantStatus int
	}{
		{name: "valid session", header: "Bearer " + session, wantStatus: http.StatusOK},
		{name: "lowercase scheme", header: "bearer " + session, wantStatus: http.StatusOK},
		{name: "missing header", header: "", wantStatus: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic " + session, wantStatus: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer nope", wantStatus: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, wantStatus: http.StatusUnauthorized},
		{name: "reset token is not a session", header: "Bearer " + reset, wantStatus: http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var gotUser string
			handler := RequireSession(SessionConfig{Logger: discardLogger(), Tokens: tokens})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					gotUser = auth.UserIDFromContext(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/profile", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantStatus == http.StatusOK {
				if gotUser != "01HUSER" {
					t.Errorf("user id = %q, want 01HUSER", gotUser)
				}
				return
			}
			if detail := decodeError(t, rec.Body.Bytes()); detail.Code != "UNAUTHORIZED" {
				t.Errorf("code = %q, want UNAUTHORIZED", detail.Code)
			}
		})
	}
}

type stubValidator struct {
	integration *model.Integration
	err         error
}

func (s stubValidator) ValidateAPIKey(_ context.Context, key string) (*model.Integration, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.integration == nil || key != s.integration.APIKey {
		return nil, service.ErrForbidden
	}
	return s.integration, nil
}

func TestRequireAPIKey(t *testing.T) {
	t.Parallel()

	in := &model.Integration{ID: "01HINT", String: "acme", APIKey: "ppk_" + strings.Repeat("a", 64)}

	tests := []struct {
		name        string
		key         string
		validator   stubValidator
		wantStatus  int
		wantCode    string
		wantPadding bool
	}{
		{name: "valid key", key: in.APIKey, validator: stubValidator{integration: in}, wantStatus: http.StatusOK},
		{name: "missing key", key: "", validator: stubValidator{integration: in}, wantStatus: http.StatusUnauthorized, wantCode: "UNAUTHORIZED", wantPadding: true},
		{name: "unknown key", key: "ppk_" + strings.Repeat("b", 64), validator: stubValidator{integration: in}, wantStatus: http.StatusForbidden, wantCode: "FORBIDDEN", wantPadding: true},
		{name: "store failure", key: in.APIKey, validator: stubValidator{err: errors.New("db down")}, wantStatus: http.StatusInternalServerError, wantCode: "INTERNAL_ERROR", wantPadding: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var got *model.Integration
			handler := RequireAPIKey(APIKeyConfig{Logger: discardLogger(), Validator: tt.validator})(
				http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
					got = auth.IntegrationFromContext(r.Context())
					w.WriteHeader(http.StatusOK)
				}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/partner/me", nil)
			if tt.key != "" {
				req.Header.Set(APIKeyHeader, tt.key)
			}
			rec := httptest.NewRecorder()

			start := time.Now()
			handler.ServeHTTP(rec, req)
			elapsed := time.Since(start)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if tt.wantCode != "" {
				if detail := decodeError(t, rec.Body.Bytes()); detail.Code != tt.wantCode {
					t.Errorf("code = %q, want %q", detail.Code, tt.wantCode)
				}
			}
			if tt.wantStatus == http.StatusOK && got != in {
				t.Errorf("integration not stored in context")
			}
			if tt.wantPadding && elapsed < minAuthDuration {
				t.Errorf("rejection took %v, want at least %v", elapsed, minAuthDuration)
			}
		})
	}
}

func TestRequireAPIKey_DoesNotLogKey(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	key := "ppk_" + strings.Repeat("c", 64)
	in := &model.Integration{ID: "01HINT", APIKey: key}

	handler := Logger(logger)(RequireAPIKey(APIKeyConfig{Logger: logger, Validator: stubValidator{integration: in}})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/partner/me", nil)
	req.Header.Set(APIKeyHeader, key)
	handler.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, key) {
		t.Fatalf("log output contains the API key: %s", out)
	}
	if !strings.Contains(out, `"integration_id":"01HINT"`) {
		t.Errorf("access log does not name the integration: %s", out)
	}
}
