package handler

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/partnerportal/portal/internal/handler/dto"
	"github.com/partnerportal/portal/internal/model"
	"github.com/partnerportal/portal/internal/service"
)

func TestAuthHandler_Register(t *testing.T) {
	api := newTestAPI(t)

	result := api.register(t, "  Ada@Example.com ")
	assert.Equal(t, "ada@example.com", result.User.Email)
	assert.True(t, result.User.IsActive)
	assert.NotEmpty(t, result.AccessToken)

	rec := api.do(t, http.MethodPost, "/api/v1/auth/register", dto.RegisterRequest{Email: "ada@example.com", Password: "another-pass"}, nil)
	require.Equal(t, http.StatusConflict, rec.Code)
	body := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "CONFLICT", body.Error.Code)
	assert.Equal(t, service.MsgEmailTaken, body.Error.Message)
}

func TestAuthHandler_RegisterRejectsBadInput(t *testing.T) {
	api := newTestAPI(t)

	tests := []struct {
		name     string
		body     any
		wantCode string
	}{
		{name: "malformed json", body: "{not json", wantCode: "INVALID_JSON"},
		{name: "bad email", body: dto.RegisterRequest{Email: "nope", Password: "correct-horse"}, wantCode: "VALIDATION_ERROR"},
		{name: "short password", body: dto.RegisterRequest{Email: "a@example.com", Password: "short"}, wantCode: "VALIDATION_ERROR"},
		{name: "long password", body: dto.RegisterRequest{Email: "a@example.com", Password: strings.Repeat("p", 129)}, wantCode: "VALIDATION_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/v1/auth/register", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, tt.wantCode, decode[dto.ErrorResponse](t, rec).Error.Code)
		})
	}
}

func TestAuthHandler_LoginAndProfile(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "ada@example.com")

	rec := api.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ADA@example.com", Password: "correct-horse"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	login := decode[service.AuthResult](t, rec)
	require.NotEmpty(t, login.AccessToken)

	rec = api.do(t, http.MethodGet, "/api/v1/auth/profile", nil, bearer(login.AccessToken))
	require.Equal(t, http.StatusOK, rec.Code)
	profile := decode[model.UserResponse](t, rec)
	assert.Equal(t, login.User.ID, profile.ID)
	assert.NotContains(t, rec.Body.String(), "password")

	rec = api.do(t, http.MethodGet, "/api/v1/auth/profile", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_LoginFailuresLookAlike(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "ada@example.com")

	wrongPassword := api.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ada@example.com", Password: "wrong-horse"}, nil)
	unknownEmail := api.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "bob@example.com", Password: "correct-horse"}, nil)

	for _, rec := range []*httptest.ResponseRecorder{wrongPassword, unknownEmail} {
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, service.MsgInvalidCredentials, decode[dto.ErrorResponse](t, rec).Error.Message)
	}
	assert.Equal(t, wrongPassword.Body.String(), unknownEmail.Body.String())
}

func TestAuthHandler_PasswordResetFlow(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "ada@example.com")

	rec := api.do(t, http.MethodPost, "/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{Email: "ada@example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.MsgResetRequested, decode[dto.MessageResponse](t, rec).Message)

	token := api.notifier.token()
	require.NotEmpty(t, token)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/validate-reset-token", dto.ValidateResetTokenRequest{Token: token}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decode[service.ResetTokenStatus](t, rec).Valid)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/reset-password", dto.ResetPasswordRequest{Token: token, NewPassword: "battery-staple"}, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, service.MsgResetDone, decode[dto.MessageResponse](t, rec).Message)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ada@example.com", Password: "battery-staple"}, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/login", dto.LoginRequest{Email: "ada@example.com", Password: "correct-horse"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthHandler_ForgotPassword(t *testing.T) {
	api := newTestAPI(t)
	api.register(t, "ada@example.com")

	rec := api.do(t, http.MethodPost, "/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{Email: "nobody@example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, service.MsgResetRequested, decode[dto.MessageResponse](t, rec).Message)

	api.notifier.mu.Lock()
	api.notifier.fail = true
	api.notifier.mu.Unlock()

	rec = api.do(t, http.MethodPost, "/api/v1/auth/forgot-password", dto.ForgotPasswordRequest{Email: "ada@example.com"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "DELIVERY_FAILED", body.Error.Code)
	assert.Equal(t, service.MsgDeliveryFailed, body.Error.Message)
}

func TestAuthHandler_ResetTokenRejections(t *testing.T) {
	api := newTestAPI(t)
	session := api.register(t, "ada@example.com")

	rec := api.do(t, http.MethodPost, "/api/v1/auth/validate-reset-token", dto.ValidateResetTokenRequest{Token: "garbage"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[service.ResetTokenStatus](t, rec)
	assert.False(t, status.Valid)
	assert.Equal(t, service.MsgResetInvalid, status.Reason)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/reset-password", dto.ResetPasswordRequest{Token: session.AccessToken, NewPassword: "battery-staple"}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[dto.ErrorResponse](t, rec)
	assert.Equal(t, "INVALID_TOKEN", body.Error.Code)
	assert.Equal(t, service.MsgResetWrongType, body.Error.Message)

	rec = api.do(t, http.MethodPost, "/api/v1/auth/validate-reset-token", dto.ValidateResetTokenRequest{}, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
