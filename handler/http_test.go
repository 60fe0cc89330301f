package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"asha-agent/internal/usecase"
)

func doChatRequest(t *testing.T, h http.Handler, cookie, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	if cookie != "" {
		req.Header.Set("Cookie", cookie)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestNewHTTP_NilUseCase(t *testing.T) {
	_, err := NewHTTP(nil)
	require.Error(t, err)
}

func TestHTTP_HappyPath(t *testing.T) {
	uc := &mockUseCase{out: usecase.ChatOutput{Reply: "Hello!"}}
	h, err := NewHTTP(uc)
	require.NoError(t, err)

	rec := doChatRequest(t, h, "user_email=riya@example.com", `{"message":"hi"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	require.NotEmpty(t, rec.Header().Get("X-Correlation-Id"))

	var body chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "Hello!", body.Response)
	require.Equal(t, "riya@example.com", uc.captured.SessionKey)
}

func TestHTTP_MissingIdentityCookie(t *testing.T) {
	uc := &mockUseCase{}
	h, err := NewHTTP(uc)
	require.NoError(t, err)

	rec := doChatRequest(t, h, "", `{"message":"hi"}`)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "IDENTITY_MISSING", body.Error)
	require.False(t, uc.invoked)
}

func TestHTTP_MalformedBody(t *testing.T) {
	h, err := NewHTTP(&mockUseCase{})
	require.NoError(t, err)

	rec := doChatRequest(t, h, "user_email=riya@example.com", "{not json")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "INVALID_INPUT", body.Error)
	require.Equal(t, "malformed_body", body.Reason)
}

func TestHTTP_ErrorMapping(t *testing.T) {
	h, err := NewHTTP(&mockUseCase{err: ucError(usecase.ErrorRateLimited, "model_rate_limited")})
	require.NoError(t, err)

	rec := doChatRequest(t, h, "user_email=riya@example.com", `{"message":"hi"}`)
	require.Equal(t, http.StatusTooManyRequests, rec.Code)

	var body errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "RATE_LIMITED", body.Error)
}

func TestHTTP_CorrelationIDEchoed(t *testing.T) {
	h, err := NewHTTP(&mockUseCase{out: usecase.ChatOutput{Reply: "ok"}})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Cookie", "user_email=riya@example.com")
	req.Header.Set("X-Correlation-Id", "req-456")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, "req-456", rec.Header().Get("X-Correlation-Id"))
}
