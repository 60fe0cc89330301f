package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"asha-agent/internal/usecase"
)

// NewHTTP returns a net/http adapter over the same chat use case, used by
// the local development server. Identity and error mapping behave exactly
// like the Lambda handler.
func NewHTTP(uc UseCase) (http.Handler, error) {
	if uc == nil {
		return nil, errors.New("handler: use case must not be nil")
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		correlationID := r.Header.Get("X-Correlation-Id")
		if correlationID == "" {
			correlationID = uuid.NewString()
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Correlation-Id", correlationID)

		cookie, err := r.Cookie(identityCookieName)
		if err != nil || cookie.Value == "" {
			writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "IDENTITY_MISSING"})
			return
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidInput), Reason: "malformed_body"})
			return
		}

		out, err := uc.Chat(r.Context(), usecase.ChatInput{SessionKey: cookie.Value, Message: req.Message})
		if err != nil {
			status, body := mapError(err)
			slog.Error("chat turn failed", "correlation_id", correlationID, "status", status, "err", err)
			writeJSON(w, status, body)
			return
		}

		writeJSON(w, http.StatusOK, chatResponse{Response: out.Reply})
	}), nil
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", "err", err)
	}
}
