package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// writeError maps service errors onto HTTP responses. Authentication
// failures are uniformly worded; which factor failed is never revealed.
func writeError(w http.ResponseWriter, log *logger.Logger, err error) {
	var rl *model.RateLimitError
	if errors.As(err, &rl) {
		seconds := int(rl.RetryAfter(time.Now()).Seconds()) + 1
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many requests, try again later"})
		return
	}

	switch {
	case errors.Is(err, model.ErrInvalidCredentials):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "invalid handle or password"})
	case errors.Is(err, model.ErrSessionInvalid),
		errors.Is(err, model.ErrSessionExpired),
		errors.Is(err, model.ErrSessionRevoked):
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
	case errors.Is(err, model.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "forbidden"})
	case errors.Is(err, model.ErrOTPInvalid):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid recovery code"})
	case errors.Is(err, model.ErrOTPExpired):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "recovery code has expired"})
	case errors.Is(err, model.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, model.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorResponse{Error: "handle or email already in use"})
	case errors.Is(err, model.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "not found"})
	default:
		log.Error("HTTP handler: request failed",
			"error", err.Error())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}
