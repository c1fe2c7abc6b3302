package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/request"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/service"
)

// genericRecoveryMessage is returned whether or not an account exists
// for the supplied identifier.
const genericRecoveryMessage = "if an account exists for that identifier, a recovery code has been sent"

// Recovery serves the two-phase password recovery endpoints.
type Recovery struct {
	recovery *service.Recovery
	logger   *logger.Logger
}

func NewRecovery(recovery *service.Recovery, logger *logger.Logger) *Recovery {
	return &Recovery{recovery: recovery, logger: logger}
}

type recoveryRequestRequest struct {
	Identifier string `json:"identifier"`
}

func (h *Recovery) Request(w http.ResponseWriter, r *http.Request) {
	var req recoveryRequestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.recovery.Request(r.Context(), req.Identifier, request.ClientIP(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": genericRecoveryMessage})
}

type recoveryConfirmRequest struct {
	Identifier  string `json:"identifier"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

func (h *Recovery) Confirm(w http.ResponseWriter, r *http.Request) {
	var req recoveryConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	if err := h.recovery.Confirm(r.Context(), req.Identifier, req.Code, req.NewPassword, request.ClientIP(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}
