package handler

import (
	"net/http"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
)

// Me returns the caller's resolved identity. The gateway has already
// authenticated the request; an empty context here means it was
// misrouted around the gateway.
func Me(w http.ResponseWriter, r *http.Request) {
	identity, ok := model.IdentityFromContext(r.Context())
	if !ok {
		writeJSON(w, http.StatusUnauthorized, errorResponse{Error: "authentication required"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]userResponse{"user": {
		ID:     identity.UserID.String(),
		Handle: identity.Handle,
		Role:   string(identity.Role),
		Unit:   identity.Unit,
	}})
}
