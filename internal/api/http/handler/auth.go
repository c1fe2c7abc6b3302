package handler

import (
	"encoding/json"
	"net/http"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/cookie"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/request"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/service"
)

// Auth serves the login, logout, and registration endpoints.
type Auth struct {
	identity *service.Identity
	sessions *service.Session
	cookies  cookie.Config
	logger   *logger.Logger
}

func NewAuth(identity *service.Identity, sessions *service.Session, cookies cookie.Config, logger *logger.Logger) *Auth {
	return &Auth{identity: identity, sessions: sessions, cookies: cookies, logger: logger}
}

type userResponse struct {
	ID     string `json:"id"`
	Handle string `json:"handle"`
	Role   string `json:"role"`
	Unit   string `json:"unit,omitempty"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:     u.ID.String(),
		Handle: u.Handle,
		Role:   string(u.Role),
		Unit:   u.Unit,
	}
}

type loginRequest struct {
	Handle     string `json:"handle"`
	Password   string `json:"password"`
	BotToken   string `json:"bot_token"`
	RememberMe bool   `json:"remember_me"`
}

func (h *Auth) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	result, err := h.identity.Login(r.Context(), service.LoginInput{
		Handle:     req.Handle,
		Password:   req.Password,
		BotToken:   req.BotToken,
		ClientIP:   request.ClientIP(r),
		RememberMe: req.RememberMe,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	issued := h.cookies.Issue(
		result.Tokens.Access, result.Tokens.Refresh, result.RememberMe,
		h.sessions.AccessTTL(), h.sessions.RefreshTTL(),
	)
	for _, c := range issued {
		http.SetCookie(w, c)
	}

	writeJSON(w, http.StatusOK, map[string]userResponse{"user": toUserResponse(result.User)})
}

func (h *Auth) Logout(w http.ResponseWriter, r *http.Request) {
	var refresh string
	if c, err := r.Cookie(h.cookies.RefreshName); err == nil {
		refresh = c.Value
	}

	if err := h.identity.Logout(r.Context(), refresh); err != nil {
		writeError(w, h.logger, err)
		return
	}

	for _, c := range h.cookies.Clear() {
		http.SetCookie(w, c)
	}

	w.WriteHeader(http.StatusNoContent)
}

type registerRequest struct {
	Handle   string `json:"handle"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Unit     string `json:"unit"`
	BotToken string `json:"bot_token"`
}

func (h *Auth) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "malformed request body"})
		return
	}

	user, err := h.identity.Register(r.Context(), service.RegisterInput{
		Handle:   req.Handle,
		Email:    req.Email,
		Password: req.Password,
		Unit:     req.Unit,
		BotToken: req.BotToken,
		ClientIP: request.ClientIP(r),
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]userResponse{"user": toUserResponse(user)})
}
