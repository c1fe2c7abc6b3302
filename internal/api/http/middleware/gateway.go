package middleware

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/cookie"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/request"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/logger"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/service"
)

// GatewayConfig carries the per-request interception parameters.
type GatewayConfig struct {
	Production    bool
	RenewWithin   time.Duration
	PublicIPLimit int
	PublicWindow  time.Duration
}

// publicPages is the explicit allow-list of page entry points that skip
// identity resolution. Matching is exact or on a nested subpath, so a
// sibling route like /registrations stays protected.
var publicPages = []string{
	"/login",
	"/register",
	"/recovery",
}

// publicPrefixes lists whole public subtrees. The auth API runs its own
// credential and rate-limit checks.
var publicPrefixes = []string{
	"/api/auth/",
	"/static/",
}

// rolePrefixes maps route prefixes onto the roles allowed to enter them,
// most specific first. Any prefix not listed is open to every
// authenticated role.
var rolePrefixes = []struct {
	prefix  string
	allowed []model.Role
}{
	{"/api/super-admin", []model.Role{model.RoleSuperAdmin}},
	{"/super-admin", []model.Role{model.RoleSuperAdmin}},
	{"/api/admin", []model.Role{model.RoleAdmin, model.RoleSuperAdmin}},
	{"/admin", []model.Role{model.RoleAdmin, model.RoleSuperAdmin}},
}

// Gateway is the per-request interceptor: CSP nonce issuance, CSRF
// provenance check, public-path bypass, session resolution with
// transparent renewal, and role-based route authorization.
type Gateway struct {
	sessions *service.Session
	users    model.UserStore
	limiter  model.RateLimiter
	cookies  cookie.Config
	config   GatewayConfig
	logger   *logger.Logger
}

func NewGateway(
	sessions *service.Session,
	users model.UserStore,
	limiter model.RateLimiter,
	cookies cookie.Config,
	config GatewayConfig,
	logger *logger.Logger,
) *Gateway {
	return &Gateway{
		sessions: sessions,
		users:    users,
		limiter:  limiter,
		cookies:  cookies,
		config:   config,
		logger:   logger,
	}
}

func (g *Gateway) Handle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		nonce, err := newNonce()
		if err != nil {
			g.logger.Error("Gateway: nonce generation failed",
				"error", err.Error())
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}

		r = r.WithContext(model.WithNonce(r.Context(), nonce))
		g.securityHeaders(w, nonce)

		// Dependency wiring is checked before any auth logic so a
		// misconfigured deployment fails loudly instead of degrading.
		if g.sessions == nil || g.users == nil || g.limiter == nil {
			g.logger.Error("Gateway: missing dependencies, refusing request")
			g.terminal(w, r, http.StatusInternalServerError, "internal server error")
			return
		}

		if stateChanging(r.Method) && !sameOrigin(r) {
			g.terminal(w, r, http.StatusForbidden, "cross-origin request rejected")
			return
		}

		if isPublic(r.URL.Path) {
			if rateLimitedPublic(r.URL.Path) {
				verdict, err := g.limiter.Check(r.Context(), "public:ip:"+request.ClientIP(r), g.config.PublicIPLimit, g.config.PublicWindow)
				if err != nil {
					g.logger.Error("Gateway: rate limiter unavailable",
						"error", err.Error())
					g.terminal(w, r, http.StatusInternalServerError, "internal server error")
					return
				}
				if !verdict.Allowed {
					g.rateLimited(w, r, verdict.ResetAt)
					return
				}
			}
			next.ServeHTTP(w, r)
			return
		}

		user, ok, err := g.resolveSession(w, r)
		if err != nil {
			g.logger.Error("Gateway: identity resolution failed",
				"error", err.Error())
			g.terminal(w, r, http.StatusInternalServerError, "internal server error")
			return
		}
		if !ok {
			for _, c := range g.cookies.Clear() {
				http.SetCookie(w, c)
			}
			g.unauthenticated(w, r)
			return
		}

		ctx := model.WithIdentity(r.Context(), model.Identity{
			UserID: user.ID,
			Handle: user.Handle,
			Role:   user.Role,
			Unit:   user.Unit,
		})
		r = r.WithContext(ctx)

		if !allowedByRole(r.URL.Path, user.Role) {
			g.forbidden(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// resolveSession authenticates the request from its cookies. A valid
// access token close to expiry, or an expired one, is renewed
// transparently through the refresh token; the rotated cookies are
// attached to the response before the handler runs so they survive any
// downstream status. A session whose owner no longer exists is revoked
// wholesale.
func (g *Gateway) resolveSession(w http.ResponseWriter, r *http.Request) (model.User, bool, error) {
	if c, err := r.Cookie(g.cookies.AccessName); err == nil && c.Value != "" {
		claims, err := g.sessions.ParseAccess(c.Value)
		if err == nil && time.Until(claims.ExpiresAt) > g.config.RenewWithin {
			user, err := g.users.GetByID(r.Context(), claims.UserID)
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				return model.User{}, false, fmt.Errorf("get session owner: %w", err)
			}
			if err != nil || !user.Active() {
				g.revokeOrphaned(r, claims)
				return model.User{}, false, nil
			}
			return user, true, nil
		}
	}

	refreshCookie, err := r.Cookie(g.cookies.RefreshName)
	if err != nil || refreshCookie.Value == "" {
		return model.User{}, false, nil
	}

	user, pair, err := g.sessions.Refresh(r.Context(), refreshCookie.Value)
	if err != nil {
		if errors.Is(err, model.ErrSessionInvalid) ||
			errors.Is(err, model.ErrSessionExpired) ||
			errors.Is(err, model.ErrSessionRevoked) {
			return model.User{}, false, nil
		}
		return model.User{}, false, err
	}

	issued := g.cookies.Issue(pair.Access, pair.Refresh, g.cookies.Remembered(r), g.sessions.AccessTTL(), g.sessions.RefreshTTL())
	for _, c := range issued {
		http.SetCookie(w, c)
	}

	return user, true, nil
}

func (g *Gateway) revokeOrphaned(r *http.Request, claims model.AccessClaims) {
	g.logger.Info("Gateway: orphaned session, forcing sign-out",
		"user_id", claims.UserID)
	if err := g.sessions.RevokeAllForUser(r.Context(), claims.UserID); err != nil {
		g.logger.Error("Gateway: failed to revoke orphaned sessions",
			"user_id", claims.UserID,
			"error", err.Error())
	}
}

func (g *Gateway) unauthenticated(w http.ResponseWriter, r *http.Request) {
	if isAPI(r.URL.Path) {
		g.writeJSON(w, http.StatusUnauthorized, "authentication required")
		return
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (g *Gateway) forbidden(w http.ResponseWriter, r *http.Request) {
	if isAPI(r.URL.Path) {
		g.writeJSON(w, http.StatusForbidden, "forbidden")
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

func (g *Gateway) rateLimited(w http.ResponseWriter, r *http.Request, resetAt time.Time) {
	seconds := int(time.Until(resetAt).Seconds()) + 1
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	g.terminal(w, r, http.StatusTooManyRequests, "too many requests, try again later")
}

func (g *Gateway) terminal(w http.ResponseWriter, r *http.Request, status int, message string) {
	if isAPI(r.URL.Path) {
		g.writeJSON(w, status, message)
		return
	}
	http.Error(w, message, status)
}

func (g *Gateway) writeJSON(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

func (g *Gateway) securityHeaders(w http.ResponseWriter, nonce string) {
	w.Header().Set("X-CSP-Nonce", nonce)
	w.Header().Set("Content-Security-Policy",
		fmt.Sprintf("default-src 'self'; script-src 'self' 'nonce-%s'; base-uri 'self'; frame-ancestors 'none'", nonce))
	w.Header().Set("X-Frame-Options", "DENY")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
	if g.config.Production {
		w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
	}
}

func newNonce() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func stateChanging(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// sameOrigin validates request provenance: the Origin header, or the
// Referer when Origin is absent, must name the same host the request
// was addressed to. Absence of both fails closed.
func sameOrigin(r *http.Request) bool {
	source := r.Header.Get("Origin")
	if source == "" {
		source = r.Header.Get("Referer")
	}
	if source == "" {
		return false
	}

	u, err := url.Parse(source)
	if err != nil || u.Host == "" {
		return false
	}

	return strings.EqualFold(u.Host, r.Host)
}

func isPublic(path string) bool {
	if path == "/healthz" {
		return true
	}
	for _, page := range publicPages {
		if path == page || strings.HasPrefix(path, page+"/") {
			return true
		}
	}
	for _, prefix := range publicPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// rateLimitedPublic reports whether a public path consumes the per-IP
// budget. Health probes and static assets are exempt.
func rateLimitedPublic(path string) bool {
	return path != "/healthz" && !strings.HasPrefix(path, "/static/")
}

func isAPI(path string) bool {
	return strings.HasPrefix(path, "/api/")
}

func allowedByRole(path string, role model.Role) bool {
	for _, rp := range rolePrefixes {
		if !strings.HasPrefix(path, rp.prefix) {
			continue
		}
		for _, allowed := range rp.allowed {
			if role == allowed {
				return true
			}
		}
		return false
	}
	return true
}
