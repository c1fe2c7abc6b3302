package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hostelfood-creator/hostel-review-sub001/internal/api/http/cookie"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/model"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/rate"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/service"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/testutil"
	"github.com/hostelfood-creator/hostel-review-sub001/internal/token"
)

type fakeUserStore struct {
	mu    sync.Mutex
	users map[uuid.UUID]model.User
}

func newFakeUserStore(users ...model.User) *fakeUserStore {
	s := &fakeUserStore{users: make(map[uuid.UUID]model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *fakeUserStore) GetByID(_ context.Context, id uuid.UUID) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return model.User{}, model.ErrNotFound
	}
	return u, nil
}

func (s *fakeUserStore) GetByHandle(context.Context, string) (model.User, error) {
	return model.User{}, model.ErrNotFound
}

func (s *fakeUserStore) GetByEmail(context.Context, string) (model.User, error) {
	return model.User{}, model.ErrNotFound
}

func (s *fakeUserStore) Create(_ context.Context, u model.User) (model.User, error) { return u, nil }

func (s *fakeUserStore) SetPasswordHash(context.Context, uuid.UUID, string) error { return nil }

func (s *fakeUserStore) MarkConfirmed(context.Context, uuid.UUID) error { return nil }

func (s *fakeUserStore) MigrateEmail(context.Context, uuid.UUID, string, string) error { return nil }

func (s *fakeUserStore) Deactivate(context.Context, uuid.UUID) error { return nil }

type fakeSessionStore struct {
	mu         sync.Mutex
	byJTI      map[string]model.Session
	revokedAll []uuid.UUID
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{byJTI: make(map[string]model.Session)}
}

func (s *fakeSessionStore) Create(_ context.Context, session model.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byJTI[session.JTI] = session
	return nil
}

func (s *fakeSessionStore) GetByJTI(_ context.Context, jti string) (model.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byJTI[jti]
	if !ok {
		return model.Session{}, model.ErrNotFound
	}
	return session, nil
}

func (s *fakeSessionStore) RevokeByJTI(_ context.Context, jti string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.byJTI[jti]
	if !ok {
		return model.ErrNotFound
	}
	now := time.Now()
	session.RevokedAt = &now
	s.byJTI[jti] = session
	return nil
}

func (s *fakeSessionStore) RevokeAllByUser(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.revokedAll = append(s.revokedAll, userID)
	return nil
}

type gatewayFixture struct {
	gateway  *Gateway
	manager  model.TokenManager
	users    *fakeUserStore
	sessions *fakeSessionStore
	service  *service.Session
	cookies  cookie.Config
}

func newGatewayFixture(t *testing.T, accessTTL time.Duration, users ...model.User) *gatewayFixture {
	t.Helper()

	manager := token.NewJWT("test-secret", accessTTL, 720*time.Hour)
	userStore := newFakeUserStore(users...)
	sessionStore := newFakeSessionStore()
	log := testutil.MakeNoopLogger()
	sessionSvc := service.NewSession(manager, sessionStore, userStore, log)

	cookies := cookie.Config{
		AccessName:   "hr_access",
		RefreshName:  "hr_session",
		RememberName: "hr_remember",
	}

	gw := NewGateway(sessionSvc, userStore, rate.NewMemoryLimiter(), cookies, GatewayConfig{
		RenewWithin:   2 * time.Minute,
		PublicIPLimit: 100,
		PublicWindow:  time.Minute,
	}, log)

	return &gatewayFixture{
		gateway:  gw,
		manager:  manager,
		users:    userStore,
		sessions: sessionStore,
		service:  sessionSvc,
		cookies:  cookies,
	}
}

func studentUser() model.User {
	return model.User{
		ID:     uuid.New(),
		Handle: "s123",
		Email:  "s123@example.com",
		Role:   model.RoleStudent,
		Unit:   "block-a",
	}
}

// serve runs the request through the gateway with a capturing terminal
// handler and returns the response plus the identity the handler saw.
func (f *gatewayFixture) serve(req *http.Request) (*httptest.ResponseRecorder, *model.Identity) {
	var seen *model.Identity
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id, ok := model.IdentityFromContext(r.Context()); ok {
			seen = &id
		}
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	f.gateway.Handle(next).ServeHTTP(rec, req)
	return rec, seen
}

func (f *gatewayFixture) loginAs(t *testing.T, user model.User, req *http.Request) {
	t.Helper()
	pair, err := f.service.Issue(context.Background(), user)
	require.NoError(t, err)
	req.AddCookie(&http.Cookie{Name: f.cookies.AccessName, Value: pair.Access})
	req.AddCookie(&http.Cookie{Name: f.cookies.RefreshName, Value: pair.Refresh})
}

func TestGateway_CSRFRejectsCrossOrigin(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	tests := []struct {
		name   string
		origin string
		ref    string
		want   int
	}{
		{"mismatched origin", "https://evil.example", "", http.StatusForbidden},
		{"mismatched referer", "", "https://evil.example/form", http.StatusForbidden},
		{"no provenance at all", "", "", http.StatusForbidden},
		{"matching origin", "http://portal.test", "", http.StatusOK},
		{"matching referer", "", "http://portal.test/login", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "http://portal.test/api/auth/login", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			if tt.ref != "" {
				req.Header.Set("Referer", tt.ref)
			}

			rec, _ := f.serve(req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestGateway_CSRFAppliesRegardlessOfAuthentication(t *testing.T) {
	user := studentUser()
	f := newGatewayFixture(t, 15*time.Minute, user)

	req := httptest.NewRequest(http.MethodPost, "http://portal.test/api/reviews", nil)
	req.Header.Set("Origin", "https://evil.example")
	f.loginAs(t, user, req)

	rec, _ := f.serve(req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGateway_PublicPathSkipsIdentityResolution(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	for _, path := range []string{"/login", "/register", "/recovery", "/api/auth/login", "/static/app.css", "/healthz"} {
		req := httptest.NewRequest(http.MethodGet, "http://portal.test"+path, nil)
		rec, seen := f.serve(req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Nil(t, seen, path)
	}
}

func TestGateway_PublicPathRateLimited(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)
	f.gateway.config.PublicIPLimit = 2

	req := func() *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://portal.test/login", nil)
		r.RemoteAddr = "10.0.0.9:4000"
		return r
	}

	for i := 0; i < 2; i++ {
		rec, _ := f.serve(req())
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, _ := f.serve(req())
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
}

func TestGateway_HealthAndStaticExemptFromPublicLimit(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)
	f.gateway.config.PublicIPLimit = 1

	req := func(path string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "http://portal.test"+path, nil)
		r.RemoteAddr = "10.0.0.9:4000"
		return r
	}

	// Probes and assets never consume the budget.
	for i := 0; i < 5; i++ {
		rec, _ := f.serve(req("/healthz"))
		require.Equal(t, http.StatusOK, rec.Code)
		rec, _ = f.serve(req("/static/app.css"))
		require.Equal(t, http.StatusOK, rec.Code)
	}

	// The budget is still intact for the auth entry points.
	rec, _ := f.serve(req("/login"))
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = f.serve(req("/login"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestGateway_SiblingOfPublicPageStaysProtected(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	// A nested subpath of a public page stays public.
	rec, seen := f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/login/reset", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Nil(t, seen)

	// A sibling route sharing the prefix does not.
	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/registrations", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))

	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/recoveryy", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestGateway_ProtectedPathWithoutSession(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	rec, _ = f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/dashboard", nil))
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestGateway_ValidSessionResolvesIdentity(t *testing.T) {
	user := studentUser()
	f := newGatewayFixture(t, 15*time.Minute, user)

	req := httptest.NewRequest(http.MethodGet, "http://portal.test/dashboard", nil)
	f.loginAs(t, user, req)

	rec, seen := f.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.UserID)
	assert.Equal(t, user.Handle, seen.Handle)
	assert.Equal(t, model.RoleStudent, seen.Role)
	assert.Equal(t, "block-a", seen.Unit)
}

func TestGateway_TransparentRenewalNearExpiry(t *testing.T) {
	user := studentUser()
	// Access tokens born inside the renewal threshold force a refresh.
	f := newGatewayFixture(t, time.Minute, user)

	req := httptest.NewRequest(http.MethodGet, "http://portal.test/dashboard", nil)
	f.loginAs(t, user, req)

	rec, seen := f.serve(req)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, seen)
	assert.Equal(t, user.ID, seen.UserID)

	var rotated bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == f.cookies.RefreshName && c.Value != "" {
			rotated = true
		}
	}
	assert.True(t, rotated, "rotated session cookies should be set on the response")
}

func TestGateway_ReplayedRefreshTokenRejected(t *testing.T) {
	user := studentUser()
	f := newGatewayFixture(t, time.Minute, user)

	pair, err := f.service.Issue(context.Background(), user)
	require.NoError(t, err)

	build := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "http://portal.test/dashboard", nil)
		req.AddCookie(&http.Cookie{Name: f.cookies.AccessName, Value: pair.Access})
		req.AddCookie(&http.Cookie{Name: f.cookies.RefreshName, Value: pair.Refresh})
		return req
	}

	rec, _ := f.serve(build())
	require.Equal(t, http.StatusOK, rec.Code)

	// The same refresh token again: already rotated away, so the second
	// request is signed out.
	rec, _ = f.serve(build())
	assert.Equal(t, http.StatusSeeOther, rec.Code)
}

func TestGateway_OrphanedSessionForcedSignOut(t *testing.T) {
	user := studentUser()
	f := newGatewayFixture(t, 15*time.Minute, user)

	req := httptest.NewRequest(http.MethodGet, "http://portal.test/api/me", nil)
	f.loginAs(t, user, req)

	// The account disappears between issuance and the next request.
	f.users.mu.Lock()
	delete(f.users.users, user.ID)
	f.users.mu.Unlock()

	rec, seen := f.serve(req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, seen)
	assert.Contains(t, f.sessions.revokedAll, user.ID)

	var cleared bool
	for _, c := range rec.Result().Cookies() {
		if c.Name == f.cookies.AccessName && c.Value == "" && c.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared, "session cookies should be expired on forced sign-out")
}

func TestGateway_RoleAuthorization(t *testing.T) {
	student := studentUser()
	admin := model.User{ID: uuid.New(), Handle: "warden", Role: model.RoleAdmin}
	super := model.User{ID: uuid.New(), Handle: "chief", Role: model.RoleSuperAdmin}
	f := newGatewayFixture(t, 15*time.Minute, student, admin, super)

	tests := []struct {
		name string
		user model.User
		path string
		want int
	}{
		{"student denied admin page", student, "/admin/menus", http.StatusSeeOther},
		{"student denied admin api", student, "/api/admin/menus", http.StatusForbidden},
		{"admin allowed admin page", admin, "/admin/menus", http.StatusOK},
		{"admin denied super-admin page", admin, "/super-admin/roles", http.StatusSeeOther},
		{"admin denied super-admin api", admin, "/api/super-admin/roles", http.StatusForbidden},
		{"super admin allowed everywhere", super, "/admin/menus", http.StatusOK},
		{"super admin allowed super-admin", super, "/super-admin/roles", http.StatusOK},
		{"student allowed plain page", student, "/dashboard", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "http://portal.test"+tt.path, nil)
			f.loginAs(t, tt.user, req)

			rec, _ := f.serve(req)
			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusSeeOther {
				assert.Equal(t, "/", rec.Header().Get("Location"))
			}
		})
	}
}

func TestGateway_SecurityHeadersOnEveryExit(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	requests := []*http.Request{
		httptest.NewRequest(http.MethodGet, "http://portal.test/login", nil),
		httptest.NewRequest(http.MethodGet, "http://portal.test/api/me", nil),
		httptest.NewRequest(http.MethodPost, "http://portal.test/api/reviews", nil),
	}

	for _, req := range requests {
		rec, _ := f.serve(req)

		nonce := rec.Header().Get("X-CSP-Nonce")
		assert.NotEmpty(t, nonce)
		assert.Contains(t, rec.Header().Get("Content-Security-Policy"), "'nonce-"+nonce+"'")
		assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
		assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
		assert.Empty(t, rec.Header().Get("Strict-Transport-Security"))
	}
}

func TestGateway_NoncesAreUnique(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/login", nil))
		nonce := rec.Header().Get("X-CSP-Nonce")
		require.NotEmpty(t, nonce)
		require.False(t, seen[nonce], "nonce reuse")
		seen[nonce] = true
	}
}

func TestGateway_HSTSInProduction(t *testing.T) {
	f := newGatewayFixture(t, 15*time.Minute)
	f.gateway.config.Production = true

	rec, _ := f.serve(httptest.NewRequest(http.MethodGet, "http://portal.test/login", nil))
	assert.Contains(t, rec.Header().Get("Strict-Transport-Security"), "max-age=")
}

func TestGateway_MissingDependenciesShortCircuit(t *testing.T) {
	gw := NewGateway(nil, nil, nil, cookie.Config{}, GatewayConfig{}, testutil.MakeNoopLogger())

	rec := httptest.NewRecorder()
	gw.Handle(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run")
	})).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://portal.test/login", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
