package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/authkit-dev/authkit"
	"github.com/authkit-dev/authkit/session"
	"github.com/authkit-dev/authkit/token"
)

const testSecret = "middleware-test-secret"

type memoryDirectory struct {
	mu    sync.RWMutex
	users map[string]authkit.UserRecord
}

func newMemoryDirectory() *memoryDirectory {
	return &memoryDirectory{users: map[string]authkit.UserRecord{}}
}

func (d *memoryDirectory) Put(u authkit.UserRecord) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.users[u.ID] = u
}

func (d *memoryDirectory) Remove(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.users, userID)
}

func (d *memoryDirectory) FindByIdentifier(_ context.Context, identifier string) ([]authkit.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []authkit.UserRecord
	for _, u := range d.users {
		if u.Email == identifier || u.Phone == identifier {
			out = append(out, u)
		}
	}
	return out, nil
}

func (d *memoryDirectory) FindByID(_ context.Context, userID string) (*authkit.UserRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	u, ok := d.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

type env struct {
	manager   *authkit.Manager
	directory *memoryDirectory
	store     *session.Store
	pair      *authkit.TokenPair
}

func newTestEnv(t *testing.T) *env {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authkit.DefaultConfig()
	cfg.Token.Secret = []byte(testSecret)
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.KeyLength = 16

	store := session.NewStore(rdb, "ak", 0)
	directory := newMemoryDirectory()

	m, err := authkit.New(cfg, directory, store)
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	hash, err := m.Hasher().Hash("password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	directory.Put(authkit.UserRecord{
		ID:           "u1",
		Email:        "alice@example.com",
		Role:         "member",
		PasswordHash: hash,
	})

	pair, err := m.Login(context.Background(), authkit.LoginInput{
		Email:    "alice@example.com",
		Password: "password",
	})
	if err != nil {
		t.Fatalf("Login error: %v", err)
	}

	return &env{manager: m, directory: directory, store: store, pair: pair}
}

// signToken mints tokens outside the manager so tests can control TTL
// and claim shape.
func signToken(t *testing.T, claims token.Claims, ttl time.Duration) string {
	t.Helper()

	codec, err := token.NewCodec(token.Config{
		Algorithm: token.AlgHS256,
		Key:       token.StaticKey(testSecret),
	})
	if err != nil {
		t.Fatalf("NewCodec error: %v", err)
	}
	signed, err := codec.Sign(claims, ttl)
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}
	return signed
}

func sessionID(t *testing.T, e *env) string {
	t.Helper()

	res, err := e.manager.VerifyAccess(e.pair.AccessToken)
	if err != nil || res.Claims == nil {
		t.Fatalf("could not decode access token: %v", err)
	}
	return res.Claims.SessionID
}

func expiredAccessToken(t *testing.T, e *env) string {
	t.Helper()

	return signToken(t, token.Claims{
		UserID:    "u1",
		Email:     "alice@example.com",
		Role:      "member",
		SessionID: sessionID(t, e),
		TokenType: token.TypeAccess,
	}, -time.Minute)
}

// probe records what the downstream handler observed.
type probe struct {
	called   bool
	identity *authkit.Identity
	hasID    bool
}

func (p *probe) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.called = true
		p.identity, p.hasID = IdentityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func runAuthenticated(t *testing.T, e *env, mutate func(*http.Request)) (*probe, *httptest.ResponseRecorder) {
	t.Helper()

	p := &probe{}
	handler := Authenticate(e.manager)(p.handler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	mutate(req)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return p, rec
}

func TestAuthenticatePassesThroughWithoutToken(t *testing.T) {
	e := newTestEnv(t)

	p, rec := runAuthenticated(t, e, func(*http.Request) {})
	if !p.called {
		t.Fatal("handler must run")
	}
	if p.hasID {
		t.Fatal("no identity expected without a bearer token")
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestAuthenticateAttachesIdentity(t *testing.T) {
	e := newTestEnv(t)

	p, rec := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+e.pair.AccessToken)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !p.hasID || p.identity.UserID != "u1" {
		t.Fatalf("identity = %+v", p.identity)
	}
	if p.identity.SessionID == "" {
		t.Fatal("identity must carry the session id")
	}
}

func TestAuthenticateInvalidTokenIsUnauthenticated(t *testing.T) {
	e := newTestEnv(t)

	tampered := e.pair.AccessToken[:len(e.pair.AccessToken)-2] + "xx"
	p, rec := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+tampered)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !p.called || p.hasID {
		t.Fatalf("expected unauthenticated pass-through, called=%v id=%v", p.called, p.hasID)
	}
}

func TestAuthenticateRefreshTokenAsBearerIsUnauthenticated(t *testing.T) {
	e := newTestEnv(t)

	p, _ := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+e.pair.RefreshToken)
	})
	if p.hasID {
		t.Fatal("refresh token must not authenticate a request")
	}
}

func TestAuthenticateRenewsExpiredAccessToken(t *testing.T) {
	e := newTestEnv(t)

	p, rec := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expiredAccessToken(t, e))
		r.Header.Set(HeaderRefreshToken, e.pair.RefreshToken)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !p.hasID || p.identity.UserID != "u1" {
		t.Fatalf("identity after renewal = %+v", p.identity)
	}

	fresh := rec.Header().Get(HeaderFreshAccess)
	if fresh == "" {
		t.Fatal("renewed access token must be surfaced on the response")
	}
	res, err := e.manager.VerifyAccess(fresh)
	if err != nil || res.State != token.StateValid {
		t.Fatalf("surfaced token not valid: state=%v err=%v", res.State, err)
	}
}

func TestAuthenticateExpiredWithoutRefreshPassesThrough(t *testing.T) {
	e := newTestEnv(t)

	p, rec := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expiredAccessToken(t, e))
	})
	if !p.called || p.hasID {
		t.Fatalf("expected unauthenticated pass-through, called=%v id=%v", p.called, p.hasID)
	}
	if rec.Header().Get(HeaderFreshAccess) != "" {
		t.Fatal("no fresh token expected")
	}
}

func TestAuthenticateRevokedSessionBlocksRenewal(t *testing.T) {
	e := newTestEnv(t)

	if err := e.store.Invalidate(context.Background(), sessionID(t, e)); err != nil {
		t.Fatalf("Invalidate error: %v", err)
	}

	p, rec := runAuthenticated(t, e, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+expiredAccessToken(t, e))
		r.Header.Set(HeaderRefreshToken, e.pair.RefreshToken)
	})
	if !p.called || p.hasID {
		t.Fatalf("expected unauthenticated pass-through, called=%v id=%v", p.called, p.hasID)
	}
	if rec.Header().Get(HeaderFreshAccess) != "" {
		t.Fatal("no fresh token may be issued for a revoked session")
	}
}

func TestAuthenticateConfigFaultFailsClosed(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authkit.DefaultConfig()
	cfg.Token.KeyEnvVar = "AUTHKIT_TEST_MW_ABSENT_SECRET"
	t.Setenv("AUTHKIT_TEST_MW_ABSENT_SECRET", "")

	m, err := authkit.New(cfg, newMemoryDirectory(), session.NewStore(rdb, "ak", 0))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	p := &probe{}
	handler := Authenticate(m)(p.handler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, token.Claims{
		UserID:    "u1",
		SessionID: "0198f6a2-54d8-7aa4-b1de-26f2e3b4c111",
		TokenType: token.TypeAccess,
	}, time.Hour))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if p.called {
		t.Fatal("handler must not run on a configuration fault")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}

	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("response body not JSON: %v", err)
	}
	if body["message"] != "internal server error" {
		t.Fatalf("body = %v", body)
	}
}

func TestBearerToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"Bearer abc", "abc", true},
		{"Bearer ", "", false},
		{"bearer abc", "", false},
		{"Basic abc", "", false},
		{"", "", false},
	}
	for _, c := range cases {
		got, ok := bearerToken(c.in)
		if got != c.want || ok != c.ok {
			t.Fatalf("bearerToken(%q) = %q, %v", c.in, got, ok)
		}
	}
}

func TestRequireUser(t *testing.T) {
	e := newTestEnv(t)

	p := &probe{}
	chain := Authenticate(e.manager)(RequireUser(e.manager)(p.handler()))

	t.Run("no identity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/me", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("authenticated user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+e.pair.AccessToken)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
		if !p.hasID || p.identity.UserID != "u1" {
			t.Fatalf("identity = %+v", p.identity)
		}
	})

	t.Run("user removed from directory", func(t *testing.T) {
		e.directory.Remove("u1")
		req := httptest.NewRequest(http.MethodGet, "/me", nil)
		req.Header.Set("Authorization", "Bearer "+e.pair.AccessToken)
		rec := httptest.NewRecorder()
		chain.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
	})
}

type failingDirectory struct{}

func (failingDirectory) FindByIdentifier(context.Context, string) ([]authkit.UserRecord, error) {
	return nil, errors.New("connection refused")
}

func (failingDirectory) FindByID(context.Context, string) (*authkit.UserRecord, error) {
	return nil, errors.New("connection refused")
}

func TestRequireUserDirectoryOutageIs500(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis run failed: %v", err)
	}
	t.Cleanup(mr.Close)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	cfg := authkit.DefaultConfig()
	cfg.Token.Secret = []byte(testSecret)

	m, err := authkit.New(cfg, failingDirectory{}, session.NewStore(rdb, "ak", 0))
	if err != nil {
		t.Fatalf("New error: %v", err)
	}

	p := &probe{}
	handler := RequireUser(m)(p.handler())

	req := httptest.NewRequest(http.MethodGet, "/me", nil)
	req = withIdentity(req, &token.Claims{
		UserID:    "u1",
		SessionID: "0198f6a2-54d8-7aa4-b1de-26f2e3b4c111",
		TokenType: token.TypeAccess,
	})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if p.called {
		t.Fatal("handler must not run when the directory is down")
	}
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
}
