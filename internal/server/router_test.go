package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iudanet/commentauth/internal/config"
	"github.com/iudanet/commentauth/internal/crypto"
	"github.com/iudanet/commentauth/internal/ratelimit"
	"github.com/iudanet/commentauth/internal/server/auth"
	"github.com/iudanet/commentauth/internal/server/comments"
	"github.com/iudanet/commentauth/internal/server/handlers"
	"github.com/iudanet/commentauth/internal/server/metrics"
	"github.com/iudanet/commentauth/internal/server/oauth"
	"github.com/iudanet/commentauth/internal/server/session"
	"github.com/iudanet/commentauth/internal/server/storage"
	redisstore "github.com/iudanet/commentauth/internal/server/storage/redis"
	"github.com/iudanet/commentauth/internal/server/storage/sqlstore"
	"github.com/iudanet/commentauth/internal/server/twofactor"
	"github.com/iudanet/commentauth/internal/server/verification"
	"github.com/iudanet/commentauth/pkg/api"
)

const strongPassword = "Tr0ub4dor&3x"

type captureMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *captureMailer) SendVerificationCode(ctx context.Context, to, code, lang string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) SendTwoFactorCode(ctx context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *captureMailer) code(to string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[to]
}

type testServer struct {
	*httptest.Server
	store   *sqlstore.Storage
	mr      *miniredis.Miniredis
	mailer  *captureMailer
	metrics *metrics.Metrics
}

// newFakeGoogle serves the token and userinfo endpoints
func newFakeGoogle(t *testing.T, userInfo string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil || r.Form.Get("code_verifier") == "" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"access-1","token_type":"Bearer","expires_in":3600}`)
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, userInfo)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx := context.Background()

	store, err := sqlstore.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	mr := miniredis.RunT(t)
	kv, err := redisstore.New(ctx, redisstore.Config{URL: "redis://" + mr.Addr(), Prefix: "test:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	mail := &captureMailer{codes: map[string]string{}}

	google := newFakeGoogle(t, `{"sub":"g-7","email":"reader@gmail.com","email_verified":true,"name":"Grace Hopper"}`)
	provider, err := oauth.NewGoogleProvider(ctx, oauth.GoogleConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		RedirectURL:  "http://blog.example/auth/oauth/google/callback",
		AuthURL:      google.URL + "/auth",
		TokenURL:     google.URL + "/token",
		UserInfoURL:  google.URL + "/userinfo",
	})
	require.NoError(t, err)

	rl := config.Default().RateLimit
	limiters, err := NewLimiters(rl, kv)
	require.NoError(t, err)

	sessions := session.NewManager(store, session.DefaultMaxAge, logger)
	engine := twofactor.NewEngine(store, store, mail, "Blog", logger)
	authSvc := auth.NewService(auth.Deps{
		Users:     store,
		Sessions:  sessions,
		Codes:     verification.NewStore(kv),
		TwoFactor: engine,
		Mailer:    mail,
		Resolver:  oauth.NewResolver(store, store, logger),
		Providers: []oauth.Provider{provider},
		Logger:    logger,
	})

	handler := NewRouter(Deps{
		Logger:       logger,
		Auth:         authSvc,
		Sessions:     sessions,
		TwoFactor:    engine,
		Comments:     comments.NewService(store, logger),
		StateCodec:   oauth.NewStateCodec("test-secret-test-secret-test-secret", false),
		Metrics:      m,
		HealthChecks: map[string]handlers.Pinger{"database": store, "kv": kv},
		Limiters:     *limiters,
		Version:      "test",
	})

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, store: store, mr: mr, mailer: mail, metrics: m}
}

// newClient returns a browser-like client with its own cookie jar
func (s *testServer) newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *testServer) do(t *testing.T, c *http.Client, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var out map[string]any
	if len(raw) > 0 && resp.Header.Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (s *testServer) register(t *testing.T, c *http.Client, email, username string) map[string]any {
	t.Helper()

	resp, _ := s.do(t, c, http.MethodPost, "/auth/verification/send", api.VerificationRequest{Email: email})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, c, http.MethodPost, "/auth/register", api.RegisterRequest{
		Email:         email,
		Username:      username,
		Password:      strongPassword,
		Code:          s.mailer.code(email),
		AcceptedTerms: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	return body["user"].(map[string]any)
}

func cookieValue(resp *http.Response, name string) string {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func TestRouter_RegisterIssuesSession(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	resp, _ := s.do(t, c, http.MethodPost, "/auth/verification/send", api.VerificationRequest{Email: "new@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, c, http.MethodPost, "/auth/register", api.RegisterRequest{
		Email:         "new@example.com",
		Username:      "newuser",
		Password:      strongPassword,
		Code:          s.mailer.code("new@example.com"),
		AcceptedTerms: true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)

	token := cookieValue(resp, session.CookieName)
	require.NotEmpty(t, token)

	sess, err := s.store.GetSessionByToken(context.Background(), token)
	require.NoError(t, err)
	user := body["user"].(map[string]any)
	assert.Equal(t, user["id"], sess.UserID)

	resp, body = s.do(t, c, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := body["user"].(map[string]any)
	assert.Equal(t, "newuser", me["username"])
	assert.Equal(t, false, me["two_factor_enabled"])

	// код одноразовый
	resp, _ = s.do(t, s.newClient(t), http.MethodPost, "/auth/register", api.RegisterRequest{
		Email:         "new@example.com",
		Username:      "another",
		Password:      strongPassword,
		Code:          s.mailer.code("new@example.com"),
		AcceptedTerms: true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_WeakPasswordCreatesNothing(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	resp, _ := s.do(t, c, http.MethodPost, "/auth/verification/send", api.VerificationRequest{Email: "weak@example.com"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, c, http.MethodPost, "/auth/register", api.RegisterRequest{
		Email:         "weak@example.com",
		Username:      "weakuser",
		Password:      "12345678",
		Code:          s.mailer.code("weak@example.com"),
		AcceptedTerms: true,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
	assert.Empty(t, cookieValue(resp, session.CookieName))

	_, err := s.store.GetUserByEmail(context.Background(), "weak@example.com")
	assert.ErrorIs(t, err, storage.ErrUserNotFound)
}

func TestRouter_LoginWithTwoFactor(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)
	s.register(t, c, "secure@example.com", "secure")

	// включаем 2FA
	resp, setup := s.do(t, c, http.MethodGet, "/auth/2fa/enable", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	secret := setup["secret"].(string)
	assert.Contains(t, setup["otpauthUrl"], "otpauth://totp/")

	code, err := crypto.GenerateTOTP(secret, time.Now())
	require.NoError(t, err)
	resp, _ = s.do(t, c, http.MethodPost, "/auth/2fa/enable", api.TwoFactorEnableRequest{Secret: secret, Code: code})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	fresh := s.newClient(t)

	resp, body := s.do(t, fresh, http.MethodPost, "/auth/login", api.LoginRequest{
		Email:    "secure@example.com",
		Password: strongPassword,
	})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, true, body["requiresTwoFactor"])
	assert.Empty(t, cookieValue(resp, session.CookieName))

	code, err = crypto.GenerateTOTP(secret, time.Now())
	require.NoError(t, err)
	resp, body = s.do(t, fresh, http.MethodPost, "/auth/login", api.LoginRequest{
		Email:         "secure@example.com",
		Password:      strongPassword,
		TwoFactorCode: code,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
	assert.NotEmpty(t, cookieValue(resp, session.CookieName))

	// email-код второго фактора
	resp, _ = s.do(t, fresh, http.MethodPost, "/auth/2fa/send-email", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = s.do(t, fresh, http.MethodPost, "/auth/2fa/verify", api.TwoFactorCodeRequest{
		Code: s.mailer.code("secure@example.com"),
		Type: "email",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRouter_LogoutInvalidatesSession(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)
	s.register(t, c, "out@example.com", "outgoing")

	resp, _ := s.do(t, c, http.MethodPost, "/auth/logout", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := s.do(t, c, http.MethodGet, "/auth/me", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Not authenticated", body["error"])
}

func TestRouter_LoginRateLimit(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	var resp *http.Response
	for range ratelimit.LoginPolicy.MaxRequests + 1 {
		resp, _ = s.do(t, c, http.MethodPost, "/auth/login", api.LoginRequest{
			Email:    "nobody@example.com",
			Password: strongPassword,
		})
	}

	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("Retry-After"))

	// окно истекает в Redis
	s.mr.FastForward(ratelimit.LoginPolicy.Window)
	resp, _ = s.do(t, c, http.MethodPost, "/auth/login", api.LoginRequest{
		Email:    "nobody@example.com",
		Password: strongPassword,
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestRouter_OAuthCallback(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	resp, body := s.do(t, c, http.MethodGet, "/auth/oauth/google?returnTo=/posts/hello", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	authURL, err := url.Parse(body["authUrl"].(string))
	require.NoError(t, err)
	state := authURL.Query().Get("state")
	require.NotEmpty(t, state)
	assert.Equal(t, "S256", authURL.Query().Get("code_challenge_method"))

	resp, _ = s.do(t, c, http.MethodGet, "/auth/oauth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/posts/hello", resp.Header.Get("Location"))
	assert.NotEmpty(t, cookieValue(resp, session.CookieName))

	resp, body = s.do(t, c, http.MethodGet, "/auth/me", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "reader@gmail.com", body["user"].(map[string]any)["email"])

	// повтор с тем же state: cookie уже стерта
	resp, _ = s.do(t, c, http.MethodGet, "/auth/oauth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRouter_OAuthCallbackRejectsForeignReturnTo(t *testing.T) {
	tests := []struct {
		name     string
		returnTo string
	}{
		{name: "tab", returnTo: "/\t/evil.example/phish"},
		{name: "newline", returnTo: "/\n/evil.example/phish"},
		{name: "carriage return", returnTo: "/\r/evil.example/phish"},
		{name: "protocol relative", returnTo: "//evil.example/phish"},
		{name: "absolute", returnTo: "https://evil.example/phish"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t)
			c := s.newClient(t)

			resp, body := s.do(t, c, http.MethodGet, "/auth/oauth/google?returnTo="+url.QueryEscape(tt.returnTo), nil)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			authURL, err := url.Parse(body["authUrl"].(string))
			require.NoError(t, err)
			state := authURL.Query().Get("state")

			resp, _ = s.do(t, c, http.MethodGet, "/auth/oauth/google/callback?code=abc&state="+url.QueryEscape(state), nil)
			require.Equal(t, http.StatusFound, resp.StatusCode)
			assert.Equal(t, "/", resp.Header.Get("Location"))
		})
	}
}

func TestRouter_OAuthErrors(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	resp, body := s.do(t, c, http.MethodGet, "/auth/oauth/github", nil)
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Github OAuth not configured", body["error"])

	resp, body = s.do(t, c, http.MethodGet, "/auth/oauth/google/callback?error=access_denied", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "OAuth error: access_denied", body["error"])
}

func TestRouter_Comments(t *testing.T) {
	s := newTestServer(t)
	alice := s.newClient(t)
	bob := s.newClient(t)
	s.register(t, alice, "alice@example.com", "alice")
	s.register(t, bob, "bob@example.com", "bobby")

	resp, _ := s.do(t, s.newClient(t), http.MethodPost, "/comments", api.CreateCommentRequest{PostID: "hello-world", Content: "hi"})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, body := s.do(t, alice, http.MethodPost, "/comments", api.CreateCommentRequest{
		PostID:  "hello-world",
		Content: `<p onclick="x()">Great post</p><script>alert(1)</script>`,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	root := body["comment"].(map[string]any)
	rootID := root["id"].(string)
	assert.Equal(t, "<p>Great post</p>", root["content"])
	assert.Equal(t, "alice", root["user"].(map[string]any)["username"])

	resp, body = s.do(t, bob, http.MethodPost, "/comments", api.CreateCommentRequest{
		PostID:   "hello-world",
		ParentID: &rootID,
		Content:  "Agreed",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, body)
	replyID := body["comment"].(map[string]any)["id"].(string)

	resp, body = s.do(t, s.newClient(t), http.MethodGet, "/comments?post_id=hello-world", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	threads := body["comments"].([]any)
	require.Len(t, threads, 1)
	replies := threads[0].(map[string]any)["replies"].([]any)
	require.Len(t, replies, 1)
	assert.Equal(t, replyID, replies[0].(map[string]any)["id"])

	resp, _ = s.do(t, bob, http.MethodPut, "/comments/"+rootID, api.UpdateCommentRequest{Content: "hijack"})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, body = s.do(t, alice, http.MethodPut, "/comments/"+rootID, api.UpdateCommentRequest{Content: "<em>Edited</em>"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<em>Edited</em>", body["comment"].(map[string]any)["content"])

	resp, _ = s.do(t, alice, http.MethodDelete, "/comments/"+rootID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = s.do(t, alice, http.MethodGet, "/comments/"+replyID, nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "replies go with their parent")

	resp, body = s.do(t, alice, http.MethodGet, "/comments", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "post_id is required", body["error"])
}

func TestRouter_HealthAndMetrics(t *testing.T) {
	s := newTestServer(t)
	c := s.newClient(t)

	resp, body := s.do(t, c, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])

	s.do(t, c, http.MethodGet, "/auth/me", nil)

	req, err := http.NewRequest(http.MethodGet, s.URL+"/metrics", nil)
	require.NoError(t, err)
	mresp, err := c.Do(req)
	require.NoError(t, err)
	defer mresp.Body.Close()
	require.Equal(t, http.StatusOK, mresp.StatusCode)
	raw, err := io.ReadAll(mresp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `commentauth_http_requests_total{method="GET",path="/auth/me",status="401"} 1`)
}

func TestRouter_MethodNotAllowed(t *testing.T) {
	s := newTestServer(t)

	resp, _ := s.do(t, s.newClient(t), http.MethodPatch, "/comments/abc", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
