package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskdeck/taskdeck/internal/auth/service"
	"github.com/taskdeck/taskdeck/internal/auth/store/drivers/sqlite"
	"github.com/taskdeck/taskdeck/pkg/cryptox"
	"github.com/taskdeck/taskdeck/pkg/jwtx"
)

var pepperOnce sync.Once

const testPassword = "Horse!Staple9"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	pepperOnce.Do(func() {
		cryptox.SetPepperPath(filepath.Join(t.TempDir(), "pepper"))
	})

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	codec, err := jwtx.NewCodec([]byte("0123456789abcdef0123456789abcdef"), "taskdeck-test")
	require.NoError(t, err)

	authority := &service.SessionAuthority{
		Store:           st,
		Codec:           codec,
		TokenTTL:        time.Hour,
		FingerprintMode: cryptox.FingerprintIPUA,
	}
	authenticator := &service.Authenticator{
		Store:           st,
		Codec:           codec,
		FingerprintMode: cryptox.FingerprintIPUA,
	}

	router := NewRouter("test", st, slog.Default())
	router.Accounts = &service.AccountService{Store: st, Authority: authority}
	router.Authority = authority
	router.Authenticator = authenticator
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

// client pins the request metadata the fingerprint is derived from, so every
// call in a scenario looks like the same device unless a test changes it.
type client struct {
	t       *testing.T
	baseURL string
	ip      string
	token   string
	tabKey  string
}

func newClient(t *testing.T, srv *httptest.Server, ip string) *client {
	return &client{t: t, baseURL: srv.URL, ip: ip}
}

func (c *client) do(method, path string, body any, auth bool) (*http.Response, map[string]any) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequest(method, c.baseURL+path, reader)
	require.NoError(c.t, err)
	req.Header.Set("X-Forwarded-For", c.ip)
	req.Header.Set("User-Agent", "taskdeck-test-agent")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.token)
		if c.tabKey != "" {
			req.Header.Set(HeaderTabSessionKey, c.tabKey)
		}
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(c.t, err)
	defer resp.Body.Close()

	var decoded map[string]any
	raw, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	if len(raw) > 0 {
		require.NoError(c.t, json.Unmarshal(raw, &decoded))
	}
	return resp, decoded
}

func (c *client) register(email string) {
	c.t.Helper()

	resp, _ := c.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Test User", "email": email, "password": testPassword,
	}, false)
	require.Equal(c.t, http.StatusCreated, resp.StatusCode)
}

func (c *client) login(email string) map[string]any {
	c.t.Helper()

	resp, body := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": email, "password": testPassword,
	}, false)
	require.Equal(c.t, http.StatusOK, resp.StatusCode)

	c.token = body["access_token"].(string)
	c.tabKey = body["tab_session_key"].(string)
	return body
}

func TestLoginAndProfileRoundtrip(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.10")

	c.register("alice@example.com")
	body := c.login("alice@example.com")
	require.Equal(t, "Bearer", body["token_type"])
	require.NotEmpty(t, body["session_id"])

	resp, profile := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "alice@example.com", profile["email"])
	require.Equal(t, "member", profile["role"])
}

func TestRequestWithoutTabKeyRejected(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.11")

	c.register("alice@example.com")
	c.login("alice@example.com")
	c.tabKey = ""

	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "tab_key_missing", body["error"])
}

func TestLogoutRevokesToken(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.12")

	c.register("alice@example.com")
	c.login("alice@example.com")

	resp, _ := c.do(http.MethodPost, "/v1/auth/logout", nil, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "blacklisted", body["error"])
}

func TestLogoutAllInvalidatesByVersion(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.13")

	c.register("alice@example.com")
	c.login("alice@example.com")

	resp, _ := c.do(http.MethodPost, "/v1/auth/logout-all", nil, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "version_stale", body["error"])
}

func TestDeviceMismatchPoisonsSession(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.14")

	c.register("alice@example.com")
	c.login("alice@example.com")

	// Same token presented from a different source address.
	c.ip = "198.51.100.99"
	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "device_mismatch", body["error"])

	// The token was burned, so the original device is locked out too.
	c.ip = "203.0.113.14"
	resp, body = c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "blacklisted", body["error"])
}

func TestTabSessionRefresh(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.15")

	c.register("alice@example.com")
	c.login("alice@example.com")

	// The refresh endpoint accepts the token without a tab key.
	old := c.tabKey
	c.tabKey = ""
	resp, body := c.do(http.MethodPost, "/v1/auth/tab-session", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotEmpty(t, body["tab_session_key"])
	require.NotEqual(t, old, body["tab_session_key"])

	// The rotated key is live immediately.
	c.tabKey = body["tab_session_key"].(string)
	resp, _ = c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSecondLoginSupersedesFirst(t *testing.T) {
	srv := newTestServer(t)
	first := newClient(t, srv, "203.0.113.16")
	second := newClient(t, srv, "203.0.113.17")

	first.register("alice@example.com")
	first.login("alice@example.com")
	second.login("alice@example.com")

	resp, body := first.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "session_invalid", body["error"])

	resp, sessions := second.do(http.MethodGet, "/v1/auth/sessions", nil, true)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	list := sessions["sessions"].([]any)
	require.Len(t, list, 1)
	require.Equal(t, true, list[0].(map[string]any)["current"])
}

func TestChangePasswordForcesRelogin(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.18")

	c.register("alice@example.com")
	c.login("alice@example.com")

	resp, _ := c.do(http.MethodPost, "/v1/auth/change-password", map[string]string{
		"current_password": testPassword,
		"new_password":     "Battery!Staple7",
	}, true)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, true)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "version_stale", body["error"])

	resp, _ = c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Battery!Staple7",
	}, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLoginWrongPassword(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.19")

	c.register("alice@example.com")
	resp, body := c.do(http.MethodPost, "/v1/auth/login", map[string]string{
		"email": "alice@example.com", "password": "Wrong!Pass9x",
	}, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "invalid_credentials", body["error"])
}

func TestRegisterDuplicateEmail(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.20")

	c.register("alice@example.com")
	resp, body := c.do(http.MethodPost, "/v1/auth/register", map[string]string{
		"name": "Other", "email": "alice@example.com", "password": testPassword,
	}, false)
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	require.Equal(t, "email_taken", body["error"])
}

func TestHealthEndpoints(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.21")

	resp, body := c.do(http.MethodGet, "/livez", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])

	resp, body = c.do(http.MethodGet, "/readyz", nil, false)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "ok", body["status"])
}

func TestMissingBearerToken(t *testing.T) {
	srv := newTestServer(t)
	c := newClient(t, srv, "203.0.113.22")

	resp, body := c.do(http.MethodGet, "/v1/auth/profile", nil, false)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	require.Equal(t, "missing_token", body["error"])
}
