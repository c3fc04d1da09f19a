package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/decodetube/internal/config"
	"github.com/hitoshi/decodetube/internal/security"
)

// newGraphQLStub はoperationに応じてレスポンスを返すGraphQLゲートウェイのスタブ。
func newGraphQLStub(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.Contains(req.Query, "signIn"):
			io.WriteString(w, `{"data":{"signIn":{"session":{"accessToken":"at","refreshToken":"rt-123","user":{"displayName":"Tester"}}}}}`)
		case strings.Contains(req.Query, "description"):
			if r.Header.Get("Authorization") != "Bearer rt-123" {
				io.WriteString(w, `{"errors":[{"message":"invalid token"}]}`)
				return
			}
			io.WriteString(w, `{"data":{"description":{"output":"Summary of `+req.Variables["videoId"].(string)+`: compare if a<b and c>d, and why <div> tags differ"}}}`)
		default:
			io.WriteString(w, `{"errors":[{"message":"unknown operation"}]}`)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func testConfig(gatewayURL string) *config.Config {
	return &config.Config{
		AuthEndpointURL:        gatewayURL,
		SummaryEndpointURL:     gatewayURL,
		SummaryGateway:         "graphql",
		GatewayTimeout:         5 * time.Second,
		GatewayMaxResponseSize: 1 << 20,
		SessionBackend:         config.SessionBackendMemory,
		ClientCookieMaxAge:     3600,
		ViewIdleTimeout:        time.Minute,
		RateLimitGeneral:       120,
		RateLimitSummary:       20,
		RateLimitAuth:          10,
		ServerPort:             "8080",
		BaseURL:                "http://localhost:8080",
	}
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	t.Cleanup(func() {
		if err := srv.Close(); err != nil {
			t.Errorf("Close() error: %v", err)
		}
	})
	return srv
}

func cookieValue(t *testing.T, jar http.CookieJar, rawURL, name string) string {
	t.Helper()
	u, _ := url.Parse(rawURL)
	for _, c := range jar.Cookies(u) {
		if c.Name == name {
			return c.Value
		}
	}
	t.Fatalf("cookie %q not found", name)
	return ""
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	return string(b)
}

func TestNewServer_EndToEnd(t *testing.T) {
	gw := newGraphQLStub(t)
	srv := newTestServer(t, testConfig(gw.URL))

	web := httptest.NewServer(srv.Handler)
	defer web.Close()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{Jar: jar}

	// 未ログインでの送信は通知を表示する
	resp, err := client.Get(web.URL + "/video/" + url.PathEscape("https://youtu.be/dQw4w9WgXcQ"))
	if err != nil {
		t.Fatalf("GET /video error: %v", err)
	}
	if body := readAll(t, resp); !strings.Contains(body, "Please log in first to view the Video Summary.") {
		t.Errorf("expected login notice, got:\n%s", body)
	}

	csrf := cookieValue(t, jar, web.URL, "csrf_token")

	resp, err = client.PostForm(web.URL+"/auth/login", url.Values{
		"email":      {"user@example.com"},
		"password":   {"secret"},
		"csrf_token": {csrf},
	})
	if err != nil {
		t.Fatalf("POST /auth/login error: %v", err)
	}
	if body := readAll(t, resp); !strings.Contains(body, "Login successful") {
		t.Errorf("expected login notice, got:\n%s", body)
	}

	resp, err = client.PostForm(web.URL+"/", url.Values{
		"url":        {"https://www.youtube.com/watch?v=dQw4w9WgXcQ"},
		"csrf_token": {csrf},
	})
	if err != nil {
		t.Fatalf("POST / error: %v", err)
	}
	body := readAll(t, resp)
	// 要約は加工されず、テンプレートで1回だけエスケープされる
	want := "Summary of dQw4w9WgXcQ: compare if a&lt;b and c&gt;d, and why &lt;div&gt; tags differ"
	if !strings.Contains(body, want) {
		t.Errorf("expected summary text unchanged, got:\n%s", body)
	}
	if strings.Contains(body, "<div> tags") {
		t.Error("summary markup must be escaped, not rendered")
	}
	if strings.Contains(body, "No summary/description available") {
		t.Error("a summary with tag-like text must not fall back to the empty message")
	}

	resp, err = client.Get(web.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics error: %v", err)
	}
	metricsBody := readAll(t, resp)
	for _, want := range []string{
		`decodetube_auth_attempts_total{action="login",outcome="success"} 1`,
		`decodetube_summary_fetch_total{outcome="success"} 1`,
		`decodetube_submissions_total{outcome="unauthenticated"} 1`,
	} {
		if !strings.Contains(metricsBody, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
}

func TestNewServer_Health(t *testing.T) {
	srv := newTestServer(t, testConfig("https://gateway.example.com"))

	w := httptest.NewRecorder()
	srv.Handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestNewServer_SQLiteBackendPersistsTokens(t *testing.T) {
	gw := newGraphQLStub(t)
	cfg := testConfig(gw.URL)
	cfg.SessionBackend = config.SessionBackendSQLite
	cfg.SQLitePath = filepath.Join(t.TempDir(), "tokens.db")

	login := func(srv *Server) (*http.Client, string) {
		web := httptest.NewServer(srv.Handler)
		t.Cleanup(web.Close)
		jar, _ := cookiejar.New(nil)
		client := &http.Client{Jar: jar}
		resp, err := client.Get(web.URL + "/")
		if err != nil {
			t.Fatalf("GET / error: %v", err)
		}
		readAll(t, resp)
		resp, err = client.PostForm(web.URL+"/auth/login", url.Values{
			"email":      {"user@example.com"},
			"password":   {"secret"},
			"csrf_token": {cookieValue(t, jar, web.URL, "csrf_token")},
		})
		if err != nil {
			t.Fatalf("POST /auth/login error: %v", err)
		}
		readAll(t, resp)
		return client, cookieValue(t, jar, web.URL, "client_id")
	}

	first, err := NewServer(context.Background(), cfg)
	if err != nil {
		t.Fatalf("NewServer() error: %v", err)
	}
	_, clientID := login(first)
	if err := first.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	// 再起動後も同じクライアントIDでログイン状態が続く
	second := newTestServer(t, cfg)
	req := httptest.NewRequest(http.MethodGet, "/api/session", nil)
	req.AddCookie(&http.Cookie{Name: "client_id", Value: clientID})
	w := httptest.NewRecorder()
	second.Handler.ServeHTTP(w, req)

	if !strings.Contains(w.Body.String(), `"logged_in":true`) {
		t.Errorf("session after restart = %s, want logged_in true", w.Body.String())
	}
}

func TestNewServer_SSRFGuardRejectsPrivateEndpoint(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:9000/v1/graphql")
	cfg.GatewaySSRFGuard = true

	_, err := NewServer(context.Background(), cfg)
	if err == nil {
		t.Fatal("expected error for loopback endpoint with SSRF guard enabled")
	}
	if !errors.Is(err, security.ErrBlockedEndpoint) {
		t.Errorf("error = %v, want ErrBlockedEndpoint", err)
	}
}

func TestNewServer_UnknownSummaryGateway(t *testing.T) {
	cfg := testConfig("https://gateway.example.com")
	cfg.SummaryGateway = "grpc"

	if _, err := NewServer(context.Background(), cfg); err == nil {
		t.Fatal("expected error for unknown summary gateway")
	}
}

func TestRateLimiterConfig_UsesPerMinuteValues(t *testing.T) {
	cfg := testConfig("https://gateway.example.com")
	cfg.RateLimitSummary = 6

	rl := rateLimiterConfig(cfg)
	if rl.SummaryBurst != 6 {
		t.Errorf("SummaryBurst = %d, want 6", rl.SummaryBurst)
	}
	if float64(rl.SummaryRate) != 0.1 {
		t.Errorf("SummaryRate = %v, want 0.1", rl.SummaryRate)
	}
}
