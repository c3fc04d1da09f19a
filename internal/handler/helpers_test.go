package handler

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/model"
	"github.com/hitoshi/decodetube/internal/session"
	"github.com/hitoshi/decodetube/internal/view"
	"golang.org/x/net/html"
)

const (
	testClientID = "6f1c2d4e-8a9b-4c3d-9e8f-0a1b2c3d4e5f"
	testVideoURL = "https://www.youtube.com/watch?v=dQw4w9WgXcQ"
	testVideoID  = model.VideoID("dQw4w9WgXcQ")
)

// --- モック定義 ---

type mockSummaryGateway struct {
	fetchFn func(ctx context.Context, videoID model.VideoID, token string) (string, error)
	calls   atomic.Int32
}

func (m *mockSummaryGateway) FetchSummary(ctx context.Context, videoID model.VideoID, token string) (string, error) {
	m.calls.Add(1)
	if m.fetchFn != nil {
		return m.fetchFn(ctx, videoID, token)
	}
	return "", nil
}

// testViews はクライアントごとにMachineを生成するViewRegistry。
type testViews struct {
	gateway  *mockSummaryGateway
	sessions session.Backend

	mu       sync.Mutex
	machines map[string]*view.Machine
}

func newTestViews(t *testing.T, gw *mockSummaryGateway, sessions session.Backend) *testViews {
	t.Helper()
	v := &testViews{
		gateway:  gw,
		sessions: sessions,
		machines: make(map[string]*view.Machine),
	}
	t.Cleanup(func() {
		v.mu.Lock()
		defer v.mu.Unlock()
		for _, m := range v.machines {
			m.Close()
		}
	})
	return v
}

func (v *testViews) Get(clientID string) *view.Machine {
	v.mu.Lock()
	defer v.mu.Unlock()
	if m, ok := v.machines[clientID]; ok {
		return m
	}
	m := view.NewMachine(view.MachineConfig{
		ClientID: clientID,
		Gateway:  v.gateway,
		Tokens:   session.NewStore(v.sessions, clientID),
	})
	v.machines[clientID] = m
	return m
}

// --- ヘルパー ---

// withClient はクライアントIDとCSRFトークンをコンテキストに設定したリクエストを返す。
func withClient(req *http.Request, clientID string) *http.Request {
	ctx := middleware.ContextWithClientID(req.Context(), clientID)
	ctx = middleware.ContextWithCSRFToken(ctx, "csrf-test-token")
	return req.WithContext(ctx)
}

// clientRouter はクライアントIDを設定してからハンドラーを呼ぶchiルーターを返す。
func clientRouter(clientID string, route func(r chi.Router)) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, withClient(req, clientID))
		})
	})
	route(r)
	return r
}

func loginBackend(t *testing.T, clientID, token string) *session.MemoryBackend {
	t.Helper()
	backend := session.NewMemoryBackend()
	if token != "" {
		if err := backend.Save(context.Background(), clientID, token); err != nil {
			t.Fatalf("Save() error: %v", err)
		}
	}
	return backend
}

func parseHTML(t *testing.T, body string) *html.Node {
	t.Helper()
	doc, err := html.Parse(strings.NewReader(body))
	if err != nil {
		t.Fatalf("failed to parse html: %v", err)
	}
	return doc
}

// findNode は条件に一致する最初の要素を深さ優先で探す。
func findNode(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, match); found != nil {
			return found
		}
	}
	return nil
}

func findByID(n *html.Node, id string) *html.Node {
	return findNode(n, func(n *html.Node) bool { return attr(n, "id") == id })
}

func findElement(n *html.Node, tag string) *html.Node {
	return findNode(n, func(n *html.Node) bool { return n.Data == tag })
}

// findInput はname属性で入力要素を探す。
func findInput(n *html.Node, name string) *html.Node {
	return findNode(n, func(n *html.Node) bool { return n.Data == "input" && attr(n, "name") == name })
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasAttr(n *html.Node, key string) bool {
	for _, a := range n.Attr {
		if a.Key == key {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
