package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func captureClientID(captured *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, _ := ClientIDFromContext(r.Context())
		*captured = id
		w.WriteHeader(http.StatusOK)
	})
}

func findCookie(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func TestClientMiddleware_NoCookie_IssuesNewClientID(t *testing.T) {
	var captured string
	handler := NewClientMiddleware(ClientConfig{MaxAge: 3600})(captureClientID(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookie := findCookie(w.Result(), ClientCookieName)
	if cookie == nil {
		t.Fatal("client_id cookie should be set")
	}
	if _, err := uuid.Parse(cookie.Value); err != nil {
		t.Errorf("client_id = %q is not a UUID", cookie.Value)
	}
	if cookie.Value != captured {
		t.Errorf("context client ID = %q, cookie = %q", captured, cookie.Value)
	}
	if !cookie.HttpOnly {
		t.Error("client_id cookie must be HttpOnly")
	}
	if cookie.MaxAge != 3600 {
		t.Errorf("MaxAge = %d, want 3600", cookie.MaxAge)
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("SameSite = %v, want Lax", cookie.SameSite)
	}
}

func TestClientMiddleware_ValidCookie_ReusesClientID(t *testing.T) {
	existing := uuid.NewString()
	var captured string
	handler := NewClientMiddleware(ClientConfig{})(captureClientID(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: existing})
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	if captured != existing {
		t.Errorf("client ID = %q, want %q", captured, existing)
	}
	if findCookie(w.Result(), ClientCookieName) != nil {
		t.Error("existing client_id cookie must not be replaced")
	}
}

func TestClientMiddleware_InvalidCookie_IssuesNewClientID(t *testing.T) {
	var captured string
	handler := NewClientMiddleware(ClientConfig{})(captureClientID(&captured))

	for _, value := range []string{"", "not-a-uuid", "'; DROP TABLE client_tokens; --"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.AddCookie(&http.Cookie{Name: ClientCookieName, Value: value})
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)

		if captured == value {
			t.Errorf("invalid cookie %q must not be used as client ID", value)
		}
		if _, err := uuid.Parse(captured); err != nil {
			t.Errorf("issued client ID %q is not a UUID", captured)
		}
	}
}

func TestClientMiddleware_SecureCookieSettings(t *testing.T) {
	var captured string
	handler := NewClientMiddleware(ClientConfig{CookieSecure: true, CookieDomain: "example.com"})(captureClientID(&captured))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	cookie := findCookie(w.Result(), ClientCookieName)
	if cookie == nil {
		t.Fatal("client_id cookie should be set")
	}
	if !cookie.Secure {
		t.Error("cookie should be Secure")
	}
	if cookie.Domain != "example.com" {
		t.Errorf("Domain = %q, want example.com", cookie.Domain)
	}
}

func TestClientIDFromContext_NoValue_ReturnsError(t *testing.T) {
	if _, err := ClientIDFromContext(context.Background()); err == nil {
		t.Error("expected error for missing client ID")
	}
}

func TestContextWithClientID_RoundTrip(t *testing.T) {
	ctx := ContextWithClientID(context.Background(), "client-1")

	id, err := ClientIDFromContext(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "client-1" {
		t.Errorf("client ID = %q, want client-1", id)
	}
}
