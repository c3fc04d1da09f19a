// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/decodetube/internal/auth"
	"github.com/hitoshi/decodetube/internal/model"
	"github.com/hitoshi/decodetube/internal/session"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, store auth.SessionStore, email, password string) (*model.AuthSession, error)
	SignUp(ctx context.Context, email, password string) error
	Logout(ctx context.Context, store auth.SessionStore) error
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieSecure bool
}

// AuthHandler はログイン・サインアップ・ログアウトフォームのHTTPハンドラー。
type AuthHandler struct {
	service  AuthServiceInterface
	sessions session.Backend
	renderer *renderer
	config   AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, sessions session.Backend, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		sessions: sessions,
		renderer: newRenderer(),
		config:   config,
	}
}

// Login はログインフォームを処理する。
// 成功時はreturn_toへリダイレクトし、失敗時はメールアドレスを残したままフォームを再表示する。
// POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	store, err := storeFor(r, h.sessions)
	if err != nil {
		http.Error(w, "missing client", http.StatusBadRequest)
		return
	}

	email := r.PostFormValue("email")
	if _, err := h.service.SignIn(r.Context(), store, email, r.PostFormValue("password")); err != nil {
		h.renderFailure(w, r, authModeLogin, email, err)
		return
	}

	setFlash(w, flashLogin, h.config.CookieSecure)
	http.Redirect(w, r, safeReturnPath(r.PostFormValue("return_to")), http.StatusSeeOther)
}

// SignUp はサインアップフォームを処理する。
// 成功時は確認メール送信の通知とともにログインフォームへ戻す。
// POST /auth/signup
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	if err := h.service.SignUp(r.Context(), email, r.PostFormValue("password")); err != nil {
		h.renderFailure(w, r, authModeSignUp, email, err)
		return
	}

	setFlash(w, flashSignUp, h.config.CookieSecure)
	http.Redirect(w, r, "/?auth="+authModeLogin, http.StatusSeeOther)
}

// Logout はクライアントのトークンを削除する。未ログインでも成功として扱う。
// POST /auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	store, err := storeFor(r, h.sessions)
	if err != nil {
		http.Error(w, "missing client", http.StatusBadRequest)
		return
	}

	if err := h.service.Logout(r.Context(), store); err != nil {
		slog.Error("failed to logout",
			slog.String("client_id", store.ClientID()),
			slog.String("error", err.Error()),
		)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	setFlash(w, flashLogout, h.config.CookieSecure)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// renderFailure は認証失敗時にランディングビューのフォームを再表示する。
// パスワードは再表示しない。
func (h *AuthHandler) renderFailure(w http.ResponseWriter, r *http.Request, mode, email string, err error) {
	data := newPageData(r, h.sessions)
	data.AuthMode = mode
	data.AuthEmail = email
	data.ReturnTo = safeReturnPath(r.PostFormValue("return_to"))

	var authErr *auth.Error
	if errors.As(err, &authErr) {
		data.AuthError = authErr.Message
	} else if mode == authModeSignUp {
		data.AuthError = auth.MessageSignUpFailed
	} else {
		data.AuthError = auth.MessageLoginFailed
	}

	h.renderer.render(w, authFailureStatus(err), pageHome, data)
}

// authFailureStatus は認証失敗の種別に対応するHTTPステータスコードを返す。
func authFailureStatus(err error) int {
	switch {
	case errors.Is(err, auth.ErrMissingCredentials):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrGatewayRejected):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
