// Package auth はサインイン・サインアップ・ログアウトのユースケースを提供する。
//
// 認証ゲートウェイの呼び出し結果をクライアントのsession.Storeに反映する。
// 永続化するのはサインインで得たリフレッシュトークンのみ。
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/hitoshi/decodetube/internal/gateway"
	"github.com/hitoshi/decodetube/internal/metrics"
	"github.com/hitoshi/decodetube/internal/model"
)

// ユーザー向けメッセージ。
const (
	MessageLoginSuccess       = "Login successful"
	MessageLoginFailed        = "Login failed"
	MessageSignUpSuccess      = "Account created successfully. A verification email has been sent."
	MessageSignUpFailed       = "Account creation failed"
	MessageLogoutSuccess      = "Logged out successfully"
	MessageMissingCredentials = "Email and password are required"
)

// 操作名。メトリクスのactionラベルにも使う。
const (
	OpLogin  = "login"
	OpSignUp = "signup"
	OpLogout = "logout"
)

// ErrMissingCredentials はメールアドレスまたはパスワードが空であることを表す。
var ErrMissingCredentials = errors.New("email and password are required")

// Provider は認証ゲートウェイのインターフェース。gateway.AuthGatewayが実装する。
type Provider interface {
	SignIn(ctx context.Context, email, password string) (*model.AuthSession, error)
	SignUp(ctx context.Context, email, password string) error
}

// SessionStore はトークンの保存先。session.Storeが実装する。
type SessionStore interface {
	Login(ctx context.Context, token string) error
	Logout(ctx context.Context) error
}

// TextSanitizer はゲートウェイが返したメッセージを表示用に無害化する。
type TextSanitizer interface {
	Sanitize(raw string) string
}

// Error は認証操作の失敗を表す。MessageはそのままUIに表示できる。
type Error struct {
	Op      string
	Message string
	Err     error
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap は元のエラーを返す。
func (e *Error) Unwrap() error {
	return e.Err
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	provider  Provider
	sanitizer TextSanitizer
	metrics   metrics.MetricsCollector
}

// NewService はServiceを生成する。
func NewService(provider Provider, sanitizer TextSanitizer, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.Nop{}
	}
	return &Service{
		provider:  provider,
		sanitizer: sanitizer,
		metrics:   collector,
	}
}

// SignIn は認証ゲートウェイでサインインし、リフレッシュトークンをstoreに保存する。
// 既存のトークンは上書きされる。
func (s *Service) SignIn(ctx context.Context, store SessionStore, email, password string) (*model.AuthSession, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.metrics.RecordAuthAttempt(OpLogin, metrics.OutcomeInvalidInput)
		return nil, &Error{Op: OpLogin, Message: MessageMissingCredentials, Err: ErrMissingCredentials}
	}

	session, err := s.provider.SignIn(ctx, email, password)
	if err != nil {
		return nil, s.fail(OpLogin, MessageLoginFailed, err)
	}

	if err := store.Login(ctx, session.RefreshToken); err != nil {
		return nil, s.fail(OpLogin, MessageLoginFailed, fmt.Errorf("failed to store token: %w", err))
	}

	s.metrics.RecordAuthAttempt(OpLogin, metrics.OutcomeSuccess)
	slog.Info("user signed in",
		slog.String("display_name", session.User.DisplayName),
	)

	return session, nil
}

// SignUp は未確認アカウントを作成する。トークンは発行されず、storeは変更しない。
func (s *Service) SignUp(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		s.metrics.RecordAuthAttempt(OpSignUp, metrics.OutcomeInvalidInput)
		return &Error{Op: OpSignUp, Message: MessageMissingCredentials, Err: ErrMissingCredentials}
	}

	if err := s.provider.SignUp(ctx, email, password); err != nil {
		return s.fail(OpSignUp, MessageSignUpFailed, err)
	}

	s.metrics.RecordAuthAttempt(OpSignUp, metrics.OutcomeSuccess)
	slog.Info("account created")

	return nil
}

// Logout はstoreのトークンを破棄する。ログアウト済みでも成功する。
func (s *Service) Logout(ctx context.Context, store SessionStore) error {
	if err := store.Logout(ctx); err != nil {
		s.metrics.RecordAuthAttempt(OpLogout, metrics.OutcomeFailure)
		return &Error{Op: OpLogout, Message: model.MessageTransportFailure, Err: err}
	}

	s.metrics.RecordAuthAttempt(OpLogout, metrics.OutcomeSuccess)
	return nil
}

// fail は失敗を記録し、表示用メッセージ付きのErrorを返す。
// ゲートウェイが拒否した場合はその先頭メッセージを、それ以外は汎用メッセージを使う。
func (s *Service) fail(op, fallback string, err error) *Error {
	var rejected *gateway.RejectedError
	if errors.As(err, &rejected) {
		s.metrics.RecordAuthAttempt(op, metrics.OutcomeRejected)
		slog.Warn("auth gateway rejected request",
			slog.String("op", op),
			slog.String("error", err.Error()),
		)

		msg := rejected.Message
		if s.sanitizer != nil {
			msg = s.sanitizer.Sanitize(msg)
		}
		if msg == "" {
			msg = fallback
		}
		return &Error{Op: op, Message: msg, Err: err}
	}

	s.metrics.RecordAuthAttempt(op, metrics.OutcomeFailure)
	slog.Error("auth request failed",
		slog.String("op", op),
		slog.String("error", err.Error()),
	)
	return &Error{Op: op, Message: fallback, Err: err}
}

// compile-time interface check
var _ Provider = (*gateway.AuthGateway)(nil)
