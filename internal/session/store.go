// Package session はクライアントごとの認証トークン保持を提供する。
//
// Storeはブラウザ（クライアントCookie）単位のスコープで1つのトークンを保持する。
// 有効期限は持たず、トークンの失効は次回のゲートウェイ呼び出しが拒否されることで検出する。
package session

import (
	"context"
	"errors"
	"fmt"
)

// ErrEmptyToken は空トークンでのログインを表す。
var ErrEmptyToken = errors.New("empty auth token")

// Backend はトークンの永続化先のインターフェース。
// repository.TokenRepository と同じメソッドセットを持つ。
type Backend interface {
	// Load はクライアントのトークンを取得する。未保存の場合は空文字列を返す。
	Load(ctx context.Context, clientID string) (string, error)
	// Save はクライアントのトークンを上書き保存する。
	Save(ctx context.Context, clientID, token string) error
	// Delete はクライアントのトークンを削除する。未保存でもエラーにしない。
	Delete(ctx context.Context, clientID string) error
}

// Store は1クライアント分の認証トークンを所有する。
// トークンを読み書きするのはStoreのみとし、他のコンポーネントはキャッシュしない。
type Store struct {
	backend  Backend
	clientID string
}

// NewStore はクライアントIDに紐づくStoreを生成する。
func NewStore(backend Backend, clientID string) *Store {
	return &Store{
		backend:  backend,
		clientID: clientID,
	}
}

// ClientID はStoreのスコープとなるクライアントIDを返す。
func (s *Store) ClientID() string {
	return s.clientID
}

// Login はトークンを保存する。既存のトークンは無条件に上書きする（後勝ち）。
func (s *Store) Login(ctx context.Context, token string) error {
	if token == "" {
		return ErrEmptyToken
	}
	if err := s.backend.Save(ctx, s.clientID, token); err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Logout はトークンを破棄する。ログアウト済みでも何もせず成功する。
func (s *Store) Logout(ctx context.Context) error {
	if err := s.backend.Delete(ctx, s.clientID); err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// Token は保存済みトークンを返す。存在しない場合はokがfalseになる。
func (s *Store) Token(ctx context.Context) (token string, ok bool, err error) {
	token, err = s.backend.Load(ctx, s.clientID)
	if err != nil {
		return "", false, fmt.Errorf("failed to load token: %w", err)
	}
	return token, token != "", nil
}

// IsLoggedIn はトークンが存在するかを返す。
func (s *Store) IsLoggedIn(ctx context.Context) (bool, error) {
	_, ok, err := s.Token(ctx)
	return ok, err
}
