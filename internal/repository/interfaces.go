// Package repository はデータ永続化のインターフェースを定義する。
package repository

import "context"

// TokenRepository はクライアントごとの認証トークンの永続化インターフェース。
// クライアントIDを主キーとし、1クライアントにつき最大1件のトークンを保持する。
type TokenRepository interface {
	// Load はクライアントのトークンを取得する。見つからない場合は空文字列を返す。
	Load(ctx context.Context, clientID string) (string, error)
	// Save はクライアントのトークンを保存する。既存のトークンは上書きする。
	Save(ctx context.Context, clientID, token string) error
	// Delete はクライアントのトークンを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, clientID string) error
}
