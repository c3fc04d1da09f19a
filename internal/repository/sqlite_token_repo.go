package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// sqliteSchema はSQLiteバックエンドのテーブル定義。
// PostgreSQL側のmigrations/000001と同じ列構成を持つ。
const sqliteSchema = `
CREATE TABLE IF NOT EXISTS client_tokens (
	client_id  TEXT PRIMARY KEY,
	token      TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
	updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_client_tokens_updated_at ON client_tokens (updated_at)`

// SQLiteTokenRepo はSQLiteを使用したトークンリポジトリ。
// 単一ノード構成でプロセス再起動後もトークンを保持するために使う。
type SQLiteTokenRepo struct {
	db *sql.DB
}

// NewSQLiteTokenRepo はSQLiteTokenRepoを生成する。
func NewSQLiteTokenRepo(db *sql.DB) *SQLiteTokenRepo {
	return &SQLiteTokenRepo{db: db}
}

// EnsureSchema はテーブルが存在しない場合に作成する。冪等。
func (r *SQLiteTokenRepo) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create client_tokens table: %w", err)
	}
	return nil
}

// Load は指定クライアントのトークンを取得する。未保存の場合は空文字列を返す。
func (r *SQLiteTokenRepo) Load(ctx context.Context, clientID string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM client_tokens WHERE client_id = ?`,
		clientID,
	).Scan(&token)

	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load token: %w", err)
	}

	return token, nil
}

// Save は指定クライアントのトークンをUPSERTする。
func (r *SQLiteTokenRepo) Save(ctx context.Context, clientID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_tokens (client_id, token)
		 VALUES (?, ?)
		 ON CONFLICT (client_id)
		 DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP`,
		clientID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete は指定クライアントのトークンを削除する。
func (r *SQLiteTokenRepo) Delete(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_tokens WHERE client_id = ?`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*SQLiteTokenRepo)(nil)
