package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresTokenRepo はPostgreSQLを使用したトークンリポジトリ。
type PostgresTokenRepo struct {
	db *sql.DB
}

// NewPostgresTokenRepo はPostgresTokenRepoを生成する。
func NewPostgresTokenRepo(db *sql.DB) *PostgresTokenRepo {
	return &PostgresTokenRepo{db: db}
}

// Load は指定クライアントのトークンを取得する。未保存の場合は空文字列を返す。
func (r *PostgresTokenRepo) Load(ctx context.Context, clientID string) (string, error) {
	var token string
	err := r.db.QueryRowContext(ctx,
		`SELECT token FROM client_tokens WHERE client_id = $1`,
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
func (r *PostgresTokenRepo) Save(ctx context.Context, clientID, token string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO client_tokens (client_id, token, created_at, updated_at)
		 VALUES ($1, $2, now(), now())
		 ON CONFLICT (client_id)
		 DO UPDATE SET token = EXCLUDED.token, updated_at = now()`,
		clientID, token,
	)
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// Delete は指定クライアントのトークンを削除する。
func (r *PostgresTokenRepo) Delete(ctx context.Context, clientID string) error {
	_, err := r.db.ExecContext(ctx,
		`DELETE FROM client_tokens WHERE client_id = $1`,
		clientID,
	)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TokenRepository = (*PostgresTokenRepo)(nil)
