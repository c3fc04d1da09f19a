// Package cleanup は到達不能になった認証トークンを削除するジョブを提供する。
// クライアントCookieは初回発行時にのみMaxAgeが設定されるため、
// 最終保存からMaxAge以上経過したトークンはどのブラウザからも参照されない。
package cleanup

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"
)

// DefaultInterval は定期実行の間隔。
const DefaultInterval = 24 * time.Hour

// Executor はSQLのExecContextを抽象化するインターフェース。
// *sql.DB や *sql.Tx を受け付けることができる。
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Dialect はバックエンドごとの削除クエリと保持期間引数の書式。
type Dialect struct {
	Name            string
	Query           string
	FormatRetention func(seconds int) string
}

// PostgresDialect はPostgreSQL用の削除クエリ。
var PostgresDialect = Dialect{
	Name:  "postgres",
	Query: `DELETE FROM client_tokens WHERE updated_at < now() - $1::interval`,
	FormatRetention: func(seconds int) string {
		return fmt.Sprintf("%d seconds", seconds)
	},
}

// SQLiteDialect はSQLite用の削除クエリ。
// updated_atはCURRENT_TIMESTAMP（UTC文字列）で保存されるため、datetime()で比較する。
var SQLiteDialect = Dialect{
	Name:  "sqlite",
	Query: `DELETE FROM client_tokens WHERE updated_at < datetime('now', ?)`,
	FormatRetention: func(seconds int) string {
		return fmt.Sprintf("-%d seconds", seconds)
	},
}

// CleanupJob は保持期間を超過したトークンの削除ジョブ。冪等。
type CleanupJob struct {
	db               Executor
	dialect          Dialect
	logger           *slog.Logger
	RetentionSeconds int // トークンの保持期間（秒）。クライアントCookieのMaxAgeと揃える
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(db Executor, dialect Dialect, retentionSeconds int, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		db:               db,
		dialect:          dialect,
		logger:           logger,
		RetentionSeconds: retentionSeconds,
	}
}

// Run は保持期間を超過したトークンを削除する。
// 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	result, err := j.db.ExecContext(ctx, j.dialect.Query, j.dialect.FormatRetention(j.RetentionSeconds))
	if err != nil {
		j.logger.Error("token cleanup failed",
			slog.String("error", err.Error()),
			slog.String("backend", j.dialect.Name),
			slog.Int("retention_seconds", j.RetentionSeconds),
		)
		return fmt.Errorf("failed to clean up tokens: %w", err)
	}

	deletedCount, err := result.RowsAffected()
	if err != nil {
		j.logger.Error("failed to read deleted token count",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to read deleted token count: %w", err)
	}

	j.logger.Info("token cleanup completed",
		slog.Int64("deleted_count", deletedCount),
		slog.String("backend", j.dialect.Name),
		slog.Int("retention_seconds", j.RetentionSeconds),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return nil
}

// Start は即時に1回実行した後、intervalごとにRunを繰り返すゴルーチンを起動する。
// ctxがキャンセルされると停止する。失敗はログに残し、次の周期で再試行する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultInterval
	}
	go func() {
		_ = j.Run(ctx)

		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_ = j.Run(ctx)
			}
		}
	}()
}
