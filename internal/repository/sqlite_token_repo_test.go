package repository

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// newTestSQLiteRepo は一時ディレクトリ上のSQLiteファイルでリポジトリを準備する。
func newTestSQLiteRepo(t *testing.T) (*SQLiteTokenRepo, *sql.DB, string) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tokens.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	repo := NewSQLiteTokenRepo(db)
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return repo, db, path
}

func TestSQLiteTokenRepo_LoadMissingReturnsEmpty(t *testing.T) {
	repo, _, _ := newTestSQLiteRepo(t)

	token, err := repo.Load(context.Background(), "nobody")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if token != "" {
		t.Errorf("Load() = %q, want empty", token)
	}
}

func TestSQLiteTokenRepo_SaveLoadOverwriteDelete(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestSQLiteRepo(t)

	if err := repo.Save(ctx, "client-1", "tok1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if got, _ := repo.Load(ctx, "client-1"); got != "tok1" {
		t.Errorf("Load() = %q, want tok1", got)
	}

	if err := repo.Save(ctx, "client-1", "tok2"); err != nil {
		t.Fatalf("Save() overwrite error = %v", err)
	}
	if got, _ := repo.Load(ctx, "client-1"); got != "tok2" {
		t.Errorf("Load() after overwrite = %q, want tok2", got)
	}

	if err := repo.Delete(ctx, "client-1"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if got, _ := repo.Load(ctx, "client-1"); got != "" {
		t.Errorf("Load() after delete = %q, want empty", got)
	}

	// 2回目の削除もエラーにならない
	if err := repo.Delete(ctx, "client-1"); err != nil {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestSQLiteTokenRepo_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	repo, db, path := newTestSQLiteRepo(t)

	if err := repo.Save(ctx, "client-1", "tok1"); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	db.Close()

	reopened, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to reopen sqlite: %v", err)
	}
	defer reopened.Close()

	repo2 := NewSQLiteTokenRepo(reopened)
	if err := repo2.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema() on existing db error = %v", err)
	}
	if got, _ := repo2.Load(ctx, "client-1"); got != "tok1" {
		t.Errorf("Load() after reopen = %q, want tok1", got)
	}
}

func TestSQLiteTokenRepo_IsolatesClients(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := newTestSQLiteRepo(t)

	_ = repo.Save(ctx, "client-a", "tok-a")
	_ = repo.Save(ctx, "client-b", "tok-b")
	_ = repo.Delete(ctx, "client-a")

	if got, _ := repo.Load(ctx, "client-b"); got != "tok-b" {
		t.Errorf("Load(client-b) = %q, want tok-b", got)
	}
}
