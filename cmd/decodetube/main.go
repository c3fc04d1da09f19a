// Command decodetube はYouTube動画の要約を表示するWebアプリケーションを起動する。
//
// サブコマンド:
//
//	serve        Webサーバーを起動する（デフォルト）
//	migrate      セッションバックエンドのスキーマを作成する
//	healthcheck  /health を確認する（Dockerヘルスチェック用）
//	help         サブコマンドの一覧を表示する
package main

import (
	"log/slog"
	"os"

	"github.com/hitoshi/decodetube/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		slog.Error("application exited with error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
