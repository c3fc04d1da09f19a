package app

import (
	"fmt"
	"io"
)

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモード。
	CommandServe Command = "serve"
	// CommandMigrate はセッションバックエンドのスキーマを作成する。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck は稼働中のサーバーの/healthを確認する。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
	// CommandHelp はサブコマンドの一覧を表示する。
	CommandHelp Command = "help"
)

// commands はusageに表示する順序での一覧。
var commands = []struct {
	cmd  Command
	desc string
}{
	{CommandServe, "start the web server (default)"},
	{CommandMigrate, "create or upgrade the session backend schema"},
	{CommandHealthcheck, "probe /health on SERVER_PORT and exit non-zero on failure"},
	{CommandHelp, "show this help"},
}

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch args[0] {
	case "-h", "--help":
		return CommandHelp
	}
	for _, c := range commands {
		if string(c.cmd) == args[0] {
			return c.cmd
		}
	}
	return CommandServe
}

// printUsage はサブコマンドの一覧をwに書き出す。
func printUsage(w io.Writer) {
	fmt.Fprintln(w, "usage: decodetube [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "commands:")
	for _, c := range commands {
		fmt.Fprintf(w, "  %-12s %s\n", c.cmd, c.desc)
	}
}
