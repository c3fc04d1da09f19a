// Package view は結果ビューの状態遷移を管理する。
//
// Machineはクライアントごとに1つ存在し、URL送信から要約の表示・失敗までを
// 明示的な状態として保持する。要約取得はリクエスト番号（Seq）付きで非同期に行い、
// 新しい送信によって置き換えられた取得の結果は破棄する。
package view

import "github.com/hitoshi/decodetube/internal/model"

// State は結果ビューの状態。
type State int

const (
	// StateIdle は何も送信されていない状態。未ログインで送信した場合もここに戻る。
	StateIdle State = iota
	// StateSubmitted はURLを受け付け、動画IDを抽出する前の状態。
	StateSubmitted
	// StateInvalidURL は動画IDを抽出できなかった状態。
	StateInvalidURL
	// StateResolving は要約を取得中の状態。
	StateResolving
	// StateLoaded は要約の取得に成功した状態。
	StateLoaded
	// StateFetchFailed は要約の取得に失敗した状態。
	StateFetchFailed
)

// String はfmt.Stringerを実装する。
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitted:
		return "submitted"
	case StateInvalidURL:
		return "invalid_url"
	case StateResolving:
		return "resolving"
	case StateLoaded:
		return "loaded"
	case StateFetchFailed:
		return "fetch_failed"
	default:
		return "unknown"
	}
}

// Snapshot はある時点のビューの状態。値としてコピーして扱う。
type Snapshot struct {
	Seq     uint64        // この状態を生んだ送信の番号
	State   State         // 現在の状態
	RawURL  string        // 送信されたURL（加工前）
	VideoID model.VideoID // 抽出済みの動画ID
	Summary string        // Loaded時の要約テキスト
	Err     error         // 失敗・通知の種別（model.Err*）
	Message string        // ユーザー向けメッセージ
}

// Settled はこれ以上状態が進まないかを返す。
func (s Snapshot) Settled() bool {
	return s.State != StateSubmitted && s.State != StateResolving
}

// Notice は未ログイン通知など、Idleに戻りつつ表示するメッセージがあるかを返す。
func (s Snapshot) Notice() bool {
	return s.State == StateIdle && s.Message != ""
}
