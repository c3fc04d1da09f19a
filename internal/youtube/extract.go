// Package youtube はYouTube動画URLから動画IDを抽出する機能を提供する。
package youtube

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hitoshi/decodetube/internal/model"
)

// videoURLPattern は認識するYouTube URLの形式。
//
//	スキーム:   http:// または https://（省略可）
//	ホスト:     www.（省略可） + youtube / youtu / youtube-nocookie + .com / .be
//	プレフィックス: watch?v= / embed/ / v/ / .../videos/ / e/ / shorts/（省略可）
//
// 動画IDはプレフィックス直後の11文字。GoのRE2は線形時間で照合するため、
// 任意長の入力でもバックトラックが爆発しない。
var videoURLPattern = regexp.MustCompile(
	`^(?:https?://)?(?:www\.)?(?:youtube|youtu|youtube-nocookie)\.(?:com|be)/` +
		`(?:watch\?v=|embed/|v/|.+/videos/|e/|shorts/)?` +
		`([a-zA-Z0-9_-]{11})`,
)

// idLength は動画IDの文字数。
const idLength = 11

// Extract は入力文字列から動画IDを抽出する。
// 空入力はmodel.ErrEmptyInput、認識できない形式はmodel.ErrMalformedURLを返す。
//
// パターンは先頭に固定されているが、照合の前に前後の空白を取り除く。
// コピー＆ペーストで付いた空白や改行のある " https://youtu.be/..." も受け付けるため、
// 先頭一致のみの判定より広い入力を認める。
// I/Oや状態変更を伴わない純粋関数で、パニックしない。
func Extract(raw string) (model.VideoID, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", model.ErrEmptyInput
	}

	m := videoURLPattern.FindStringSubmatch(s)
	if m == nil || len(m[1]) != idLength {
		return "", fmt.Errorf("%w: no video id found", model.ErrMalformedURL)
	}

	return model.VideoID(m[1]), nil
}

// IsValidID は文字列が動画IDの形式を満たすかを判定する。
func IsValidID(id string) bool {
	if len(id) != idLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '-':
		default:
			return false
		}
	}
	return true
}

// WatchURL は動画IDから正規の視聴URLを組み立てる。
func WatchURL(id model.VideoID) string {
	return "https://www.youtube.com/watch?v=" + string(id)
}
