// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer はゲートウェイから受け取ったテキスト（エラーメッセージ、要約本文）から
// マークアップを取り除き、プレーンテキストとして画面に出せる形にする。
// bluemondayのStrictPolicyで全タグを除去したうえで実体参照を戻し、
// エスケープはテンプレート側に一任する（二重エスケープ防止）。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はゲートウェイ由来テキストのサニタイズ機能のインターフェース。
type TextSanitizerService interface {
	// Sanitize はHTMLタグを全て除去したプレーンテキストを返す。
	// script/styleの中身も除去される。前後の空白はトリムする。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemonday.Policyはスレッドセーフなので共有して使う。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(raw)))
}
