// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
)

// エラー種別。各レイヤーは%wでラップし、errors.Isで分類する。
var (
	// ErrEmptyInput は入力が空であることを表す。
	ErrEmptyInput = errors.New("empty input")
	// ErrMalformedURL はYouTube動画URLとして認識できない入力を表す。
	ErrMalformedURL = errors.New("malformed youtube url")
	// ErrUnauthenticated は認証トークンが存在しないことを表す。
	ErrUnauthenticated = errors.New("unauthenticated")
	// ErrGatewayRejected は外部ゲートウェイが構造化エラーを返したことを表す。
	ErrGatewayRejected = errors.New("gateway rejected the request")
	// ErrTransportFailure は通信・パース失敗、または非OKステータスを表す。
	ErrTransportFailure = errors.New("gateway transport failure")
)

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, gateway, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeEmptyInput       = "EMPTY_INPUT"
	ErrCodeMalformedURL     = "MALFORMED_URL"
	ErrCodeUnauthenticated  = "UNAUTHENTICATED"
	ErrCodeGatewayRejected  = "GATEWAY_REJECTED"
	ErrCodeTransportFailure = "TRANSPORT_FAILURE"
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
)

// ユーザー向けメッセージ。
const (
	MessageEmptyInput       = "Please enter a valid YouTube URL"
	MessageMalformedURL     = "Please provide a complete and correct YouTube video URL."
	MessageUnauthenticated  = "Please log in first to view the Video Summary."
	MessageGatewayRejected  = "Unable to fetch description."
	MessageTransportFailure = "Unable to show description for this video. Try another link."
	MessageNoSummary        = "No summary/description available"
)

// NewEmptyInputError は空入力エラーを生成する。
func NewEmptyInputError() *APIError {
	return &APIError{
		Code:     ErrCodeEmptyInput,
		Message:  MessageEmptyInput,
		Category: "validation",
		Action:   "YouTubeの動画URLを貼り付けてから送信してください。",
	}
}

// NewMalformedURLError は認識できないURLのエラーを生成する。
func NewMalformedURLError() *APIError {
	return &APIError{
		Code:     ErrCodeMalformedURL,
		Message:  MessageMalformedURL,
		Category: "validation",
		Action:   "youtube.com/watch?v=... や youtu.be/... 形式のURLを入力してください。",
	}
}

// NewUnauthenticatedError は未ログインエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthenticated,
		Message:  MessageUnauthenticated,
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewGatewayRejectedError はゲートウェイ拒否エラーを生成する。
func NewGatewayRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeGatewayRejected,
		Message:  MessageGatewayRejected,
		Category: "gateway",
		Action:   "別の動画で試すか、ログインし直してください。",
	}
}

// NewTransportFailureError は通信失敗エラーを生成する。
func NewTransportFailureError() *APIError {
	return &APIError{
		Code:     ErrCodeTransportFailure,
		Message:  MessageTransportFailure,
		Category: "gateway",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// APIErrorFor はエラー種別に対応するAPIErrorを返す。
// 種別に該当しない場合はnilを返す。
func APIErrorFor(err error) *APIError {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrEmptyInput):
		return NewEmptyInputError()
	case errors.Is(err, ErrMalformedURL):
		return NewMalformedURLError()
	case errors.Is(err, ErrUnauthenticated):
		return NewUnauthenticatedError()
	case errors.Is(err, ErrGatewayRejected):
		return NewGatewayRejectedError()
	case errors.Is(err, ErrTransportFailure):
		return NewTransportFailureError()
	default:
		return nil
	}
}
