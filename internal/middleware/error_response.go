package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hitoshi/decodetube/internal/model"
)

// ErrorResponseBody はAPIエラーレスポンスの統一フォーマット。
// 原因カテゴリと対処方法を含む。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// WriteErrorResponse は統一エラーフォーマットでHTTPエラーレスポンスを書き込む。
// すべてのAPIエンドポイントで一貫したエラーレスポンスを提供する。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteError はエラー種別に応じたステータスコードと統一フォーマットで書き込む。
// 種別に該当しないエラーは内部エラーとして扱う。
func WriteError(w http.ResponseWriter, err error) {
	apiErr := model.APIErrorFor(err)
	if apiErr == nil {
		WriteInternalServerError(w)
		return
	}
	WriteErrorResponse(w, StatusForError(err), apiErr)
}

// StatusForError はエラー種別に対応するHTTPステータスコードを返す。
func StatusForError(err error) int {
	switch {
	case errors.Is(err, model.ErrEmptyInput), errors.Is(err, model.ErrMalformedURL):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrUnauthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, model.ErrGatewayRejected), errors.Is(err, model.ErrTransportFailure):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteInternalServerError は内部サーバーエラーの統一レスポンスを書き込む。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "An internal error occurred.",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}
