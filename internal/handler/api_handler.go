package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/model"
	"github.com/hitoshi/decodetube/internal/session"
	"github.com/hitoshi/decodetube/internal/view"
)

// maxSummaryRequestSize はPOST /api/summaryのリクエストボディの上限（バイト）。
const maxSummaryRequestSize = 8 * 1024

// summaryRequest はPOST /api/summaryのリクエストボディ。
type summaryRequest struct {
	URL string `json:"url"`
}

// summaryResponse は結果ビューのJSON表現。
type summaryResponse struct {
	Seq     uint64 `json:"seq"`
	State   string `json:"state"`
	URL     string `json:"url,omitempty"`
	VideoID string `json:"video_id,omitempty"`
	Summary string `json:"summary,omitempty"`
	Message string `json:"message,omitempty"`
}

// sessionResponse はGET /api/sessionのレスポンスボディ。
type sessionResponse struct {
	LoggedIn bool `json:"logged_in"`
}

// APIHandler はJSON APIのHTTPハンドラー。
type APIHandler struct {
	views       ViewRegistry
	sessions    session.Backend
	waitTimeout time.Duration
}

// NewAPIHandler はAPIHandlerを生成する。waitTimeoutが0以下の場合は35秒。
func NewAPIHandler(views ViewRegistry, sessions session.Backend, waitTimeout time.Duration) *APIHandler {
	if waitTimeout <= 0 {
		waitTimeout = defaultViewWaitTimeout
	}
	return &APIHandler{
		views:       views,
		sessions:    sessions,
		waitTimeout: waitTimeout,
	}
}

// Session はクライアントのログイン状態を返す。
// GET /api/session
func (h *APIHandler) Session(w http.ResponseWriter, r *http.Request) {
	store, err := storeFor(r, h.sessions)
	if err != nil {
		writeInvalidRequest(w, "クライアントを識別できません。")
		return
	}

	loggedIn, err := store.IsLoggedIn(r.Context())
	if err != nil {
		slog.Error("failed to read session state",
			slog.String("client_id", store.ClientID()),
			slog.String("error", err.Error()),
		)
		middleware.WriteInternalServerError(w)
		return
	}

	writeJSON(w, http.StatusOK, sessionResponse{LoggedIn: loggedIn})
}

// CurrentSummary はクライアントのビューの現在の状態を返す。取得中でも待たない。
// GET /api/summary
func (h *APIHandler) CurrentSummary(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		writeInvalidRequest(w, "クライアントを識別できません。")
		return
	}

	writeJSON(w, http.StatusOK, newSummaryResponse(h.views.Get(clientID).Snapshot()))
}

// Summary はURLを送信し、要約が確定するまで待って結果を返す。
// 失敗・未ログイン・不正URLは統一エラーフォーマットで返す。
// 待機中にリクエストが終了した場合は202で取得中の状態を返す。
// POST /api/summary
func (h *APIHandler) Summary(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		writeInvalidRequest(w, "クライアントを識別できません。")
		return
	}

	var req summaryRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxSummaryRequestSize)).Decode(&req); err != nil {
		writeInvalidRequest(w, "リクエストボディが不正です。")
		return
	}

	machine := h.views.Get(clientID)
	snap := machine.Submit(r.Context(), req.URL)
	if errors.Is(snap.Err, model.ErrEmptyInput) {
		middleware.WriteError(w, snap.Err)
		return
	}

	if !snap.Settled() {
		ctx, cancel := context.WithTimeout(r.Context(), h.waitTimeout)
		snap = machine.Wait(ctx, snap.Seq)
		cancel()
	}

	switch {
	case snap.State == view.StateLoaded:
		writeJSON(w, http.StatusOK, newSummaryResponse(snap))
	case !snap.Settled():
		writeJSON(w, http.StatusAccepted, newSummaryResponse(snap))
	case snap.Err != nil:
		middleware.WriteError(w, snap.Err)
	default:
		writeJSON(w, http.StatusOK, newSummaryResponse(snap))
	}
}

func newSummaryResponse(snap view.Snapshot) summaryResponse {
	return summaryResponse{
		Seq:     snap.Seq,
		State:   snap.State.String(),
		URL:     snap.RawURL,
		VideoID: snap.VideoID.String(),
		Summary: snap.Summary,
		Message: snap.Message,
	}
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeInvalidRequest は400の統一エラーレスポンスを書き込む。
func writeInvalidRequest(w http.ResponseWriter, message string) {
	middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
		Code:     model.ErrCodeInvalidRequest,
		Message:  message,
		Category: "validation",
		Action:   "リクエスト内容を確認してください。",
	})
}
