package handler

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/model"
	"github.com/hitoshi/decodetube/internal/session"
	"github.com/hitoshi/decodetube/internal/view"
)

// defaultViewWaitTimeout は結果ビューが要約の確定を待つ上限。
const defaultViewWaitTimeout = 35 * time.Second

// ViewRegistry はクライアントごとのビューを提供する。view.Registryが実装する。
type ViewRegistry interface {
	Get(clientID string) *view.Machine
}

// PageHandlerConfig はページハンドラーの設定。
type PageHandlerConfig struct {
	// WaitTimeout は結果ビューが要約の確定を待つ上限。0以下の場合は35秒。
	// ゲートウェイのタイムアウトより長くしておく。
	WaitTimeout time.Duration
}

// PageHandler はランディングビューと結果ビューのHTTPハンドラー。
type PageHandler struct {
	views    ViewRegistry
	sessions session.Backend
	renderer *renderer
	config   PageHandlerConfig
}

// NewPageHandler はPageHandlerを生成する。
func NewPageHandler(views ViewRegistry, sessions session.Backend, config PageHandlerConfig) *PageHandler {
	if config.WaitTimeout <= 0 {
		config.WaitTimeout = defaultViewWaitTimeout
	}
	return &PageHandler{
		views:    views,
		sessions: sessions,
		renderer: newRenderer(),
		config:   config,
	}
}

// Home はランディングビューを表示する。
// GET /
func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	data := newPageData(r, h.sessions)
	data.Notice = popFlash(w, r)
	h.renderer.render(w, http.StatusOK, pageHome, data)
}

// Submit はURLフォームの送信を受け付ける。
// 空入力の場合は入力を促すメッセージとともにランディングビューを再表示し、
// それ以外は入力をそのままパスに埋め込んだ結果ビューへリダイレクトする。
// POST /
func (h *PageHandler) Submit(w http.ResponseWriter, r *http.Request) {
	raw := r.PostFormValue("url")
	if strings.TrimSpace(raw) == "" {
		data := newPageData(r, h.sessions)
		data.Prompt = model.MessageEmptyInput
		h.renderer.render(w, http.StatusBadRequest, pageHome, data)
		return
	}

	http.Redirect(w, r, "/video/"+url.PathEscape(raw), http.StatusSeeOther)
}

// Video は結果ビューを表示する。
// パスに埋め込まれたURLをクライアントのビューに送信し、要約が確定するまで待ってから描画する。
// GET /video/{videoUrl}
func (h *PageHandler) Video(w http.ResponseWriter, r *http.Request) {
	clientID, err := middleware.ClientIDFromContext(r.Context())
	if err != nil {
		http.Error(w, "missing client", http.StatusBadRequest)
		return
	}

	raw := videoURLParam(r)
	machine := h.views.Get(clientID)

	snap := machine.Submit(r.Context(), raw)
	if !snap.Settled() {
		ctx, cancel := context.WithTimeout(r.Context(), h.config.WaitTimeout)
		snap = machine.Wait(ctx, snap.Seq)
		cancel()
	}

	slog.Debug("video view rendered",
		slog.String("client_id", clientID),
		slog.Uint64("seq", snap.Seq),
		slog.String("state", snap.State.String()),
	)

	data := newPageData(r, h.sessions)
	data.Notice = popFlash(w, r)
	data.View = newVideoView(snap)
	h.renderer.render(w, http.StatusOK, pageVideo, data)
}

// videoURLParam はパスから送信されたURLを復元する。
//
// chiはエスケープ済みのパスでルーティングするため、パラメータはアンエスケープして使う。
// エスケープせずに貼り付けられたURLはクエリ部分がURLのクエリとして分かれるので連結し直す。
func videoURLParam(r *http.Request) string {
	param := chi.URLParam(r, "*")
	raw, err := url.PathUnescape(param)
	if err != nil {
		raw = param
	}
	if r.URL.RawQuery != "" {
		raw += "?" + r.URL.RawQuery
	}
	return raw
}
