package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/decodetube/internal/metrics"
	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/session"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合は/metricsを公開しない
	HealthChecker     HealthChecker
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	Client            middleware.ClientConfig
	CSRF              middleware.CSRFConfig

	// セッションとビュー
	Sessions    session.Backend
	Views       ViewRegistry
	WaitTimeout time.Duration

	// 認証
	AuthService AuthServiceInterface
	AuthConfig  AuthHandlerConfig
}

// NewRouter は全エンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Client → Logging → Metrics → SecurityHeaders → CORS → CSRF → RateLimit(General)
//
// /health と /metrics はRecoveryのみを通し、クライアントCookieを発行しない。
// URL送信と要約取得には要約用、認証フォームには認証用のレート制限を追加する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.Nop{}
	}

	r := chi.NewRouter()
	r.Use(middleware.NewRecoveryMiddleware())

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	pageHandler := NewPageHandler(deps.Views, deps.Sessions, PageHandlerConfig{WaitTimeout: deps.WaitTimeout})
	authHandler := NewAuthHandler(deps.AuthService, deps.Sessions, deps.AuthConfig)
	apiHandler := NewAPIHandler(deps.Views, deps.Sessions, deps.WaitTimeout)

	// --- クライアント単位のルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewClientMiddleware(deps.Client))
		r.Use(middleware.NewLoggingMiddleware(logger))
		r.Use(middleware.NewMetricsMiddleware(collector))
		r.Use(middleware.NewSecurityHeadersMiddleware())
		r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRF))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		summaryLimit := deps.RateLimiter.SummaryMiddleware()

		// ランディングビューと結果ビュー
		r.Get("/", pageHandler.Home)
		r.With(summaryLimit).Post("/", pageHandler.Submit)
		r.With(summaryLimit).Get("/video/*", pageHandler.Video)

		// 認証フォーム
		r.Route("/auth", func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthMiddleware())
			r.Post("/login", authHandler.Login)
			r.Post("/signup", authHandler.SignUp)
			r.Post("/logout", authHandler.Logout)
		})

		// JSON API
		r.Route("/api", func(r chi.Router) {
			r.Method(http.MethodGet, "/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRF))
			r.Get("/session", apiHandler.Session)
			r.Get("/summary", apiHandler.CurrentSummary)
			r.With(summaryLimit).Post("/summary", apiHandler.Summary)
		})
	})

	return r
}
