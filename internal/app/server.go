package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/decodetube/internal/auth"
	"github.com/hitoshi/decodetube/internal/config"
	"github.com/hitoshi/decodetube/internal/database"
	"github.com/hitoshi/decodetube/internal/gateway"
	"github.com/hitoshi/decodetube/internal/handler"
	"github.com/hitoshi/decodetube/internal/metrics"
	"github.com/hitoshi/decodetube/internal/middleware"
	"github.com/hitoshi/decodetube/internal/repository"
	"github.com/hitoshi/decodetube/internal/security"
	"github.com/hitoshi/decodetube/internal/session"
	"github.com/hitoshi/decodetube/internal/view"
	"github.com/hitoshi/decodetube/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
)

// viewWaitMargin は結果ビューの待機上限をゲートウェイのタイムアウトより長くする分。
const viewWaitMargin = 5 * time.Second

// Server はワイヤリング済みのHTTPハンドラーと、停止時に解放するリソースを保持する。
type Server struct {
	Handler http.Handler

	views    *view.Registry
	limiter  *middleware.RateLimiter
	cancel   context.CancelFunc
	closers  []func() error
	registry *prometheus.Registry
}

// Close はバックグラウンド処理を止め、進行中の要約取得をキャンセルし、DB接続を閉じる。
func (s *Server) Close() error {
	s.views.Stop()
	s.limiter.Stop()
	s.cancel()

	var errs []error
	for _, c := range s.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewServer は設定から全依存関係をワイヤリングしたServerを構築する。
func NewServer(ctx context.Context, cfg *config.Config) (*Server, error) {
	s := &Server{}

	// 1. セッションバックエンド
	store, err := openSessionBackend(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if store.close != nil {
		s.closers = append(s.closers, store.close)
	}
	backend := store.backend

	// 2. メトリクス
	s.registry = prometheus.NewRegistry()
	collector := metrics.NewCollector(s.registry)

	// 3. ゲートウェイ
	httpClient, err := newGatewayClient(cfg)
	if err != nil {
		s.closeAll()
		return nil, err
	}
	clientConfig := func(endpoint string) gateway.ClientConfig {
		return gateway.ClientConfig{
			EndpointURL:     endpoint,
			AdminSecret:     cfg.GatewayAuthSecret,
			HTTPClient:      httpClient,
			MaxResponseSize: cfg.GatewayMaxResponseSize,
		}
	}

	variant, err := gateway.ParseVariant(cfg.SummaryGateway)
	if err != nil {
		s.closeAll()
		return nil, err
	}
	summaryGateway, err := gateway.NewSummaryGateway(variant, clientConfig(cfg.SummaryEndpointURL))
	if err != nil {
		s.closeAll()
		return nil, err
	}
	authGateway := gateway.NewAuthGateway(clientConfig(cfg.AuthEndpointURL))

	// 4. ドメインサービス
	sanitizer := security.NewTextSanitizer()
	authService := auth.NewService(authGateway, sanitizer, collector)

	baseCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel

	if store.cleanup != nil {
		store.cleanup.Start(baseCtx, cleanup.DefaultInterval)
	}

	s.views = view.NewRegistry(func(clientID string) *view.Machine {
		return view.NewMachine(view.MachineConfig{
			ClientID:     clientID,
			Gateway:      summaryGateway,
			Tokens:       session.NewStore(backend, clientID),
			Metrics:      collector,
			BaseContext:  baseCtx,
			FetchTimeout: cfg.GatewayTimeout,
		})
	}, view.RegistryConfig{IdleTimeout: cfg.ViewIdleTimeout}, collector)

	// 5. ルーター
	s.limiter = middleware.NewRateLimiter(rateLimiterConfig(cfg))

	s.Handler = handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(s.registry),
		HealthChecker:     store.health,
		RateLimiter:       s.limiter,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		Client: middleware.ClientConfig{
			MaxAge:       cfg.ClientCookieMaxAge,
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		CSRF: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		Sessions:    backend,
		Views:       s.views,
		WaitTimeout: cfg.GatewayTimeout + viewWaitMargin,
		AuthService: authService,
		AuthConfig:  handler.AuthHandlerConfig{CookieSecure: cfg.CookieSecure},
	})

	return s, nil
}

// closeAll は構築途中で失敗した場合に確保済みのリソースを解放する。
func (s *Server) closeAll() {
	for _, c := range s.closers {
		c()
	}
}

// sessionStore はSESSION_BACKENDに応じて開いたトークンの保存先とその付属物。
type sessionStore struct {
	backend session.Backend
	health  handler.HealthChecker // /healthでの疎通確認
	close   func() error
	cleanup *cleanup.CleanupJob // 永続バックエンドのみ
}

// openSessionBackend はSESSION_BACKENDに応じたトークンの保存先を開く。
func openSessionBackend(ctx context.Context, cfg *config.Config) (*sessionStore, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendSQLite:
		db, err := database.OpenSQLite(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		repo := repository.NewSQLiteTokenRepo(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			db.Close()
			return nil, err
		}
		slog.Info("session backend ready",
			slog.String("backend", cfg.SessionBackend),
			slog.String("path", cfg.SQLitePath),
		)
		return &sessionStore{
			backend: repo,
			health:  db,
			close:   db.Close,
			cleanup: cleanup.NewCleanupJob(db, cleanup.SQLiteDialect, cfg.ClientCookieMaxAge, slog.Default()),
		}, nil

	case config.SessionBackendPostgres:
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := db.PingContext(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("session backend ready",
			slog.String("backend", cfg.SessionBackend),
			slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		)
		return &sessionStore{
			backend: repository.NewPostgresTokenRepo(db),
			health:  db,
			close:   db.Close,
			cleanup: cleanup.NewCleanupJob(db, cleanup.PostgresDialect, cfg.ClientCookieMaxAge, slog.Default()),
		}, nil

	default:
		backend := session.NewMemoryBackend()
		slog.Info("session backend ready", slog.String("backend", config.SessionBackendMemory))
		return &sessionStore{backend: backend, health: backend}, nil
	}
}

// newGatewayClient はゲートウェイ呼び出し用のHTTPクライアントを生成する。
// GATEWAY_SSRF_GUARDが有効な場合はエンドポイントを検証し、safeurlのクライアントを使う。
func newGatewayClient(cfg *config.Config) (*http.Client, error) {
	if !cfg.GatewaySSRFGuard {
		return &http.Client{Timeout: cfg.GatewayTimeout}, nil
	}

	guard := security.NewSSRFGuard()
	if err := guard.ValidateEndpoints(cfg.AuthEndpointURL, cfg.SummaryEndpointURL); err != nil {
		return nil, fmt.Errorf("invalid gateway endpoint: %w", err)
	}
	return guard.NewSafeClient(cfg.GatewayTimeout), nil
}

// rateLimiterConfig は設定値（req/min）をレート制限設定に変換する。
// バースト値は1分あたりの上限と同じにする。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rl := middleware.DefaultRateLimiterConfig()
	rl.GeneralRate = middleware.PerMinute(cfg.RateLimitGeneral)
	rl.GeneralBurst = cfg.RateLimitGeneral
	rl.SummaryRate = middleware.PerMinute(cfg.RateLimitSummary)
	rl.SummaryBurst = cfg.RateLimitSummary
	rl.AuthRate = middleware.PerMinute(cfg.RateLimitAuth)
	rl.AuthBurst = cfg.RateLimitAuth
	return rl
}
