package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/askboard/internal/metrics"
	"github.com/hitoshi/askboard/internal/middleware"
	"github.com/hitoshi/askboard/internal/model"
	"github.com/hitoshi/askboard/internal/render"
)

// HealthChecker はヘルスチェックに必要なインターフェース。*sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	HealthChecker HealthChecker
	UserResolver  middleware.UserResolver
	RateLimiter   *middleware.RateLimiter
	CSRFConfig    middleware.CSRFConfig

	// メトリクス（nilの場合は/metricsを公開しない）
	StatusRecorder  middleware.StatusRecorder
	MetricsGatherer prometheus.Gatherer

	// 認証・フォーラム
	AuthService  AuthServiceInterface
	AuthConfig   AuthHandlerConfig
	ForumService ForumServiceInterface

	// レンダリング
	Engine *render.Engine
}

// NewRouter は全ルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → Metrics → Session → Logging → CSRF → RateLimit(General)
//
// セッションミドルウェアは匿名リクエストも通過させる。ログイン必須の
// ルートにはRequireLoginを重ねる。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	if deps.StatusRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.StatusRecorder))
	}
	r.Use(middleware.NewSessionMiddleware(deps.UserResolver))
	r.Use(middleware.NewLoggingMiddleware(slog.Default()))
	r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
	r.Use(deps.RateLimiter.GeneralMiddleware())

	authHandler := NewAuthHandler(deps.AuthService, deps.Engine, deps.AuthConfig)
	questionHandler := NewQuestionHandler(deps.ForumService, deps.AuthService, deps.Engine, deps.AuthConfig.Cookie)
	answerHandler := NewAnswerHandler(deps.ForumService, deps.AuthService, deps.Engine, deps.AuthConfig.Cookie)

	// --- 運用エンドポイント ---

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(req.Context()); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	if deps.MetricsGatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.MetricsGatherer))
	}

	// --- 認証不要のルート ---

	r.Get("/", questionHandler.Home)
	r.Get("/questions/{id}", questionHandler.Show)

	r.Get("/login", authHandler.ShowLogin)
	r.Get("/register", authHandler.ShowRegister)

	// ログイン・登録試行には専用のレート制限を重ねる（総当たり対策）
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/login", authHandler.Login)
	r.With(deps.RateLimiter.LoginMiddleware()).Post("/register", authHandler.Register)

	r.Route("/auth", func(r chi.Router) {
		r.Get("/google/login", authHandler.GoogleLogin)
		r.Get("/google/callback", authHandler.GoogleCallback)
	})

	r.Post("/logout", authHandler.Logout)

	// --- ログインが必要なルート ---

	r.Group(func(r chi.Router) {
		r.Use(middleware.NewRequireLoginMiddleware(deps.AuthService, deps.AuthConfig.Cookie))

		r.Get("/questions/new", questionHandler.ShowNew)
		r.Post("/questions", questionHandler.Create)
		r.Post("/questions/{id}/answers", answerHandler.Create)
		r.Post("/answers/{id}/vote", answerHandler.Vote)
	})

	// 未定義ルートはエラーページを表示する
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		deps.Engine.RenderError(w, model.NewNotFoundError(), middleware.CurrentUserFromContext(req.Context()))
	})

	return r
}
