package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sbadash/internal/metrics"
	"github.com/hitoshi/sbadash/internal/middleware"
)

// RouterDeps はNewCallbackRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Callback   *CallbackHandler
	ReturnPath string
	Logger     *slog.Logger
	// Gatherer がnilの場合は /metrics を公開しない。
	Gatherer prometheus.Gatherer
}

// NewCallbackRouter は戻り受付サーバーのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RecoveryMiddleware → LoggingMiddleware → SecurityHeadersMiddleware
func NewCallbackRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewSecurityHeadersMiddleware())

	r.Get(deps.ReturnPath, deps.Callback.ServeReturn)

	if deps.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", metrics.Handler(deps.Gatherer))
	}

	return r
}
