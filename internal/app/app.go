package app

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/sbadash/internal/api"
	"github.com/hitoshi/sbadash/internal/auth"
	"github.com/hitoshi/sbadash/internal/chat"
	"github.com/hitoshi/sbadash/internal/config"
	"github.com/hitoshi/sbadash/internal/connector"
	"github.com/hitoshi/sbadash/internal/document"
	"github.com/hitoshi/sbadash/internal/employee"
	"github.com/hitoshi/sbadash/internal/gateway"
	"github.com/hitoshi/sbadash/internal/logger"
	"github.com/hitoshi/sbadash/internal/metrics"
	"github.com/hitoshi/sbadash/internal/security"
	"github.com/hitoshi/sbadash/internal/session"
	"github.com/hitoshi/sbadash/internal/subscription"
)

// linkCheckTimeout はクラウドリンクの到達確認1回あたりの上限。
const linkCheckTimeout = 10 * time.Second

// Init はアプリケーションの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerがnilの場合は標準エラー出力にログを出す。
func Init(w io.Writer) (*config.Config, *slog.Logger, error) {
	// 1. .envの読み込み（既に設定済みの環境変数は上書きしない）
	if err := config.LoadDotEnv(".env"); err != nil {
		return nil, nil, err
	}

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. ログの初期化
	log := logger.SetupDefault(w, cfg.LogLevel)

	return cfg, log, nil
}

// Deps はコマンドが使う依存関係をまとめた構造体。
type Deps struct {
	Config    *config.Config
	Logger    *slog.Logger
	Registry  *prometheus.Registry
	Metrics   metrics.MetricsCollector
	Sanitizer security.ContentSanitizerService

	Sessions   *session.Store
	API        *api.Service
	Auth       *auth.Service
	Connectors *connector.Controller
	Chat       *chat.Controller
	Documents  *document.Library
	Employees  *employee.Form
	Plans      *subscription.Service

	// Notify はOAuthの戻りを受け付けたときに連携先IDを受け取る。
	Notify chan string

	closers []func() error
}

// NewDeps は設定から全依存関係をワイヤリングする。
// navigatorは連携先の認可URLを利用者に渡す。
func NewDeps(cfg *config.Config, log *slog.Logger, navigator connector.Navigator) (*Deps, error) {
	if log == nil {
		log = slog.Default()
	}

	// 1. セッションストア
	backend, closer, err := newSessionBackend(cfg)
	if err != nil {
		return nil, err
	}
	sessions := session.NewStore(backend, log)

	// 2. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 3. ゲートウェイとドメイン操作
	gw := gateway.NewClient(gateway.Config{
		BaseURL:   cfg.APIBaseURL,
		Timeout:   cfg.RequestTimeout,
		RateLimit: cfg.RateLimitRPS,
		Burst:     cfg.RateLimitBurst,
	}, log, gateway.WithMetrics(collector))
	apiService := api.NewService(gw, sessions, log)

	// 4. 画面ごとの状態
	deps := &Deps{
		Config:     cfg,
		Logger:     log,
		Registry:   reg,
		Metrics:    collector,
		Sanitizer:  security.NewContentSanitizer(),
		Sessions:   sessions,
		API:        apiService,
		Auth:       auth.NewService(apiService, sessions, log),
		Connectors: connector.NewController(apiService, navigator, cfg.APIBaseURL, log, collector),
		Chat:       chat.NewController(apiService, log, collector),
		Documents: document.NewLibrary(apiService, document.Options{
			Guard: security.NewLinkGuard(linkCheckTimeout),
		}, log),
		Employees: employee.NewForm(apiService, log),
		Plans:     subscription.NewService(apiService),
		Notify:    make(chan string, 1),
	}
	if closer != nil {
		deps.closers = append(deps.closers, closer)
	}
	return deps, nil
}

// Close は保持している接続を閉じる。
func (d *Deps) Close() error {
	d.Chat.Close()

	var errs []error
	for _, c := range d.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// newSessionBackend はSESSION_BACKENDに応じたセッションの保存先を返す。
func newSessionBackend(cfg *config.Config) (session.Backend, func() error, error) {
	switch cfg.SessionBackend {
	case config.SessionBackendMemory:
		return session.NewMemoryBackend(), nil, nil
	case config.SessionBackendRedis:
		rb, err := session.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis session backend: %w", err)
		}
		return rb, rb.Close, nil
	default:
		return session.NewFileBackend(cfg.SessionDir), nil, nil
	}
}

// Run はCLIのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。コマンドの出力はwへ、ログとエラーは標準エラー出力へ書く。
func Run(w io.Writer, args []string) error {
	root := NewRootCmd(w, os.Stderr)
	root.SetIn(os.Stdin)
	root.SetArgs(args)
	return Execute(root)
}
