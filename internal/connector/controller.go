package connector

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"

	"github.com/hitoshi/sbadash/internal/metrics"
	"github.com/hitoshi/sbadash/internal/model"
)

// ReturnParam はOAuth完了後の戻りURLに付与される連携先IDのクエリパラメータ名。
const ReturnParam = "connected"

// BannerMessage は連携完了直後に一時的に表示する文言。
const BannerMessage = "Integration connected successfully! We'll start syncing data in the background."

// State は連携先ごとの状態。
type State string

const (
	StateDisconnected         State = "disconnected"
	StatePendingAuthorization State = "pending_authorization"
	StateConnected            State = "connected"
	StateDisconnecting        State = "disconnecting"
)

// API はControllerが使うバックエンド操作。api.Serviceが実装する。
type API interface {
	FetchConnectors(ctx context.Context) ([]model.Connector, error)
	DisconnectConnector(ctx context.Context, provider string) (*model.DisconnectResult, error)
}

// Navigator は認可URLへの遷移を行う。
// 遷移後の結果はConsumeReturnで戻りURLから受け取る。
type Navigator interface {
	Navigate(rawURL string) error
}

// Controller は連携先一覧の表示状態を管理する。並行に呼び出してよい。
type Controller struct {
	api           API
	navigator     Navigator
	authorizeBase string
	logger        *slog.Logger
	metrics       metrics.MetricsCollector

	mu         sync.Mutex
	connectors []model.Connector
	pending    map[string]bool
	busy       map[string]bool
	notice     string
	status     string
	errMsg     string
}

// NewController はControllerを生成する。
// authorizeBaseはバックエンドのベースURLで、認可URLの組み立てに使う。
func NewController(api API, navigator Navigator, authorizeBase string, logger *slog.Logger, m metrics.MetricsCollector) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Controller{
		api:           api,
		navigator:     navigator,
		authorizeBase: strings.TrimRight(authorizeBase, "/"),
		logger:        logger,
		metrics:       m,
		connectors:    DefaultCatalog(),
		pending:       make(map[string]bool),
		busy:          make(map[string]bool),
	}
}

// Load はバックエンドから接続状態を取得してカタログに反映する。
// 取得に失敗した場合はカタログの初期状態に戻し、エラーを表示用に保持したうえで返す。
func (c *Controller) Load(ctx context.Context) error {
	live, err := c.api.FetchConnectors(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err != nil {
		c.connectors = DefaultCatalog()
		c.errMsg = err.Error()
		c.metrics.RecordConnectorAction("load", "failure")
		c.logger.Warn("連携状態の取得に失敗したため初期状態を表示します",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		return err
	}

	c.connectors = Merge(DefaultCatalog(), live)
	c.errMsg = ""
	for _, conn := range c.connectors {
		if conn.Connected {
			delete(c.pending, conn.ID)
		}
	}
	c.metrics.RecordConnectorAction("load", "success")
	return nil
}

// AuthorizeURL は連携先の認可URLを返す。
func (c *Controller) AuthorizeURL(provider string) string {
	return fmt.Sprintf("%s/integrations/%s/authorize", c.authorizeBase, url.PathEscape(provider))
}

// Connect は認可URLへ遷移し、連携先を認可待ちにする。バックエンドは呼ばない。
func (c *Controller) Connect(provider string) error {
	target := c.AuthorizeURL(provider)
	if err := c.navigator.Navigate(target); err != nil {
		c.metrics.RecordConnectorAction("connect", "failure")
		return fmt.Errorf("failed to open authorization page: %w", err)
	}

	c.mu.Lock()
	c.pending[provider] = true
	c.mu.Unlock()

	c.metrics.RecordConnectorAction("connect", "started")
	c.logger.Info("connector authorization started",
		slog.String("provider", provider),
		slog.String("url", target),
	)
	return nil
}

// Disconnect は連携を解除する。
// 同じ連携先の解除が処理中の場合はREQUEST_IN_FLIGHTを返す。
// 成功時は一覧を取得し直し、失敗時は一覧を変更せずエラーを保持する。
func (c *Controller) Disconnect(ctx context.Context, provider string) error {
	c.mu.Lock()
	if c.busy[provider] {
		c.mu.Unlock()
		return model.NewRequestInFlightError("disconnect")
	}
	c.busy[provider] = true
	c.mu.Unlock()

	_, err := c.api.DisconnectConnector(ctx, provider)

	c.mu.Lock()
	delete(c.busy, provider)
	if err != nil {
		c.errMsg = err.Error()
		c.mu.Unlock()
		c.metrics.RecordConnectorAction("disconnect", "failure")
		return err
	}
	c.status = fmt.Sprintf("%s disconnected.", provider)
	c.mu.Unlock()

	c.metrics.RecordConnectorAction("disconnect", "success")
	c.logger.Info("connector disconnected", slog.String("provider", provider))

	// 再取得の失敗はLoad内で保持されるため、解除自体は成功として扱う
	_ = c.Load(ctx)
	return nil
}

// ConsumeReturn は戻りURLから連携完了のパラメータを1度だけ読み取る。
// パラメータを取り除いたURLを返し、読み取った連携先を通知に反映する。
// パラメータがない場合はprovider が空で、URLはそのまま返す。
func (c *Controller) ConsumeReturn(rawURL string) (provider, cleaned string, err error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", rawURL, fmt.Errorf("invalid return URL: %w", err)
	}

	q := u.Query()
	provider = q.Get(ReturnParam)
	if !q.Has(ReturnParam) {
		return "", rawURL, nil
	}
	q.Del(ReturnParam)
	u.RawQuery = q.Encode()
	cleaned = u.String()

	if provider == "" {
		return "", cleaned, nil
	}

	c.mu.Lock()
	c.notice = fmt.Sprintf("%s connected successfully.", provider)
	delete(c.pending, provider)
	c.mu.Unlock()

	c.metrics.RecordConnectorAction("connect", "completed")
	c.logger.Info("connector authorization completed", slog.String("provider", provider))
	return provider, cleaned, nil
}

// Connectors は現在の一覧のコピーを返す。
func (c *Controller) Connectors() []model.Connector {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Connector, len(c.connectors))
	copy(out, c.connectors)
	return out
}

// State は連携先の現在の状態を返す。
func (c *Controller) State(provider string) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.busy[provider] {
		return StateDisconnecting
	}
	for _, conn := range c.connectors {
		if conn.ID == provider && conn.Connected {
			return StateConnected
		}
	}
	if c.pending[provider] {
		return StatePendingAuthorization
	}
	return StateDisconnected
}

// Busy は連携先の解除が処理中かを返す。
func (c *Controller) Busy(provider string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy[provider]
}

// Notice は連携完了の通知文言を返す。
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

// Status は直近の操作結果の文言を返す。
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Error は直近のエラー文言を返す。エラーがなければ空文字。
func (c *Controller) Error() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.errMsg
}
