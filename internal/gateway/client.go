// Package gateway はバックエンドへの全HTTP呼び出しを一本化するリクエストゲートウェイを提供する。
// リクエストの組み立て、JSONのシリアライズ、失敗の分類、レスポンスのデシリアライズを担う。
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"syscall"
	"time"

	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/hitoshi/sbadash/internal/metrics"
	"github.com/hitoshi/sbadash/internal/model"
)

// maxResponseSize はレスポンスボディの読み取り上限（10MB）。
const maxResponseSize = 10 << 20

// Config はゲートウェイの設定。
type Config struct {
	BaseURL string
	Timeout time.Duration
	// RateLimit は1秒あたりの送信上限。0以下の場合は制限しない。
	RateLimit float64
	Burst     int
}

// Client はバックエンドAPIのクライアント。
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	limiter    *rate.Limiter
	metrics    metrics.MetricsCollector
}

// Option はClientの任意設定。
type Option func(*Client)

// WithHTTPClient は使用するhttp.Clientを差し替える。
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithMetrics はメトリクスの記録先を設定する。
func WithMetrics(m metrics.MetricsCollector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// NewClient はClientの新しいインスタンスを生成する。
// バックエンドが発行するCookieを保持するため、publicsuffix付きのCookieJarを使う。
func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = slog.Default()
	}

	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}

	hc := &http.Client{Timeout: cfg.Timeout}
	if jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List}); err == nil {
		hc.Jar = jar
	}

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		logger:     logger,
		limiter:    rate.NewLimiter(limit, burst),
		metrics:    metrics.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL は設定されたバックエンドのURLを返す。
func (c *Client) BaseURL() string {
	return c.baseURL
}

// URL はパスに対応する絶対URLを返す。
func (c *Client) URL(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return c.baseURL + path
}

// Do はリクエストを1回実行する。
// bodyがnilでなければJSONとして送信し、2xxの場合はoutにレスポンスをデコードする。
// outがnilの場合はレスポンスボディを読み捨てる。
// 失敗時は必ず*model.APIErrorを返し、そのメッセージはそのまま表示に使える。
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	start := time.Now()
	err := c.do(ctx, method, path, body, out)
	duration := time.Since(start)

	outcome := "success"
	if err != nil {
		outcome = strings.ToLower(model.ErrorCode(err))
		c.logger.Warn("APIリクエストに失敗しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
			slog.Duration("duration", duration),
		)
	} else {
		c.logger.Debug("APIリクエストが完了しました",
			slog.String("method", method),
			slog.String("path", path),
			slog.Duration("duration", duration),
		)
	}
	c.metrics.RecordRequest(method, outcome, duration)

	return err
}

// Request はDoの型付きラッパー。成功時はTとしてデコードした値を返す。
func Request[T any](ctx context.Context, c *Client, method, path string, body any) (T, error) {
	var out T
	if err := c.Do(ctx, method, path, body, &out); err != nil {
		var zero T
		return zero, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return model.NewUnknownFailureError(err)
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return model.NewUnknownFailureError(fmt.Errorf("encode request body: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.URL(path), reader)
	if err != nil {
		return model.NewUnknownFailureError(fmt.Errorf("build request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "sbadash/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.classifyTransportError(ctx, err)
	}
	defer resp.Body.Close()

	c.metrics.RecordHTTPStatus(resp.StatusCode)

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return model.NewUnknownFailureError(fmt.Errorf("read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromBody(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return model.NewMalformedSuccessBodyError(resp.StatusCode, errors.New("empty response body"))
	}
	if err := json.Unmarshal(data, out); err != nil {
		return model.NewMalformedSuccessBodyError(resp.StatusCode, err)
	}
	return nil
}

// classifyTransportError はhttp.Client.Doのエラーを到達不能か不明な失敗かに分類する。
// 呼び出し元のcontextが終了している場合は不明な失敗として扱う。
func (c *Client) classifyTransportError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return model.NewUnknownFailureError(err)
	}
	if isUnreachable(err) {
		return model.NewTransportError(c.baseURL, err)
	}
	return model.NewUnknownFailureError(err)
}

// isUnreachable は接続拒否、DNS解決失敗、ダイヤル失敗のように接続確立前の失敗を判定する。
// 送信後の切断や応答待ちのタイムアウトはサーバーに届いているので含めない。
func isUnreachable(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}

	return false
}
