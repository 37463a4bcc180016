package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hitoshi/sbadash/internal/handler"
)

// returnGrace は連携完了後、ブラウザがリダイレクト先を表示し終えるまで待つ時間。
var returnGrace = 2 * time.Second

// printNavigator は認可URLを端末に表示して、利用者にブラウザで開いてもらう。
type printNavigator struct {
	p *printer
}

func (n printNavigator) Navigate(rawURL string) error {
	if rawURL == "" {
		return errors.New("authorization URL is empty")
	}
	n.p.notice("Open the following URL in your browser to authorize the connection:")
	n.p.linef("  %s", rawURL)
	return nil
}

// awaitReturn は戻り受付サーバーをlnで起動し、連携完了の通知を待つ。
// waitを過ぎるかctxが終了した場合はエラーを返す。サーバーは戻る前に停止する。
func awaitReturn(ctx context.Context, d *Deps, ln net.Listener, wait time.Duration, start func() error) (string, error) {
	h := handler.NewCallbackHandler(d.Connectors, d.Sanitizer, d.Logger, d.Notify)
	server := &http.Server{
		Handler: handler.NewCallbackRouter(&handler.RouterDeps{
			Callback:   h,
			ReturnPath: d.Config.CallbackPath,
			Logger:     d.Logger,
			Gatherer:   d.Registry,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		d.Logger.Info("return listener starting", slog.String("addr", ln.Addr().String()))
		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			d.Logger.Error("return listener error", slog.String("error", err.Error()))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			d.Logger.Warn("return listener shutdown failed", slog.String("error", err.Error()))
		}
	}()

	if err := start(); err != nil {
		return "", err
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case provider := <-d.Notify:
		select {
		case <-time.After(returnGrace):
		case <-ctx.Done():
		}
		return provider, nil
	case <-timer.C:
		return "", fmt.Errorf("timed out after %s waiting for the authorization to complete", wait)
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
