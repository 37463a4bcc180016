// Package handler はOAuth完了後の戻りリクエストを受け付けるHTTPハンドラーを提供する。
package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/hitoshi/sbadash/internal/connector"
	"github.com/hitoshi/sbadash/internal/middleware"
	"github.com/hitoshi/sbadash/internal/model"
	"github.com/hitoshi/sbadash/internal/security"
)

// ReturnConsumer は戻りURLの連携完了パラメータを読み取る。connector.Controllerが実装する。
type ReturnConsumer interface {
	ConsumeReturn(rawURL string) (provider, cleaned string, err error)
	Notice() string
}

// CallbackHandler は連携完了の戻りリクエストのHTTPハンドラー。
type CallbackHandler struct {
	consumer  ReturnConsumer
	sanitizer security.ContentSanitizerService
	logger    *slog.Logger
	notify    chan<- string

	mu         sync.Mutex
	showBanner bool
}

// NewCallbackHandler はCallbackHandlerを生成する。
// notifyがnilでなければ、連携完了のたびに連携先IDを送る。受け手がいない場合は捨てる。
func NewCallbackHandler(consumer ReturnConsumer, sanitizer security.ContentSanitizerService, logger *slog.Logger, notify chan<- string) *CallbackHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &CallbackHandler{
		consumer:  consumer,
		sanitizer: sanitizer,
		logger:    logger,
		notify:    notify,
	}
}

// ServeReturn は戻りリクエストを処理する。
// GET <戻りパス>?connected=<provider>
//
// パラメータがあれば1度だけ読み取り、取り除いたURLへ303でリダイレクトする。
// リダイレクト先の表示では連携完了のバナーを1度だけ出す。
func (h *CallbackHandler) ServeReturn(w http.ResponseWriter, r *http.Request) {
	provider, cleaned, err := h.consumer.ConsumeReturn(r.URL.RequestURI())
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewValidationError("Invalid return URL."))
		return
	}

	if provider != "" {
		h.mu.Lock()
		h.showBanner = true
		h.mu.Unlock()

		if h.notify != nil {
			select {
			case h.notify <- provider:
			default:
				h.logger.Warn("連携完了の通知先が受信できないため破棄しました", slog.String("provider", provider))
			}
		}

		http.Redirect(w, r, cleaned, http.StatusSeeOther)
		return
	}

	h.mu.Lock()
	banner := h.showBanner
	h.showBanner = false
	h.mu.Unlock()

	h.render(w, banner)
}

func (h *CallbackHandler) render(w http.ResponseWriter, banner bool) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	bannerHTML := ""
	if banner {
		bannerHTML = fmt.Sprintf(`<div class="banner">%s</div>`, h.sanitizer.Sanitize(connector.BannerMessage))
	}
	noticeHTML := ""
	if notice := h.consumer.Notice(); notice != "" {
		noticeHTML = fmt.Sprintf(`<p class="notice">%s</p>`, h.sanitizer.Sanitize(notice))
	}

	fmt.Fprintf(w, pageTemplate, bannerHTML, noticeHTML)
}

const pageTemplate = `<!doctype html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>sbadash - Data sources</title>
<style>
body{font-family:sans-serif;max-width:40rem;margin:3rem auto;color:#1f2050}
.banner{border:1px solid #bbf7d0;background:#f0fdf4;color:#15803d;padding:.75rem 1rem;border-radius:1rem}
.notice{color:#15803d}
</style>
</head>
<body>
<h1>Connect every tool your business relies on</h1>
%s
%s
<p>You can close this window and return to the terminal.</p>
</body>
</html>
`
