// Package chat はチャット入力と会話履歴の状態を管理する。
// 送信時は入力を先に空にし、失敗した場合は元の入力に戻す。
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/sbadash/internal/metrics"
	"github.com/hitoshi/sbadash/internal/model"
)

// StatusSent は送信成功時の状態文言。
const StatusSent = "Message sent!"

// Sender はチャットのバックエンド操作。api.Serviceが実装する。
type Sender interface {
	SendChatMessage(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error)
	ListChatMessages(ctx context.Context) ([]model.ChatMessage, error)
}

// Controller はチャット画面1つ分の状態。並行に呼び出してよい。
type Controller struct {
	sender  Sender
	logger  *slog.Logger
	metrics metrics.MetricsCollector
	now     func() time.Time

	mu             sync.Mutex
	input          string
	selected       string
	status         string
	inFlight       bool
	closed         bool
	conversationID string
	transcript     []model.ChatMessage
}

// NewController はControllerを生成する。
func NewController(sender Sender, logger *slog.Logger, m metrics.MetricsCollector) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	if m == nil {
		m = metrics.Nop{}
	}
	return &Controller{
		sender:  sender,
		logger:  logger,
		metrics: m,
		now:     time.Now,
	}
}

// SetInput は入力欄の内容を置き換える。
func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// Input は入力欄の内容を返す。
func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

// SelectQuickAction は定型の依頼を選択し、入力欄に雛形を入れる。
func (c *Controller) SelectQuickAction(title string) error {
	action, ok := FindQuickAction(title)
	if !ok {
		return model.NewValidationError(fmt.Sprintf("Unknown quick action %q.", title))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.selected = action.Title
	c.input = action.Seed()
	return nil
}

// Selected は選択中の定型の依頼のタイトルを返す。未選択の場合は空文字。
func (c *Controller) Selected() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.selected
}

// Status は直近の送信結果の文言を返す。
func (c *Controller) Status() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// InFlight は送信中かを返す。
func (c *Controller) InFlight() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inFlight
}

// Transcript は会話履歴のコピーを古い順に返す。
func (c *Controller) Transcript() []model.ChatMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.ChatMessage, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Submit は入力欄の内容を送信する。
//
// 入力が空白のみの場合は何もしない。送信中に呼ばれた場合はREQUEST_IN_FLIGHTを返す。
// 成功時はユーザーのメッセージ、アシスタントの応答の順に履歴へ追加する。
// 失敗時は入力欄を送信前の内容に戻し、履歴は変更しない。
// Close後に結果が返った場合は状態を変更しない。
func (c *Controller) Submit(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	if c.inFlight {
		c.mu.Unlock()
		return model.NewRequestInFlightError("chat")
	}
	snapshot := c.input
	content := strings.TrimSpace(snapshot)
	if content == "" {
		c.mu.Unlock()
		return nil
	}
	c.input = ""
	c.status = ""
	c.inFlight = true
	req := model.ChatMessageRequest{Content: content, ConversationID: c.conversationID}
	c.mu.Unlock()

	sentAt := c.now()
	reply, err := c.sender.SendChatMessage(ctx, req)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		c.logger.Debug("画面が閉じられた後に送信結果を受信したため破棄します")
		return err
	}
	c.inFlight = false

	if err != nil {
		c.input = snapshot
		c.status = err.Error()
		c.metrics.RecordChatSubmit("failure")
		c.logger.Warn("チャットの送信に失敗しました",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		return err
	}

	userMsg := model.ChatMessage{
		ID:             uuid.NewString(),
		Content:        content,
		Role:           model.ChatRoleUser,
		UserID:         reply.UserID,
		ConversationID: reply.ConversationID,
		CreatedAt:      model.NewTimestamp(sentAt),
	}
	assistantMsg := *reply
	assistantMsg.Role = model.ChatRoleAssistant

	c.transcript = append(c.transcript, userMsg, assistantMsg)
	if reply.ConversationID != "" {
		c.conversationID = reply.ConversationID
	}
	c.selected = ""
	c.status = StatusSent
	c.metrics.RecordChatSubmit("success")
	return nil
}

// LoadHistory はバックエンドに保存された履歴を読み込む。
// 既に履歴がある場合は何もしない。
func (c *Controller) LoadHistory(ctx context.Context) error {
	c.mu.Lock()
	if c.closed || len(c.transcript) > 0 {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	history, err := c.sender.ListChatMessages(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || len(c.transcript) > 0 {
		return nil
	}
	c.transcript = append(c.transcript, history...)
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].ConversationID != "" {
			c.conversationID = history[i].ConversationID
			break
		}
	}
	return nil
}

// Close は画面を閉じる。以降に返ってきた送信結果は破棄される。
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}
