package chat

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/hitoshi/sbadash/internal/model"
)

// --- モック定義 ---

type mockSender struct {
	mu       sync.Mutex
	sendFn   func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error)
	listFn   func(ctx context.Context) ([]model.ChatMessage, error)
	requests []model.ChatMessageRequest
}

func (m *mockSender) SendChatMessage(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.sendFn != nil {
		return m.sendFn(ctx, req)
	}
	return &model.ChatMessage{ID: "a-1", Content: "ok", Role: model.ChatRoleAssistant}, nil
}

func (m *mockSender) ListChatMessages(ctx context.Context) ([]model.ChatMessage, error) {
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

type recordingMetrics struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *recordingMetrics) RecordRequest(string, string, time.Duration) {}
func (r *recordingMetrics) RecordHTTPStatus(int)                        {}
func (r *recordingMetrics) RecordConnectorAction(string, string)        {}
func (r *recordingMetrics) RecordChatSubmit(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, outcome)
}

var _ Sender = (*mockSender)(nil)

func newTestController(sender *mockSender) (*Controller, *recordingMetrics) {
	m := &recordingMetrics{}
	return NewController(sender, slog.New(slog.NewJSONHandler(&bytes.Buffer{}, nil)), m), m
}

// --- テスト ---

func TestSubmit_SuccessAppendsUserThenAssistant(t *testing.T) {
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		return &model.ChatMessage{ID: "srv-1", Content: "Hi there", Role: model.ChatRoleAssistant, ConversationID: "conv-1"}, nil
	}}
	ctrl, m := newTestController(sender)
	ctrl.SetInput("Hello")

	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}

	transcript := ctrl.Transcript()
	if len(transcript) != 2 {
		t.Fatalf("len(transcript) = %d, want 2", len(transcript))
	}
	if transcript[0].Role != model.ChatRoleUser || transcript[0].Content != "Hello" {
		t.Errorf("transcript[0] = %+v", transcript[0])
	}
	if transcript[0].ID == "" || transcript[0].CreatedAt.IsZero() {
		t.Error("ユーザーメッセージにはクライアント側のIDと時刻が必要")
	}
	if transcript[1].Role != model.ChatRoleAssistant || transcript[1].Content != "Hi there" || transcript[1].ID != "srv-1" {
		t.Errorf("transcript[1] = %+v", transcript[1])
	}
	if ctrl.Input() != "" {
		t.Errorf("Input() = %q, want empty", ctrl.Input())
	}
	if ctrl.Status() != StatusSent {
		t.Errorf("Status() = %q, want %q", ctrl.Status(), StatusSent)
	}
	if ctrl.InFlight() {
		t.Error("送信完了後は InFlight が false")
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != "success" {
		t.Errorf("metrics = %v", m.outcomes)
	}
}

func TestSubmit_ForcesAssistantRole(t *testing.T) {
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		return &model.ChatMessage{ID: "srv-1", Content: "echo", Role: model.ChatRoleUser}, nil
	}}
	ctrl, _ := newTestController(sender)
	ctrl.SetInput("ping")

	_ = ctrl.Submit(context.Background())

	if got := ctrl.Transcript()[1].Role; got != model.ChatRoleAssistant {
		t.Errorf("role = %q, want assistant", got)
	}
}

func TestSubmit_TrimsContentAndCarriesConversation(t *testing.T) {
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		return &model.ChatMessage{ID: "srv", Content: "ok", ConversationID: "conv-42"}, nil
	}}
	ctrl, _ := newTestController(sender)
	ctx := context.Background()

	ctrl.SetInput("  first  ")
	_ = ctrl.Submit(ctx)
	ctrl.SetInput("second")
	_ = ctrl.Submit(ctx)

	if sender.requests[0].Content != "first" {
		t.Errorf("content = %q, want trimmed", sender.requests[0].Content)
	}
	if sender.requests[0].ConversationID != "" {
		t.Errorf("最初の送信では会話IDを送らない: %q", sender.requests[0].ConversationID)
	}
	if sender.requests[1].ConversationID != "conv-42" {
		t.Errorf("2回目の会話ID = %q, want conv-42", sender.requests[1].ConversationID)
	}
	if len(ctrl.Transcript()) != 4 {
		t.Errorf("len(transcript) = %d, want 4", len(ctrl.Transcript()))
	}
}

func TestSubmit_FailureRestoresInput(t *testing.T) {
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		return nil, model.NewTransportError("http://localhost:8000", errors.New("refused"))
	}}
	ctrl, m := newTestController(sender)
	_ = ctrl.SelectQuickAction("Research")
	ctrl.SetInput("Research: competitors in Osaka")

	err := ctrl.Submit(context.Background())

	if !model.IsCode(err, model.ErrCodeBackendUnreachable) {
		t.Fatalf("err = %v, want BACKEND_UNREACHABLE", err)
	}
	if ctrl.Input() != "Research: competitors in Osaka" {
		t.Errorf("Input() = %q, 送信前の入力に戻るはず", ctrl.Input())
	}
	if len(ctrl.Transcript()) != 0 {
		t.Error("失敗時は履歴を変更しない")
	}
	if ctrl.Status() != err.Error() {
		t.Errorf("Status() = %q, want %q", ctrl.Status(), err.Error())
	}
	if ctrl.Selected() != "Research" {
		t.Error("失敗時は選択中の定型依頼を保持する")
	}
	if ctrl.InFlight() {
		t.Error("失敗後は InFlight が false")
	}
	if len(m.outcomes) != 1 || m.outcomes[0] != "failure" {
		t.Errorf("metrics = %v", m.outcomes)
	}
}

func TestSubmit_EmptyInputIsNoop(t *testing.T) {
	for _, input := range []string{"", "   ", "\n\t"} {
		sender := &mockSender{}
		ctrl, _ := newTestController(sender)
		ctrl.SetInput(input)

		if err := ctrl.Submit(context.Background()); err != nil {
			t.Errorf("Submit(%q) error = %v", input, err)
		}
		if len(sender.requests) != 0 {
			t.Errorf("Submit(%q) はバックエンドを呼んではならない", input)
		}
		if ctrl.Input() != input {
			t.Errorf("Input() = %q, 空入力は変更しない", ctrl.Input())
		}
	}
}

func TestSubmit_RejectsConcurrentSubmission(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		close(started)
		<-release
		return &model.ChatMessage{ID: "srv", Content: "done"}, nil
	}}
	ctrl, _ := newTestController(sender)
	ctx := context.Background()
	ctrl.SetInput("first")

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(ctx) }()
	<-started

	// 送信中は入力欄が空になっている
	if ctrl.Input() != "" {
		t.Errorf("送信中の Input() = %q, want empty", ctrl.Input())
	}
	if !ctrl.InFlight() {
		t.Error("送信中は InFlight が true")
	}

	ctrl.SetInput("second")
	if err := ctrl.Submit(ctx); !model.IsCode(err, model.ErrCodeRequestInFlight) {
		t.Errorf("err = %v, want REQUEST_IN_FLIGHT", err)
	}
	if ctrl.Input() != "second" {
		t.Error("拒否された送信は入力欄を変更しない")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if len(sender.requests) != 1 {
		t.Errorf("requests = %d, want 1", len(sender.requests))
	}
}

func TestSubmit_ResolutionAfterCloseIsNoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	sender := &mockSender{sendFn: func(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
		close(started)
		<-release
		return &model.ChatMessage{ID: "srv", Content: "late"}, nil
	}}
	ctrl, m := newTestController(sender)
	ctrl.SetInput("hello")

	done := make(chan error, 1)
	go func() { done <- ctrl.Submit(context.Background()) }()
	<-started
	ctrl.Close()
	close(release)
	<-done

	if len(ctrl.Transcript()) != 0 {
		t.Error("Close 後の応答は履歴に追加しない")
	}
	if ctrl.Status() != "" {
		t.Errorf("Status() = %q, want empty", ctrl.Status())
	}
	if len(m.outcomes) != 0 {
		t.Errorf("metrics = %v", m.outcomes)
	}
}

func TestSelectQuickAction(t *testing.T) {
	sender := &mockSender{}
	ctrl, _ := newTestController(sender)

	if err := ctrl.SelectQuickAction("generate code"); err != nil {
		t.Fatalf("SelectQuickAction() error = %v", err)
	}
	if ctrl.Selected() != "Generate Code" {
		t.Errorf("Selected() = %q", ctrl.Selected())
	}
	if ctrl.Input() != "Generate Code: " {
		t.Errorf("Input() = %q", ctrl.Input())
	}

	ctrl.SetInput("Generate Code: a CSV parser in Go")
	if err := ctrl.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if ctrl.Selected() != "" {
		t.Error("送信成功後は選択を解除する")
	}

	if err := ctrl.SelectQuickAction("Make Coffee"); !model.IsCode(err, model.ErrCodeValidation) {
		t.Errorf("err = %v, want VALIDATION_FAILED", err)
	}
}

func TestQuickActions_Catalog(t *testing.T) {
	want := []string{"Write Copy", "Generate Article", "Image Generation", "Data Analytics", "Research", "Generate Code"}
	actions := QuickActions()
	if len(actions) != len(want) {
		t.Fatalf("len = %d, want %d", len(actions), len(want))
	}
	for i, a := range actions {
		if a.Title != want[i] {
			t.Errorf("actions[%d] = %q, want %q", i, a.Title, want[i])
		}
		if a.Description == "" {
			t.Errorf("%s: description is empty", a.Title)
		}
	}
}

func TestLoadHistory(t *testing.T) {
	calls := 0
	sender := &mockSender{listFn: func(ctx context.Context) ([]model.ChatMessage, error) {
		calls++
		return []model.ChatMessage{
			{ID: "m1", Role: model.ChatRoleUser, Content: "hi", ConversationID: "conv-7"},
			{ID: "m2", Role: model.ChatRoleAssistant, Content: "hello", ConversationID: "conv-7"},
		}, nil
	}}
	ctrl, _ := newTestController(sender)
	ctx := context.Background()

	if err := ctrl.LoadHistory(ctx); err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}
	if err := ctrl.LoadHistory(ctx); err != nil {
		t.Fatalf("LoadHistory() error = %v", err)
	}

	if calls != 1 {
		t.Errorf("履歴がある場合は再取得しない (calls=%d)", calls)
	}
	transcript := ctrl.Transcript()
	if len(transcript) != 2 || transcript[0].ID != "m1" || transcript[1].ID != "m2" {
		t.Errorf("transcript = %+v", transcript)
	}

	ctrl.SetInput("next")
	_ = ctrl.Submit(ctx)
	if sender.requests[0].ConversationID != "conv-7" {
		t.Errorf("履歴の会話IDを引き継ぐ: %q", sender.requests[0].ConversationID)
	}
}

func TestLoadHistory_Error(t *testing.T) {
	sender := &mockSender{listFn: func(ctx context.Context) ([]model.ChatMessage, error) {
		return nil, model.NewApplicationError(500, "")
	}}
	ctrl, _ := newTestController(sender)

	if err := ctrl.LoadHistory(context.Background()); !model.IsCode(err, model.ErrCodeApplication) {
		t.Errorf("err = %v", err)
	}
	if len(ctrl.Transcript()) != 0 {
		t.Error("失敗時は履歴を変更しない")
	}
}

func TestTranscript_ReturnsCopy(t *testing.T) {
	ctrl, _ := newTestController(&mockSender{})
	ctrl.SetInput("hello")
	_ = ctrl.Submit(context.Background())

	snapshot := ctrl.Transcript()
	snapshot[0].Content = "tampered"

	if ctrl.Transcript()[0].Content != "hello" {
		t.Error("Transcript はコピーを返す")
	}
}
