package model

// ChatRole はチャットメッセージの送信者を表す。
type ChatRole string

const (
	// ChatRoleUser はユーザーが書いたメッセージ。
	ChatRoleUser ChatRole = "user"
	// ChatRoleAssistant はバックエンドが返したアシスタントの応答。
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage はチャット履歴の1件を表す。
type ChatMessage struct {
	ID             string    `json:"id"`
	Content        string    `json:"content"`
	Role           ChatRole  `json:"role"`
	UserID         string    `json:"user_id,omitempty"`
	ConversationID string    `json:"conversation_id,omitempty"`
	CreatedAt      Timestamp `json:"created_at"`
}

// ChatMessageRequest は POST /chat/messages のリクエストボディ。
type ChatMessageRequest struct {
	Content        string `json:"content"`
	UserID         string `json:"user_id,omitempty"`
	ConversationID string `json:"conversation_id,omitempty"`
}
