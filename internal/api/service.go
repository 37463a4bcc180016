// Package api はバックエンドの各エンドポイントを型付きの操作として提供する。
// 通信はすべてgateway.Clientを経由し、失敗は*model.APIErrorとして返す。
package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/hitoshi/sbadash/internal/gateway"
	"github.com/hitoshi/sbadash/internal/model"
	"github.com/hitoshi/sbadash/internal/session"
)

// clearTimeout はログアウト時にセッションを破棄する際の上限時間。
const clearTimeout = 5 * time.Second

// Service はドメイン操作を提供する。
type Service struct {
	gw       *gateway.Client
	sessions *session.Store
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(gw *gateway.Client, sessions *session.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{gw: gw, sessions: sessions, logger: logger}
}

// Gateway は内部で使用しているゲートウェイを返す。
func (s *Service) Gateway() *gateway.Client {
	return s.gw
}

// Signup はアカウントを作成し、作成されたIdentityを返す。セッションには保存しない。
func (s *Service) Signup(ctx context.Context, req model.SignupRequest) (*model.Identity, error) {
	identity, err := gateway.Request[model.Identity](ctx, s.gw, http.MethodPost, "/auth/signup", req)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Login は認証を行い、Identityを返す。セッションには保存しない。
func (s *Service) Login(ctx context.Context, req model.LoginRequest) (*model.Identity, error) {
	identity, err := gateway.Request[model.Identity](ctx, s.gw, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// Logout はバックエンドへログアウトを通知し、ローカルのセッションを破棄する。
// 通知の成否にかかわらずセッションは必ず破棄され、エラーは返さない。
func (s *Service) Logout(ctx context.Context) {
	defer func() {
		// 呼び出し元がキャンセル済みでもセッションは消す
		clearCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), clearTimeout)
		defer cancel()
		if err := s.sessions.ClearIdentity(clearCtx); err != nil {
			s.logger.Warn("セッションの破棄に失敗しました", slog.String("error", err.Error()))
		}
	}()

	if err := s.gw.Do(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		s.logger.Warn("ログアウト通知に失敗しました",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
	}
}

// AddEmployee は従業員を登録する。
func (s *Service) AddEmployee(ctx context.Context, req model.EmployeeRequest) (*model.Employee, error) {
	employee, err := gateway.Request[model.Employee](ctx, s.gw, http.MethodPost, "/employees", req)
	if err != nil {
		return nil, err
	}
	return &employee, nil
}

// UploadDocument はドキュメントのメタデータを登録する。
func (s *Service) UploadDocument(ctx context.Context, req model.DocumentRequest) (*model.Document, error) {
	doc, err := gateway.Request[model.Document](ctx, s.gw, http.MethodPost, "/documents", req)
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

// FetchRecentDocuments は最近のドキュメントをバックエンドの順序のまま返す。
func (s *Service) FetchRecentDocuments(ctx context.Context) ([]model.Document, error) {
	return gateway.Request[[]model.Document](ctx, s.gw, http.MethodGet, "/documents", nil)
}

// FetchSubscriptionPlans はプラン一覧をバックエンドの順序のまま返す。
func (s *Service) FetchSubscriptionPlans(ctx context.Context) ([]model.SubscriptionPlan, error) {
	return gateway.Request[[]model.SubscriptionPlan](ctx, s.gw, http.MethodGet, "/subscriptions", nil)
}

// FetchConnectors は連携先の接続状態を返す。
func (s *Service) FetchConnectors(ctx context.Context) ([]model.Connector, error) {
	list, err := gateway.Request[model.ConnectorList](ctx, s.gw, http.MethodGet, "/data-sources", nil)
	if err != nil {
		return nil, err
	}
	return list.Connectors, nil
}

// DisconnectConnector は連携を解除する。
func (s *Service) DisconnectConnector(ctx context.Context, provider string) (*model.DisconnectResult, error) {
	path := "/integrations/" + url.PathEscape(provider)
	result, err := gateway.Request[model.DisconnectResult](ctx, s.gw, http.MethodDelete, path, nil)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// SendChatMessage はチャットメッセージを送信し、アシスタントの応答を返す。
// UserIDが空の場合はログイン中のユーザーIDを補う。
func (s *Service) SendChatMessage(ctx context.Context, req model.ChatMessageRequest) (*model.ChatMessage, error) {
	if req.UserID == "" {
		if identity := s.sessions.GetIdentity(ctx); identity != nil {
			req.UserID = identity.ID
		}
	}

	reply, err := gateway.Request[model.ChatMessage](ctx, s.gw, http.MethodPost, "/chat/messages", req)
	if err != nil {
		return nil, err
	}
	return &reply, nil
}

// ListChatMessages は保存されたチャット履歴を返す。
func (s *Service) ListChatMessages(ctx context.Context) ([]model.ChatMessage, error) {
	return gateway.Request[[]model.ChatMessage](ctx, s.gw, http.MethodGet, "/chat/messages", nil)
}
