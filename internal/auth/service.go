// Package auth はサインアップ、ログイン、ログアウトの一連の流れとログイン状態の確認を提供する。
// バックエンドで認証が成功したIdentityは、呼び出し元に返す前にセッションストアへ保存する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/hitoshi/sbadash/internal/model"
	"github.com/hitoshi/sbadash/internal/session"
)

// MinPasswordLength はパスワードの最小文字数。
const MinPasswordLength = 8

// Authenticator はバックエンドの認証エンドポイントのインターフェース。
// api.Serviceが実装する。
type Authenticator interface {
	Signup(ctx context.Context, req model.SignupRequest) (*model.Identity, error)
	Login(ctx context.Context, req model.LoginRequest) (*model.Identity, error)
	Logout(ctx context.Context)
}

// SignupForm はサインアップ画面の入力値。
type SignupForm struct {
	FullName        string
	Email           string
	Password        string
	ConfirmPassword string
}

// LoginForm はログイン画面の入力値。
type LoginForm struct {
	Email    string
	Password string
}

// ValidateSignup は通信前にサインアップ入力を検証する。
// パスワードの長さはバイト数ではなく文字数で数える。
func ValidateSignup(form SignupForm) error {
	if form.Password != form.ConfirmPassword {
		return model.NewValidationError("Passwords do not match.")
	}
	if utf8.RuneCountInString(form.Password) < MinPasswordLength {
		return model.NewValidationError(fmt.Sprintf("Password must be at least %d characters long.", MinPasswordLength))
	}
	return nil
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	backend  Authenticator
	sessions *session.Store
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(backend Authenticator, sessions *session.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{backend: backend, sessions: sessions, logger: logger}
}

// Signup は入力を検証してアカウントを作成し、ログイン状態にする。
// 検証エラーの場合はバックエンドを呼ばない。
func (s *Service) Signup(ctx context.Context, form SignupForm) (*model.Identity, error) {
	if err := ValidateSignup(form); err != nil {
		return nil, err
	}

	identity, err := s.backend.Signup(ctx, model.SignupRequest{
		FullName: form.FullName,
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("new account created",
		slog.String("user_id", identity.ID),
		slog.String("email", identity.Email),
	)
	return identity, nil
}

// Login は認証を行い、ログイン状態にする。
func (s *Service) Login(ctx context.Context, form LoginForm) (*model.Identity, error) {
	identity, err := s.backend.Login(ctx, model.LoginRequest{
		Email:    form.Email,
		Password: form.Password,
	})
	if err != nil {
		return nil, err
	}

	if err := s.commit(ctx, identity); err != nil {
		return nil, err
	}

	s.logger.Info("user logged in", slog.String("user_id", identity.ID))
	return identity, nil
}

// Logout はログアウトする。何度呼んでもよい。
func (s *Service) Logout(ctx context.Context) {
	s.backend.Logout(ctx)
	s.logger.Info("user logged out")
}

// CurrentUser はログイン中のIdentityを返す。未ログインの場合はnil。
func (s *Service) CurrentUser(ctx context.Context) *model.Identity {
	return s.sessions.GetIdentity(ctx)
}

// RequireAuthenticated はログインが必要な操作の前に呼ぶ。
// 未ログインの場合はNOT_AUTHENTICATEDを返す。
func (s *Service) RequireAuthenticated(ctx context.Context) (*model.Identity, error) {
	identity := s.sessions.GetIdentity(ctx)
	if identity == nil {
		return nil, model.NewNotAuthenticatedError()
	}
	return identity, nil
}

// commit はIdentityをセッションストアに保存する。
// 保存後に読み出せることを呼び出し元に返す前に保証する。
func (s *Service) commit(ctx context.Context, identity *model.Identity) error {
	if identity == nil || !identity.WellFormed() {
		return model.NewMalformedSuccessBodyError(200, fmt.Errorf("identity is missing id or email"))
	}
	if err := s.sessions.SetIdentity(ctx, *identity); err != nil {
		return model.NewUnknownFailureError(fmt.Errorf("failed to save session: %w", err))
	}
	return nil
}
