package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sbadash/internal/model"
)

// IdentityKey はIdentityを保存するキー。
const IdentityKey = "auth_user"

// Store は「誰がログインしているか」の唯一の情報源。
// 通信は行わず、副作用はBackendへの読み書きに限られる。
type Store struct {
	backend Backend
	logger  *slog.Logger
}

// NewStore はStoreを生成する。
func NewStore(backend Backend, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{backend: backend, logger: logger}
}

// SetIdentity はIdentityを保存する。既存の値は上書きされる。
// IDまたはEmailが空のIdentityは保存しない。
func (s *Store) SetIdentity(ctx context.Context, identity model.Identity) error {
	if !identity.WellFormed() {
		return fmt.Errorf("identity must have id and email")
	}

	data, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}

	if err := s.backend.Save(ctx, IdentityKey, data); err != nil {
		return fmt.Errorf("save identity: %w", err)
	}
	return nil
}

// GetIdentity は保存されたIdentityを返す。
// 未保存、読み取り失敗、壊れたデータはいずれもnilとして扱い、エラーは返さない。
func (s *Store) GetIdentity(ctx context.Context) *model.Identity {
	data, err := s.backend.Load(ctx, IdentityKey)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("セッションの読み込みに失敗したため未ログインとして扱います",
				slog.String("error", err.Error()),
			)
		}
		return nil
	}

	var identity model.Identity
	if err := json.Unmarshal(data, &identity); err != nil {
		s.logStale(err)
		return nil
	}
	if !identity.WellFormed() {
		s.logStale(errors.New("identity is missing id or email"))
		return nil
	}

	return &identity
}

// ClearIdentity は保存されたIdentityを無条件に削除する。
func (s *Store) ClearIdentity(ctx context.Context) error {
	if err := s.backend.Delete(ctx, IdentityKey); err != nil {
		return fmt.Errorf("clear identity: %w", err)
	}
	return nil
}

// IsAuthenticated はIdentityが保存されているかを返す。
func (s *Store) IsAuthenticated(ctx context.Context) bool {
	return s.GetIdentity(ctx) != nil
}

func (s *Store) logStale(cause error) {
	stale := model.NewStaleSessionError(cause)
	s.logger.Warn(stale.Message,
		slog.String("code", stale.Code),
		slog.String("error", cause.Error()),
	)
}
