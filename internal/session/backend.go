// Package session はログイン中のIdentityを永続化するセッションストアを提供する。
// 保存先はBackendとして差し替え可能で、本番はファイルまたはRedis、テストはメモリを使う。
package session

import (
	"context"
	"errors"
	"sync"
)

// ErrNotFound はキーに対応する値が保存されていないことを示す。
var ErrNotFound = errors.New("session: key not found")

// Backend はセッションストアの永続化先のインターフェース。
// ブラウザのlocalStorageに相当するキー・バリューストア。
type Backend interface {
	// Load はキーの値を返す。存在しない場合はErrNotFoundを返す。
	Load(ctx context.Context, key string) ([]byte, error)
	// Save はキーに値を保存する。既存の値は上書きされる。
	Save(ctx context.Context, key string, value []byte) error
	// Delete はキーを削除する。存在しない場合もエラーにしない。
	Delete(ctx context.Context, key string) error
}

// MemoryBackend はプロセス内メモリに値を保持するBackend。
type MemoryBackend struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryBackend はMemoryBackendを生成する。
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{values: make(map[string][]byte)}
}

// Load はキーの値のコピーを返す。
func (b *MemoryBackend) Load(_ context.Context, key string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	v, ok := b.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Save はキーに値のコピーを保存する。
func (b *MemoryBackend) Save(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	v := make([]byte, len(value))
	copy(v, value)
	b.values[key] = v
	return nil
}

// Delete はキーを削除する。
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.values, key)
	return nil
}

// compile-time interface check
var _ Backend = (*MemoryBackend)(nil)
