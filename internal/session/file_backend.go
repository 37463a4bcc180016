package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

// validKey はファイル名として安全なキーの形式。
var validKey = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)

// FileBackend はキーごとに1ファイルとしてディレクトリに保存するBackend。
// CLIの再起動をまたいでログイン状態を維持するために使う。
type FileBackend struct {
	dir string
}

// NewFileBackend はFileBackendを生成する。ディレクトリは最初の保存時に作成する。
func NewFileBackend(dir string) *FileBackend {
	return &FileBackend{dir: dir}
}

// Dir は保存先ディレクトリを返す。
func (b *FileBackend) Dir() string {
	return b.dir
}

func (b *FileBackend) path(key string) (string, error) {
	if !validKey.MatchString(key) {
		return "", fmt.Errorf("invalid session key: %q", key)
	}
	return filepath.Join(b.dir, key+".json"), nil
}

// Load はキーのファイル内容を返す。
func (b *FileBackend) Load(_ context.Context, key string) ([]byte, error) {
	p, err := b.path(key)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("read session file: %w", err)
	}
	return data, nil
}

// Save は一時ファイルへ書き込んでからrenameし、途中状態のファイルを残さない。
func (b *FileBackend) Save(_ context.Context, key string, value []byte) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(b.dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(b.dir, key+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(value); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}

	if err := os.Rename(tmpName, p); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

// Delete はキーのファイルを削除する。
func (b *FileBackend) Delete(_ context.Context, key string) error {
	p, err := b.path(key)
	if err != nil {
		return err
	}

	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}

var _ Backend = (*FileBackend)(nil)
