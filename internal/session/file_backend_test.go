package session

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileBackend_SaveLoadDelete(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "sbadash")
	b := NewFileBackend(dir)
	ctx := context.Background()

	if _, err := b.Load(ctx, "auth_user"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Load before Save = %v, want ErrNotFound", err)
	}

	if err := b.Save(ctx, "auth_user", []byte(`{"id":"u1"}`)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := b.Load(ctx, "auth_user")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if string(got) != `{"id":"u1"}` {
		t.Errorf("Load = %s, want {\"id\":\"u1\"}", got)
	}

	info, err := os.Stat(filepath.Join(dir, "auth_user.json"))
	if err != nil {
		t.Fatalf("session file not found: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("file permission = %o, want 600", perm)
	}

	if err := b.Delete(ctx, "auth_user"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := b.Load(ctx, "auth_user"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load after Delete = %v, want ErrNotFound", err)
	}
	if err := b.Delete(ctx, "auth_user"); err != nil {
		t.Errorf("Delete of missing key should succeed, got %v", err)
	}
}

func TestFileBackend_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	b := NewFileBackend(dir)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := b.Save(ctx, "auth_user", []byte("v")); err != nil {
			t.Fatalf("Save failed: %v", err)
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("expected exactly one file, got %d", len(entries))
	}
}

func TestFileBackend_RejectsPathTraversal(t *testing.T) {
	b := NewFileBackend(t.TempDir())

	if err := b.Save(context.Background(), "../escape", []byte("x")); err == nil {
		t.Fatal("expected error for unsafe key")
	}
}

func TestStore_PersistsAcrossInstances(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	var buf bytes.Buffer

	first := NewStore(NewFileBackend(dir), newTestLogger(&buf))
	if err := first.SetIdentity(ctx, testIdentity()); err != nil {
		t.Fatalf("SetIdentity failed: %v", err)
	}

	// 別プロセス相当の新しいStoreから読めること
	second := NewStore(NewFileBackend(dir), newTestLogger(&buf))
	got := second.GetIdentity(ctx)
	if got == nil || got.Email != "lina@example.com" {
		t.Fatalf("GetIdentity = %+v, want persisted identity", got)
	}
}

func TestStore_CorruptedFileTreatedAsAbsent(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "auth_user.json"), []byte("{broken"), 0o600); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	var buf bytes.Buffer
	s := NewStore(NewFileBackend(dir), newTestLogger(&buf))

	if s.IsAuthenticated(context.Background()) {
		t.Error("corrupted file should mean not authenticated")
	}
}
