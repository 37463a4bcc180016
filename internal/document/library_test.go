package document

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/hitoshi/sbadash/internal/model"
)

// --- モック定義 ---

type mockStore struct {
	uploadFn    func(ctx context.Context, req model.DocumentRequest) (*model.Document, error)
	fetchFn     func(ctx context.Context) ([]model.Document, error)
	uploadCalls int
	last        model.DocumentRequest
}

func (m *mockStore) UploadDocument(ctx context.Context, req model.DocumentRequest) (*model.Document, error) {
	m.uploadCalls++
	m.last = req
	if m.uploadFn != nil {
		return m.uploadFn(ctx, req)
	}
	return &model.Document{ID: fmt.Sprintf("d-%d", m.uploadCalls), Title: req.Title, Category: req.Category, Filename: req.Filename}, nil
}

func (m *mockStore) FetchRecentDocuments(ctx context.Context) ([]model.Document, error) {
	if m.fetchFn != nil {
		return m.fetchFn(ctx)
	}
	return nil, nil
}

type mockGuard struct {
	validateErr  error
	reachErr     error
	reachChecked bool
}

func (m *mockGuard) ValidateURL(string) error { return m.validateErr }
func (m *mockGuard) CheckReachable(context.Context, string) error {
	m.reachChecked = true
	return m.reachErr
}

var _ Store = (*mockStore)(nil)

func newTestLibrary(store *mockStore, opts Options) (*Library, *bytes.Buffer) {
	var buf bytes.Buffer
	return NewLibrary(store, opts, slog.New(slog.NewJSONHandler(&buf, nil))), &buf
}

// --- テスト ---

func TestFallbackFilename(t *testing.T) {
	tests := []struct {
		title, filename, want string
	}{
		{"Lease", "lease-2025.pdf", "lease-2025.pdf"},
		{"Lease", "", "Lease.pdf"},
		{"", "", "document.pdf"},
		{"", "scan.png", "scan.png"},
	}
	for _, tt := range tests {
		if got := FallbackFilename(tt.title, tt.filename); got != tt.want {
			t.Errorf("FallbackFilename(%q, %q) = %q, want %q", tt.title, tt.filename, got, tt.want)
		}
	}
}

func TestAddCategory(t *testing.T) {
	lib, _ := newTestLibrary(&mockStore{}, Options{})

	if lib.Selected() != "Contracts" {
		t.Errorf("初期カテゴリ = %q, want Contracts", lib.Selected())
	}
	if !lib.AddCategory("  Legal  ") {
		t.Fatal("AddCategory(Legal) = false")
	}
	if lib.Selected() != "Legal" {
		t.Errorf("追加したカテゴリが選択されていない: %q", lib.Selected())
	}
	if lib.AddCategory("Legal") || lib.AddCategory("HR") || lib.AddCategory("   ") {
		t.Error("重複または空のカテゴリは追加しない")
	}

	cats := lib.Categories()
	if len(cats) != 6 || cats[5] != "Legal" {
		t.Errorf("categories = %v", cats)
	}
	if lib.Selected() != "Legal" {
		t.Error("追加に失敗しても選択は変えない")
	}
}

func TestSelectCategory(t *testing.T) {
	lib, _ := newTestLibrary(&mockStore{}, Options{})

	if err := lib.SelectCategory("Finance"); err != nil {
		t.Fatalf("SelectCategory() error = %v", err)
	}
	if err := lib.SelectCategory("Nope"); !model.IsCode(err, model.ErrCodeValidation) {
		t.Errorf("err = %v", err)
	}
	if lib.Selected() != "Finance" {
		t.Errorf("Selected() = %q", lib.Selected())
	}
}

func TestUpload_SuccessPrependsAndCapsRecent(t *testing.T) {
	store := &mockStore{}
	lib, _ := newTestLibrary(store, Options{})
	ctx := context.Background()

	for i := 0; i < 6; i++ {
		lib.SetFields(Fields{Title: fmt.Sprintf("Doc %d", i)})
		if _, err := lib.Upload(ctx); err != nil {
			t.Fatalf("Upload() error = %v", err)
		}
	}

	recent := lib.Recent()
	if len(recent) != 5 {
		t.Fatalf("len(recent) = %d, want 5", len(recent))
	}
	if recent[0].Title != "Doc 5" || recent[4].Title != "Doc 1" {
		t.Errorf("recent = %v, %v", recent[0].Title, recent[4].Title)
	}
	if store.last.Filename != "Doc 5.pdf" || store.last.Category != "Contracts" {
		t.Errorf("sent = %+v", store.last)
	}
	if lib.Feedback() != StatusUploaded {
		t.Errorf("Feedback() = %q", lib.Feedback())
	}
	if lib.Fields() != (Fields{}) {
		t.Errorf("成功時は入力項目を空にする: %+v", lib.Fields())
	}
}

func TestUpload_FailureKeepsForm(t *testing.T) {
	store := &mockStore{uploadFn: func(ctx context.Context, req model.DocumentRequest) (*model.Document, error) {
		return nil, model.NewApplicationError(413, "File too large")
	}}
	lib, logBuf := newTestLibrary(store, Options{})
	fields := Fields{Title: "Budget", Filename: "budget.xlsx"}
	lib.SetFields(fields)

	if _, err := lib.Upload(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if lib.Fields() != fields {
		t.Errorf("失敗時は入力項目を保持する: %+v", lib.Fields())
	}
	if lib.Feedback() != "File too large" {
		t.Errorf("Feedback() = %q", lib.Feedback())
	}
	if len(lib.Recent()) != 0 {
		t.Error("失敗時は一覧を変更しない")
	}
	if !strings.Contains(logBuf.String(), model.ErrCodeApplication) {
		t.Error("失敗がログに記録されていない")
	}
}

func TestUpload_CloudLinkValidation(t *testing.T) {
	guard := &mockGuard{validateErr: model.NewValidationError("Cloud link must start with http:// or https://.")}
	store := &mockStore{}
	lib, _ := newTestLibrary(store, Options{Guard: guard, CheckReachable: true})
	lib.SetFields(Fields{Title: "Deck", CloudLink: "ftp://x"})

	_, err := lib.Upload(context.Background())

	if !model.IsCode(err, model.ErrCodeValidation) {
		t.Fatalf("err = %v", err)
	}
	if store.uploadCalls != 0 {
		t.Error("検証エラー時はバックエンドを呼ばない")
	}
	if guard.reachChecked {
		t.Error("静的検証で失敗した場合は到達確認をしない")
	}
	if lib.Fields().CloudLink != "ftp://x" {
		t.Error("入力項目を保持する")
	}
}

func TestUpload_CloudLinkReachability(t *testing.T) {
	guard := &mockGuard{reachErr: model.NewValidationError("Cloud link returned status 404.")}
	store := &mockStore{}
	lib, _ := newTestLibrary(store, Options{Guard: guard, CheckReachable: true})
	lib.SetFields(Fields{Title: "Deck", CloudLink: "https://drive.example.com/x"})

	if _, err := lib.Upload(context.Background()); err == nil || err.Error() != "Cloud link returned status 404." {
		t.Fatalf("err = %v", err)
	}
	if store.uploadCalls != 0 {
		t.Error("到達できない場合はバックエンドを呼ばない")
	}

	// 到達確認を無効にした場合は静的検証のみ
	guard.reachChecked = false
	lib2, _ := newTestLibrary(store, Options{Guard: guard})
	lib2.SetFields(Fields{Title: "Deck", CloudLink: " https://drive.example.com/x "})
	if _, err := lib2.Upload(context.Background()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if guard.reachChecked {
		t.Error("CheckReachable=false では到達確認をしない")
	}
	if store.last.CloudLink != "https://drive.example.com/x" {
		t.Errorf("cloud_link = %q, want trimmed", store.last.CloudLink)
	}
}

func TestUpload_EmptyCloudLinkSkipsGuard(t *testing.T) {
	guard := &mockGuard{validateErr: model.NewValidationError("should not be called")}
	store := &mockStore{}
	lib, _ := newTestLibrary(store, Options{Guard: guard, CheckReachable: true})
	lib.SetFields(Fields{Title: "Memo"})

	if _, err := lib.Upload(context.Background()); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if store.last.CloudLink != "" {
		t.Errorf("cloud_link = %q", store.last.CloudLink)
	}
}

func TestLoadRecent(t *testing.T) {
	store := &mockStore{fetchFn: func(ctx context.Context) ([]model.Document, error) {
		return []model.Document{{ID: "d9"}, {ID: "d8"}}, nil
	}}
	lib, _ := newTestLibrary(store, Options{})

	lib.LoadRecent(context.Background())

	recent := lib.Recent()
	if len(recent) != 2 || recent[0].ID != "d9" {
		t.Errorf("recent = %+v", recent)
	}
}

func TestLoadRecent_ErrorIsSwallowed(t *testing.T) {
	store := &mockStore{fetchFn: func(ctx context.Context) ([]model.Document, error) {
		return nil, model.NewTransportError("http://localhost:8000", nil)
	}}
	lib, logBuf := newTestLibrary(store, Options{})
	lib.SetFields(Fields{Title: "keep"})

	lib.LoadRecent(context.Background())

	if len(lib.Recent()) != 0 {
		t.Error("失敗時は一覧を変更しない")
	}
	if lib.Feedback() != "" {
		t.Error("一覧取得の失敗は画面に表示しない")
	}
	if !strings.Contains(logBuf.String(), model.ErrCodeBackendUnreachable) {
		t.Error("失敗はログに記録する")
	}
}
