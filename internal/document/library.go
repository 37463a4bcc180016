// Package document はドキュメント登録フォームと最近のドキュメント一覧の状態を管理する。
package document

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/hitoshi/sbadash/internal/model"
	"github.com/hitoshi/sbadash/internal/security"
)

// StatusUploaded は登録成功時の文言。
const StatusUploaded = "Document uploaded successfully."

// maxRecent は登録直後に保持する最近のドキュメントの件数。
const maxRecent = 5

// DefaultCategories は初期状態のカテゴリを表示順に返す。
func DefaultCategories() []string {
	return []string{"Contracts", "Reports", "Assets", "HR", "Finance"}
}

// Store はドキュメントの登録先。api.Serviceが実装する。
type Store interface {
	UploadDocument(ctx context.Context, req model.DocumentRequest) (*model.Document, error)
	FetchRecentDocuments(ctx context.Context) ([]model.Document, error)
}

// Fields はフォームの入力項目。
type Fields struct {
	Title     string
	Filename  string
	CloudLink string
}

// Options はLibraryの任意設定。
type Options struct {
	// Guard がnilでなければクラウドリンクを送信前に検証する。
	Guard security.LinkGuard
	// CheckReachable が真であればGuardでリンク先への到達も確認する。
	CheckReachable bool
}

// Library はドキュメント登録画面の状態。
type Library struct {
	store  Store
	opts   Options
	logger *slog.Logger

	mu         sync.Mutex
	categories []string
	selected   string
	fields     Fields
	recent     []model.Document
	feedback   string
	loading    bool
}

// NewLibrary はLibraryを生成する。
func NewLibrary(store Store, opts Options, logger *slog.Logger) *Library {
	if logger == nil {
		logger = slog.Default()
	}
	categories := DefaultCategories()
	return &Library{
		store:      store,
		opts:       opts,
		logger:     logger,
		categories: categories,
		selected:   categories[0],
	}
}

// Categories はカテゴリ一覧のコピーを返す。
func (l *Library) Categories() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.categories))
	copy(out, l.categories)
	return out
}

// AddCategory はカテゴリを追加して選択する。
// 前後の空白は除去し、空または既存の名前の場合は何もせずfalseを返す。
func (l *Library) AddCategory(name string) bool {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return false
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.categories {
		if c == trimmed {
			return false
		}
	}
	l.categories = append(l.categories, trimmed)
	l.selected = trimmed
	return true
}

// SelectCategory は既存のカテゴリを選択する。
func (l *Library) SelectCategory(name string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, c := range l.categories {
		if c == name {
			l.selected = name
			return nil
		}
	}
	return model.NewValidationError("Unknown category \"" + name + "\".")
}

// Selected は選択中のカテゴリを返す。
func (l *Library) Selected() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.selected
}

// SetCheckReachable はクラウドリンクの到達確認を行うかを切り替える。
func (l *Library) SetCheckReachable(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.opts.CheckReachable = on
}

// SetFields は入力項目を置き換える。
func (l *Library) SetFields(fields Fields) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fields = fields
}

// Fields は現在の入力項目を返す。
func (l *Library) Fields() Fields {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fields
}

// Feedback は直近の登録結果の文言を返す。
func (l *Library) Feedback() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.feedback
}

// Recent は最近のドキュメントのコピーを新しい順に返す。
func (l *Library) Recent() []model.Document {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Document, len(l.recent))
	copy(out, l.recent)
	return out
}

// Upload は入力中のドキュメントを登録する。
// ファイル名が空の場合は「タイトル.pdf」、タイトルも空の場合は「document.pdf」にする。
// 成功時は一覧の先頭に追加して最新5件に絞り、入力項目を空にする。
// 失敗時は入力項目を保持したままエラー文言を残す。
func (l *Library) Upload(ctx context.Context) (*model.Document, error) {
	l.mu.Lock()
	if l.loading {
		l.mu.Unlock()
		return nil, model.NewRequestInFlightError("upload")
	}
	l.loading = true
	l.feedback = ""
	req := model.DocumentRequest{
		Title:     l.fields.Title,
		Category:  l.selected,
		Filename:  FallbackFilename(l.fields.Title, l.fields.Filename),
		CloudLink: strings.TrimSpace(l.fields.CloudLink),
	}
	opts := l.opts
	l.mu.Unlock()

	doc, err := upload(ctx, l.store, opts, req)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loading = false

	if err != nil {
		l.feedback = err.Error()
		l.logger.Warn("ドキュメントの登録に失敗しました",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	l.feedback = StatusUploaded
	l.fields = Fields{}
	l.recent = append([]model.Document{*doc}, l.recent...)
	if len(l.recent) > maxRecent {
		l.recent = l.recent[:maxRecent]
	}
	return doc, nil
}

func upload(ctx context.Context, store Store, opts Options, req model.DocumentRequest) (*model.Document, error) {
	if req.CloudLink != "" && opts.Guard != nil {
		if err := opts.Guard.ValidateURL(req.CloudLink); err != nil {
			return nil, err
		}
		if opts.CheckReachable {
			if err := opts.Guard.CheckReachable(ctx, req.CloudLink); err != nil {
				return nil, err
			}
		}
	}
	return store.UploadDocument(ctx, req)
}

// LoadRecent は最近のドキュメントを取得する。
// 取得に失敗した場合は一覧を変更せず、ログに記録するだけでエラーは返さない。
func (l *Library) LoadRecent(ctx context.Context) {
	docs, err := l.store.FetchRecentDocuments(ctx)
	if err != nil {
		l.logger.Warn("最近のドキュメントの取得に失敗しました",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.recent = docs
}

// FallbackFilename は送信するファイル名を決める。
func FallbackFilename(title, filename string) string {
	if filename != "" {
		return filename
	}
	if title == "" {
		title = "document"
	}
	return title + ".pdf"
}
