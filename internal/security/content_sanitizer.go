package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ContentSanitizerService はバックエンドやURLから受け取ったテキストを無害化する。
type ContentSanitizerService interface {
	// Sanitize は全タグを除去し、HTMLにそのまま埋め込めるテキストを返す。
	Sanitize(raw string) string
	// PlainText は全タグを除去し、端末表示用にエスケープを戻したテキストを返す。
	PlainText(raw string) string
}

// contentSanitizer はContentSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフに使える。
type contentSanitizer struct {
	policy *bluemonday.Policy
}

// NewContentSanitizer はタグを一切許可しないポリシーでContentSanitizerServiceを生成する。
func NewContentSanitizer() *contentSanitizer {
	return &contentSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize は全タグを除去したHTML安全なテキストを返す。
func (s *contentSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}

// PlainText は端末向けのテキストを返す。制御文字は空白に置き換える。
func (s *contentSanitizer) PlainText(raw string) string {
	text := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return ' '
		}
		return r
	}, text)
}
