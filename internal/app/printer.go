package app

import (
	"fmt"
	"io"

	fcolor "github.com/fatih/color"

	"github.com/hitoshi/sbadash/internal/security"
)

const (
	successSymbol = "✔ "
	noticeSymbol  = "• "
	errorSymbol   = "✗ "
)

// printer は端末向けの出力を行う。
// バックエンドから受け取った文字列はtextを通してから表示する。
type printer struct {
	out       io.Writer
	errOut    io.Writer
	sanitizer security.ContentSanitizerService
}

func newPrinter(out, errOut io.Writer) *printer {
	return &printer{out: out, errOut: errOut, sanitizer: security.NewContentSanitizer()}
}

// text はタグと制御文字を取り除いた表示用の文字列を返す。
func (p *printer) text(raw string) string {
	return p.sanitizer.PlainText(raw)
}

func (p *printer) linef(format string, a ...any) {
	fmt.Fprintf(p.out, format+"\n", a...)
}

func (p *printer) success(format string, a ...any) {
	fcolor.New(fcolor.FgGreen).Fprintf(p.out, successSymbol+format+"\n", a...)
}

func (p *printer) notice(format string, a ...any) {
	fcolor.New(fcolor.FgCyan).Fprintf(p.out, noticeSymbol+format+"\n", a...)
}

func (p *printer) warning(format string, a ...any) {
	fcolor.New(fcolor.FgYellow).Fprintf(p.errOut, errorSymbol+format+"\n", a...)
}

func (p *printer) error(format string, a ...any) {
	fcolor.New(fcolor.FgRed).Fprintf(p.errOut, errorSymbol+format+"\n", a...)
}
