package chat

import "strings"

// QuickAction はチャット入力の雛形になる定型の依頼。
type QuickAction struct {
	Title       string
	Description string
}

// Seed は入力欄に流し込む文面を返す。
func (a QuickAction) Seed() string {
	return a.Title + ": "
}

// QuickActions は定型の依頼を表示順に返す。
func QuickActions() []QuickAction {
	return []QuickAction{
		{Title: "Write Copy", Description: "Craft compelling text for ads and emails."},
		{Title: "Generate Article", Description: "Write articles on any topic instantly."},
		{Title: "Image Generation", Description: "Design custom visuals with AI."},
		{Title: "Data Analytics", Description: "Analyze data with AI-driven insights."},
		{Title: "Research", Description: "Quickly gather and summarize info."},
		{Title: "Generate Code", Description: "Produce accurate code fast."},
	}
}

// FindQuickAction はタイトルが一致する定型の依頼を返す。大文字小文字は区別しない。
func FindQuickAction(title string) (QuickAction, bool) {
	for _, a := range QuickActions() {
		if strings.EqualFold(a.Title, strings.TrimSpace(title)) {
			return a, true
		}
	}
	return QuickAction{}, false
}
