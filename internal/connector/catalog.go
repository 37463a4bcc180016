// Package connector はデータソース連携の一覧と、接続・解除のライフサイクルを管理する。
// 一覧はクライアント側の固定カタログを基準とし、バックエンドからは接続状態だけを取り込む。
package connector

import "github.com/hitoshi/sbadash/internal/model"

// DefaultCatalog は既知の連携先を表示順に返す。呼び出しごとに新しいスライスを返す。
func DefaultCatalog() []model.Connector {
	return []model.Connector{
		{
			ID:          "gmail",
			Title:       "Gmail / Google Workspace",
			Description: "Sync emails, Drive files, and contacts.",
			Icon:        "gmail",
		},
		{
			ID:          "drive",
			Title:       "Google Drive / OneDrive",
			Description: "Bring in decks, contracts, and shared folders.",
			Icon:        "drive",
		},
		{
			ID:          "chat",
			Title:       "Slack / Teams",
			Description: "Capture support conversations and daily ops updates.",
			Icon:        "chat",
		},
		{
			ID:          "crm",
			Title:       "CRM / ERP (Optional)",
			Description: "Connect customers, inventory, or finance in one shot.",
			Icon:        "crm",
			Optional:    true,
		},
		{
			ID:          "knowledge",
			Title:       "Notion / Trello",
			Description: "Knowledge bases, sprint boards, and project plans.",
			Icon:        "knowledge",
		},
	}
}

// Merge はカタログにバックエンドの接続状態を重ねた一覧を返す。
// 結果の長さと順序はカタログ（重複IDは先頭のみ）と一致し、
// バックエンドが返さなかった連携先は未接続のまま残る。
// 上書きするのはConnectedとLastSyncedAtだけで、同じIDが複数ある場合は最初のものを使う。
// 引数は変更しない。
func Merge(catalog, live []model.Connector) []model.Connector {
	byID := make(map[string]model.Connector, len(live))
	for _, c := range live {
		if _, seen := byID[c.ID]; !seen {
			byID[c.ID] = c
		}
	}

	merged := make([]model.Connector, 0, len(catalog))
	emitted := make(map[string]struct{}, len(catalog))
	for _, base := range catalog {
		if _, dup := emitted[base.ID]; dup {
			continue
		}
		emitted[base.ID] = struct{}{}

		entry := base
		entry.Connected = false
		entry.LastSyncedAt = nil
		if l, ok := byID[base.ID]; ok {
			entry.Connected = l.Connected
			if l.LastSyncedAt != nil {
				t := *l.LastSyncedAt
				entry.LastSyncedAt = &t
			}
		}
		merged = append(merged, entry)
	}
	return merged
}
