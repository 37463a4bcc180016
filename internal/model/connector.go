package model

// Connector はサードパーティのデータソース連携を表す。
// ID/Title/Description/Icon/Optional はクライアント側カタログが持ち、
// Connected と LastSyncedAt だけがバックエンドから供給される。
type Connector struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Icon         string     `json:"icon"`
	Optional     bool       `json:"optional"`
	Connected    bool       `json:"connected"`
	LastSyncedAt *Timestamp `json:"last_synced_at"`
}

// ConnectorList は GET /data-sources のレスポンス。
type ConnectorList struct {
	Connectors []Connector `json:"connectors"`
}

// DisconnectResult は DELETE /integrations/{provider} のレスポンス。
type DisconnectResult struct {
	OK bool `json:"ok"`
}
