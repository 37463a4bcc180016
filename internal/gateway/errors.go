package gateway

import (
	"encoding/json"
	"strings"

	"github.com/hitoshi/sbadash/internal/model"
)

// errorBody はバックエンドのエラーレスポンス。
// detailは文字列の場合と、入力検証エラーの配列の場合がある。
type errorBody struct {
	Detail  json.RawMessage `json:"detail"`
	Message string          `json:"message"`
}

// validationItem は入力検証エラー配列の1要素。
type validationItem struct {
	Msg string `json:"msg"`
}

// errorFromBody は非2xxレスポンスのボディから表示用エラーを組み立てる。
// ボディがJSONとして読めない場合もパニックせず、ステータスコードのみのメッセージにする。
func errorFromBody(status int, data []byte) error {
	var body errorBody
	if err := json.Unmarshal(data, &body); err != nil {
		return model.NewMalformedErrorBodyError(status, err)
	}

	msg := detailMessage(body.Detail)
	if msg == "" {
		msg = strings.TrimSpace(body.Message)
	}
	return model.NewApplicationError(status, msg)
}

// detailMessage はdetailフィールドを表示用の文字列にする。
func detailMessage(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}

	var items []validationItem
	if err := json.Unmarshal(raw, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, item := range items {
			if m := strings.TrimSpace(item.Msg); m != "" {
				msgs = append(msgs, m)
			}
		}
		return strings.Join(msgs, "; ")
	}

	var item validationItem
	if err := json.Unmarshal(raw, &item); err == nil {
		return strings.TrimSpace(item.Msg)
	}

	return ""
}
