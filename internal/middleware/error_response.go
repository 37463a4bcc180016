package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/hitoshi/sbadash/internal/model"
)

// ErrorResponseBody は戻り受付サーバーが返すエラーのJSON形式。
type ErrorResponseBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action,omitempty"`
}

// WriteErrorResponse はapiErrをJSONで書き込む。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(ErrorResponseBody{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// WriteInternalServerError はpanicなど想定外の失敗で500を返す。詳細はログにだけ残す。
func WriteInternalServerError(w http.ResponseWriter) {
	WriteErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "The return listener hit an unexpected error.",
		Category: "system",
		Action:   "Run sbadash connectors connect again.",
	})
}
