package model

import (
	"errors"
	"fmt"
)

// APIError は統一エラーフォーマットを表す。
// Messageはそのまま画面に表示できる文言であることを保証する。
type APIError struct {
	Code     string // エラーコード
	Message  string // 表示用メッセージ
	Category string // カテゴリ: transport, application, validation, auth, session, system
	Action   string // ユーザー向け対処方法
	Status   int    // HTTPステータス（HTTP由来でない場合は0）
	Err      error  // 原因
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return e.Message
}

// Unwrap は原因エラーを返す。
func (e *APIError) Unwrap() error {
	return e.Err
}

// 定義済みエラーコード
const (
	ErrCodeBackendUnreachable = "BACKEND_UNREACHABLE"
	ErrCodeApplication        = "APPLICATION_ERROR"
	ErrCodeMalformedResponse  = "MALFORMED_RESPONSE"
	ErrCodeUnknownFailure     = "UNKNOWN_FAILURE"
	ErrCodeValidation         = "VALIDATION_FAILED"
	ErrCodeStaleSession       = "STALE_SESSION"
	ErrCodeNotAuthenticated   = "NOT_AUTHENTICATED"
	ErrCodeRequestInFlight    = "REQUEST_IN_FLIGHT"
)

// NewTransportError はバックエンドに到達できない場合のエラーを生成する。
func NewTransportError(baseURL string, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeBackendUnreachable,
		Message:  fmt.Sprintf("Unable to reach the backend at %s. Make sure the API server is running and reachable.", baseURL),
		Category: "transport",
		Action:   "APIサーバーが起動しているか、API_BASE_URL が正しいか確認してください。",
		Err:      cause,
	}
}

// NewApplicationError はバックエンドが非2xxとメッセージを返した場合のエラーを生成する。
// messageが空の場合はステータスコードを含む汎用メッセージを使う。
func NewApplicationError(status int, message string) *APIError {
	if message == "" {
		message = statusMessage(status)
	}
	return &APIError{
		Code:     ErrCodeApplication,
		Message:  message,
		Category: "application",
		Action:   "入力内容を確認して再度お試しください。",
		Status:   status,
	}
}

// NewMalformedErrorBodyError は非2xxのボディがJSONとして読めない場合のエラーを生成する。
func NewMalformedErrorBodyError(status int, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedResponse,
		Message:  statusMessage(status),
		Category: "application",
		Action:   "しばらく待ってから再度お試しください。",
		Status:   status,
		Err:      cause,
	}
}

// NewMalformedSuccessBodyError は2xxのボディが期待する型に変換できない場合のエラーを生成する。
func NewMalformedSuccessBodyError(status int, cause error) *APIError {
	return &APIError{
		Code:     ErrCodeMalformedResponse,
		Message:  fmt.Sprintf("Received an unreadable response from the server (status %d).", status),
		Category: "application",
		Action:   "バックエンドのバージョンを確認してください。",
		Status:   status,
		Err:      cause,
	}
}

// NewUnknownFailureError はネットワークにもHTTPにも分類できない失敗のエラーを生成する。
func NewUnknownFailureError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownFailure,
		Message:  "Request failed unexpectedly. Please check your connection and try again.",
		Category: "system",
		Action:   "接続状況を確認してください。",
		Err:      cause,
	}
}

// NewValidationError は通信前のクライアント側検証エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "入力内容を修正してください。",
	}
}

// NewStaleSessionError は永続化されたセッションが壊れている場合のエラーを生成する。
// ログ出力専用で、呼び出し元には返さない。
func NewStaleSessionError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeStaleSession,
		Message:  "Stored session is unreadable and was ignored.",
		Category: "session",
		Action:   "ログインし直してください。",
		Err:      cause,
	}
}

// NewNotAuthenticatedError は未ログイン状態で保護された操作を行った場合のエラーを生成する。
func NewNotAuthenticatedError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAuthenticated,
		Message:  "You need to sign in first.",
		Category: "auth",
		Action:   "sbadash login でログインしてください。",
	}
}

// NewRequestInFlightError は同じ操作のリクエストが処理中の場合のエラーを生成する。
func NewRequestInFlightError(what string) *APIError {
	return &APIError{
		Code:     ErrCodeRequestInFlight,
		Message:  fmt.Sprintf("A %s request is already in progress.", what),
		Category: "validation",
		Action:   "完了するまでお待ちください。",
	}
}

// ErrorCode はerrがAPIErrorであればそのコードを、そうでなければ空文字を返す。
func ErrorCode(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return ""
}

// IsCode はerrが指定コードのAPIErrorかを返す。
func IsCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

func statusMessage(status int) string {
	return fmt.Sprintf("Request failed with status %d.", status)
}
