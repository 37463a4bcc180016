// Package model はドメインモデルを定義する。
package model

// Identity はログイン中のユーザーをクライアント側で表す。
// signup/login の成功時に生成され、セッションストアだけが保持する。
type Identity struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	CreatedAt Timestamp `json:"created_at"`
}

// WellFormed はIdentityとして最低限の項目が揃っているかを返す。
func (i Identity) WellFormed() bool {
	return i.ID != "" && i.Email != ""
}

// SignupRequest は POST /auth/signup のリクエストボディ。
type SignupRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest は POST /auth/login のリクエストボディ。
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
