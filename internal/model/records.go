package model

// EmployeeRequest は POST /employees のリクエストボディ。
type EmployeeRequest struct {
	FullName          string `json:"full_name"`
	Email             string `json:"email"`
	Phone             string `json:"phone"`
	TemporaryPassword string `json:"temporary_password"`
	Role              string `json:"role"`
}

// Employee は登録済みの従業員。
type Employee struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      string    `json:"role"`
	CreatedAt Timestamp `json:"created_at"`
}

// DocumentRequest は POST /documents のリクエストボディ。
type DocumentRequest struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	Filename  string `json:"filename"`
	CloudLink string `json:"cloud_link,omitempty"`
}

// Document はアップロード済みのドキュメント。
type Document struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	Filename  string    `json:"filename"`
	CloudLink string    `json:"cloud_link,omitempty"`
	CreatedAt Timestamp `json:"created_at"`
}

// SubscriptionPlan は料金プラン。
type SubscriptionPlan struct {
	Name        string   `json:"name"`
	Price       string   `json:"price"`
	Period      string   `json:"period"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Highlight   bool     `json:"highlight"`
}
