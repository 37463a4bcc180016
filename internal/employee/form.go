// Package employee は従業員追加フォームの状態を管理する。
package employee

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/sbadash/internal/model"
)

// DefaultRole は初期選択されるロール。
const DefaultRole = "employee"

// StatusAdded は登録成功時の文言。
const StatusAdded = "Employee added successfully."

// Role は従業員に割り当てられるロール。
type Role struct {
	ID          string
	Title       string
	Description string
}

// Roles は選択可能なロールを表示順に返す。
func Roles() []Role {
	return []Role{
		{ID: "admin", Title: "Admin", Description: "Full access to settings, billing, and automation controls."},
		{ID: "chef-service", Title: "Chef Service", Description: "Manage service workflows, approvals, and team readiness."},
		{ID: "employee", Title: "Employee", Description: "Collaborate on assigned tasks with limited permissions."},
	}
}

// Adder は従業員の登録先。api.Serviceが実装する。
type Adder interface {
	AddEmployee(ctx context.Context, req model.EmployeeRequest) (*model.Employee, error)
}

// Fields はフォームの入力項目。
type Fields struct {
	FullName          string
	Email             string
	Phone             string
	TemporaryPassword string
}

// Form は従業員追加フォーム。
type Form struct {
	adder  Adder
	logger *slog.Logger

	mu       sync.Mutex
	fields   Fields
	role     string
	feedback string
	loading  bool
}

// NewForm はFormを生成する。
func NewForm(adder Adder, logger *slog.Logger) *Form {
	if logger == nil {
		logger = slog.Default()
	}
	return &Form{adder: adder, logger: logger, role: DefaultRole}
}

// SetFields は入力項目を置き換える。
func (f *Form) SetFields(fields Fields) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fields = fields
}

// Fields は現在の入力項目を返す。
func (f *Form) Fields() Fields {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fields
}

// SelectRole はロールを選択する。未知のロールはVALIDATION_FAILEDになる。
func (f *Form) SelectRole(id string) error {
	for _, r := range Roles() {
		if r.ID == id {
			f.mu.Lock()
			f.role = id
			f.mu.Unlock()
			return nil
		}
	}
	return model.NewValidationError(fmt.Sprintf("Unknown role %q.", id))
}

// Role は選択中のロールIDを返す。
func (f *Form) Role() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.role
}

// Feedback は直近の送信結果の文言を返す。
func (f *Form) Feedback() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.feedback
}

// Submit は従業員を登録する。
// 成功時は入力項目を空にし、失敗時は入力項目を保持したままエラー文言を残す。
// ロールの選択は成功時も維持する。
func (f *Form) Submit(ctx context.Context) (*model.Employee, error) {
	f.mu.Lock()
	if f.loading {
		f.mu.Unlock()
		return nil, model.NewRequestInFlightError("add employee")
	}
	f.loading = true
	f.feedback = ""
	req := model.EmployeeRequest{
		FullName:          f.fields.FullName,
		Email:             f.fields.Email,
		Phone:             f.fields.Phone,
		TemporaryPassword: f.fields.TemporaryPassword,
		Role:              f.role,
	}
	f.mu.Unlock()

	employee, err := f.adder.AddEmployee(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.loading = false

	if err != nil {
		f.feedback = err.Error()
		f.logger.Warn("従業員の追加に失敗しました",
			slog.String("code", model.ErrorCode(err)),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	f.feedback = StatusAdded
	f.fields = Fields{}
	f.logger.Info("employee added",
		slog.String("employee_id", employee.ID),
		slog.String("role", req.Role),
	)
	return employee, nil
}
