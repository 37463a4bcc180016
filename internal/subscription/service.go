// Package subscription は料金プラン一覧の取得と表示用の判定を提供する。
package subscription

import (
	"context"

	"github.com/hitoshi/sbadash/internal/model"
)

// PremiumPlanName はプレミアム表示にするプラン名。
const PremiumPlanName = "Company"

// PlanFetcher はプラン一覧の取得元。api.Serviceが実装する。
type PlanFetcher interface {
	FetchSubscriptionPlans(ctx context.Context) ([]model.SubscriptionPlan, error)
}

// PlanView はプラン1件分の表示内容。
type PlanView struct {
	Plan        model.SubscriptionPlan
	Premium     bool
	ActionLabel string
	Badge       string
}

// Service はプラン一覧のサービス層。
type Service struct {
	fetcher PlanFetcher
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(fetcher PlanFetcher) *Service {
	return &Service{fetcher: fetcher}
}

// ListPlans はプラン一覧をバックエンドの順序のまま表示内容に変換して返す。
func (s *Service) ListPlans(ctx context.Context) ([]PlanView, error) {
	plans, err := s.fetcher.FetchSubscriptionPlans(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]PlanView, len(plans))
	for i, p := range plans {
		views[i] = PlanView{
			Plan:        p,
			Premium:     IsPremium(p),
			ActionLabel: ActionLabel(p),
			Badge:       Badge(p),
		}
	}
	return views, nil
}

// IsPremium はプレミアム表示にするプランかを返す。
func IsPremium(p model.SubscriptionPlan) bool {
	return p.Name == PremiumPlanName
}

// ActionLabel はプランのボタン文言を返す。
// 強調表示のプランは現在のプランとして扱う。
func ActionLabel(p model.SubscriptionPlan) string {
	if p.Highlight {
		return "Current plan"
	}
	return "Upgrade plan"
}

// Badge はプランのバッジ文言を返す。バッジがない場合は空文字。
func Badge(p model.SubscriptionPlan) string {
	if p.Highlight && IsPremium(p) {
		return "Most Popular"
	}
	return ""
}
