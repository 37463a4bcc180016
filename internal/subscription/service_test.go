package subscription

import (
	"context"
	"errors"
	"testing"

	"github.com/hitoshi/sbadash/internal/model"
)

type mockPlanFetcher struct {
	plans []model.SubscriptionPlan
	err   error
}

func (m *mockPlanFetcher) FetchSubscriptionPlans(context.Context) ([]model.SubscriptionPlan, error) {
	return m.plans, m.err
}

var _ PlanFetcher = (*mockPlanFetcher)(nil)

func TestListPlans_KeepsOrderAndDerivesLabels(t *testing.T) {
	fetcher := &mockPlanFetcher{plans: []model.SubscriptionPlan{
		{Name: "Starter", Price: "$19", Period: "month"},
		{Name: "Professional", Price: "$49", Period: "month", Highlight: true},
		{Name: "Company", Price: "$99", Period: "month", Highlight: true},
	}}
	svc := NewService(fetcher)

	views, err := svc.ListPlans(context.Background())
	if err != nil {
		t.Fatalf("ListPlans() error = %v", err)
	}
	if len(views) != 3 {
		t.Fatalf("len = %d, want 3", len(views))
	}

	tests := []struct {
		name    string
		premium bool
		action  string
		badge   string
	}{
		{"Starter", false, "Upgrade plan", ""},
		{"Professional", false, "Current plan", ""},
		{"Company", true, "Current plan", "Most Popular"},
	}
	for i, tt := range tests {
		v := views[i]
		if v.Plan.Name != tt.name {
			t.Errorf("views[%d].Name = %q, want %q", i, v.Plan.Name, tt.name)
		}
		if v.Premium != tt.premium || v.ActionLabel != tt.action || v.Badge != tt.badge {
			t.Errorf("%s: got premium=%v action=%q badge=%q", tt.name, v.Premium, v.ActionLabel, v.Badge)
		}
	}
}

func TestListPlans_Error(t *testing.T) {
	backendErr := model.NewApplicationError(503, "")
	svc := NewService(&mockPlanFetcher{err: backendErr})

	_, err := svc.ListPlans(context.Background())
	if !errors.Is(err, backendErr) {
		t.Errorf("err = %v, want backend error", err)
	}
	if !model.IsCode(err, model.ErrCodeApplication) {
		t.Error("APIErrorとして取り出せること")
	}
}

func TestBadge_NonHighlightedCompany(t *testing.T) {
	p := model.SubscriptionPlan{Name: "Company"}
	if !IsPremium(p) {
		t.Error("Company はプレミアム")
	}
	if Badge(p) != "" {
		t.Errorf("Badge() = %q, want empty", Badge(p))
	}
	if ActionLabel(p) != "Upgrade plan" {
		t.Errorf("ActionLabel() = %q", ActionLabel(p))
	}
}
