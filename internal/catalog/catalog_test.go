package catalog

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pagehub/billing/internal/catalog/domain"
)

func TestPlanLookupCaseInsensitive(t *testing.T) {
	holder := NewStaticHolder([]domain.PricePlan{
		{ID: "PRO_MONTHLY", Title: "Pro", Amount: 2990, Currency: "CNY", PeriodDays: 30},
	})

	plan, ok := holder.Plan("pro_monthly")
	require.True(t, ok)
	require.Equal(t, "PRO_MONTHLY", plan.ID)

	plan, ok = holder.Plan("  PRO_MONTHLY  ")
	require.True(t, ok)
	require.Equal(t, int64(2990), plan.Amount)

	_, ok = holder.Plan("ENTERPRISE")
	require.False(t, ok)
}

func TestDefaultPlansCarryEntitlements(t *testing.T) {
	for _, plan := range DefaultPlans() {
		require.NotEmpty(t, plan.ID)
		require.Positive(t, plan.Amount)
		require.Equal(t, "CNY", plan.Currency)
		require.Positive(t, plan.PeriodDays)
		require.NotEmpty(t, plan.Entitlements)
	}
}

func TestBuildLineItemsSnapshot(t *testing.T) {
	plan := domain.PricePlan{
		ID: "PRO_MONTHLY", Title: "Pro", Amount: 2990, Currency: "CNY", PeriodDays: 30,
		Entitlements: []domain.PlanEntitlement{{Key: "membership.level", Value: "PRO"}},
	}

	items := domain.BuildLineItems(plan)
	require.Len(t, items, 1)
	require.Equal(t, "PRO_MONTHLY", items[0].PriceID)
	require.Equal(t, 1, items[0].Quantity)
	require.Equal(t, int64(2990), items[0].UnitAmount)
	require.Equal(t, int64(2990), items[0].TotalAmount)
	require.Equal(t, 30, items[0].PeriodDays)
	require.Len(t, items[0].Entitlements, 1)
}
