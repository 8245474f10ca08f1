// Package domain defines the price-plan catalog types.
package domain

// PlanEntitlement seeds one capability grant issued when a plan is paid.
type PlanEntitlement struct {
	Key   string `json:"key" mapstructure:"key"`
	Value string `json:"value" mapstructure:"value"`
}

// PricePlan is one purchasable plan. Plans are configuration, not rows:
// orders snapshot the plan at creation time.
type PricePlan struct {
	ID           string            `json:"id" mapstructure:"id"`
	Title        string            `json:"title" mapstructure:"title"`
	Amount       int64             `json:"amount" mapstructure:"amount"`
	Currency     string            `json:"currency" mapstructure:"currency"`
	PeriodDays   int               `json:"period_days" mapstructure:"periodDays"`
	Entitlements []PlanEntitlement `json:"entitlements" mapstructure:"entitlements"`
}

// LineItem is the per-order snapshot of a plan.
type LineItem struct {
	PriceID      string            `json:"price_id"`
	Title        string            `json:"title"`
	Quantity     int               `json:"quantity"`
	UnitAmount   int64             `json:"unit_amount"`
	TotalAmount  int64             `json:"total_amount"`
	PeriodDays   int               `json:"period_days"`
	Entitlements []PlanEntitlement `json:"entitlements"`
}

// BuildLineItems produces the single line-item snapshot embedded into an
// order at creation time.
func BuildLineItems(plan PricePlan) []LineItem {
	return []LineItem{
		{
			PriceID:      plan.ID,
			Title:        plan.Title,
			Quantity:     1,
			UnitAmount:   plan.Amount,
			TotalAmount:  plan.Amount,
			PeriodDays:   plan.PeriodDays,
			Entitlements: plan.Entitlements,
		},
	}
}
