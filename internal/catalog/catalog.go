// Package catalog loads the price-plan table from configuration. The
// catalog is injected read-only state, not a package global, so plans can
// change without redeploying order creation.
package catalog

import (
	"errors"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
	"github.com/pagehub/billing/internal/catalog/domain"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

func DefaultPlans() []domain.PricePlan {
	return []domain.PricePlan{
		{
			ID:         "PRO_MONTHLY",
			Title:      "PageHub Pro (monthly)",
			Amount:     2990,
			Currency:   "CNY",
			PeriodDays: 30,
			Entitlements: []domain.PlanEntitlement{
				{Key: "membership.level", Value: "PRO"},
			},
		},
		{
			ID:         "PRO_YEARLY",
			Title:      "PageHub Pro (yearly)",
			Amount:     29900,
			Currency:   "CNY",
			PeriodDays: 365,
			Entitlements: []domain.PlanEntitlement{
				{Key: "membership.level", Value: "PRO"},
			},
		},
	}
}

// Holder exposes the current catalog and hot-reloads it when the backing
// config file changes. Readers always see a complete snapshot.
type Holder struct {
	log     *zap.Logger
	current atomic.Value // holds map[string]domain.PricePlan
}

// NewHolder reads catalog.yml (volume mount, system config, or cwd) and
// falls back to the compiled-in plans when no file exists.
func NewHolder(log *zap.Logger) (*Holder, error) {
	v := viper.New()

	v.SetConfigName("catalog")
	v.SetConfigType("yml")
	v.AddConfigPath("/var/lib/pagehub/config")
	v.AddConfigPath("/etc/pagehub")
	v.AddConfigPath(".")

	v.SetEnvPrefix("PAGEHUB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	holder := &Holder{log: log.Named("catalog")}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
		holder.store(DefaultPlans())
		return holder, nil
	}

	plans, err := unmarshalPlans(v)
	if err != nil {
		return nil, err
	}
	holder.store(plans)

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		updated, err := unmarshalPlans(v)
		if err != nil {
			holder.log.Warn("catalog reload failed, keeping current plans", zap.Error(err))
			return
		}
		holder.store(updated)
		holder.log.Info("catalog reloaded", zap.String("file", e.Name), zap.Int("plans", len(updated)))
	})

	return holder, nil
}

// NewStaticHolder builds a holder over fixed plans. Used in tests.
func NewStaticHolder(plans []domain.PricePlan) *Holder {
	holder := &Holder{log: zap.NewNop()}
	holder.store(plans)
	return holder
}

func (h *Holder) store(plans []domain.PricePlan) {
	table := make(map[string]domain.PricePlan, len(plans))
	for _, plan := range plans {
		table[strings.ToUpper(strings.TrimSpace(plan.ID))] = plan
	}
	h.current.Store(table)
}

// Plan resolves a price identifier case-insensitively.
func (h *Holder) Plan(priceID string) (domain.PricePlan, bool) {
	table := h.current.Load().(map[string]domain.PricePlan)
	plan, ok := table[strings.ToUpper(strings.TrimSpace(priceID))]
	return plan, ok
}

func unmarshalPlans(v *viper.Viper) ([]domain.PricePlan, error) {
	var plans []domain.PricePlan
	if err := v.UnmarshalKey("catalog.plans", &plans); err != nil {
		return nil, err
	}
	if len(plans) == 0 {
		return nil, errors.New("catalog.plans cannot be empty")
	}
	for _, plan := range plans {
		if strings.TrimSpace(plan.ID) == "" || plan.Amount <= 0 || strings.TrimSpace(plan.Currency) == "" {
			return nil, errors.New("catalog plan missing id, amount or currency")
		}
	}
	return plans, nil
}
