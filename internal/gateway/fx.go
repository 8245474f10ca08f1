package gateway

import (
	"github.com/pagehub/billing/internal/config"
	"github.com/pagehub/billing/internal/gateway/alipay"
	"github.com/pagehub/billing/internal/gateway/wechatpay"
	"go.uber.org/fx"
)

var Module = fx.Module("gateway",
	fx.Provide(func(cfg config.Config) *Registry {
		return NewRegistry(
			alipay.NewAdapter(cfg.AlipaySecret),
			wechatpay.NewAdapter(cfg.WechatPaySecret),
		)
	}),
)
