package billing

import (
	"github.com/pagehub/billing/internal/billing/repository"
	"github.com/pagehub/billing/internal/billing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
