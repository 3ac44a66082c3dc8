package payment

import (
	"github.com/smallbiznis/memberledger/internal/payment/adapters"
	"github.com/smallbiznis/memberledger/internal/payment/adapters/paddle"
	"github.com/smallbiznis/memberledger/internal/payment/repository"
	paymentservice "github.com/smallbiznis/memberledger/internal/payment/service"
	"github.com/smallbiznis/memberledger/internal/payment/webhook"
	"go.uber.org/fx"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(func() *adapters.Registry {
		return adapters.NewRegistry(
			paddle.NewFactory(),
		)
	}),
	fx.Provide(paymentservice.NewService),
	fx.Provide(webhook.NewService),
)
