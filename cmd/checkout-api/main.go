package main

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	appkg "github.com/xenking/vendora/internal/app"
)

func main() {
	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		cfg, err := appkg.LoadConfig()
		if err != nil {
			return err
		}
		taxRate, err := decimal.NewFromString(cfg.TaxRate)
		if err != nil {
			return errors.Wrap(err, "parse tax rate")
		}
		return appkg.Run(ctx, lg, m, cfg, appkg.Capabilities{
			Tax:      flatRateTax{rate: taxRate},
			Shipping: tableShipping{},
			Payments: sandboxGateway{},
		})
	})
}
