// Command seed-db applies migrations and loads demo marketplace data:
// products with stock levels, a handful of coupons, and per-vendor
// commission rate overrides.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/vendora/internal/domain/catalog"
	"github.com/xenking/vendora/internal/domain/coupon"
	"github.com/xenking/vendora/internal/domain/money"
	"github.com/xenking/vendora/internal/storage/postgres"
)

type productJSON struct {
	ID              string          `json:"id"`
	VendorID        string          `json:"vendor_id"`
	Name            string          `json:"name"`
	SKU             string          `json:"sku"`
	Category        string          `json:"category"`
	Price           decimal.Decimal `json:"price"`
	Currency        string          `json:"currency"`
	TrackInventory  bool            `json:"track_inventory"`
	AllowBackorders bool            `json:"allow_backorders"`
	Stock           struct {
		Available int `json:"available"`
		Threshold int `json:"threshold"`
	} `json:"stock"`
}

func main() {
	var (
		databaseURL  string
		productsFile string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, pool, productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedVendorRates(ctx, pool); err != nil {
		return errors.Wrap(err, "seed vendor rates")
	}

	return nil
}

func seedProducts(ctx context.Context, pool *pgxpool.Pool, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))

	repo := postgres.NewProductRepository(pool)
	ledger := postgres.NewStockLedger(pool, 15*time.Minute)

	for _, p := range products {
		price, err := money.New(p.Price, p.Currency)
		if err != nil {
			return errors.Wrapf(err, "price for product %s", p.ID)
		}

		if err := repo.Upsert(ctx, &catalog.Snapshot{
			ProductID:       p.ID,
			VendorID:        p.VendorID,
			Name:            p.Name,
			SKU:             p.SKU,
			Category:        p.Category,
			Price:           price,
			TrackInventory:  p.TrackInventory,
			AllowBackorders: p.AllowBackorders,
		}); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}

		if err := ledger.Enroll(ctx, p.ID, p.Stock.Available, p.Stock.Threshold); err != nil {
			return errors.Wrapf(err, "enroll stock for product %s", p.ID)
		}

		slog.Info("upserted product", slog.String("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, repo *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	until := time.Now().AddDate(1, 0, 0)
	rules := []coupon.Rule{
		{
			Code:        "WELCOME10",
			Type:        coupon.TypePercentage,
			Value:       decimal.NewFromInt(10),
			MaxDiscount: money.MustParse("50", "USD"),
			Active:      true,
			Description: "Welcome: 10% off, up to $50",
		},
		{
			Code:        "TENBUCKS",
			Type:        coupon.TypeFixed,
			Value:       decimal.NewFromInt(10),
			MinAmount:   money.MustParse("50", "USD"),
			Active:      true,
			Description: "$10 off orders over $50",
		},
		{
			Code:        "SHIPFREE",
			Type:        coupon.TypeFreeShipping,
			ValidUntil:  &until,
			Active:      true,
			Description: "Free shipping on any order",
		},
	}

	for i := range rules {
		if err := repo.Upsert(ctx, &rules[i], "USD"); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", rules[i].Code)
		}

		slog.Info("upserted coupon", slog.String("code", rules[i].Code), slog.String("description", rules[i].Description))
	}

	return nil
}

func seedVendorRates(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding vendor commission rates")

	rates := postgres.NewVendorRates(pool, decimal.RequireFromString("0.15"))
	overrides := map[string]string{
		"vendor-acme":  "0.12",
		"vendor-globe": "0.18",
	}

	for vendorID, rate := range overrides {
		if err := rates.SetRate(ctx, vendorID, decimal.RequireFromString(rate)); err != nil {
			return errors.Wrapf(err, "set rate for %s", vendorID)
		}

		slog.Info("set vendor rate", slog.String("vendor_id", vendorID), slog.String("rate", rate))
	}

	return nil
}
