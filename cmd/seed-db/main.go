// Command seed-db prepares a database for local development and demos:
// migrations, a randomly generated catalog with stock levels, a few discount
// rules, and one admin API key.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/catalog"
	"github.com/xenking/storefront-checkout/internal/domain/discount"
	"github.com/xenking/storefront-checkout/internal/repository"
)

func main() {
	var (
		databaseURL  string
		apiKey       string
		apiKeyPepper string
		products     int
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.IntVar(&products, "products", 20, "number of demo products to generate")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, apiKey, apiKeyPepper, products); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, apiKey, pepper string, products int) error {
	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := repository.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedCatalog(ctx, pool, products); err != nil {
		return errors.Wrap(err, "seed catalog")
	}
	if err := seedDiscounts(ctx, pool); err != nil {
		return errors.Wrap(err, "seed discounts")
	}
	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

func seedCatalog(ctx context.Context, pool *pgxpool.Pool, products int) error {
	slog.Info("generating demo catalog", slog.Int("products", products))

	catalogRepo := repository.NewCatalogRepository(pool)
	stockRepo := repository.NewStockRepository(pool)

	faker := gofakeit.New(42)

	for i := range products {
		productID := fmt.Sprintf("prod-%03d", i+1)
		variants := faker.Number(1, 3)

		for j := range variants {
			variantID := fmt.Sprintf("%s-v%d", productID, j+1)
			v := catalog.Variant{
				ProductID: productID,
				VariantID: variantID,
				Title:     faker.ProductName(),
				Price:     decimal.NewFromFloat(faker.Price(5, 200)).Round(2),
			}
			if err := catalogRepo.Upsert(ctx, v); err != nil {
				return err
			}

			// A few untracked lines so the pass-through path gets exercised.
			tracked := faker.Number(0, 9) > 0
			if err := stockRepo.SetLevel(ctx, variantID, faker.Number(0, 200), 5, tracked); err != nil {
				return err
			}
		}
	}

	return nil
}

func seedDiscounts(ctx context.Context, pool *pgxpool.Pool) error {
	slog.Info("seeding demo discounts")

	repo := repository.NewDiscountRepository(pool)
	endOfYear := time.Date(2026, 12, 31, 23, 59, 59, 0, time.UTC)

	rules := []discount.Rule{
		{
			Code:        "WELCOME10",
			Kind:        discount.KindPercentage,
			Value:       decimal.NewFromInt(10),
			Active:      true,
			Scope:       discount.ScopeAll,
			Description: "Welcome: 10% off",
		},
		{
			Code:          "BIGSPENDER",
			Kind:          discount.KindFixed,
			Value:         decimal.NewFromInt(15),
			MinOrderValue: decimal.NewFromInt(100),
			Active:        true,
			Scope:         discount.ScopeAll,
			Description:   "15 off orders over 100",
		},
		{
			Code:        "LAUNCH50",
			Kind:        discount.KindPercentage,
			Value:       decimal.NewFromInt(50),
			MaxUses:     100,
			EndsAt:      &endOfYear,
			Active:      true,
			Scope:       discount.ScopeAll,
			Description: "Launch: 50% off, first 100 orders",
		},
	}

	for _, rule := range rules {
		if err := repo.Insert(ctx, rule); err != nil {
			return err
		}
		slog.Info("seeded discount", slog.String("code", rule.Code), slog.String("description", rule.Description))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(apiKey))
	keyHash := hex.EncodeToString(mac.Sum(nil))

	repo := repository.NewAPIKeyRepository(pool)
	if err := repo.Upsert(ctx, keyHash, "Default admin key"); err != nil {
		return err
	}

	slog.Info("seeded API key", slog.String("name", "Default admin key"))
	return nil
}
