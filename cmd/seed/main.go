// Package main seeds the database with demo stores, products and opening stock,
// and prints development tokens for the seeded users.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	appctx "storeflow/internal/core/context"
	"storeflow/internal/core/id"
	"storeflow/internal/core/types"
	"storeflow/internal/domain/auth"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/internal/infrastructure/storage/postgres/migrations"
	"storeflow/pkg/config"
	"storeflow/pkg/logger"
)

const devJWTSecret = "storeflow-dev-secret"

type storeSeed struct {
	code string
	name string
}

type productSeed struct {
	sku       string
	name      string
	unit      string
	unitValue string
}

var demoStores = []storeSeed{
	{"WH-01", "Central Warehouse"},
	{"ST-01", "Downtown Store"},
	{"ST-02", "Riverside Store"},
}

var demoProducts = []productSeed{
	{"SKU-1001", "Espresso Beans 1kg", "kg", "18.50"},
	{"SKU-1002", "Oat Milk 1L", "l", "2.10"},
	{"SKU-1003", "Paper Cup 12oz", "pcs", "0.07"},
	{"SKU-1004", "Cane Sugar Sticks", "pack", "3.40"},
	{"SKU-1005", "Chocolate Syrup", "l", "9.90"},
}

type userSeed struct {
	email  string
	roles  []string
	stores []string
}

var demoUsers = []userSeed{
	{"admin@storeflow.local", []string{"admin"}, []string{"WH-01", "ST-01", "ST-02"}},
	{"warehouse@storeflow.local", []string{"manager"}, []string{"WH-01"}},
	{"downtown@storeflow.local", []string{"clerk"}, []string{"ST-01"}},
	{"riverside@storeflow.local", []string{"clerk"}, []string{"ST-02"}},
}

func main() {
	cfg, err := config.Load(os.Getenv("STOREFLOW_CONFIG"))
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:       "info",
		Development: true,
	})
	if err != nil {
		fmt.Printf("failed to create logger: %v\n", err)
		os.Exit(1)
	}

	ctx := logger.WithLogger(context.Background(), log)

	if cfg.Database.MigrateOnStart {
		if err := migrations.Up(ctx, cfg.Database.URL); err != nil {
			log.Fatalw("failed to apply migrations", "error", err)
		}
	}

	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(cfg.Database))
	if err != nil {
		log.Fatalw("failed to connect to database", "error", err)
	}
	defer pool.Close()

	log.Info("connected to database")

	storeIDs, err := seedStores(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed stores", "error", err)
	}

	productIDs, err := seedProducts(ctx, pool, log)
	if err != nil {
		log.Fatalw("failed to seed products", "error", err)
	}

	// Opening stock sits in the warehouse only
	if os.Getenv("SEED_OPENING_STOCK") != "false" {
		if err := seedOpeningStock(ctx, pool, storeIDs["WH-01"], productIDs); err != nil {
			log.Warnw("failed to seed opening stock", "error", err)
		}
	}

	secret := cfg.JWT.Secret
	if secret == "" {
		secret = devJWTSecret
	}
	jwtService := auth.NewJWTService(auth.JWTConfig{
		Secret:         secret,
		Issuer:         cfg.JWT.Issuer,
		AccessTokenTTL: 24 * time.Hour,
	})
	for _, u := range demoUsers {
		user := appctx.UserContext{
			UserID: u.email,
			Email:  u.email,
			Roles:  u.roles,
		}
		for _, code := range u.stores {
			user.StoreIDs = append(user.StoreIDs, storeIDs[code].String())
		}
		token, expires, err := jwtService.GenerateAccessToken(user)
		if err != nil {
			log.Warnw("failed to issue token", "user", u.email, "error", err)
			continue
		}
		fmt.Printf("%s (expires %s)\n  %s\n", u.email, expires.Format(time.RFC3339), token)
	}

	log.Info("seeding completed successfully")
}

// seedStores inserts missing stores and returns the ids of all demo stores by code.
func seedStores(ctx context.Context, pool *postgres.Pool, log *logger.Logger) (map[string]id.ID, error) {
	out := make(map[string]id.ID, len(demoStores))
	for _, s := range demoStores {
		storeID := id.New()
		tag, err := pool.Pool.Exec(ctx, `
			INSERT INTO stores (id, code, name)
			VALUES ($1, $2, $3)
			ON CONFLICT (code) DO NOTHING
		`, storeID, s.code, s.name)
		if err != nil {
			return nil, fmt.Errorf("insert store %s: %w", s.code, err)
		}

		if tag.RowsAffected() == 0 {
			if err := pool.Pool.QueryRow(ctx, `SELECT id FROM stores WHERE code = $1`, s.code).Scan(&storeID); err != nil {
				return nil, fmt.Errorf("fetch store %s: %w", s.code, err)
			}
			log.Infow("store already exists", "code", s.code)
		}
		out[s.code] = storeID
	}
	return out, nil
}

type seededProduct struct {
	id        id.ID
	unitValue types.Money
}

func seedProducts(ctx context.Context, pool *postgres.Pool, log *logger.Logger) ([]seededProduct, error) {
	out := make([]seededProduct, 0, len(demoProducts))
	for _, p := range demoProducts {
		productID := id.New()
		tag, err := pool.Pool.Exec(ctx, `
			INSERT INTO products (id, sku, name, unit)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (sku) DO NOTHING
		`, productID, p.sku, p.name, p.unit)
		if err != nil {
			return nil, fmt.Errorf("insert product %s: %w", p.sku, err)
		}

		if tag.RowsAffected() == 0 {
			err := pool.Pool.QueryRow(ctx, `SELECT id FROM products WHERE sku = $1`, p.sku).Scan(&productID)
			if errors.Is(err, pgx.ErrNoRows) {
				log.Warnw("product vanished after conflict", "sku", p.sku)
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("fetch product %s: %w", p.sku, err)
			}
		}
		out = append(out, seededProduct{id: productID, unitValue: decimal.RequireFromString(p.unitValue)})
	}
	return out, nil
}

// seedOpeningStock gives every product 100 units at storeID unless a balance already exists.
func seedOpeningStock(ctx context.Context, pool *postgres.Pool, storeID id.ID, products []seededProduct) error {
	if id.IsNil(storeID) {
		return errors.New("warehouse store not seeded")
	}

	opening := types.Qty(100)
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`
			INSERT INTO stock_balances (store_id, product_id, on_hand, value, updated_at)
			VALUES ($1, $2, $3, $4, NOW())
			ON CONFLICT (store_id, product_id) DO NOTHING
		`, storeID, p.id, opening.Int64Scaled(), opening.Times(p.unitValue))
	}
	return pool.Pool.SendBatch(ctx, batch).Close()
}
