// Package main provides the storeflow operator CLI: migrations, store activation
// and development access tokens.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/spf13/cobra"

	appctx "storeflow/internal/core/context"
	"storeflow/internal/domain/auth"
	"storeflow/internal/infrastructure/storage/postgres"
	"storeflow/internal/infrastructure/storage/postgres/migrations"
	"storeflow/internal/infrastructure/storage/postgres/reference_repo"
	"storeflow/pkg/config"
)

const devJWTSecret = "storeflow-dev-secret"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// app carries the loaded config into subcommands.
type app struct {
	cfg config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "admin",
		Short:         "storeflow operator commands",
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(os.Getenv("STOREFLOW_CONFIG"))
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			a.cfg = cfg
			return nil
		},
	}

	root.AddCommand(
		a.migrateCmd(),
		a.storesCmd(),
		a.tokenCmd(),
		a.storeActiveCmd("activate-store", true),
		a.storeActiveCmd("deactivate-store", false),
	)
	return root
}

func (a *app) pool(ctx context.Context) (*postgres.Pool, error) {
	pool, err := postgres.NewPool(ctx, postgres.PoolConfigFrom(a.cfg.Database))
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := migrations.Up(cmd.Context(), a.cfg.Database.URL); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Migrations applied")
			return nil
		},
	}
}

func (a *app) storesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stores",
		Short: "List all stores",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			var stores []reference_repo.Store
			if err := pgxscan.Select(ctx, pool, &stores,
				`SELECT id, code, name, is_active FROM stores ORDER BY code`); err != nil {
				return fmt.Errorf("list stores: %w", err)
			}
			printStores(cmd.OutOrStdout(), stores)
			return nil
		},
	}
}

func printStores(w io.Writer, stores []reference_repo.Store) {
	if len(stores) == 0 {
		fmt.Fprintln(w, "No stores found")
		return
	}
	fmt.Fprintf(w, "%-36s %-12s %-30s %-8s\n", "STORE_ID", "CODE", "NAME", "ACTIVE")
	fmt.Fprintln(w, strings.Repeat("-", 90))
	for _, s := range stores {
		fmt.Fprintf(w, "%-36s %-12s %-30s %-8t\n", s.ID, truncate(s.Code, 12), truncate(s.Name, 30), s.IsActive)
	}
}

type tokenOptions struct {
	user   string
	email  string
	roles  []string
	stores []string
	ttl    time.Duration
}

func (a *app) tokenCmd() *cobra.Command {
	var opts tokenOptions
	cmd := &cobra.Command{
		Use:     "token",
		Short:   "Issue an access token",
		Example: "  admin token --user alice --roles manager --stores WH-01,ST-01 --ttl 8h",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var storeIDs []string
			if len(opts.stores) > 0 {
				pool, err := a.pool(ctx)
				if err != nil {
					return err
				}
				defer pool.Close()

				if err := pgxscan.Select(ctx, pool, &storeIDs,
					`SELECT id::text FROM stores WHERE code = ANY($1) ORDER BY code`, opts.stores); err != nil {
					return fmt.Errorf("resolve stores: %w", err)
				}
				if len(storeIDs) != len(opts.stores) {
					return fmt.Errorf("unknown store code in %s", strings.Join(opts.stores, ","))
				}
			}

			token, expires, err := a.issue(opts, storeIDs)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# expires %s\n%s\n", expires.Format(time.RFC3339), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.user, "user", "", "User id placed in the token")
	cmd.Flags().StringVar(&opts.email, "email", "", "User email")
	cmd.Flags().StringSliceVar(&opts.roles, "roles", nil, "Roles (comma separated)")
	cmd.Flags().StringSliceVar(&opts.stores, "stores", nil, "Assigned store codes (comma separated)")
	cmd.Flags().DurationVar(&opts.ttl, "ttl", 0, "Token lifetime, defaults to jwt.ttl")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func (a *app) issue(opts tokenOptions, storeIDs []string) (string, time.Time, error) {
	if strings.TrimSpace(opts.user) == "" {
		return "", time.Time{}, errors.New("--user must not be blank")
	}

	secret := a.cfg.JWT.Secret
	if secret == "" {
		secret = devJWTSecret
	}
	ttl := a.cfg.JWT.TTL
	if opts.ttl > 0 {
		ttl = opts.ttl
	}

	service := auth.NewJWTService(auth.JWTConfig{
		Secret:         secret,
		Issuer:         a.cfg.JWT.Issuer,
		AccessTokenTTL: ttl,
	})
	return service.GenerateAccessToken(appctx.UserContext{
		UserID:   opts.user,
		Email:    opts.email,
		Roles:    opts.roles,
		StoreIDs: storeIDs,
	})
}

func (a *app) storeActiveCmd(use string, active bool) *cobra.Command {
	state := "deactivated"
	short := "Mark a store inactive"
	if active {
		state = "activated"
		short = "Mark a store active"
	}

	return &cobra.Command{
		Use:   use + " <code>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			pool, err := a.pool(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			tag, err := pool.Exec(ctx, `UPDATE stores SET is_active = $2 WHERE code = $1`, args[0], active)
			if err != nil {
				return fmt.Errorf("update store: %w", err)
			}
			if tag.RowsAffected() == 0 {
				return fmt.Errorf("store %s not found", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Store '%s' %s\n", args[0], state)
			return nil
		},
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
