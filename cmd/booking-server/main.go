package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/clinic/booking/internal/config"
	"github.com/clinic/booking/internal/domain/identity"
	"github.com/clinic/booking/internal/platform/auth"
	"github.com/clinic/booking/internal/platform/db"
	"github.com/clinic/booking/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "booking-server",
		Short:        "Clinic appointment booking API",
		SilenceUsage: true,
	}
	root.AddCommand(serveCmd())
	root.AddCommand(migrateCmd())
	root.AddCommand(remindersCmd())
	root.AddCommand(accountCmd())
	return root
}

func newLogger(env string) zerolog.Logger {
	if env == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Str("service", "booking").Logger()
}

// loadConfig loads and validates configuration and builds the logger.
func loadConfig() (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}
	return cfg, newLogger(cfg.Env), nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the booking API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			return runServer(cmd.Context(), cfg, logger)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			count, err := db.NewMigrator(pool, migrations.FS).Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s) successfully.\n", count)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			statuses, err := db.NewMigrator(pool, migrations.FS).Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}
			printMigrationStatus(cmd, statuses)
			return nil
		},
	})

	return cmd
}

func printMigrationStatus(cmd *cobra.Command, statuses []db.MigrationStatus) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
	for _, s := range statuses {
		status, appliedAt := "pending", ""
		if s.Applied {
			status = "applied"
			if s.AppliedAt != nil {
				appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
			}
		}
		fmt.Fprintf(out, "%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
	}
}

func remindersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reminders",
		Short: "Appointment reminder tasks",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "send",
		Short: "Run one reminder sweep and print the counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.scheduling.SweepReminders(ctx, time.Now())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	})
	return cmd
}

func accountCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Manage directory accounts",
	}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a doctor or patient account",
		RunE: func(cmd *cobra.Command, args []string) error {
			role, _ := cmd.Flags().GetString("role")
			email, _ := cmd.Flags().GetString("email")
			name, _ := cmd.Flags().GetString("name")
			tokenTTL, _ := cmd.Flags().GetDuration("token-ttl")

			cfg, err := config.Load()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			pool, err := db.NewPool(ctx, poolConfig(cfg))
			if err != nil {
				return err
			}
			defer pool.Close()

			acct := &identity.Account{Role: role, Email: email, DisplayName: name}
			if err := identity.NewService(identity.NewAccountRepoPG(pool)).CreateAccount(ctx, acct); err != nil {
				return err
			}
			return printAccount(cmd, cfg, acct, tokenTTL)
		},
	}
	createCmd.Flags().String("role", identity.RolePatient, "Account role (doctor or patient)")
	createCmd.Flags().String("email", "", "Email address")
	createCmd.Flags().String("name", "", "Display name")
	createCmd.Flags().Duration("token-ttl", 24*time.Hour, "Lifetime of the printed access token")
	createCmd.MarkFlagRequired("email")
	createCmd.MarkFlagRequired("name")

	cmd.AddCommand(createCmd)
	return cmd
}

// printAccount prints the new account id and, when a signing key is
// configured, a bearer token for it.
func printAccount(cmd *cobra.Command, cfg *config.Config, acct *identity.Account, ttl time.Duration) error {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created %s %s (%s)\n", acct.Role, acct.ID, acct.Email)
	if cfg.AuthSigningKey == "" {
		fmt.Fprintf(out, "No AUTH_SIGNING_KEY set; in development send %s: %s and %s: %s\n",
			auth.HeaderUserID, acct.ID, auth.HeaderUserRole, acct.Role)
		return nil
	}
	token, err := auth.IssueToken(jwtConfig(cfg), acct.ID.String(), acct.Role, ttl)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Token: %s\n", token)
	return nil
}

func poolConfig(cfg *config.Config) db.PoolConfig {
	return db.PoolConfig{URL: cfg.DatabaseURL, MaxConns: cfg.DBMaxConns, MinConns: cfg.DBMinConns}
}

func jwtConfig(cfg *config.Config) auth.JWTConfig {
	return auth.JWTConfig{
		Issuer:     cfg.AuthIssuer,
		SigningKey: []byte(cfg.AuthSigningKey),
		Skipper:    auth.AuthSkipper,
	}
}
