package app

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/spf13/cobra"

	"github.com/stacklok/gateway-release-server/database"
	"github.com/stacklok/gateway-release-server/internal/config"
)

func newMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Database migration tool",
		Long:  `Database migration tool for the publish event log schema. Use with 'up' or 'down' subcommands.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Usage()
		},
	}

	cmd.PersistentFlags().BoolP("yes", "y", false, "Answer yes to all questions")
	cmd.PersistentFlags().UintP("num-steps", "n", 0, "Number of steps to migrate (0 = all)")
	addConfigFlag(cmd, true)

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending database migrations",
			Long: `Apply all pending database migrations to bring the schema up to date.
This command reads the database connection parameters from the config file.`,
			RunE: runMigrateUp,
		},
		&cobra.Command{
			Use:   "down",
			Short: "Migrate the database down",
			Long: `Migrate the database schema down by reverting migrations.
WARNING: This operation can result in data loss. Use with caution.

Examples:
  # Migrate down by 1 step
  gw-release migrate down --config config.yaml --num-steps 1 --yes

  # Migrate down all the way (WARNING: destroys all publish events)
  gw-release migrate down --config config.yaml --yes`,
			RunE: runMigrateDown,
		},
	)
	return cmd
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, conn, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeDatabaseConnection(conn)

	if err := confirm(cmd, fmt.Sprintf("About to apply migrations to database %s@%s:%d/%s",
		cfg.Database.User, cfg.Database.Host, cfg.Database.Port, cfg.Database.Database)); err != nil {
		return err
	}

	slog.Info("Applying database migrations")
	if err := database.MigrateUp(ctx, conn); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	logVersion(ctx, conn)
	return nil
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}

	cfg, conn, err := setupMigration(cmd)
	if err != nil {
		return err
	}
	defer closeDatabaseConnection(conn)

	prompt := fmt.Sprintf("About to revert %d migration(s) on database %s", numSteps, cfg.Database.Database)
	steps := int(numSteps) //nolint:gosec // bounded by the flag value
	if numSteps == 0 {
		prompt = fmt.Sprintf("About to revert ALL migrations on database %s, deleting every publish event",
			cfg.Database.Database)
		steps = math.MaxInt
	}
	if err := confirm(cmd, prompt); err != nil {
		return err
	}

	if err := database.MigrateDown(ctx, conn, steps); err != nil {
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	logVersion(ctx, conn)
	return nil
}

// setupMigration loads the configuration and connects to its database
func setupMigration(cmd *cobra.Command) (*config.Config, *pgx.Conn, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	if cfg.Database == nil {
		return nil, nil, fmt.Errorf("database configuration is required")
	}

	connString, err := cfg.Database.GetConnectionString()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build connection string: %w", err)
	}

	conn, err := pgx.Connect(cmd.Context(), connString)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return cfg, conn, nil
}

func closeDatabaseConnection(conn *pgx.Conn) {
	if err := conn.Close(context.Background()); err != nil {
		slog.Error("Error closing database connection", "error", err)
	}
}

// errCancelled is returned when the user declines a prompt
var errCancelled = errors.New("migration cancelled by user")

// confirm asks before a migration unless --yes was given
func confirm(cmd *cobra.Command, prompt string) error {
	yes, err := cmd.Flags().GetBool("yes")
	if err != nil {
		return fmt.Errorf("failed to get yes flag: %w", err)
	}
	if yes {
		return nil
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s. Continue? (yes/no): ", prompt)
	response, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && response == "" {
		return fmt.Errorf("failed to read user input: %w", err)
	}
	switch strings.ToLower(strings.TrimSpace(response)) {
	case "yes", "y":
		return nil
	default:
		return errCancelled
	}
}

func logVersion(ctx context.Context, conn *pgx.Conn) {
	version, err := database.Version(ctx, conn)
	if err != nil {
		slog.Warn("Unable to get migration version", "error", err)
		return
	}
	slog.Info("Migrations complete", "version", version)
}
