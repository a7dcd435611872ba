package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/carelink/carelink/internal/config"
	"github.com/carelink/carelink/internal/domain/doctorcode"
	"github.com/carelink/carelink/internal/platform/db"
	"github.com/carelink/carelink/migrations"
)

const migrationSchema = "public"

func main() {
	rootCmd := &cobra.Command{
		Use:   "carelink-server",
		Short: "Doctor-patient profile sharing API server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(doctorCodeCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

// openMigrator connects directly to postgres; the other drivers have no schema.
func openMigrator(ctx context.Context) (*db.Migrator, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	if cfg.StoreDriver != "postgres" {
		return nil, nil, fmt.Errorf("migrations only apply to STORE_DRIVER=postgres, got %q", cfg.StoreDriver)
	}
	if cfg.DatabaseURL == "" {
		return nil, nil, fmt.Errorf("DATABASE_URL is required")
	}
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, nil, err
	}
	return db.NewMigrator(pool, migrations.FS), pool.Close, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			fmt.Printf("Running migrations on schema: %s\n", schema)
			count, err := migrator.Up(ctx, schema)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Printf("Applied %d migration(s) successfully.\n", count)
			return nil
		},
	}
	upCmd.Flags().String("schema", migrationSchema, "Target schema for migrations")
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, _ := cmd.Flags().GetString("schema")
			ctx := context.Background()
			migrator, closeFn, err := openMigrator(ctx)
			if err != nil {
				return err
			}
			defer closeFn()

			statuses, err := migrator.Status(ctx, schema)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("Migration status for schema: %s\n", schema)
			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			fmt.Println("---------- ---------------------------------------- ---------- --------------------")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	statusCmd.Flags().String("schema", migrationSchema, "Target schema for migrations")
	cmd.AddCommand(statusCmd)

	return cmd
}

func doctorCodeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor-code",
		Short: "Generate or check doctor codes",
	}

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "Print random doctor codes (no uniqueness check)",
		RunE: func(cmd *cobra.Command, args []string) error {
			count, _ := cmd.Flags().GetInt("count")
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			g := doctorcode.NewGenerator(nil)
			for i := 0; i < count; i++ {
				fmt.Fprintln(cmd.OutOrStdout(), g.Generate())
			}
			return nil
		},
	}
	generateCmd.Flags().Int("count", 1, "Number of codes to print")
	cmd.AddCommand(generateCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "validate <code>",
		Short: "Check a code against the doctor code format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code := doctorcode.Normalize(args[0])
			if !doctorcode.ValidateFormat(code) {
				return fmt.Errorf("%q is not a valid doctor code", args[0])
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s is valid\n", code)
			return nil
		},
	})

	return cmd
}
