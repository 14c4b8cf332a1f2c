package cmd

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"business-api/migrations"
)

const (
	targetControlPlane = "control-plane"
	targetTenant       = "tenant"
)

// migrateCmd накатывает миграции на справочник компаний или на БД одной компании.
var migrateCmd = &cobra.Command{
	Use:   "migrate [up|down|status] [version]",
	Short: "Миграции БД",
	Long: `Миграции справочника компаний (--target control-plane) или схемы компании (--target tenant).
Без --dsn берётся CONTROL_PLANE_DSN; для --target tenant можно указать --company, тогда DSN берётся из справочника.`,
	Args: migrateArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().String("dsn", "", "строка подключения PostgreSQL")
	migrateCmd.Flags().String("target", targetControlPlane, "control-plane или tenant")
	migrateCmd.Flags().String("company", "", "код компании для --target tenant")
	migrateCmd.Flags().StringP("format", "f", "text", "формат вывода: text или json")

	rootCmd.AddCommand(migrateCmd)
}

func migrateArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.RangeArgs(0, 2)(cmd, args); err != nil {
		return err
	}
	if len(args) == 0 {
		return nil
	}
	switch args[0] {
	case "up", "down", "status":
	default:
		return fmt.Errorf("неизвестная команда %q", args[0])
	}
	if len(args) == 2 {
		if args[0] != "down" {
			return fmt.Errorf("версию можно указать только для down")
		}
		if v, err := strconv.Atoi(args[1]); err != nil || v < 0 {
			return fmt.Errorf("неверная версия %q", args[1])
		}
	}
	return nil
}

func migrationsFor(target string) (fs.FS, error) {
	switch target {
	case targetControlPlane:
		return fs.Sub(migrations.ControlPlane, "controlplane")
	case targetTenant:
		return fs.Sub(migrations.Tenant, "tenant")
	}
	return nil, fmt.Errorf("неизвестная цель миграций %q", target)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	command := "up"
	if len(args) > 0 {
		command = args[0]
	}
	version := -1
	if len(args) > 1 {
		version, _ = strconv.Atoi(args[1])
	}

	dsn, _ := cmd.Flags().GetString("dsn")
	target, _ := cmd.Flags().GetString("target")
	company, _ := cmd.Flags().GetString("company")
	format, _ := cmd.Flags().GetString("format")

	ctx := cmd.Context()
	if dsn == "" {
		resolved, err := resolveMigrationDSN(ctx, target, company)
		if err != nil {
			return err
		}
		dsn = resolved
	}

	fsys, err := migrationsFor(target)
	if err != nil {
		return err
	}

	connCfg, err := pgx.ParseConfig(dsn)
	if err != nil {
		return fmt.Errorf("неверная строка подключения: %w", err)
	}
	db := stdlib.OpenDB(*connCfg)
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("БД недоступна: %w", err)
	}

	return migrate(ctx, db, fsys, command, version, format, cmd.OutOrStdout())
}

// resolveMigrationDSN берёт DSN справочника из конфига, а DSN компании - из самого справочника.
func resolveMigrationDSN(ctx context.Context, target, company string) (string, error) {
	cfg, logger, _, err := setup(ctx)
	if err != nil {
		return "", err
	}
	if target != targetTenant {
		return cfg.ControlPlane.DSN, nil
	}
	if company == "" {
		return "", fmt.Errorf("для --target tenant нужен --dsn или --company")
	}
	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return "", err
	}
	defer app.Close()

	tenant, err := app.directory.GetTenantByCode(ctx, company)
	if err != nil {
		return "", err
	}
	return tenant.DatabaseDSN, nil
}

func migrate(ctx context.Context, db *sql.DB, fsys fs.FS, command string, version int, format string, out io.Writer) error {
	var opts []goose.ProviderOption
	if format == "json" {
		opts = append(opts, goose.WithLogger(goose.NopLogger()))
	}
	provider, err := goose.NewProvider(goose.DialectPostgres, db, fsys, opts...)
	if err != nil {
		return fmt.Errorf("не удалось создать провайдер миграций: %w", err)
	}

	switch command {
	case "up":
		results, err := provider.Up(ctx)
		if err != nil {
			return err
		}
		return printResults(out, format, results)
	case "down":
		var results []*goose.MigrationResult
		if version < 0 {
			var res *goose.MigrationResult
			res, err = provider.Down(ctx)
			if res != nil {
				results = append(results, res)
			}
		} else {
			results, err = provider.DownTo(ctx, int64(version))
		}
		if err != nil {
			return err
		}
		return printResults(out, format, results)
	case "status":
		statuses, err := provider.Status(ctx)
		if err != nil {
			return err
		}
		if format == "json" {
			return json.NewEncoder(out).Encode(statuses)
		}
		for _, s := range statuses {
			appliedAt := "Pending"
			if s.State == goose.StateApplied {
				appliedAt = s.AppliedAt.Format(time.RFC3339)
			}
			fmt.Fprintf(out, "%-24s -- %s\n", appliedAt, s.Source.Path)
		}
	}
	return nil
}

func printResults(out io.Writer, format string, results []*goose.MigrationResult) error {
	if format == "json" {
		if results == nil {
			results = []*goose.MigrationResult{}
		}
		return json.NewEncoder(out).Encode(map[string]interface{}{"applied": results})
	}
	for _, r := range results {
		fmt.Fprintln(out, r.String())
	}
	return nil
}
