package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"business-api/pkg/database/postgresql"
	"business-api/pkg/secrets"
	"business-api/seeders"
)

var tenantCmd = &cobra.Command{
	Use:   "tenant",
	Short: "Операции со справочником компаний",
}

var tenantInvalidateCmd = &cobra.Command{
	Use:   "invalidate [company]",
	Short: "Сбросить кешированную запись компании",
	Long: `Удаляет запись компании из Redis, чтобы изменения справочника применились сразу,
не дожидаясь TTL. Пулы работающих экземпляров сбрасывает только POST /api/admin/tenants/:company/invalidate.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, _, err := setup(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()

		app, err := newApplication(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer app.Close()

		if err := app.tenantService.Invalidate(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "кеш компании %s сброшен\n", args[0])
		return nil
	},
}

var tenantSeedCmd = &cobra.Command{
	Use:   "seed --file tenants.json",
	Short: "Записать компании из файла в справочник",
	Long:  `Вставляет или обновляет компании по коду. Секреты ERP шифруются ключом SECRETS_KEY.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, logger, _, err := setup(ctx)
		if err != nil {
			return err
		}
		defer logger.Sync()

		path, _ := cmd.Flags().GetString("file")
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		seeds, err := seeders.LoadTenantSeeds(f)
		if err != nil {
			return err
		}
		box, err := secrets.NewBox(cfg.Secrets.Key)
		if err != nil {
			return err
		}
		if box == nil {
			logger.Warn("SECRETS_KEY не задан, секреты ERP будут записаны открытым текстом")
		}

		pool, err := postgresql.NewPool(ctx, postgresql.PoolConfig{DSN: cfg.ControlPlane.DSN})
		if err != nil {
			return err
		}
		defer pool.Close()

		n, err := seeders.SeedTenants(ctx, pool, box, seeds, logger)
		if err != nil {
			return err
		}
		logger.Info("Справочник компаний обновлён", zap.Int("count", n))
		return nil
	},
}

func init() {
	tenantSeedCmd.Flags().String("file", "tenants.json", "JSON-файл со списком компаний")

	tenantCmd.AddCommand(tenantInvalidateCmd)
	tenantCmd.AddCommand(tenantSeedCmd)
	rootCmd.AddCommand(tenantCmd)
}
