package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"business-api/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync [company] [resource]",
	Short: "Разовая синхронизация справочников из Business Central",
	Long: `Без аргументов сверяет все ресурсы всех активных компаний.
С кодом компании - только её; с ресурсом - только его; --key синхронизирует одну запись.`,
	Args: cobra.RangeArgs(0, 2),
	RunE: runSync,
}

func init() {
	syncCmd.Flags().String("key", "", "бизнес-ключ одной записи (номер клиента, код условия оплаты)")
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg, logger, shutdownTracing, err := setup(ctx)
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer shutdownTracing(ctx)

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	if len(args) == 0 {
		scheduler := sync.NewScheduler(app.directory, app.resolver, app.syncs, cfg.Sync.Concurrency, logger)
		summaries, err := scheduler.RunOnce(ctx)
		if err != nil {
			return err
		}
		return enc.Encode(summaries)
	}

	tc, err := app.resolver.Resolve(ctx, args[0])
	if err != nil {
		return err
	}
	defer tc.Release()

	resources := app.syncService.Resources()
	if len(args) == 2 {
		resources = []string{args[1]}
	}
	key, _ := cmd.Flags().GetString("key")
	if key != "" && len(args) != 2 {
		return fmt.Errorf("--key требует указать ресурс")
	}

	reports := make([]*sync.Report, 0, len(resources))
	for _, resource := range resources {
		var report *sync.Report
		if key != "" {
			report, err = app.syncService.SyncOne(ctx, tc, resource, key)
		} else {
			report, err = app.syncService.SyncAll(ctx, tc, resource)
		}
		if err != nil {
			logger.Error("Синхронизация не выполнена", zap.String("resource", resource), zap.Error(err))
			return err
		}
		reports = append(reports, report)
	}
	return enc.Encode(reports)
}
