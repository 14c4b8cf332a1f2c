package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "business-api",
	Short: "Multi-tenant business API",
	Long:  `Мультитенантное API поверх Business Central: синхронизация справочников и бронирование оборудования.`,
}

// Execute вызывается из main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
