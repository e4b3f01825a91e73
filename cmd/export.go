package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/fin-extract/internal/export"
	"github.com/sells-group/fin-extract/internal/store"
)

var (
	exportLimit  int
	exportFailed bool
)

var exportCmd = &cobra.Command{
	Use:   "export <out.xlsx>",
	Short: "Export cached records to an XLSX workbook",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if cfg.Store.Disabled {
			return errors.New("record store is disabled (store.disabled)")
		}
		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListRecords(ctx, store.Filter{Failed: exportFailed, Limit: exportLimit})
		if err != nil {
			return err
		}

		if err := export.WriteFile(args[0], records); err != nil {
			return err
		}
		zap.L().Info("workbook written", zap.String("path", args[0]), zap.Int("records", len(records)))
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d records to %s\n", len(records), args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportLimit, "limit", 1000, "max number of records to export")
	exportCmd.Flags().BoolVar(&exportFailed, "failed", false, "only export failed records")
	rootCmd.AddCommand(exportCmd)
}
