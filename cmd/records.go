package main

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/fin-extract/internal/model"
	"github.com/sells-group/fin-extract/internal/store"
)

var (
	recordsFailed bool
	recordsLimit  int
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List cached extraction records",
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

		records, err := st.ListRecords(ctx, store.Filter{Failed: recordsFailed, Limit: recordsLimit})
		if err != nil {
			return err
		}

		if len(records) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No records found.")
			return nil
		}

		formatRecordsList(cmd.OutOrStdout(), records)
		return nil
	},
}

func init() {
	recordsCmd.Flags().BoolVar(&recordsFailed, "failed", false, "only list failed records")
	recordsCmd.Flags().IntVar(&recordsLimit, "limit", 20, "max number of records to list")
	rootCmd.AddCommand(recordsCmd)
}

// formatRecordsList writes records as an aligned table.
func formatRecordsList(w io.Writer, records []model.Record) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tSTATUS\tSTRATEGY\tINN\tYEARS\tERROR")
	for _, r := range records {
		status, errKind := "ok", ""
		if !r.Success {
			status = "failed"
			if r.Diagnostic != nil {
				errKind = string(r.Diagnostic.Kind)
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			truncate(r.Filename, 40),
			status,
			r.Strategy,
			r.CompanyInfo.INN,
			strings.Join(r.MultiYearData.Years, ","),
			errKind,
		)
	}
	_ = tw.Flush()
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}
