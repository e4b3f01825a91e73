package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/fin-extract/internal/model"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file> [file...]",
	Short: "Extract financial data from one or more documents",
	Long: "Runs the strategy cascade on each file and prints the canonical records. " +
		"A single file prints one object; several files print an array.",
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		format, _ := cmd.Flags().GetString("format")
		if format != "json" && format != "yaml" {
			return eris.Errorf("unsupported format %q (want json or yaml)", format)
		}
		ai, _ := cmd.Flags().GetBool("ai")
		noCache, _ := cmd.Flags().GetBool("no-cache")

		env, err := initPipeline(ctx, "extract")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := extractFiles(ctx, args, func(ctx context.Context, filename string, data []byte) model.Record {
			return env.process(ctx, filename, data, processOptions{Delegated: ai, NoCache: noCache})
		})
		if err != nil {
			return err
		}

		return writeRecords(cmd.OutOrStdout(), format, records)
	},
}

// extractFiles reads and extracts each path in order. An unreadable path is
// logged and skipped; it is an error only when no path could be read.
func extractFiles(ctx context.Context, paths []string, extract func(ctx context.Context, filename string, data []byte) model.Record) ([]model.Record, error) {
	records := make([]model.Record, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			zap.L().Error("document skipped", zap.String("file", path), zap.Error(err))
			continue
		}
		records = append(records, extract(ctx, filepath.Base(path), data))
	}
	if len(records) == 0 {
		return nil, eris.Errorf("no readable documents among %d path(s)", len(paths))
	}
	return records, nil
}

// writeRecords prints records in format. One record prints as an object.
func writeRecords(w io.Writer, format string, records []model.Record) error {
	var v any = records
	if len(records) == 1 {
		v = records[0]
	}

	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode json")
		}
		return nil
	}
}

func init() {
	extractCmd.Flags().Bool("ai", false, "allow the delegated inference strategy when local strategies fail")
	extractCmd.Flags().String("format", "json", "output format: json or yaml")
	extractCmd.Flags().Bool("no-cache", false, "re-extract even when a cached record exists")
	rootCmd.AddCommand(extractCmd)
}
