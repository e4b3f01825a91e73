package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync/atomic"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/fin-extract/internal/export"
	"github.com/sells-group/fin-extract/internal/model"
)

var (
	batchLimit int
	batchAI    bool
	batchXLSX  string
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Extract every document under a directory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		paths, err := collectDocuments(args[0])
		if err != nil {
			return err
		}

		env, err := initPipeline(ctx, "batch")
		if err != nil {
			return err
		}
		defer env.Close()

		records, err := processBatch(ctx, paths, batchLimit, cfg.Batch.MaxConcurrentDocuments, func(ctx context.Context, path string) (model.Record, error) {
			data, err := os.ReadFile(path)
			if err != nil {
				return model.Record{}, eris.Wrapf(err, "batch: read %s", path)
			}
			return env.process(ctx, filepath.Base(path), data, processOptions{Delegated: batchAI}), nil
		})
		if err != nil {
			return err
		}

		printBatchSummary(cmd.OutOrStdout(), records)

		if batchXLSX != "" {
			if err := export.WriteFile(batchXLSX, records); err != nil {
				return err
			}
			zap.L().Info("workbook written", zap.String("path", batchXLSX), zap.Int("records", len(records)))
		}
		return nil
	},
}

func init() {
	batchCmd.Flags().IntVar(&batchLimit, "limit", 0, "max number of documents to process (0 = all)")
	batchCmd.Flags().BoolVar(&batchAI, "ai", false, "allow the delegated inference strategy when local strategies fail")
	batchCmd.Flags().StringVar(&batchXLSX, "xlsx", "", "write the records to this XLSX workbook")
	rootCmd.AddCommand(batchCmd)
}

// collectDocuments lists regular files under dir in lexical order, skipping
// hidden files and directories.
func collectDocuments(dir string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		hidden := path != dir && strings.HasPrefix(d.Name(), ".")
		if d.IsDir() {
			if hidden {
				return filepath.SkipDir
			}
			return nil
		}
		if hidden || !d.Type().IsRegular() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, eris.Wrapf(err, "batch: walk %s", dir)
	}
	return paths, nil
}

// extractFunc produces the record for one document path.
type extractFunc func(ctx context.Context, path string) (model.Record, error)

// processBatch applies limit, then extracts paths concurrently. Records come
// back in input order. A document that cannot be read is logged and left out;
// it never aborts the batch.
func processBatch(ctx context.Context, paths []string, limit, concurrency int, extract extractFunc) ([]model.Record, error) {
	if len(paths) == 0 {
		zap.L().Info("no documents found")
		return nil, nil
	}

	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	zap.L().Info("processing batch",
		zap.Int("documents", len(paths)),
		zap.Int("concurrency", concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	var succeeded, failed atomic.Int64
	results := make([]*model.Record, len(paths))

	for i, path := range paths {
		g.Go(func() error {
			log := zap.L().With(zap.String("file", path))

			rec, err := extract(gctx, path)
			if err != nil {
				failed.Add(1)
				log.Error("document skipped", zap.Error(err))
				return nil // don't abort batch on individual failure
			}

			if rec.Success {
				succeeded.Add(1)
			} else {
				failed.Add(1)
			}
			results[i] = &rec
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "batch processing")
	}

	records := make([]model.Record, 0, len(results))
	for _, r := range results {
		if r != nil {
			records = append(records, *r)
		}
	}

	zap.L().Info("batch complete",
		zap.Int64("succeeded", succeeded.Load()),
		zap.Int64("failed", failed.Load()),
	)
	return records, nil
}

// printBatchSummary writes one line per record and a totals line.
func printBatchSummary(w io.Writer, records []model.Record) {
	ok := 0
	for _, r := range records {
		if r.Success {
			ok++
			fmt.Fprintf(w, "OK    %s  %s/%s  years=%s\n", r.Filename, r.Strategy, r.Source, strings.Join(r.MultiYearData.Years, ","))
			continue
		}
		kind, msg := "", ""
		if r.Diagnostic != nil {
			kind, msg = string(r.Diagnostic.Kind), r.Diagnostic.Message
		}
		fmt.Fprintf(w, "FAIL  %s  %s: %s\n", r.Filename, kind, msg)
	}
	fmt.Fprintf(w, "%d documents, %d extracted, %d failed\n", len(records), ok, len(records)-ok)
}
