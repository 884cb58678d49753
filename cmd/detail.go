package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/acquire"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/normalize"
)

var (
	detailIn        string
	detailOut       string
	detailHistory   string
	detailDelay     int
	detailMaxFails  int
	detailNoHistory bool
)

var detailCmd = &cobra.Command{
	Use:   "detail",
	Short: "Enrich acquired records from their process detail pages",
	Long:  "Visits each record's detail page sequentially, extracts award fields the listing omits, and merges them back into the history file. An aborted pass keeps everything enriched so far.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		inPath := detailIn
		if inPath == "" {
			inPath = cfg.History.Path
		}

		hist := acquire.NewHistory(inPath, cfg.History)
		raws, err := hist.Load()
		if err != nil {
			return eris.Wrap(err, "load records")
		}
		if len(raws) == 0 {
			fmt.Fprintln(os.Stderr, "No records to enrich.")
			return nil
		}

		records, report := normalize.New().Records(raws)
		zap.L().Info("records loaded",
			zap.String("path", inPath),
			zap.Int("rows", report.Rows),
		)

		enrichCfg := cfg.Enrich
		if detailDelay > 0 {
			enrichCfg.DelayMillis = detailDelay
		}
		if detailMaxFails > 0 {
			enrichCfg.MaxConsecutiveFails = detailMaxFails
		}

		enricher := acquire.NewEnricher(acquire.NewHTTPDetailFetcher(), enrichCfg)
		enriched, err := enricher.Enrich(ctx, records)
		if err != nil && !errors.Is(err, acquire.ErrEnrichmentAborted) {
			return eris.Wrap(err, "enrich")
		}
		aborted := err != nil

		cleaned := make([]model.CleanedRecord, 0, len(enriched))
		for _, d := range enriched {
			cleaned = append(cleaned, d.CleanedRecord)
		}

		if !detailNoHistory && len(cleaned) > 0 {
			histPath := cfg.History.Path
			if detailHistory != "" {
				histPath = detailHistory
			}
			target := hist
			if histPath != inPath {
				target = acquire.NewHistory(histPath, cfg.History)
			}
			if _, err := target.Merge(cleaned); err != nil {
				return eris.Wrap(err, "merge history")
			}
		}

		if detailOut != "" && len(cleaned) > 0 {
			if err := writeExport(detailOut, cleaned); err != nil {
				return err
			}
		}

		fmt.Fprintf(os.Stdout, "enriched %d of %d records\n", len(enriched), len(records))
		if aborted {
			fmt.Fprintln(os.Stderr, "warning: pass aborted early, partial results kept")
		}
		return nil
	},
}

func init() {
	detailCmd.Flags().StringVar(&detailIn, "in", "", "input file (defaults to the history file)")
	detailCmd.Flags().StringVar(&detailOut, "out", "", "export path for enriched records")
	detailCmd.Flags().StringVar(&detailHistory, "history", "", "history file to merge enriched rows into")
	detailCmd.Flags().IntVar(&detailDelay, "delay", 0, "milliseconds between detail requests")
	detailCmd.Flags().IntVar(&detailMaxFails, "max-fails", 0, "consecutive failures before aborting the pass")
	detailCmd.Flags().BoolVar(&detailNoHistory, "no-history", false, "skip merging enriched rows back into history")
	rootCmd.AddCommand(detailCmd)
}
