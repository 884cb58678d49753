package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/acquire"
	"github.com/sells-group/secop-cli/internal/export"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/store"
)

var (
	searchKeyword    string
	searchProcess    string
	searchEntity     string
	searchDepartment string
	searchModalities []string
	searchStatus     string
	searchDateFrom   string
	searchDateTo     string
	searchMaxPages   int
	searchMaxRecords int
	searchSource     string
	searchOut        string
	searchFormat     string
	searchHistory    string
	searchNoHistory  bool
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Search contracting processes and export the results",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if searchSource != "" {
			cfg.Acquire.Source = searchSource
		}

		st, err := store.Open(ctx, cfg.Store)
		if err != nil {
			return eris.Wrap(err, "open run ledger")
		}
		defer st.Close() //nolint:errcheck

		filter := model.SearchFilter{
			Keyword:        searchKeyword,
			ProcessNumber:  searchProcess,
			Entity:         searchEntity,
			DepartmentCode: searchDepartment,
			ModalityCodes:  searchModalities,
			Status:         searchStatus,
			DateFrom:       searchDateFrom,
			DateTo:         searchDateTo,
			MaxPages:       searchMaxPages,
			MaxRecords:     searchMaxRecords,
		}

		run, err := st.CreateRun(ctx, filter)
		if err != nil {
			return eris.Wrap(err, "create run")
		}

		result, err := acquire.FromConfig(cfg).Acquire(ctx, filter)
		if err != nil {
			if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
				zap.L().Warn("ledger update failed", zap.Error(ferr))
			}
			return eris.Wrap(err, "acquire")
		}

		if !searchNoHistory {
			histPath := cfg.History.Path
			if searchHistory != "" {
				histPath = searchHistory
			}
			hist := acquire.NewHistory(histPath, cfg.History)
			total, err := hist.Merge(result.Records)
			if err != nil {
				if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
					zap.L().Warn("ledger update failed", zap.Error(ferr))
				}
				return eris.Wrap(err, "merge history")
			}
			zap.L().Info("history merged",
				zap.String("path", histPath),
				zap.Int("total", total),
			)
		}

		outPath := searchOut
		if outPath != "" {
			if err := writeExport(outPath, result.Records); err != nil {
				if ferr := st.FailRun(ctx, run.ID, err); ferr != nil {
					zap.L().Warn("ledger update failed", zap.Error(ferr))
				}
				return err
			}
		}

		if archiver, ok := st.(*store.PostgresStore); ok {
			n, err := archiver.ArchiveRecords(ctx, run.ID, string(result.Source), result.Records)
			if err != nil {
				zap.L().Warn("contract archive failed", zap.Error(err))
			} else {
				zap.L().Info("contracts archived", zap.Int64("rows", n))
			}
		}

		degraded := 0
		for _, rec := range result.Records {
			if rec.Degraded {
				degraded++
			}
		}
		runResult := &model.RunResult{
			Source:      string(result.Source),
			RowCount:    len(result.Records),
			PagesParsed: result.PagesParsed,
			Degraded:    degraded,
			OutputPath:  outPath,
			Warnings:    result.Warnings,
		}
		if err := st.CompleteRun(ctx, run.ID, runResult); err != nil {
			zap.L().Warn("ledger update failed", zap.Error(err))
		}

		fmt.Fprintf(os.Stdout, "run %s: %d rows from %s (%d degraded)\n",
			run.ID, len(result.Records), result.Source, degraded)
		if len(result.DetailURLs) > 0 {
			fmt.Fprintf(os.Stdout, "harvested %d detail links; run `secop-cli detail` to enrich\n",
				len(result.DetailURLs))
		}
		for _, w := range result.Warnings {
			fmt.Fprintf(os.Stderr, "warning: %s\n", w)
		}
		return nil
	},
}

// writeExport picks the writer from the explicit format flag, falling back
// to the output path extension, then the configured default.
func writeExport(path string, records []model.CleanedRecord) error {
	format := searchFormat
	if format == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".xlsx":
			format = "xlsx"
		case ".csv":
			format = "csv"
		default:
			format = cfg.Output.Format
		}
	}

	switch format {
	case "xlsx":
		return export.WriteXLSX(path, records)
	case "csv", "":
		return export.WriteCSV(path, records, cfg.Output)
	default:
		return eris.Errorf("unknown export format %q", format)
	}
}

func init() {
	searchCmd.Flags().StringVar(&searchKeyword, "keyword", "", "object-of-contract keyword")
	searchCmd.Flags().StringVar(&searchProcess, "process", "", "process number")
	searchCmd.Flags().StringVar(&searchEntity, "entity", "", "contracting entity name")
	searchCmd.Flags().StringVar(&searchDepartment, "department", "", "department code (e.g. 668000)")
	searchCmd.Flags().StringSliceVar(&searchModalities, "modality", nil, "modality code, repeatable (e.g. 13)")
	searchCmd.Flags().StringVar(&searchStatus, "status", "", "process status (e.g. celebrado)")
	searchCmd.Flags().StringVar(&searchDateFrom, "date-from", "", "start date lower bound, dd/MM/yyyy")
	searchCmd.Flags().StringVar(&searchDateTo, "date-to", "", "start date upper bound, dd/MM/yyyy")
	searchCmd.Flags().IntVar(&searchMaxPages, "max-pages", 0, "portal page cap (0 = configured default)")
	searchCmd.Flags().IntVar(&searchMaxRecords, "max-records", 0, "record cap across both sources (0 = unlimited)")
	searchCmd.Flags().StringVar(&searchSource, "source", "", "acquisition source: auto, portal, or api")
	searchCmd.Flags().StringVar(&searchOut, "out", "", "export path (.csv or .xlsx)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "", "export format, overriding the path extension")
	searchCmd.Flags().StringVar(&searchHistory, "history", "", "history file path (defaults to the configured one)")
	searchCmd.Flags().BoolVar(&searchNoHistory, "no-history", false, "skip the history merge")
	rootCmd.AddCommand(searchCmd)
}
