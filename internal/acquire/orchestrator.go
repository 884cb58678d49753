// Package acquire coordinates the two contract sources: the browser-driven
// portal first, the open-data API as a one-shot fallback. Results are
// always tagged with the source that produced them; rows from the two
// sources are never mixed in one result.
package acquire

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/browser"
	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/extract"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/normalize"
	"github.com/sells-group/secop-cli/internal/predicate"
	"github.com/sells-group/secop-cli/internal/resilience"
	"github.com/sells-group/secop-cli/pkg/socrata"
)

// Source identifies which path produced a result.
type Source string

const (
	SourcePortal Source = "portal"
	SourceAPI    Source = "api"
	SourceNone   Source = "none"
)

// Result is one acquisition outcome. When the fallback ran, PrimaryErr
// records why; when both paths failed the accompanying error is a
// *CombinedError carrying both causes.
type Result struct {
	Source      Source
	Records     []model.CleanedRecord
	Report      model.QualityReport
	PagesParsed int
	DetailURLs  []string
	Warnings    []string
	PrimaryErr  error
	FallbackErr error
}

// CombinedError reports that both sources failed or came back empty.
type CombinedError struct {
	Portal error
	API    error
}

func (e *CombinedError) Error() string {
	return fmt.Sprintf("acquire: both sources failed: portal: %v; api: %v", e.Portal, e.API)
}

func (e *CombinedError) Unwrap() []error {
	return []error{e.Portal, e.API}
}

// errNoRows marks a source that succeeded technically but matched nothing.
var errNoRows = eris.New("acquire: source produced no rows")

// PortalRunner is the browser path: one call, one full portal session.
type PortalRunner interface {
	Run(ctx context.Context, pred model.Predicate) (*browser.Session, error)
}

// PortalFactory opens a fresh browser session. Called at most once per
// acquisition; the runner owns and releases the browser handle.
type PortalFactory func(ctx context.Context) (PortalRunner, error)

// Orchestrator runs the dual-source acquisition.
type Orchestrator struct {
	portal    PortalFactory
	api       socrata.Client
	extractor *extract.Extractor
	norm      *normalize.Normalizer
	mode      string
	pageSize  int
}

// New wires an Orchestrator from explicit dependencies. Tests inject fakes
// here; production wiring goes through FromConfig.
func New(portal PortalFactory, api socrata.Client, ex *extract.Extractor, norm *normalize.Normalizer, mode string, pageSize int) *Orchestrator {
	if pageSize <= 0 {
		pageSize = 1000
	}
	return &Orchestrator{
		portal:    portal,
		api:       api,
		extractor: ex,
		norm:      norm,
		mode:      mode,
		pageSize:  pageSize,
	}
}

// FromConfig builds the production orchestrator: chromedp-backed portal
// runner, Socrata client, extractor and normalizer per configuration.
func FromConfig(cfg *config.Config) *Orchestrator {
	factory := func(context.Context) (PortalRunner, error) {
		driver, err := browser.NewChromeDriver(cfg.Portal)
		if err != nil {
			return nil, err
		}
		return browser.NewEngine(driver, cfg.Portal), nil
	}

	apiOpts := []socrata.Option{socrata.WithBaseURL(cfg.Socrata.BaseURL)}
	if cfg.Socrata.AppToken != "" {
		apiOpts = append(apiOpts, socrata.WithAppToken(cfg.Socrata.AppToken))
	}

	return New(
		factory,
		socrata.NewClient(cfg.Socrata.Dataset, apiOpts...),
		extract.New(cfg.Portal.Selectors.ResultsTable, cfg.Portal.Selectors.DetailPattern, cfg.Portal.BaseURL),
		normalize.New(),
		cfg.Acquire.Source,
		cfg.Socrata.PageSize,
	)
}

// Acquire translates the filter once and runs the configured source
// strategy: "portal" and "api" pin one path, "auto" runs the portal and
// falls back to the API exactly once on error or zero rows.
func (o *Orchestrator) Acquire(ctx context.Context, filter model.SearchFilter) (*Result, error) {
	pred := predicate.Translate(filter)

	switch o.mode {
	case "portal":
		res := &Result{Source: SourcePortal}
		if err := o.runPortal(ctx, pred, res); err != nil {
			res.Source = SourceNone
			res.PrimaryErr = err
			return res, err
		}
		return res, nil

	case "api":
		res := &Result{Source: SourceAPI}
		if err := o.runAPI(ctx, pred, res); err != nil {
			res.Source = SourceNone
			res.FallbackErr = err
			return res, err
		}
		return res, nil

	default: // auto
		return o.acquireAuto(ctx, pred)
	}
}

func (o *Orchestrator) acquireAuto(ctx context.Context, pred model.Predicate) (*Result, error) {
	res := &Result{Source: SourcePortal}

	primaryErr := o.runPortal(ctx, pred, res)
	if primaryErr == nil {
		return res, nil
	}
	res.PrimaryErr = primaryErr

	zap.L().Warn("acquire: portal path failed, falling back to open data",
		zap.Error(primaryErr))

	// The fallback runs exactly once; its records replace nothing because
	// the portal produced nothing usable. Links harvested from the failed
	// session go with it.
	res.Source = SourceAPI
	res.Records = nil
	res.Report = model.QualityReport{}
	res.PagesParsed = 0
	res.DetailURLs = nil

	if fallbackErr := o.runAPI(ctx, pred, res); fallbackErr != nil {
		res.FallbackErr = fallbackErr
		res.Source = SourceNone
		return res, &CombinedError{Portal: primaryErr, API: fallbackErr}
	}
	return res, nil
}

// runPortal drives the browser, extracts and normalizes. Zero usable rows
// is an error here so the auto strategy can fall back.
func (o *Orchestrator) runPortal(ctx context.Context, pred model.Predicate, res *Result) error {
	runner, err := o.portal(ctx)
	if err != nil {
		return eris.Wrap(err, "acquire: open portal session")
	}

	sess, err := runner.Run(ctx, pred)
	if sess != nil {
		res.Warnings = append(res.Warnings, sess.Warnings...)
		res.DetailURLs = sess.DetailURLs
	}
	if err != nil {
		return err
	}

	raws, err := o.extractor.Pages(sess.Pages)
	if err != nil {
		return err
	}
	res.PagesParsed = sess.PagesVisited

	records, report := o.norm.Records(raws)
	records = capRecords(records, pred.MaxRecords)
	if len(records) == 0 {
		return errNoRows
	}

	res.Records = records
	res.Report = report

	zap.L().Info("acquire: portal path complete",
		zap.Int("pages", res.PagesParsed),
		zap.Int("records", len(records)),
	)
	return nil
}

// runAPI queries the open-data dataset with the same predicate.
func (o *Orchestrator) runAPI(ctx context.Context, pred model.Predicate, res *Result) error {
	raws, err := o.fetchAPI(ctx, pred)
	if err != nil {
		return err
	}

	records, report := o.norm.Records(raws)
	records = capRecords(records, pred.MaxRecords)
	if len(records) == 0 {
		return errNoRows
	}

	res.Records = records
	res.Report = report

	zap.L().Info("acquire: open-data path complete", zap.Int("records", len(records)))
	return nil
}

// fetchAPI pages through the dataset: count first, then ordered offset
// pages until a short page, the reported total, or the caller's cap.
func (o *Orchestrator) fetchAPI(ctx context.Context, pred model.Predicate) ([]model.RawRecord, error) {
	where := BuildWhere(pred)
	retry := resilience.APIProfile()
	retry.OnRetry = resilience.RetryLogger("socrata", "query")

	total, err := resilience.DoVal(ctx, retry, func(ctx context.Context) (int, error) {
		return o.api.Count(ctx, where)
	})
	if err != nil {
		return nil, eris.Wrap(err, "acquire: count open-data rows")
	}
	zap.L().Info("acquire: open-data row count", zap.Int("total", total))
	if total == 0 {
		return nil, nil
	}

	want := total
	if pred.MaxRecords > 0 && pred.MaxRecords < want {
		want = pred.MaxRecords
	}

	var raws []model.RawRecord
	for offset := 0; offset < want; offset += o.pageSize {
		q := socrata.Query{
			Select: model.CanonicalColumns,
			Where:  where,
			Order:  "fecha_de_inicio_del_contrato DESC",
			Limit:  o.pageSize,
			Offset: offset,
		}
		rows, err := resilience.DoVal(ctx, retry, func(ctx context.Context) ([]map[string]string, error) {
			return o.api.Rows(ctx, q)
		})
		if err != nil {
			return nil, eris.Wrapf(err, "acquire: fetch open-data page at offset %d", offset)
		}

		for _, row := range rows {
			rec := model.NewRawRecord(model.CanonicalColumns)
			for _, col := range model.CanonicalColumns {
				rec.Values[col] = row[col]
			}
			rec.DetailURL = row[model.DetailURLColumn]
			raws = append(raws, rec)
			if len(raws) >= want {
				return raws, nil
			}
		}

		if len(rows) < o.pageSize {
			break
		}
	}
	return raws, nil
}

func capRecords(records []model.CleanedRecord, max int) []model.CleanedRecord {
	if max > 0 && len(records) > max {
		return records[:max]
	}
	return records
}
