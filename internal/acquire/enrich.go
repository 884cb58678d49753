package acquire

import (
	"context"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/extract"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/normalize"
)

// ErrEnrichmentAborted marks a detail pass cut short by consecutive
// failures. The records gathered before the abort are still returned.
var ErrEnrichmentAborted = eris.New("acquire: detail enrichment aborted")

// DetailFetcher gets one detail page's markup.
type DetailFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// HTTPDetailFetcher fetches detail pages over plain HTTP. The portal
// serves process sheets without scripting, so no browser is needed here.
type HTTPDetailFetcher struct {
	client *http.Client
}

// NewHTTPDetailFetcher creates an HTTPDetailFetcher with sensible defaults.
func NewHTTPDetailFetcher() *HTTPDetailFetcher {
	return &HTTPDetailFetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 10 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
	}
}

// Fetch gets a detail page.
func (f *HTTPDetailFetcher) Fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "detail: create request")
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36")
	req.Header.Set("Accept-Language", "es-CO,es;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "detail: fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return "", eris.Errorf("detail: status %d for %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", eris.Wrap(err, "detail: read body")
	}
	return string(body), nil
}

// Enricher runs the sequential detail pass: one page per record, a fixed
// delay between requests, aborting only after enough consecutive
// failures. A page that fetches but yields no recognizable fields counts
// as a failure toward the abort threshold.
type Enricher struct {
	fetch    DetailFetcher
	limiter  *rate.Limiter
	maxFails int
	norm     *normalize.Normalizer
}

// NewEnricher creates an Enricher honoring the configured pacing.
func NewEnricher(f DetailFetcher, cfg config.EnrichConfig) *Enricher {
	delay := time.Duration(cfg.DelayMillis) * time.Millisecond
	if delay <= 0 {
		delay = time.Second
	}
	maxFails := cfg.MaxConsecutiveFails
	if maxFails <= 0 {
		maxFails = 5
	}
	return &Enricher{
		fetch:    f,
		limiter:  rate.NewLimiter(rate.Every(delay), 1),
		maxFails: maxFails,
		norm:     normalize.New(),
	}
}

// Enrich visits each record's detail page in order. Records without a
// detail link are skipped. On abort the partial results come back with
// ErrEnrichmentAborted; partial success is still success for the caller.
func (e *Enricher) Enrich(ctx context.Context, records []model.CleanedRecord) ([]model.DetailRecord, error) {
	var (
		out         []model.DetailRecord
		consecutive int
	)

	for _, rec := range records {
		if rec.DetailURL == "" {
			continue
		}
		if err := e.limiter.Wait(ctx); err != nil {
			return out, eris.Wrap(err, "acquire: enrichment cancelled")
		}

		detail, err := e.enrichOne(ctx, rec)
		if err != nil {
			consecutive++
			zap.L().Warn("acquire: detail page failed",
				zap.String("url", rec.DetailURL),
				zap.Int("consecutive", consecutive),
				zap.Error(err),
			)
			if consecutive >= e.maxFails {
				zap.L().Error("acquire: too many consecutive detail failures, aborting pass",
					zap.Int("threshold", e.maxFails),
					zap.Int("enriched", len(out)),
				)
				return out, eris.Wrapf(ErrEnrichmentAborted, "%d consecutive failures", consecutive)
			}
			continue
		}

		consecutive = 0
		out = append(out, detail)
	}

	zap.L().Info("acquire: detail pass complete", zap.Int("enriched", len(out)))
	return out, nil
}

func (e *Enricher) enrichOne(ctx context.Context, rec model.CleanedRecord) (model.DetailRecord, error) {
	html, err := e.fetch.Fetch(ctx, rec.DetailURL)
	if err != nil {
		return model.DetailRecord{}, err
	}

	raw, err := extract.Detail(html, rec.DetailURL)
	if err != nil {
		return model.DetailRecord{}, err
	}

	cleaned, blank := e.norm.Record(raw)
	if blank {
		return model.DetailRecord{}, eris.Errorf("acquire: detail page %s parsed blank", rec.DetailURL)
	}

	// The sheet may omit the process id; keep the listing's key.
	if cleaned.Key() == "" {
		cleaned.Strings[model.KeyColumn] = rec.Key()
	}

	return model.DetailRecord{
		CleanedRecord: cleaned,
		Provider:      cleaned.Strings["proveedor_adjudicado"],
		ProviderTaxID: cleaned.Strings["documento_proveedor"],
		AwardDate:     cleaned.Dates["fecha_de_adjudicacion"],
		AwardValue:    cleaned.Money["valor_adjudicado"],
	}, nil
}
