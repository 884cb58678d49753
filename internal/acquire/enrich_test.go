package acquire

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/model"
)

const detailPage = `<html><body><table>
<tr><td>Número del Proceso</td><td>MC-001-2025</td></tr>
<tr><td>Contratista</td><td>Seguridad Andina SAS</td></tr>
<tr><td>NIT</td><td>900123456-7</td></tr>
<tr><td>Fecha de Adjudicación</td><td>15/03/2025</td></tr>
<tr><td>Valor Adjudicado</td><td>$9.876.543,21</td></tr>
</table></body></html>`

type scriptedFetcher struct {
	pages map[string]string // url -> html; missing url = error
	calls []string
}

func (s *scriptedFetcher) Fetch(_ context.Context, url string) (string, error) {
	s.calls = append(s.calls, url)
	html, ok := s.pages[url]
	if !ok {
		return "", errors.New("status 500")
	}
	return html, nil
}

func listing(id string) model.CleanedRecord {
	return model.CleanedRecord{
		Columns:   []string{"proceso_de_compra"},
		Strings:   map[string]string{"proceso_de_compra": id},
		DetailURL: "https://example.test/p/" + id,
	}
}

func fastEnrichConfig() config.EnrichConfig {
	return config.EnrichConfig{DelayMillis: 1, MaxConsecutiveFails: 3}
}

func TestEnrich_ParsesDetailFields(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]string{
		"https://example.test/p/MC-001-2025": detailPage,
	}}
	e := NewEnricher(f, fastEnrichConfig())

	out, err := e.Enrich(context.Background(), []model.CleanedRecord{listing("MC-001-2025")})

	require.NoError(t, err)
	require.Len(t, out, 1)
	d := out[0]
	assert.Equal(t, "MC-001-2025", d.Key())
	assert.Equal(t, "Seguridad Andina SAS", d.Provider)
	assert.Equal(t, "900123456-7", d.ProviderTaxID)
	require.NotNil(t, d.AwardValue)
	assert.InDelta(t, 9876543.21, *d.AwardValue, 0.001)
	require.NotNil(t, d.AwardDate)
	assert.Equal(t, "2025-03-15", d.AwardDate.Format("2006-01-02"))
}

func TestEnrich_SkipsRecordsWithoutDetailURL(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]string{}}
	e := NewEnricher(f, fastEnrichConfig())

	rec := listing("MC-009")
	rec.DetailURL = ""
	out, err := e.Enrich(context.Background(), []model.CleanedRecord{rec})

	require.NoError(t, err)
	assert.Empty(t, out)
	assert.Empty(t, f.calls)
}

func TestEnrich_AbortsAfterConsecutiveFailures(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]string{
		"https://example.test/p/OK-1": detailPage,
	}}
	e := NewEnricher(f, fastEnrichConfig())

	records := []model.CleanedRecord{
		listing("OK-1"),
		listing("BAD-1"),
		listing("BAD-2"),
		listing("BAD-3"),
		listing("NEVER-REACHED"),
	}
	out, err := e.Enrich(context.Background(), records)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnrichmentAborted))
	// Partial results survive the abort.
	require.Len(t, out, 1)
	assert.Equal(t, "OK-1", out[0].Key())
	// The record after the threshold is never fetched.
	assert.Len(t, f.calls, 4)
}

func TestEnrich_SuccessResetsFailureStreak(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]string{
		"https://example.test/p/OK-1": detailPage,
		"https://example.test/p/OK-2": detailPage,
	}}
	e := NewEnricher(f, fastEnrichConfig())

	records := []model.CleanedRecord{
		listing("BAD-1"),
		listing("BAD-2"),
		listing("OK-1"), // resets the streak
		listing("BAD-3"),
		listing("BAD-4"),
		listing("OK-2"),
	}
	out, err := e.Enrich(context.Background(), records)

	require.NoError(t, err)
	assert.Len(t, out, 2)
}

func TestEnrich_UnrecognizablePageCountsAsFailure(t *testing.T) {
	f := &scriptedFetcher{pages: map[string]string{
		"https://example.test/p/EMPTY-1": "<html><body><p>mantenimiento</p></body></html>",
		"https://example.test/p/EMPTY-2": "<html><body><p>mantenimiento</p></body></html>",
		"https://example.test/p/EMPTY-3": "<html><body><p>mantenimiento</p></body></html>",
	}}
	e := NewEnricher(f, fastEnrichConfig())

	records := []model.CleanedRecord{
		listing("EMPTY-1"),
		listing("EMPTY-2"),
		listing("EMPTY-3"),
	}
	out, err := e.Enrich(context.Background(), records)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrEnrichmentAborted))
	assert.Empty(t, out)
}
