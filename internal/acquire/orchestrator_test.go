package acquire

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/secop-cli/internal/browser"
	"github.com/sells-group/secop-cli/internal/extract"
	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/normalize"
	"github.com/sells-group/secop-cli/pkg/socrata"
)

const portalPage = `<html><body><table class="tbl_resulados">
<tr><th>Numero Proceso</th><th>Entidad</th><th>Cuantia</th></tr>
<tr><td>MC-001-2025</td><td>Alcaldía de Floridablanca</td><td>$1.234.567</td></tr>
<tr><td>MC-002-2025</td><td>Gobernación de Santander</td><td>$9.876.543</td></tr>
</table></body></html>`

type fakePortal struct {
	sess *browser.Session
	err  error
}

func (f *fakePortal) Run(context.Context, model.Predicate) (*browser.Session, error) {
	return f.sess, f.err
}

type fakeSocrata struct {
	count      int
	countErr   error
	rows       []map[string]string
	rowsErr    error
	countCalls int
	rowsCalls  int
	lastWhere  string
}

func (f *fakeSocrata) Count(_ context.Context, where string) (int, error) {
	f.countCalls++
	f.lastWhere = where
	return f.count, f.countErr
}

func (f *fakeSocrata) Rows(_ context.Context, q socrata.Query) ([]map[string]string, error) {
	f.rowsCalls++
	f.lastWhere = q.Where
	if f.rowsErr != nil {
		return nil, f.rowsErr
	}
	start := q.Offset
	if start > len(f.rows) {
		return nil, nil
	}
	end := start + q.Limit
	if end > len(f.rows) {
		end = len(f.rows)
	}
	return f.rows[start:end], nil
}

func apiRow(id string) map[string]string {
	return map[string]string{
		"proceso_de_compra":  id,
		"nombre_entidad":     "Entidad " + id,
		"valor_del_contrato": "1000000",
		"urlproceso":         "https://example.test/p/" + id,
	}
}

func newTestOrchestrator(portal PortalRunner, portalErr error, api socrata.Client, mode string) *Orchestrator {
	factory := func(context.Context) (PortalRunner, error) {
		if portalErr != nil {
			return nil, portalErr
		}
		return portal, nil
	}
	return New(
		factory,
		api,
		extract.New("table.tbl_resulados", "detalleProceso", "https://example.test"),
		normalize.New(),
		mode,
		2,
	)
}

func TestAcquire_PortalSuccessSkipsFallback(t *testing.T) {
	sess := &browser.Session{
		Pages:        []model.PageDocument{{HTML: portalPage, Index: 1, CapturedAt: time.Now()}},
		PagesVisited: 1,
	}
	api := &fakeSocrata{count: 10}
	o := newTestOrchestrator(&fakePortal{sess: sess}, nil, api, "auto")

	res, err := o.Acquire(context.Background(), model.SearchFilter{Keyword: "vigilancia"})

	require.NoError(t, err)
	assert.Equal(t, SourcePortal, res.Source)
	assert.Len(t, res.Records, 2)
	assert.Equal(t, "MC-001-2025", res.Records[0].Key())
	assert.NoError(t, res.PrimaryErr)
	// Primary produced rows: the fallback must never fire.
	assert.Zero(t, api.countCalls)
	assert.Zero(t, api.rowsCalls)
}

func TestAcquire_FallbackExactlyOnceOnPortalFailure(t *testing.T) {
	api := &fakeSocrata{count: 2, rows: []map[string]string{apiRow("CO1.A"), apiRow("CO1.B")}}
	o := newTestOrchestrator(nil, errors.New("chrome crashed"), api, "auto")

	res, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.NoError(t, err)
	assert.Equal(t, SourceAPI, res.Source)
	assert.Len(t, res.Records, 2)
	assert.Error(t, res.PrimaryErr)
	assert.NoError(t, res.FallbackErr)
	assert.Equal(t, 1, api.countCalls, "fallback count query runs exactly once")
}

func TestAcquire_FallbackOnEmptyPortalResult(t *testing.T) {
	// The engine reports an empty result as a failure; the orchestrator
	// must still consult the open-data source before giving up.
	api := &fakeSocrata{count: 1, rows: []map[string]string{apiRow("CO1.C")}}
	o := newTestOrchestrator(&fakePortal{err: browser.ErrEmptyResult}, nil, api, "auto")

	res, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.NoError(t, err)
	assert.Equal(t, SourceAPI, res.Source)
	assert.Len(t, res.Records, 1)
	assert.True(t, errors.Is(res.PrimaryErr, browser.ErrEmptyResult))
}

func TestAcquire_FallbackDropsPortalDetailLinks(t *testing.T) {
	// A failed session can still have harvested links before dying; they
	// belong to the portal run and must not ride along with API rows.
	sess := &browser.Session{
		DetailURLs: []string{"https://example.test/consultas/detalleProceso.do?numConstancia=25-1"},
		Warnings:   []string{"page cap reached"},
	}
	api := &fakeSocrata{count: 1, rows: []map[string]string{apiRow("CO1.E")}}
	o := newTestOrchestrator(&fakePortal{sess: sess, err: browser.ErrCaptchaUnresolved}, nil, api, "auto")

	res, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.NoError(t, err)
	assert.Equal(t, SourceAPI, res.Source)
	assert.Empty(t, res.DetailURLs)
}

func TestAcquire_BothSourcesFail(t *testing.T) {
	api := &fakeSocrata{countErr: errors.New("socrata down")}
	o := newTestOrchestrator(nil, errors.New("chrome crashed"), api, "auto")

	res, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.Error(t, err)
	var combined *CombinedError
	require.True(t, errors.As(err, &combined))
	assert.Error(t, combined.Portal)
	assert.Error(t, combined.API)
	assert.Equal(t, SourceNone, res.Source)
	assert.Empty(t, res.Records)
}

func TestAcquire_PortalModePinned(t *testing.T) {
	api := &fakeSocrata{count: 5, rows: []map[string]string{apiRow("CO1.D")}}
	o := newTestOrchestrator(nil, errors.New("chrome crashed"), api, "portal")

	_, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.Error(t, err)
	assert.Zero(t, api.countCalls, "pinned portal mode must not fall back")
}

func TestAcquire_APIModePinned(t *testing.T) {
	api := &fakeSocrata{count: 1, rows: []map[string]string{apiRow("CO1.E")}}
	o := newTestOrchestrator(&fakePortal{}, nil, api, "api")

	res, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.NoError(t, err)
	assert.Equal(t, SourceAPI, res.Source)
	assert.Len(t, res.Records, 1)
}

func TestAcquire_APIZeroRowsIsError(t *testing.T) {
	api := &fakeSocrata{count: 0}
	o := newTestOrchestrator(&fakePortal{}, nil, api, "api")

	_, err := o.Acquire(context.Background(), model.SearchFilter{})

	require.Error(t, err)
	assert.True(t, errors.Is(err, errNoRows))
}

func TestAcquire_MaxRecordsCapsAPIPaging(t *testing.T) {
	rows := []map[string]string{apiRow("A"), apiRow("B"), apiRow("C"), apiRow("D"), apiRow("E")}
	api := &fakeSocrata{count: 5, rows: rows}
	o := newTestOrchestrator(&fakePortal{}, nil, api, "api")

	res, err := o.Acquire(context.Background(), model.SearchFilter{MaxRecords: 3})

	require.NoError(t, err)
	assert.Len(t, res.Records, 3)
	// Page size 2, cap 3: two pages are enough, the rest is never pulled.
	assert.Equal(t, 2, api.rowsCalls)
}

func TestBuildWhere_FullPredicate(t *testing.T) {
	api := &fakeSocrata{count: 1, rows: []map[string]string{apiRow("X")}}
	o := newTestOrchestrator(&fakePortal{}, nil, api, "api")

	_, err := o.Acquire(context.Background(), model.SearchFilter{
		Keyword:        "vigilancia",
		DepartmentCode: "668000",
		ModalityCodes:  []string{"13"},
		Status:         "Celebrado",
		DateFrom:       "01/01/2025",
		DateTo:         "31/12/2025",
	})
	require.NoError(t, err)

	where := api.lastWhere
	assert.Contains(t, where, "departamento = 'Santander'")
	assert.Contains(t, where, "modalidad_de_contratacion = 'Mínima cuantía'")
	assert.Contains(t, where,
		"estado_contrato in ('Cerrado', 'terminado', 'En ejecución', 'Modificado', 'Prorrogado', 'cedido')")
	assert.Contains(t, where, "upper(objeto_del_contrato) like upper('%vigilancia%')")
	assert.Contains(t, where, "fecha_de_inicio_del_contrato >= '2025-01-01T00:00:00'")
	assert.Contains(t, where, "fecha_de_inicio_del_contrato <= '2025-12-31T23:59:59'")
}

func TestBuildWhere_EscapesQuotes(t *testing.T) {
	where := BuildWhere(model.Predicate{Entity: "Alcaldía de D'Angelo"})
	assert.Equal(t, "nombre_entidad = 'Alcaldía de D''Angelo'", where)
}

func TestBuildWhere_EmptyPredicate(t *testing.T) {
	assert.Equal(t, "", BuildWhere(model.Predicate{}))
}
