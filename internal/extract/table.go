// Package extract converts raw portal markup into structured rows. It is
// deliberately tolerant: discovery falls back through tiered heuristics,
// header drift degrades to the positional schema, and column-count drift
// within a page is coerced rather than raised.
package extract

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/model"
	"github.com/sells-group/secop-cli/internal/tier"
)

var (
	// ErrNoTable means the page markup contained no table at all.
	ErrNoTable = eris.New("extract: no results table in document")
	// ErrEmptyTable means a table was found but held no data rows.
	ErrEmptyTable = eris.New("extract: results table has no data rows")
)

var headerSeparators = regexp.MustCompile(`[^a-z0-9áéíóúñü]+`)

// Extractor parses result pages into raw records.
type Extractor struct {
	tableSelector string // exact structural marker, e.g. "table.tbl_resulados"
	detailPattern string // substring identifying detail links
	baseURL       string // for absolutizing relative detail hrefs
	schema        []string
}

// New creates an Extractor. tableSelector is the portal's known table
// marker, detailPattern the substring identifying per-row detail links.
func New(tableSelector, detailPattern, baseURL string) *Extractor {
	return &Extractor{
		tableSelector: tableSelector,
		detailPattern: detailPattern,
		baseURL:       baseURL,
		schema:        model.PortalColumns,
	}
}

// Page parses one page of markup into raw records.
func (e *Extractor) Page(doc model.PageDocument) ([]model.RawRecord, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(doc.HTML))
	if err != nil {
		return nil, eris.Wrapf(err, "extract: parse page %d", doc.Index)
	}

	table, winner, err := e.findTable(root)
	if err != nil {
		return nil, eris.Wrapf(ErrNoTable, "page %d", doc.Index)
	}
	zap.L().Debug("extract: table located",
		zap.Int("page", doc.Index),
		zap.String("strategy", winner),
	)

	rows := e.dataRows(table)
	if len(rows) == 0 {
		return nil, eris.Wrapf(ErrEmptyTable, "page %d", doc.Index)
	}

	columns := e.resolveColumns(table, len(rows[0].cells))

	records := make([]model.RawRecord, 0, len(rows))
	for _, row := range rows {
		cells := coerceWidth(row.cells, len(columns))
		rec := model.NewRawRecord(columns)
		for i, col := range columns {
			rec.Values[col] = cells[i]
		}
		rec.DetailURL = row.detailURL
		records = append(records, rec)
	}

	return records, nil
}

// findTable runs the tiered discovery: exact marker, then the candidate
// with the most rows, then the first table present.
func (e *Extractor) findTable(root *goquery.Document) (*goquery.Selection, string, error) {
	return tier.Evaluate("results table", []tier.Strategy[*goquery.Selection]{
		{Name: "marker", Try: func() (*goquery.Selection, bool, error) {
			sel := root.Find(e.tableSelector).First()
			return sel, sel.Length() > 0, nil
		}},
		{Name: "most-rows", Try: func() (*goquery.Selection, bool, error) {
			var best *goquery.Selection
			bestRows := 1 // heuristic needs more than a lone header row
			root.Find("table").Each(func(_ int, t *goquery.Selection) {
				if n := t.Find("tr").Length(); n > bestRows {
					best = t
					bestRows = n
				}
			})
			return best, best != nil, nil
		}},
		{Name: "first", Try: func() (*goquery.Selection, bool, error) {
			sel := root.Find("table").First()
			return sel, sel.Length() > 0, nil
		}},
	})
}

// resolveColumns determines the column schema for a page: portal headers
// when their count matches the data width, else a prefix of the positional
// schema, else synthesized placeholders.
func (e *Extractor) resolveColumns(table *goquery.Selection, width int) []string {
	headers := headerCells(table)
	if len(headers) == width {
		return headers
	}
	if width <= len(e.schema) {
		return e.schema[:width]
	}

	zap.L().Warn("extract: column count matches no known schema",
		zap.Int("columns", width),
		zap.Int("headers", len(headers)),
	)
	cols := make([]string, width)
	for i := range cols {
		cols[i] = fmt.Sprintf("col_%d", i)
	}
	return cols
}

// headerCells reads explicit header cells, preferring thead over the first
// row, and normalizes them: lower-cased, non-alphanumeric runs collapsed
// to a single underscore.
func headerCells(table *goquery.Selection) []string {
	var ths *goquery.Selection
	if thead := table.Find("thead").First(); thead.Length() > 0 {
		ths = thead.Find("th")
	}
	if ths == nil || ths.Length() == 0 {
		ths = table.Find("tr").First().Find("th")
	}

	headers := make([]string, 0, ths.Length())
	ths.Each(func(_ int, th *goquery.Selection) {
		h := strings.ToLower(strings.TrimSpace(th.Text()))
		h = headerSeparators.ReplaceAllString(h, "_")
		headers = append(headers, strings.Trim(h, "_"))
	})
	return headers
}

type tableRow struct {
	cells     []string
	detailURL string
}

// dataRows collects td-bearing rows, skipping rows that are entirely blank
// after trimming, and captures each row's first detail link.
func (e *Extractor) dataRows(table *goquery.Selection) []tableRow {
	container := table.Find("tbody").First()
	if container.Length() == 0 {
		container = table
	}

	var rows []tableRow
	container.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() == 0 {
			return
		}

		cells := make([]string, 0, tds.Length())
		blank := true
		tds.Each(func(_ int, td *goquery.Selection) {
			v := strings.TrimSpace(td.Text())
			cells = append(cells, v)
			if v != "" {
				blank = false
			}
		})
		if blank {
			return
		}

		rows = append(rows, tableRow{
			cells:     cells,
			detailURL: e.detailLink(tr),
		})
	})
	return rows
}

// detailLink returns the first row-local link matching the detail pattern,
// absolutized against the portal base URL. Absent links are not an error.
func (e *Extractor) detailLink(tr *goquery.Selection) string {
	found := ""
	tr.Find("a[href]").EachWithBreak(func(_ int, a *goquery.Selection) bool {
		href, _ := a.Attr("href")
		if href == "" || !strings.Contains(strings.ToLower(href), strings.ToLower(e.detailPattern)) {
			return true
		}
		found = e.absolutize(href)
		return false
	})
	return found
}

func (e *Extractor) absolutize(href string) string {
	base, err := url.Parse(e.baseURL)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// coerceWidth pads or truncates a row to the schema width so column-count
// drift within a page never fails extraction.
func coerceWidth(cells []string, width int) []string {
	if len(cells) == width {
		return cells
	}
	if len(cells) > width {
		return cells[:width]
	}
	out := make([]string, width)
	copy(out, cells)
	return out
}
