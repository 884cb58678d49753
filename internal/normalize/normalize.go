// Package normalize converts extracted rows from either source into the
// canonical typed schema. Values are never dropped or zeroed: anything
// unparsable becomes nil and flags the record as degraded.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/model"
)

var (
	lineBreaks  = regexp.MustCompile(`[\n\r\t]+`)
	multiSpaces = regexp.MustCompile(`\s{2,}`)
)

// Collapse trims a string and collapses internal whitespace and line
// breaks into single spaces.
func Collapse(s string) string {
	s = lineBreaks.ReplaceAllString(s, " ")
	s = multiSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// Normalizer applies the cleaning pipeline to raw records.
type Normalizer struct {
	rename    map[string]string
	moneyCols map[string]bool
	dateCols  map[string]bool
}

// New creates a Normalizer using the canonical schema's money and date
// column lists and the portal rename table.
func New() *Normalizer {
	n := &Normalizer{
		rename:    model.PortalRename,
		moneyCols: make(map[string]bool, len(model.MoneyColumns)),
		dateCols:  make(map[string]bool, len(model.DateColumns)),
	}
	for _, c := range model.MoneyColumns {
		n.moneyCols[c] = true
	}
	for _, c := range model.DateColumns {
		n.dateCols[c] = true
	}
	return n
}

// Records runs the full cleaning pipeline: string normalization,
// empty-row elimination (before typing, so string-emptiness and true-null
// are both caught), column renaming to the canonical schema, then currency
// and date typing. Returns the cleaned rows and a per-run quality report.
func (n *Normalizer) Records(raws []model.RawRecord) ([]model.CleanedRecord, model.QualityReport) {
	cleaned := make([]model.CleanedRecord, 0, len(raws))
	dropped := 0

	for _, raw := range raws {
		rec, blank := n.Record(raw)
		if blank {
			dropped++
			continue
		}
		cleaned = append(cleaned, rec)
	}

	if dropped > 0 {
		zap.L().Info("normalize: empty rows removed", zap.Int("rows", dropped))
	}

	report := Report(cleaned)
	zap.L().Info("normalize: records cleaned",
		zap.Int("rows", report.Rows),
		zap.Float64("completeness_percent", report.Completeness),
	)
	return cleaned, report
}

// Record cleans a single raw row. The second return value is true when the
// row is entirely blank after string normalization and should be removed.
func (n *Normalizer) Record(raw model.RawRecord) (model.CleanedRecord, bool) {
	// Pass 1: string normalization under the original column names.
	trimmed := make(map[string]string, len(raw.Columns))
	allBlank := true
	for _, col := range raw.Columns {
		v := Collapse(raw.Values[col])
		trimmed[col] = v
		if v != "" {
			allBlank = false
		}
	}
	if allBlank {
		return model.CleanedRecord{}, true
	}

	// Pass 2: rename to canonical names, then type.
	rec := model.CleanedRecord{
		Columns:   make([]string, 0, len(raw.Columns)),
		Strings:   make(map[string]string, len(raw.Columns)),
		Money:     make(map[string]*float64),
		Dates:     make(map[string]*time.Time),
		DetailURL: raw.DetailURL,
	}
	for _, col := range raw.Columns {
		name := col
		if canonical, ok := n.rename[col]; ok {
			name = canonical
		}
		rec.Columns = append(rec.Columns, name)
		v := trimmed[col]

		switch {
		case n.moneyCols[name]:
			parsed := Money(v)
			rec.Money[name] = parsed
			if parsed == nil && v != "" {
				rec.Degraded = true
			}
		case n.dateCols[name]:
			parsed := Date(v)
			rec.Dates[name] = parsed
			if parsed == nil && v != "" {
				rec.Degraded = true
			}
		default:
			rec.Strings[name] = v
		}
	}

	if rec.DetailURL == "" {
		rec.DetailURL = rec.Strings[model.DetailURLColumn]
	}

	return rec, false
}
