package extract

import (
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/model"
)

// Pages parses a sequence of captured pages independently and consolidates
// their rows. A page that fails to parse is logged and skipped; the whole
// consolidation fails only when zero pages yielded rows. Exact-duplicate
// rows (pagination boundary overlap) are removed.
func (e *Extractor) Pages(docs []model.PageDocument) ([]model.RawRecord, error) {
	if len(docs) == 0 {
		return nil, eris.New("extract: no pages to consolidate")
	}

	var all []model.RawRecord
	failures := 0
	for _, doc := range docs {
		records, err := e.Page(doc)
		if err != nil {
			failures++
			zap.L().Warn("extract: page skipped",
				zap.Int("page", doc.Index),
				zap.Error(err),
			)
			continue
		}
		all = append(all, records...)
	}

	if len(all) == 0 {
		return nil, eris.Errorf("extract: none of %d pages produced rows (%d parse failures)",
			len(docs), failures)
	}

	deduped := dedupe(all)
	if removed := len(all) - len(deduped); removed > 0 {
		zap.L().Info("extract: duplicate rows removed", zap.Int("rows", removed))
	}

	zap.L().Info("extract: pages consolidated",
		zap.Int("pages", len(docs)),
		zap.Int("failures", failures),
		zap.Int("rows", len(deduped)),
	)
	return deduped, nil
}

// dedupe removes exact-duplicate rows while preserving order.
func dedupe(records []model.RawRecord) []model.RawRecord {
	seen := make(map[string]struct{}, len(records))
	out := records[:0:0]
	for _, rec := range records {
		key := fingerprint(rec)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, rec)
	}
	return out
}

func fingerprint(rec model.RawRecord) string {
	var b strings.Builder
	for _, col := range rec.Columns {
		b.WriteString(rec.Values[col])
		b.WriteByte('\x1f')
	}
	b.WriteString(rec.DetailURL)
	return b.String()
}
