package acquire

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/export"
	"github.com/sells-group/secop-cli/internal/model"
)

// History is the keyed flat-file store of every contract seen across
// runs. Rows are keyed on the process identifier; appending a key that
// already exists replaces its payload in place, so the most recent
// acquisition wins. Keyless rows are kept but never merged. The store
// assumes a single writer.
type History struct {
	path     string
	delim    rune
	encoding string
}

// NewHistory creates a History over the configured file. The file may not
// exist yet; the first merge creates it.
func NewHistory(path string, cfg config.HistoryConfig) *History {
	return &History{
		path:     path,
		delim:    export.DelimiterRune(cfg.Delimiter),
		encoding: cfg.Encoding,
	}
}

type historyRow struct {
	key    string
	values []string
}

// Merge folds the records into the store and persists atomically: the
// whole merged set is computed in memory, written to a temp file in the
// same directory, then renamed over the store. A failure at any point
// leaves the previous file untouched. Columns the stored header lacks
// widen it in place; rows written under the narrower header are
// backfilled with empty cells, so no incoming value is ever dropped.
func (h *History) Merge(records []model.CleanedRecord) (int, error) {
	columns, rows, err := h.load()
	if err != nil {
		return 0, err
	}

	merged := unionColumns(columns, export.Columns(records))
	if len(columns) > 0 && len(merged) > len(columns) {
		zap.L().Info("history: header widened",
			zap.Strings("added", merged[len(columns):]))
	}
	columns = merged
	for i := range rows {
		for len(rows[i].values) < len(columns) {
			rows[i].values = append(rows[i].values, "")
		}
	}

	index := make(map[string]int, len(rows))
	for i, r := range rows {
		if r.key != "" {
			index[r.key] = i
		}
	}

	updated := 0
	for _, rec := range records {
		row := historyRow{key: rec.Key(), values: flatten(rec, columns)}
		if row.key != "" {
			if i, seen := index[row.key]; seen {
				rows[i] = row
				updated++
				continue
			}
			index[row.key] = len(rows)
		}
		rows = append(rows, row)
	}

	if err := h.persist(columns, rows); err != nil {
		return 0, err
	}

	zap.L().Info("history: merged",
		zap.String("path", h.path),
		zap.Int("incoming", len(records)),
		zap.Int("updated", updated),
		zap.Int("total", len(rows)),
	)
	return len(rows), nil
}

// Load returns the stored rows as raw records, in file order.
func (h *History) Load() ([]model.RawRecord, error) {
	columns, rows, err := h.load()
	if err != nil {
		return nil, err
	}

	records := make([]model.RawRecord, 0, len(rows))
	for _, r := range rows {
		rec := model.NewRawRecord(columns)
		for i, col := range columns {
			if i < len(r.values) {
				rec.Values[col] = r.values[i]
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (h *History) load() ([]string, []historyRow, error) {
	f, err := os.Open(h.path)
	if os.IsNotExist(err) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, eris.Wrap(err, "history: open")
	}
	defer func() { _ = f.Close() }()

	decoded, err := export.EncodedReader(f, h.encoding)
	if err != nil {
		return nil, nil, err
	}

	r := csv.NewReader(decoded)
	r.Comma = h.delim
	r.FieldsPerRecord = -1 // tolerate drift in old files

	all, err := r.ReadAll()
	if err != nil {
		return nil, nil, eris.Wrap(err, "history: parse")
	}
	if len(all) == 0 {
		return nil, nil, nil
	}

	columns := all[0]
	keyIdx := -1
	for i, col := range columns {
		if col == model.KeyColumn {
			keyIdx = i
			break
		}
	}

	rows := make([]historyRow, 0, len(all)-1)
	for _, values := range all[1:] {
		key := ""
		if keyIdx >= 0 && keyIdx < len(values) {
			key = values[keyIdx]
		}
		rows = append(rows, historyRow{key: key, values: values})
	}
	return columns, rows, nil
}

func (h *History) persist(columns []string, rows []historyRow) error {
	f, err := os.CreateTemp(filepath.Dir(h.path), ".history-*")
	if err != nil {
		return eris.Wrap(err, "history: create temp file")
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	encoded, err := export.EncodedWriter(f, h.encoding)
	if err != nil {
		_ = f.Close()
		return err
	}

	w := csv.NewWriter(encoded)
	w.Comma = h.delim
	if err := w.Write(columns); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "history: write header")
	}
	for _, r := range rows {
		if err := w.Write(r.values); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "history: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		_ = f.Close()
		return eris.Wrap(err, "history: flush")
	}
	// Transforming writers hold a tail buffer until closed. The file
	// handle itself is closed separately below.
	if c, ok := encoded.(io.Closer); ok && encoded != io.Writer(f) {
		if err := c.Close(); err != nil {
			_ = f.Close()
			return eris.Wrap(err, "history: flush encoder")
		}
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "history: close temp file")
	}

	if err := os.Rename(tmpName, h.path); err != nil {
		return eris.Wrap(err, "history: move into place")
	}
	return nil
}

// unionColumns keeps the stored order and appends incoming columns the
// header has not seen.
func unionColumns(stored, incoming []string) []string {
	seen := make(map[string]bool, len(stored))
	for _, col := range stored {
		seen[col] = true
	}
	out := stored
	for _, col := range incoming {
		if !seen[col] {
			seen[col] = true
			out = append(out, col)
		}
	}
	return out
}

func flatten(rec model.CleanedRecord, columns []string) []string {
	values := make([]string, len(columns))
	for i, col := range columns {
		values[i] = rec.Field(col)
	}
	return values
}
