package export

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/config"
	"github.com/sells-group/secop-cli/internal/model"
)

// Columns picks the output column order: the first record's order, since
// every record in a run shares one schema.
func Columns(records []model.CleanedRecord) []string {
	if len(records) == 0 {
		return model.CanonicalColumns
	}
	return records[0].Columns
}

// WriteCSV writes records as delimited text with the configured delimiter
// and encoding. The file is written whole; a failure leaves no partial
// output behind.
func WriteCSV(path string, records []model.CleanedRecord, cfg config.OutputConfig) error {
	f, err := os.CreateTemp(filepath.Dir(path), ".export-*")
	if err != nil {
		return eris.Wrap(err, "export: create temp file")
	}
	tmpName := f.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if err := writeCSVTo(f, records, cfg); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return eris.Wrap(err, "export: close temp file")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "export: move into place")
	}

	zap.L().Info("export: csv written",
		zap.String("path", path),
		zap.Int("rows", len(records)),
		zap.String("encoding", cfg.Encoding),
	)
	return nil
}

func writeCSVTo(f *os.File, records []model.CleanedRecord, cfg config.OutputConfig) error {
	out, err := EncodedWriter(f, cfg.Encoding)
	if err != nil {
		return err
	}

	w := csv.NewWriter(out)
	w.Comma = DelimiterRune(cfg.Delimiter)

	columns := Columns(records)
	if err := w.Write(columns); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, rec := range records {
		row := make([]string, len(columns))
		for i, col := range columns {
			row[i] = rec.Field(col)
		}
		if err := w.Write(row); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return eris.Wrap(err, "export: flush")
	}

	// Transforming writers hold a tail buffer until closed. The caller
	// still owns the file handle itself.
	if c, ok := out.(io.Closer); ok && out != io.Writer(f) {
		return eris.Wrap(c.Close(), "export: flush encoder")
	}
	return nil
}
