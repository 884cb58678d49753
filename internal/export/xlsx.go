package export

import (
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/model"
)

const sheetName = "contratos"

// WriteXLSX writes records as a single-sheet workbook. Money and date
// fields keep their native types so spreadsheet formulas work on them.
func WriteXLSX(path string, records []model.CleanedRecord) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	columns := Columns(records)
	header := sheet.AddRow()
	for _, col := range columns {
		header.AddCell().SetString(col)
	}

	for _, rec := range records {
		row := sheet.AddRow()
		for _, col := range columns {
			cell := row.AddCell()
			if v, ok := rec.Money[col]; ok {
				if v != nil {
					cell.SetFloat(*v)
				}
				continue
			}
			if v, ok := rec.Dates[col]; ok {
				if v != nil {
					cell.SetString(v.Format("2006-01-02"))
				}
				continue
			}
			cell.SetString(rec.Field(col))
		}
	}

	if err := f.Save(path); err != nil {
		return eris.Wrap(err, "export: save workbook")
	}

	zap.L().Info("export: xlsx written",
		zap.String("path", path),
		zap.Int("rows", len(records)),
	)
	return nil
}
