package normalize

import "github.com/sells-group/secop-cli/internal/model"

// Report computes per-column null counts and distinct values plus a global
// completeness percentage for a cleaned record set.
func Report(records []model.CleanedRecord) model.QualityReport {
	report := model.QualityReport{
		Rows:    len(records),
		Columns: make(map[string]model.ColumnQuality),
	}
	if len(records) == 0 {
		return report
	}

	columns := records[0].Columns
	totalCells := 0
	totalNulls := 0

	for _, col := range columns {
		nulls := 0
		distinct := make(map[string]struct{})

		for _, rec := range records {
			v := rec.Field(col)
			if isNull(rec, col) {
				nulls++
			} else {
				distinct[v] = struct{}{}
			}
		}

		report.Columns[col] = model.ColumnQuality{
			Nulls:       nulls,
			NullPercent: percent(nulls, len(records)),
			Distinct:    len(distinct),
		}
		totalCells += len(records)
		totalNulls += nulls
	}

	if totalCells > 0 {
		report.Completeness = percent(totalCells-totalNulls, totalCells)
	}
	return report
}

func isNull(rec model.CleanedRecord, col string) bool {
	if v, ok := rec.Money[col]; ok {
		return v == nil
	}
	if v, ok := rec.Dates[col]; ok {
		return v == nil
	}
	return rec.Strings[col] == ""
}

func percent(part, whole int) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole) * 100
}
