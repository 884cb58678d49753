package model

import "strconv"

// ColumnQuality summarizes one column of a normalized record set.
type ColumnQuality struct {
	Nulls       int     `json:"nulls"`
	NullPercent float64 `json:"null_percent"`
	Distinct    int     `json:"distinct"`
}

// QualityReport summarizes the completeness of a normalized record set.
type QualityReport struct {
	Rows         int                      `json:"rows"`
	Columns      map[string]ColumnQuality `json:"columns"`
	Completeness float64                  `json:"completeness_percent"`
}

func formatMoney(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
