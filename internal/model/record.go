package model

import "time"

// PageDocument is one captured page of portal markup. It is produced by
// the browser engine and never mutated after capture.
type PageDocument struct {
	HTML       string
	Index      int // 1-based page number
	CapturedAt time.Time
}

// RawRecord is one extracted row: an ordered mapping from column name to
// the untyped string scraped from the source, plus the row's detail link
// when one was found.
type RawRecord struct {
	Columns   []string
	Values    map[string]string
	DetailURL string
}

// NewRawRecord creates a RawRecord with the given column order.
func NewRawRecord(columns []string) RawRecord {
	return RawRecord{
		Columns: columns,
		Values:  make(map[string]string, len(columns)),
	}
}

// Equal reports whether two raw records carry identical values. Used to
// drop exact duplicates arising from pagination boundary overlap.
func (r RawRecord) Equal(other RawRecord) bool {
	if len(r.Columns) != len(other.Columns) {
		return false
	}
	for i, c := range r.Columns {
		if other.Columns[i] != c {
			return false
		}
		if r.Values[c] != other.Values[c] {
			return false
		}
	}
	return r.DetailURL == other.DetailURL
}

// CleanedRecord is a RawRecord after normalization: strings trimmed and
// collapsed, money fields parsed to nullable decimals, date fields parsed
// to nullable timestamps. Degraded is set when any field defaulted to nil
// because its input was unparsable.
type CleanedRecord struct {
	Columns   []string
	Strings   map[string]string
	Money     map[string]*float64
	Dates     map[string]*time.Time
	DetailURL string
	Degraded  bool
}

// Key returns the process identifier for this record, or "" if absent.
func (r CleanedRecord) Key() string {
	return r.Strings[KeyColumn]
}

// Field returns the display value for a column regardless of its type.
func (r CleanedRecord) Field(col string) string {
	if v, ok := r.Strings[col]; ok {
		return v
	}
	if v, ok := r.Money[col]; ok && v != nil {
		return formatMoney(*v)
	}
	if v, ok := r.Dates[col]; ok && v != nil {
		return v.Format("2006-01-02")
	}
	return ""
}

// Blank reports whether every field of the record is empty or nil after
// normalization.
func (r CleanedRecord) Blank() bool {
	for _, v := range r.Strings {
		if v != "" {
			return false
		}
	}
	for _, v := range r.Money {
		if v != nil {
			return false
		}
	}
	for _, v := range r.Dates {
		if v != nil {
			return false
		}
	}
	return true
}

// DetailRecord is a CleanedRecord enriched from the process detail page.
type DetailRecord struct {
	CleanedRecord
	Provider      string
	ProviderTaxID string
	AwardDate     *time.Time
	AwardValue    *float64
}
