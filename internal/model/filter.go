package model

import "time"

// SearchFilter holds the caller's search criteria exactly as entered.
// Every field is optional; a zero value means "no constraint". Codes are
// the portal's <option value> codes and are translated by the predicate
// package before either source sees them.
type SearchFilter struct {
	Keyword        string   `json:"keyword,omitempty"`
	ProcessNumber  string   `json:"process_number,omitempty"`
	Entity         string   `json:"entity,omitempty"`
	DepartmentCode string   `json:"department_code,omitempty"`
	ModalityCodes  []string `json:"modality_codes,omitempty"`
	Status         string   `json:"status,omitempty"`
	DateFrom       string   `json:"date_from,omitempty"` // dd/MM/yyyy
	DateTo         string   `json:"date_to,omitempty"`   // dd/MM/yyyy
	MaxPages       int      `json:"max_pages,omitempty"`
	MaxRecords     int      `json:"max_records,omitempty"`
}

// Predicate is the translated, source-agnostic filter expression. It is
// produced once per run and reused by both the browser path and the
// open-data path.
type Predicate struct {
	Keyword       string
	ProcessNumber string
	Entity        string
	Department    string   // canonical department name
	Modalities    []string // canonical modality names
	Statuses      []string // expanded status equivalence set
	From          *time.Time
	To            *time.Time
	MaxPages      int
	MaxRecords    int
}

// Empty reports whether the predicate constrains nothing.
func (p Predicate) Empty() bool {
	return p.Keyword == "" && p.ProcessNumber == "" && p.Entity == "" &&
		p.Department == "" && len(p.Modalities) == 0 && len(p.Statuses) == 0 &&
		p.From == nil && p.To == nil
}
