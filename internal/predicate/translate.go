// Package predicate translates legacy portal filter codes into the
// canonical, source-agnostic predicate shared by both acquisition paths.
package predicate

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/secop-cli/internal/model"
)

// dateLayouts are the accepted input layouts for filter date bounds, in
// the day-first convention the portal uses.
var dateLayouts = []string{
	"02/01/2006",
	"2/1/2006",
	"02-01-2006",
	"2006-01-02",
}

// Translate converts a SearchFilter into a Predicate. It is pure and
// deterministic: code lookups fall back to pass-through for unknown codes,
// the celebrated status alias expands to its equivalence set, and
// malformed date bounds are dropped rather than raised.
func Translate(f model.SearchFilter) model.Predicate {
	p := model.Predicate{
		Keyword:       f.Keyword,
		ProcessNumber: f.ProcessNumber,
		Entity:        f.Entity,
		MaxPages:      f.MaxPages,
		MaxRecords:    f.MaxRecords,
	}

	if f.DepartmentCode != "" {
		p.Department = DepartmentName(f.DepartmentCode)
	}

	for _, code := range f.ModalityCodes {
		if code == "" {
			continue
		}
		p.Modalities = append(p.Modalities, ModalityName(code))
	}

	if f.Status != "" {
		p.Statuses = ExpandStatus(f.Status)
	}

	if t, ok := parseBound(f.DateFrom); ok {
		start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		p.From = &start
	}
	if t, ok := parseBound(f.DateTo); ok {
		end := time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, time.UTC)
		p.To = &end
	}

	return p
}

// DepartmentName resolves a portal department code to its canonical name.
// Unknown codes are returned unchanged.
func DepartmentName(code string) string {
	if name, ok := departmentByCode[code]; ok {
		return name
	}
	return code
}

// ModalityName resolves a portal modality code to its canonical name.
// Unknown codes are returned unchanged.
func ModalityName(code string) string {
	if name, ok := modalityByCode[code]; ok {
		return name
	}
	return code
}

// ExpandStatus expands the celebrated alias (case-insensitive) to its
// fixed equivalence set; any other status passes through verbatim.
func ExpandStatus(status string) []string {
	if strings.EqualFold(strings.TrimSpace(status), statusCelebrated) {
		out := make([]string, len(celebratedStatuses))
		copy(out, celebratedStatuses)
		return out
	}
	return []string{status}
}

func parseBound(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	zap.L().Debug("predicate: unparsable date bound dropped", zap.String("value", s))
	return time.Time{}, false
}
