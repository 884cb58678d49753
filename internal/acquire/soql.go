package acquire

import (
	"fmt"
	"strings"

	"github.com/sells-group/secop-cli/internal/model"
)

// soqlEscape doubles single quotes, the only metacharacter SoQL string
// literals have.
func soqlEscape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

func soqlIn(column string, values []string) string {
	if len(values) == 1 {
		return fmt.Sprintf("%s = '%s'", column, soqlEscape(values[0]))
	}
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + soqlEscape(v) + "'"
	}
	return fmt.Sprintf("%s in (%s)", column, strings.Join(quoted, ", "))
}

// BuildWhere renders a predicate as a SoQL where clause. An empty
// predicate yields "", which SODA treats as unfiltered.
func BuildWhere(pred model.Predicate) string {
	var clauses []string

	if pred.ProcessNumber != "" {
		clauses = append(clauses, fmt.Sprintf("proceso_de_compra = '%s'", soqlEscape(pred.ProcessNumber)))
	}
	if pred.Entity != "" {
		clauses = append(clauses, fmt.Sprintf("nombre_entidad = '%s'", soqlEscape(pred.Entity)))
	}
	if pred.Department != "" {
		clauses = append(clauses, fmt.Sprintf("departamento = '%s'", soqlEscape(pred.Department)))
	}
	if len(pred.Modalities) > 0 {
		clauses = append(clauses, soqlIn("modalidad_de_contratacion", pred.Modalities))
	}
	if len(pred.Statuses) > 0 {
		clauses = append(clauses, soqlIn("estado_contrato", pred.Statuses))
	}
	if pred.Keyword != "" {
		clauses = append(clauses,
			fmt.Sprintf("upper(objeto_del_contrato) like upper('%%%s%%')", soqlEscape(pred.Keyword)))
	}
	if pred.From != nil {
		clauses = append(clauses,
			fmt.Sprintf("fecha_de_inicio_del_contrato >= '%s'", pred.From.Format(soqlTimeLayout)))
	}
	if pred.To != nil {
		clauses = append(clauses,
			fmt.Sprintf("fecha_de_inicio_del_contrato <= '%s'", pred.To.Format(soqlTimeLayout)))
	}

	return strings.Join(clauses, " AND ")
}

const soqlTimeLayout = "2006-01-02T15:04:05"
