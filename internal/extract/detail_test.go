package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const detailURL = "https://www.contratos.gov.co/consultas/detalleProceso.do?numConstancia=25-1"

func TestDetail_TableRows(t *testing.T) {
	html := `<html><body><table>
<tr><td>Número del Proceso:</td><td>MC-001-2025</td></tr>
<tr><td>Entidad</td><td>Alcaldía de Floridablanca</td></tr>
<tr><td>Cuantía:</td><td>$12.345.678</td></tr>
<tr><td>Fecha de Adjudicación</td><td>15/03/2025</td></tr>
<tr><td>Campo desconocido</td><td>ignorado</td></tr>
</table></body></html>`

	rec, err := Detail(html, detailURL)

	require.NoError(t, err)
	assert.Equal(t, "MC-001-2025", rec.Values["proceso_de_compra"])
	assert.Equal(t, "Alcaldía de Floridablanca", rec.Values["nombre_entidad"])
	assert.Equal(t, "$12.345.678", rec.Values["valor_estimado"])
	assert.Equal(t, "15/03/2025", rec.Values["fecha_de_adjudicacion"])
	assert.Equal(t, detailURL, rec.Values["urlproceso"])
	assert.Equal(t, detailURL, rec.DetailURL)
	_, present := rec.Values["col_desconocido"]
	assert.False(t, present)
}

func TestDetail_DefinitionList(t *testing.T) {
	html := `<html><body><dl>
<dt>Contratista</dt><dd>Seguridad Andina SAS</dd>
<dt>NIT</dt><dd>900123456-7</dd>
</dl></body></html>`

	rec, err := Detail(html, detailURL)

	require.NoError(t, err)
	assert.Equal(t, "Seguridad Andina SAS", rec.Values["proveedor_adjudicado"])
	assert.Equal(t, "900123456-7", rec.Values["documento_proveedor"])
}

func TestDetail_LabelSiblings(t *testing.T) {
	html := `<html><body>
<div><label>Valor Adjudicado:</label><span>$9.876.543,21</span></div>
<div><span>Estado del Proceso</span><span>Celebrado</span></div>
</body></html>`

	rec, err := Detail(html, detailURL)

	require.NoError(t, err)
	assert.Equal(t, "$9.876.543,21", rec.Values["valor_adjudicado"])
	assert.Equal(t, "Celebrado", rec.Values["estado_contrato"])
}

func TestDetail_FirstOccurrenceWins(t *testing.T) {
	html := `<html><body><table>
<tr><td>Valor Estimado</td><td>$100</td></tr>
<tr><td>Cuantía</td><td>$200</td></tr>
</table></body></html>`

	rec, err := Detail(html, detailURL)

	require.NoError(t, err)
	assert.Equal(t, "$100", rec.Values["valor_estimado"])
}

func TestDetail_NothingRecognized(t *testing.T) {
	_, err := Detail("<html><body><p>mantenimiento programado</p></body></html>", detailURL)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "no recognizable fields")
}

func TestNormalizeLabel(t *testing.T) {
	cases := map[string]string{
		"Número del Proceso:":  "numero del proceso",
		"  Cuantía - ":         "cuantia",
		"FECHA DE ADJUDICACIÓN": "fecha de adjudicacion",
		"Valor   Estimado":     "valor estimado",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeLabel(in), in)
	}
}
