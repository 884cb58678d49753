package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"

	"github.com/sells-group/secop-cli/internal/model"
)

// detailLabelMap links normalized detail-page labels to canonical column
// names. The portal renders the process sheet as label/value pairs with
// wording that varies between process types, so several labels feed each
// column; the first occurrence wins.
var detailLabelMap = map[string]string{
	"numero del proceso":              "proceso_de_compra",
	"nro proceso":                     "proceso_de_compra",
	"proceso":                         "proceso_de_compra",
	"entidad":                         "nombre_entidad",
	"nombre entidad":                  "nombre_entidad",
	"nit de la entidad":               "nit_entidad",
	"objeto del contrato":             "objeto_del_contrato",
	"objeto a contratar":              "objeto_del_contrato",
	"descripcion":                     "objeto_del_contrato",
	"modalidad de contratacion":       "modalidad_de_contratacion",
	"modalidad":                       "modalidad_de_contratacion",
	"tipo de contrato":                "tipo_de_contrato",
	"fecha de apertura":               "fecha_de_inicio_del_contrato",
	"fecha apertura":                  "fecha_de_inicio_del_contrato",
	"fecha de publicacion":            "fecha_de_inicio_del_contrato",
	"fecha de cierre":                 "fecha_de_fin_del_contrato",
	"fecha cierre":                    "fecha_de_fin_del_contrato",
	"fecha de adjudicacion":           "fecha_de_adjudicacion",
	"fecha adjudicacion":              "fecha_de_adjudicacion",
	"valor estimado del contrato":     "valor_estimado",
	"valor estimado":                  "valor_estimado",
	"cuantia":                         "valor_estimado",
	"presupuesto":                     "valor_estimado",
	"valor del contrato":              "valor_del_contrato",
	"valor contrato":                  "valor_del_contrato",
	"valor adjudicado":                "valor_adjudicado",
	"valor de adjudicacion":           "valor_adjudicado",
	"proveedor adjudicado":            "proveedor_adjudicado",
	"contratista":                     "proveedor_adjudicado",
	"proveedor":                       "proveedor_adjudicado",
	"razon social":                    "proveedor_adjudicado",
	"nit":                             "documento_proveedor",
	"nit proveedor":                   "documento_proveedor",
	"identificacion del contratista":  "documento_proveedor",
	"departamento":                    "departamento",
	"departamento entidad":            "departamento",
	"municipio":                       "ciudad",
	"ciudad":                          "ciudad",
	"ciudad entidad":                  "ciudad",
	"estado":                          "estado_contrato",
	"estado del proceso":              "estado_contrato",
}

var (
	trailingPunct   = regexp.MustCompile(`[:\-]+$`)
	labelNonLetters = regexp.MustCompile(`[^a-z0-9\s]`)
	labelSpaces     = regexp.MustCompile(`\s+`)
	accentReplacer  = strings.NewReplacer(
		"á", "a", "é", "e", "í", "i", "ó", "o", "ú", "u", "ñ", "n", "ü", "u",
	)
)

// normalizeLabel prepares a detail-page label for map lookup: lower-cased,
// de-accented, trailing punctuation and symbols stripped, spaces collapsed.
func normalizeLabel(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = trailingPunct.ReplaceAllString(s, "")
	s = accentReplacer.Replace(s)
	s = labelNonLetters.ReplaceAllString(s, "")
	s = labelSpaces.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// detailColumns is the column order for records built from a detail page.
var detailColumns = func() []string {
	cols := make([]string, 0, len(model.CanonicalColumns)+len(model.DetailColumns))
	cols = append(cols, model.CanonicalColumns...)
	cols = append(cols, model.DetailColumns...)
	return cols
}()

// Detail extracts the label/value sheet of a process detail page into a
// RawRecord. Three harvesting strategies run in order, each claiming only
// fields not yet found: two-cell table rows, definition lists, and
// label-plus-sibling pairs.
func Detail(html, pageURL string) (model.RawRecord, error) {
	root, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return model.RawRecord{}, eris.Wrap(err, "extract: parse detail page")
	}

	rec := model.NewRawRecord(detailColumns)
	rec.DetailURL = pageURL
	found := make(map[string]bool)

	claim := func(label, value string) {
		col, ok := detailLabelMap[normalizeLabel(label)]
		if !ok || found[col] {
			return
		}
		value = strings.TrimSpace(value)
		if value == "" || value == label {
			return
		}
		rec.Values[col] = value
		found[col] = true
	}

	// Table rows with a label cell followed by a value cell.
	root.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		tds := tr.Find("td")
		if tds.Length() < 2 {
			return
		}
		claim(tds.Eq(0).Text(), tds.Eq(1).Text())
	})

	// Definition lists.
	root.Find("dt").Each(func(_ int, dt *goquery.Selection) {
		dd := dt.NextFiltered("dd")
		if dd.Length() == 0 {
			return
		}
		claim(dt.Text(), dd.Text())
	})

	// Labels or spans with the value in the next sibling.
	root.Find("label, span").Each(func(_ int, label *goquery.Selection) {
		sibling := label.NextFiltered("span, div, p, td")
		if sibling.Length() == 0 {
			return
		}
		claim(label.Text(), sibling.Text())
	})

	if len(found) == 0 {
		return model.RawRecord{}, eris.Errorf("extract: no recognizable fields on detail page %s", pageURL)
	}

	rec.Values[model.DetailURLColumn] = pageURL
	return rec, nil
}
