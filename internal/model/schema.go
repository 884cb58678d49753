package model

// KeyColumn uniquely identifies a contracting process across runs and
// across both sources. It is the deduplication key for the history store.
const KeyColumn = "proceso_de_compra"

// DetailURLColumn carries the per-row link to the process detail page.
const DetailURLColumn = "urlproceso"

// CanonicalColumns is the fixed, source-agnostic column set both sources
// converge into. The names match the open-data dataset so API rows need no
// renaming; portal rows are mapped via PortalRename.
var CanonicalColumns = []string{
	"nombre_entidad",
	"nit_entidad",
	"departamento",
	"ciudad",
	"modalidad_de_contratacion",
	"estado_contrato",
	"tipo_de_contrato",
	"objeto_del_contrato",
	"valor_del_contrato",
	"valor_pagado",
	"fecha_de_inicio_del_contrato",
	"fecha_de_fin_del_contrato",
	"documento_proveedor",
	"proveedor_adjudicado",
	"proceso_de_compra",
	"id_contrato",
	"urlproceso",
}

// PortalColumns is the positional schema of the portal results table, used
// when the page headers cannot be trusted.
var PortalColumns = []string{
	"numero_proceso",
	"entidad",
	"objeto_contrato",
	"modalidad",
	"fecha_apertura",
	"fecha_cierre",
	"cuantia",
	"estado",
	"departamento",
	"municipio",
}

// PortalRename maps portal column names onto the canonical schema.
var PortalRename = map[string]string{
	"numero_proceso":  "proceso_de_compra",
	"entidad":         "nombre_entidad",
	"objeto_contrato": "objeto_del_contrato",
	"modalidad":       "modalidad_de_contratacion",
	"fecha_apertura":  "fecha_de_inicio_del_contrato",
	"fecha_cierre":    "fecha_de_fin_del_contrato",
	"cuantia":         "valor_del_contrato",
	"estado":          "estado_contrato",
	"municipio":       "ciudad",
	"url_detalle":     "urlproceso",
}

// MoneyColumns require currency parsing during normalization.
var MoneyColumns = []string{
	"valor_del_contrato",
	"valor_pagado",
	"valor_estimado",
	"valor_adjudicado",
}

// DateColumns require date parsing during normalization.
var DateColumns = []string{
	"fecha_de_inicio_del_contrato",
	"fecha_de_fin_del_contrato",
	"fecha_de_adjudicacion",
}

// DetailColumns extends the canonical schema with the fields only present
// on a process detail page.
var DetailColumns = []string{
	"fecha_de_adjudicacion",
	"valor_estimado",
	"valor_adjudicado",
}
