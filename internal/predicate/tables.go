package predicate

// departmentByCode maps the portal's department <option value> codes to the
// textual names used by the open-data dataset. Unknown codes pass through
// unchanged (treated as already-canonical names).
var departmentByCode = map[string]string{
	"91000":  "Amazonas",
	"5000":   "Antioquia",
	"81000":  "Arauca",
	"8000":   "Atlántico",
	"1100":   "Bogotá D.C.",
	"1300":   "Bolívar",
	"15000":  "Boyacá",
	"17000":  "Caldas",
	"1800":   "Caquetá",
	"85000":  "Casanare",
	"19000":  "Cauca",
	"20000":  "Cesar",
	"27000":  "Chocó",
	"23000":  "Córdoba",
	"25000":  "Cundinamarca",
	"94000":  "Guainía",
	"95000":  "Guaviare",
	"41000":  "Huila",
	"44000":  "La Guajira",
	"47000":  "Magdalena",
	"50000":  "Meta",
	"52000":  "Nariño",
	"54000":  "Norte De Santander",
	"86000":  "Putumayo",
	"63000":  "Quindío",
	"66000":  "Risaralda",
	"88000":  "San Andrés, Providencia y Santa Catalina",
	"668000": "Santander",
	"70000":  "Sucre",
	"73000":  "Tolima",
	"76000":  "Valle del Cauca",
	"97000":  "Vaupés",
	"99000":  "Vichada",
}

// modalityByCode maps the portal's contracting-modality codes to canonical
// names.
var modalityByCode = map[string]string{
	"1":  "Licitación pública",
	"2":  "Contratación Directa (con ofertas)",
	"4":  "Contratación régimen especial",
	"9":  "Selección abreviada subasta inversa",
	"10": "Concurso de méritos abierto",
	"11": "Selección Abreviada de Menor Cuantía",
	"12": "Contratación directa",
	"13": "Mínima cuantía",
	"17": "Selección Abreviada servicios de Salud",
}

// statusCelebrated is the legacy alias that expands to an equivalence set.
const statusCelebrated = "celebrado"

// celebratedStatuses is the fixed set of contract states equivalent to the
// legacy "Celebrado" status.
var celebratedStatuses = []string{
	"Cerrado",
	"terminado",
	"En ejecución",
	"Modificado",
	"Prorrogado",
	"cedido",
}
