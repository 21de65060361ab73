package dto

// ─── Resoluciones ────────────────────────────────────────────────────────────

// Resoluciones posibles para un conflicto de importación.
const (
	ResolucionMantenerActual = "mantener_actual"
	ResolucionUsarNuevo      = "usar_nuevo"
)

// ResolucionConflicto is one human decision for a (numero_ot, campo) pair.
type ResolucionConflicto struct {
	NumeroOT   string `json:"numero_ot"  validate:"required"`
	Campo      string `json:"campo"      validate:"required,oneof=cliente operativo"`
	Resolucion string `json:"resolucion" validate:"required,oneof=mantener_actual usar_nuevo"`
}

// ResolverConflictosRequest is the JSON part of the re-submission: the same
// file set is re-uploaded alongside this resolution list.
type ResolverConflictosRequest struct {
	Resoluciones []ResolucionConflicto `json:"resoluciones" validate:"required,min=1,dive"`
}

// ─── Resultado de importación ────────────────────────────────────────────────

// ConflictoImportacion is an irreconcilable value clash on cliente or
// operativo, pending a human decision. ArchivoOrigen and Fila point at the row
// that supplied ValorNuevo — whether it clashed against persisted state or
// against an earlier file of the same batch.
type ConflictoImportacion struct {
	NumeroOT      string `json:"numero_ot"`
	Campo         string `json:"campo"`
	ValorActual   string `json:"valor_actual"`
	ValorNuevo    string `json:"valor_nuevo"`
	ArchivoOrigen string `json:"archivo_origen"`
	Fila          int    `json:"fila"`
}

// FilaDiagnostico records a row-level parse issue; the row is skipped and the
// batch continues.
type FilaDiagnostico struct {
	Archivo string `json:"archivo"`
	Fila    int    `json:"fila"`
	Detalle string `json:"detalle"`
}

// ImportResult is the outcome of an import or conflict-resolution call.
// HasConflicts=true means nothing was persisted and Conflictos must be
// resolved and the same files re-submitted.
type ImportResult struct {
	TotalFilas    int                    `json:"total_filas"`
	Procesadas    int                    `json:"procesadas"`
	Creadas       int                    `json:"creadas"`
	Actualizadas  int                    `json:"actualizadas"`
	Omitidas      int                    `json:"omitidas"`
	Errores       []FilaDiagnostico      `json:"errores"`
	Advertencias  []FilaDiagnostico      `json:"advertencias"`
	HasConflicts  bool                   `json:"has_conflicts"`
	Conflictos    []ConflictoImportacion `json:"conflictos,omitempty"`
}
