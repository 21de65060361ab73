package service

import (
	"context"
	"errors"
	"fmt"

	"nextops/internal/dto"
	"nextops/internal/model"
	"nextops/internal/parser"
	"nextops/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// ArchivoImportacion is one uploaded file plus its declared operation type.
type ArchivoImportacion struct {
	Nombre        string
	Contenido     []byte
	TipoOperacion string
}

type ImportService interface {
	// ImportarLote merges the files against persisted OTs. If any
	// cliente/operativo conflict is detected anywhere in the batch, nothing is
	// persisted and the result carries the full conflict list.
	ImportarLote(ctx context.Context, archivos []ArchivoImportacion) (*dto.ImportResult, error)
	// ResolverConflictos re-runs the same merge over the re-submitted file set,
	// applying one human decision per (numero_ot, campo) pair, then commits.
	ResolverConflictos(ctx context.Context, archivos []ArchivoImportacion, resoluciones []dto.ResolucionConflicto) (*dto.ImportResult, error)
}

type importService struct {
	otRepo repository.OTRepository
}

func NewImportService(otRepo repository.OTRepository) ImportService {
	return &importService{otRepo: otRepo}
}

// runTx executes fn inside a GORM transaction when db is available,
// or calls fn(nil) directly when db is nil (unit test mode).
func runTx(ctx context.Context, db *gorm.DB, fn func(tx *gorm.DB) error) error {
	if db == nil {
		return fn(nil)
	}
	return db.WithContext(ctx).Transaction(fn)
}

func (s *importService) ImportarLote(ctx context.Context, archivos []ArchivoImportacion) (*dto.ImportResult, error) {
	return s.procesar(ctx, archivos, nil)
}

func (s *importService) ResolverConflictos(ctx context.Context, archivos []ArchivoImportacion, resoluciones []dto.ResolucionConflicto) (*dto.ImportResult, error) {
	// Immutable resolution set, keyed by (numero_ot, campo). Built once up
	// front and passed through the merge — never mutated during processing.
	set := make(map[string]string, len(resoluciones))
	for _, r := range resoluciones {
		set[claveConflicto(parser.Normalizar(r.NumeroOT), r.Campo)] = r.Resolucion
	}
	return s.procesar(ctx, archivos, set)
}

// candidato is the in-memory working copy of one OT while the batch merges.
// Later rows of the batch (same or later files) merge onto it, so intra-batch
// clashes surface exactly like clashes against persisted state.
type candidato struct {
	ot        *model.OrdenTrabajo
	existente bool
}

// procesar is the shared merge core. resoluciones == nil means detection mode
// (first round trip); non-nil means resolution mode (re-submission).
//
// Merge rules per row:
//   - unknown key: create unconditionally
//   - cliente / operativo: empty-vs-non-empty never conflicts, the non-empty
//     value wins; equal after normalization is no conflict; both non-empty and
//     different is a conflict, resolved per the resolution set or deferred
//   - every other field: last write wins, unless the OT carries a
//     manually-edited marker for that field
//
// One conflict anywhere defers persistence of the entire batch: the commit is
// all-or-nothing, so a reader never observes a half-merged state.
func (s *importService) procesar(ctx context.Context, archivos []ArchivoImportacion, resoluciones map[string]string) (*dto.ImportResult, error) {
	result := &dto.ImportResult{
		Errores:      []dto.FilaDiagnostico{},
		Advertencias: []dto.FilaDiagnostico{},
	}

	working := make(map[string]*candidato)
	var orden []string // deterministic commit order
	var conflictos []dto.ConflictoImportacion
	vistos := make(map[string]bool) // conflict identity is (ot, campo); report each once

	for _, archivo := range archivos {
		parsed, err := parser.ParseArchivo(archivo.Nombre, archivo.Contenido, archivo.TipoOperacion)
		if err != nil {
			return nil, fmt.Errorf("archivo %s: %w", archivo.Nombre, err)
		}
		result.Advertencias = append(result.Advertencias, parsed.Advertencias...)
		result.Errores = append(result.Errores, parsed.Errores...)
		result.TotalFilas += len(parsed.Filas) + len(parsed.Advertencias) + len(parsed.Errores)
		result.Omitidas += len(parsed.Advertencias) + len(parsed.Errores)

		for i := range parsed.Filas {
			fila := &parsed.Filas[i]

			c, ok := working[fila.NumeroOT]
			if !ok {
				existente, err := s.otRepo.FindByNumero(ctx, fila.NumeroOT)
				switch {
				case err == nil:
					c = &candidato{ot: existente, existente: true}
				case errors.Is(err, gorm.ErrRecordNotFound):
					c = &candidato{ot: &model.OrdenTrabajo{
						NumeroOT:        fila.NumeroOT,
						TipoOperacion:   archivo.TipoOperacion,
						EstadoProvision: model.ProvisionPendiente,
					}}
				default:
					return nil, fmt.Errorf("buscando OT %s: %w", fila.NumeroOT, err)
				}
				working[fila.NumeroOT] = c
				orden = append(orden, fila.NumeroOT)
			}

			// Conflict-sensitive fields first.
			mergeCampoConflictivo(c.ot, model.CampoCliente, fila, resoluciones, &conflictos, vistos)
			mergeCampoConflictivo(c.ot, model.CampoOperativo, fila, resoluciones, &conflictos, vistos)

			// Everything else: silent last-write-wins, manual edits respected.
			mergeRestoCampos(c.ot, fila, archivo.TipoOperacion)

			result.Procesadas++
		}
	}

	// Detection mode with conflicts: defer the whole batch, persist nothing.
	if len(conflictos) > 0 {
		result.HasConflicts = true
		result.Conflictos = conflictos
		log.Info().
			Int("conflictos", len(conflictos)).
			Int("filas", result.Procesadas).
			Msg("importación detenida: conflictos pendientes de resolución")
		return result, nil
	}

	// No conflicts (or all resolved): commit every create/update atomically.
	txErr := runTx(ctx, s.otRepo.DB(), func(tx *gorm.DB) error {
		for _, key := range orden {
			c := working[key]
			if c.existente {
				if err := s.otRepo.UpdateTx(ctx, tx, c.ot); err != nil {
					return fmt.Errorf("actualizando OT %s: %w", key, err)
				}
				result.Actualizadas++
			} else {
				if err := s.otRepo.CreateTx(ctx, tx, c.ot); err != nil {
					return fmt.Errorf("creando OT %s: %w", key, err)
				}
				result.Creadas++
			}
		}
		return nil
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().
		Int("creadas", result.Creadas).
		Int("actualizadas", result.Actualizadas).
		Int("omitidas", result.Omitidas).
		Msg("lote importado")
	return result, nil
}

// mergeCampoConflictivo applies the conflict rules for cliente / operativo.
// Values compare and persist in normalized form (uppercased, trimmed,
// collapsed whitespace). The resolution set decides detected clashes in
// resolution mode; an unlisted clash falls back to mantener_actual — the
// explicit fail-safe branch, never an accidental overwrite of trusted data.
func mergeCampoConflictivo(ot *model.OrdenTrabajo, campo string, fila *parser.FilaOT, resoluciones map[string]string, conflictos *[]dto.ConflictoImportacion, vistos map[string]bool) {
	var actual, nuevo string
	switch campo {
	case model.CampoCliente:
		actual, nuevo = parser.Normalizar(ot.Cliente), fila.Cliente
	case model.CampoOperativo:
		actual, nuevo = parser.Normalizar(ot.Operativo), fila.Operativo
	}

	aplicar := func(v string) {
		switch campo {
		case model.CampoCliente:
			ot.Cliente = v
		case model.CampoOperativo:
			ot.Operativo = v
		}
	}

	switch {
	case nuevo == "":
		// Incoming empty never wins and never conflicts; keep (normalized) current.
		aplicar(actual)
	case actual == "":
		aplicar(nuevo)
	case actual == nuevo:
		aplicar(actual)
	default:
		// Genuine clash: both non-empty, different after normalization.
		if resoluciones != nil {
			if resoluciones[claveConflicto(ot.NumeroOT, campo)] == dto.ResolucionUsarNuevo {
				aplicar(nuevo)
			} else {
				aplicar(actual) // mantener_actual, explicitly or by default
			}
			return
		}
		aplicar(actual)
		clave := claveConflicto(ot.NumeroOT, campo)
		if !vistos[clave] {
			vistos[clave] = true
			*conflictos = append(*conflictos, dto.ConflictoImportacion{
				NumeroOT:      ot.NumeroOT,
				Campo:         campo,
				ValorActual:   actual,
				ValorNuevo:    nuevo,
				ArchivoOrigen: fila.Archivo,
				Fila:          fila.Fila,
			})
		}
	}
}

// mergeRestoCampos overwrites the non-conflict fields with the incoming row's
// values. Absent cells leave the current value; fields the user edited by hand
// are never touched.
func mergeRestoCampos(ot *model.OrdenTrabajo, fila *parser.FilaOT, tipoOperacion string) {
	if !ot.EditadoManualmente("tipo_operacion") {
		ot.TipoOperacion = tipoOperacion
	}
	if fila.MBL != "" && !ot.EditadoManualmente("mbl") {
		ot.MBL = &fila.MBL
	}
	if fila.Nave != "" && !ot.EditadoManualmente("nave") {
		ot.Nave = &fila.Nave
	}
	if fila.PuertoOrigen != "" && !ot.EditadoManualmente("puerto_origen") {
		ot.PuertoOrigen = &fila.PuertoOrigen
	}
	if fila.PuertoDestino != "" && !ot.EditadoManualmente("puerto_destino") {
		ot.PuertoDestino = &fila.PuertoDestino
	}
	if fila.ETD != nil && !ot.EditadoManualmente("etd") {
		ot.ETD = fila.ETD
	}
	if fila.ETA != nil && !ot.EditadoManualmente("eta") {
		ot.ETA = fila.ETA
	}
	if len(fila.Contenedores) > 0 && !ot.EditadoManualmente("contenedores") {
		ot.Contenedores = fila.Contenedores
	}
	if len(fila.HBLs) > 0 && !ot.EditadoManualmente("hbls") {
		ot.HBLs = fila.HBLs
	}
	if fila.Comentarios != "" && !ot.EditadoManualmente("comentarios") {
		ot.Comentarios = &fila.Comentarios
	}
}

func claveConflicto(numeroOT, campo string) string {
	return numeroOT + "|" + campo
}
