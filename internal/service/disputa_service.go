package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nextops/internal/dto"
	"nextops/internal/model"
	"nextops/internal/repository"
	"nextops/internal/worker"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// toleranciaMonto is the allowed drift between a nota de crédito amount and
// the resolution's expected amount.
var toleranciaMonto = decimal.RequireFromString("0.01")

// ErrValidacion carries field-keyed validation detail for form re-display.
// Nothing is persisted when a resolution fails validation.
type ErrValidacion struct {
	Campos map[string]string
}

func (e *ErrValidacion) Error() string {
	partes := make([]string, 0, len(e.Campos))
	for campo, detalle := range e.Campos {
		partes = append(partes, campo+": "+detalle)
	}
	return "validación fallida — " + strings.Join(partes, "; ")
}

func errCampo(campo, detalle string) *ErrValidacion {
	return &ErrValidacion{Campos: map[string]string{campo: detalle}}
}

type DisputaService interface {
	CrearDisputa(ctx context.Context, facturaID uuid.UUID, req dto.CrearDisputaRequest) (*dto.DisputaResponse, error)
	// ResolverDisputa applies a resolution outcome: dispute, factura, optional
	// nota de crédito and timeline event mutate as one atomic unit.
	// adjuntoPath is the already-stored attachment, validated at the boundary.
	ResolverDisputa(ctx context.Context, id uuid.UUID, req dto.ResolverDisputaRequest, adjuntoPath *string) (*dto.ResolucionDisputaResponse, error)
	AgregarComentario(ctx context.Context, id uuid.UUID, req dto.ComentarioRequest) (*dto.DisputaEventoResponse, error)
	Obtener(ctx context.Context, id uuid.UUID) (*dto.DisputaResponse, error)
	Listar(ctx context.Context, filter dto.DisputaFilter) (*dto.DisputaListResponse, error)
}

type disputaService struct {
	repo        repository.DisputaRepository
	facturaRepo repository.FacturaRepository
	notaRepo    repository.NotaCreditoRepository
	dispatcher  *worker.Dispatcher
}

func NewDisputaService(
	repo repository.DisputaRepository,
	facturaRepo repository.FacturaRepository,
	notaRepo repository.NotaCreditoRepository,
	dispatcher *worker.Dispatcher,
) DisputaService {
	return &disputaService{
		repo:        repo,
		facturaRepo: facturaRepo,
		notaRepo:    notaRepo,
		dispatcher:  dispatcher,
	}
}

// ── CrearDisputa ──────────────────────────────────────────────────────────────

func (s *disputaService) CrearDisputa(ctx context.Context, facturaID uuid.UUID, req dto.CrearDisputaRequest) (*dto.DisputaResponse, error) {
	factura, err := s.facturaRepo.FindByID(ctx, facturaID)
	if err != nil {
		return nil, fmt.Errorf("factura no encontrada: %w", err)
	}
	if factura.EstadoProvision == model.ProvisionDisputada {
		return nil, errCampo("factura", "la factura ya está en disputa")
	}
	if req.MontoDisputa.LessThanOrEqual(decimal.Zero) {
		return nil, errCampo("monto_disputa", "debe ser mayor a cero")
	}
	if req.MontoDisputa.GreaterThan(factura.Monto) {
		return nil, errCampo("monto_disputa", "excede el monto de la factura")
	}

	var otID *uuid.UUID
	if req.OTID != nil {
		id, err := uuid.Parse(*req.OTID)
		if err != nil {
			return nil, errCampo("ot_id", "UUID inválido")
		}
		otID = &id
	} else {
		otID = factura.OTID
	}

	disputa := model.Disputa{
		NumeroCaso:   req.NumeroCaso,
		FacturaID:    factura.ID,
		OTID:         otID,
		Estado:       model.DisputaAbierta,
		Resultado:    model.ResultadoPendiente,
		MontoDisputa: req.MontoDisputa,
		Detalle:      req.Detalle,
	}

	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		if err := s.repo.CreateTx(ctx, tx, &disputa); err != nil {
			return err
		}
		factura.EstadoProvision = model.ProvisionDisputada
		if err := s.facturaRepo.UpdateTx(ctx, tx, factura); err != nil {
			return err
		}
		evento := model.DisputaEvento{
			DisputaID:   disputa.ID,
			Tipo:        model.EventoCreacion,
			Descripcion: fmt.Sprintf("Disputa %s creada por %s sobre la factura %s por %s", disputa.NumeroCaso, req.Usuario, factura.NumeroFactura, req.MontoDisputa.StringFixed(2)),
			Usuario:     req.Usuario,
		}
		return s.repo.CreateEventoTx(ctx, tx, &evento)
	})
	if txErr != nil {
		return nil, txErr
	}

	log.Info().Str("numero_caso", disputa.NumeroCaso).Str("factura", factura.NumeroFactura).Msg("disputa creada")
	return s.Obtener(ctx, disputa.ID)
}

// ── ResolverDisputa ───────────────────────────────────────────────────────────

// efectoFactura is the resultado-specific plan for the invoice: one variant
// per resultado, carrying exactly the values valid for that case.
type efectoFactura struct {
	estadoProvision     string
	pagable             bool
	excluirEstadisticas bool
	montoPagable        decimal.Decimal
}

func (s *disputaService) ResolverDisputa(ctx context.Context, id uuid.UUID, req dto.ResolverDisputaRequest, adjuntoPath *string) (*dto.ResolucionDisputaResponse, error) {
	disputa, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("disputa no encontrada: %w", err)
	}
	if disputa.Terminal() {
		return nil, errCampo("estado", "la disputa ya fue resuelta o cerrada")
	}
	if strings.TrimSpace(req.Resolucion) == "" {
		return nil, errCampo("resolucion", "la resolución es obligatoria")
	}

	factura, err := s.facturaRepo.FindByID(ctx, disputa.FacturaID)
	if err != nil {
		return nil, fmt.Errorf("factura de la disputa no encontrada: %w", err)
	}

	efecto, montoRecuperado, err := planificarEfecto(disputa, factura, req)
	if err != nil {
		return nil, err
	}

	nota, err := validarNotaCredito(factura, req, montoRecuperado)
	if err != nil {
		return nil, err
	}

	// All validations passed — mutate the three records plus the timeline
	// event as one unit. Any persistence failure rolls everything back.
	var notaID *uuid.UUID
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		disputa.Estado = req.EstadoFinal
		disputa.Resultado = req.Resultado
		disputa.Resolucion = &req.Resolucion
		disputa.MontoRecuperado = montoRecuperado
		if err := s.repo.UpdateTx(ctx, tx, disputa); err != nil {
			return err
		}

		factura.EstadoProvision = efecto.estadoProvision
		factura.Pagable = efecto.pagable
		factura.ExcluirEstadisticas = efecto.excluirEstadisticas
		factura.MontoPagable = efecto.montoPagable
		if err := s.facturaRepo.UpdateTx(ctx, tx, factura); err != nil {
			return err
		}

		if nota != nil {
			nota.FacturaID = factura.ID
			nota.OTID = disputa.OTID
			nota.DisputaID = &disputa.ID
			nota.AdjuntoPath = adjuntoPath
			ahora := time.Now()
			nota.NextRetryAt = &ahora
			if err := s.notaRepo.CreateTx(ctx, tx, nota); err != nil {
				return err
			}
			notaID = &nota.ID
		}

		evento := model.DisputaEvento{
			DisputaID:       disputa.ID,
			Tipo:            model.EventoResolucion,
			Descripcion:     req.Resolucion,
			Usuario:         req.Usuario,
			MontoRecuperado: montoRecuperado,
		}
		return s.repo.CreateEventoTx(ctx, tx, &evento)
	})
	if txErr != nil {
		return nil, txErr
	}

	// Async document pipeline (PDF + ERP + email) — best-effort, fire & forget.
	if nota != nil && s.dispatcher != nil {
		payload := worker.NotaCreditoJobPayload{NotaID: nota.ID.String()}
		if err := s.dispatcher.EnqueueNotaCredito(ctx, payload); err != nil {
			log.Warn().Err(err).Str("nota_id", nota.ID.String()).Msg("no se pudo encolar el job de nota de crédito")
		}
	}

	log.Info().
		Str("numero_caso", disputa.NumeroCaso).
		Str("resultado", req.Resultado).
		Str("estado_factura", factura.EstadoProvision).
		Msg("disputa resuelta")

	resp, err := s.Obtener(ctx, disputa.ID)
	if err != nil {
		return nil, err
	}
	out := &dto.ResolucionDisputaResponse{
		Disputa:             *resp,
		EstadoFactura:       factura.EstadoProvision,
		MontoPagableFactura: factura.MontoPagable,
	}
	if notaID != nil {
		idStr := notaID.String()
		out.NotaCreditoID = &idStr
	}
	return out, nil
}

// planificarEfecto validates the resultado-specific fields and maps the
// resultado to its invoice effect:
//   - aprobada_total:   annulled for dispute, not payable, out of statistics
//   - aprobada_parcial: payable amount reduced by monto_recuperado
//   - rechazada/anulada: back to pendiente for normal reprocessing
func planificarEfecto(disputa *model.Disputa, factura *model.FacturaCosto, req dto.ResolverDisputaRequest) (*efectoFactura, *decimal.Decimal, error) {
	switch req.Resultado {
	case model.ResultadoAprobadaTotal:
		return &efectoFactura{
			estadoProvision:     model.ProvisionAnulada,
			pagable:             false,
			excluirEstadisticas: true,
			montoPagable:        decimal.Zero,
		}, nil, nil

	case model.ResultadoAprobadaParcial:
		if req.MontoRecuperado == nil {
			return nil, nil, errCampo("monto_recuperado", "requerido para aprobación parcial")
		}
		monto := *req.MontoRecuperado
		if monto.LessThanOrEqual(decimal.Zero) {
			return nil, nil, errCampo("monto_recuperado", "debe ser mayor a cero")
		}
		if monto.GreaterThan(disputa.MontoDisputa) {
			return nil, nil, errCampo("monto_recuperado", "excede el monto en disputa")
		}
		return &efectoFactura{
			estadoProvision: model.ProvisionAnuladaParcialmente,
			pagable:         true,
			montoPagable:    factura.Monto.Sub(monto),
		}, &monto, nil

	case model.ResultadoRechazada, model.ResultadoAnulada:
		if req.MontoRecuperado != nil {
			return nil, nil, errCampo("monto_recuperado", "solo válido para aprobación parcial")
		}
		return &efectoFactura{
			estadoProvision: model.ProvisionPendiente,
			pagable:         true,
			montoPagable:    factura.Monto,
		}, nil, nil

	default:
		return nil, nil, errCampo("resultado", "resultado desconocido")
	}
}

// validarNotaCredito checks the optional nota de crédito input against the
// resolution: permitted only for approvals, with Monto matching the expected
// value within 0.01. A mismatch is a validation failure, never corrected.
func validarNotaCredito(factura *model.FacturaCosto, req dto.ResolverDisputaRequest, montoRecuperado *decimal.Decimal) (*model.NotaCredito, error) {
	if req.NotaCredito == nil {
		return nil, nil
	}
	input := req.NotaCredito

	var esperado decimal.Decimal
	switch req.Resultado {
	case model.ResultadoAprobadaTotal:
		esperado = factura.Monto
	case model.ResultadoAprobadaParcial:
		esperado = *montoRecuperado
	default:
		return nil, errCampo("nota_credito", "solo se admite con aprobación total o parcial")
	}

	if strings.TrimSpace(input.Numero) == "" {
		return nil, errCampo("nota_credito.numero", "requerido")
	}
	if input.Monto.LessThanOrEqual(decimal.Zero) {
		return nil, errCampo("nota_credito.monto", "debe ser mayor a cero")
	}
	if input.Monto.Sub(esperado).Abs().GreaterThan(toleranciaMonto) {
		return nil, errCampo("nota_credito.monto",
			fmt.Sprintf("no coincide con el monto esperado %s", esperado.StringFixed(2)))
	}

	fechaEmision := time.Now()
	if input.FechaEmision != "" {
		t, err := time.Parse("2006-01-02", input.FechaEmision)
		if err != nil {
			return nil, errCampo("nota_credito.fecha_emision", "fecha inválida, use YYYY-MM-DD")
		}
		fechaEmision = t
	}

	return &model.NotaCredito{
		NumeroNotaCredito: input.Numero,
		Monto:             input.Monto,
		FechaEmision:      fechaEmision,
		Motivo:            input.Motivo,
		EstadoERP:         model.NotaERPPendiente,
	}, nil
}

// ── AgregarComentario ────────────────────────────────────────────────────────

func (s *disputaService) AgregarComentario(ctx context.Context, id uuid.UUID, req dto.ComentarioRequest) (*dto.DisputaEventoResponse, error) {
	if strings.TrimSpace(req.Texto) == "" {
		return nil, errCampo("texto", "el comentario no puede estar vacío")
	}
	disputa, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("disputa no encontrada: %w", err)
	}

	evento := model.DisputaEvento{
		DisputaID:   disputa.ID,
		Tipo:        model.EventoComentario,
		Descripcion: strings.TrimSpace(req.Texto),
		Usuario:     req.Usuario,
	}
	txErr := runTx(ctx, s.repo.DB(), func(tx *gorm.DB) error {
		return s.repo.CreateEventoTx(ctx, tx, &evento)
	})
	if txErr != nil {
		return nil, txErr
	}
	resp := eventoToResponse(&evento)
	return &resp, nil
}

// ── Consultas ────────────────────────────────────────────────────────────────

func (s *disputaService) Obtener(ctx context.Context, id uuid.UUID) (*dto.DisputaResponse, error) {
	disputa, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("disputa no encontrada: %w", err)
	}
	return disputaToResponse(disputa), nil
}

func (s *disputaService) Listar(ctx context.Context, filter dto.DisputaFilter) (*dto.DisputaListResponse, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}
	disputas, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	items := make([]dto.DisputaResponse, 0, len(disputas))
	for i := range disputas {
		items = append(items, *disputaToResponse(&disputas[i]))
	}
	return &dto.DisputaListResponse{
		Data:  items,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	}, nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func disputaToResponse(d *model.Disputa) *dto.DisputaResponse {
	eventos := make([]dto.DisputaEventoResponse, 0, len(d.Eventos))
	for i := range d.Eventos {
		eventos = append(eventos, eventoToResponse(&d.Eventos[i]))
	}
	resp := &dto.DisputaResponse{
		ID:              d.ID.String(),
		NumeroCaso:      d.NumeroCaso,
		FacturaID:       d.FacturaID.String(),
		Estado:          d.Estado,
		Resultado:       d.Resultado,
		MontoDisputa:    d.MontoDisputa,
		MontoRecuperado: d.MontoRecuperado,
		Detalle:         d.Detalle,
		Resolucion:      d.Resolucion,
		Eventos:         eventos,
		CreatedAt:       d.CreatedAt.Format(time.RFC3339),
	}
	if d.OTID != nil {
		s := d.OTID.String()
		resp.OTID = &s
	}
	return resp
}

func eventoToResponse(e *model.DisputaEvento) dto.DisputaEventoResponse {
	return dto.DisputaEventoResponse{
		Tipo:            e.Tipo,
		Descripcion:     e.Descripcion,
		Usuario:         e.Usuario,
		MontoRecuperado: e.MontoRecuperado,
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
}
