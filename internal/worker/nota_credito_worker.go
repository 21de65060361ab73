package worker

// nota_credito_worker.go
// Processes credit-note jobs from QueueNotasCredito.
// Generates the internal PDF, registers the nota with the ERP sidecar
// (exponential backoff, max 3 inline attempts) and enqueues the notification
// email. Notas that exhaust inline retries stay in estado_erp='pendiente'
// with a next_retry_at so the retry cron picks them up.

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"nextops/internal/infra"
	"nextops/internal/model"
	"nextops/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// NotaCreditoJobPayload is the job envelope sent to QueueNotasCredito.
type NotaCreditoJobPayload struct {
	NotaID string `json:"nota_id"`
}

// NotaCreditoWorker registers credit notes with the ERP sidecar and produces
// the internal PDF document.
type NotaCreditoWorker struct {
	erpClient           *infra.ERPClient
	notaRepo            repository.NotaCreditoRepository
	facturaRepo         repository.FacturaRepository
	otRepo              repository.OTRepository
	dispatcher          *Dispatcher
	pdfStoragePath      string
	notificacionesEmail string
}

// NewNotaCreditoWorker wires all dependencies for the credit-note worker.
func NewNotaCreditoWorker(
	erpClient *infra.ERPClient,
	notaRepo repository.NotaCreditoRepository,
	facturaRepo repository.FacturaRepository,
	otRepo repository.OTRepository,
	dispatcher *Dispatcher,
	pdfStoragePath string,
	notificacionesEmail string,
) *NotaCreditoWorker {
	return &NotaCreditoWorker{
		erpClient:           erpClient,
		notaRepo:            notaRepo,
		facturaRepo:         facturaRepo,
		otRepo:              otRepo,
		dispatcher:          dispatcher,
		pdfStoragePath:      pdfStoragePath,
		notificacionesEmail: notificacionesEmail,
	}
}

// Process handles a single credit-note job:
//  1. Parse NotaCreditoJobPayload from the job envelope
//  2. Fetch the NotaCredito and its FacturaCosto (plus the OT, if linked)
//  3. Generate the internal PDF document
//  4. Register with the ERP sidecar with exponential backoff (max 3 retries)
//  5. Update estado_erp / folio / retry bookkeeping
//  6. Enqueue the notification email on success
func (w *NotaCreditoWorker) Process(ctx context.Context, raw json.RawMessage) {
	var payload NotaCreditoJobPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		log.Error().Err(err).Msg("nota_credito_worker: invalid payload")
		return
	}

	notaID, err := uuid.Parse(payload.NotaID)
	if err != nil {
		log.Error().Str("nota_id", payload.NotaID).Msg("nota_credito_worker: invalid nota_id")
		return
	}

	nota, err := w.notaRepo.FindByID(ctx, notaID)
	if err != nil {
		log.Error().Err(err).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: nota not found")
		return
	}

	factura, err := w.facturaRepo.FindByID(ctx, nota.FacturaID)
	if err != nil {
		log.Error().Err(err).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: factura not found")
		return
	}

	var numeroOT *string
	if nota.OTID != nil {
		if ot, err := w.otRepo.FindByID(ctx, *nota.OTID); err == nil {
			numeroOT = &ot.NumeroOT
		}
	}

	// 1. Internal PDF document
	pdfPath, pdfErr := infra.GenerateNotaCreditoPDF(nota, factura.NumeroFactura, factura.Proveedor, numeroOT, w.pdfStoragePath)
	if pdfErr != nil {
		log.Warn().Err(pdfErr).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: PDF generation failed")
	} else {
		nota.PDFPath = &pdfPath
		_ = w.notaRepo.Update(ctx, nota)
		log.Info().Str("pdf", pdfPath).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: PDF generated")
	}

	// 2. ERP registration with exponential backoff: attempt 1 immediate, then 1s, 2s
	erpPayload := infra.NotaCreditoPayload{
		NumeroNotaCredito: nota.NumeroNotaCredito,
		NumeroFactura:     factura.NumeroFactura,
		Proveedor:         factura.Proveedor,
		Monto:             nota.Monto.InexactFloat64(),
		FechaEmision:      nota.FechaEmision.Format("2006-01-02"),
		Motivo:            nota.Motivo,
		NumeroOT:          numeroOT,
	}

	var erpResp *infra.NotaCreditoERPResponse
	erpErr := withRetry(ctx, 3, func(attempt int) error {
		resp, err := w.erpClient.RegistrarNotaCredito(ctx, erpPayload)
		if err != nil {
			log.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("nota_id", payload.NotaID).
				Msg("nota_credito_worker: ERP attempt failed, retrying")
			return err
		}
		erpResp = resp
		return nil
	})

	// 3. Update nota based on ERP result
	switch {
	case erpErr != nil:
		// Stays pendiente — the retry cron takes over from here
		nota.RetryCount++
		errMsg := erpErr.Error()
		nota.LastError = &errMsg
		nextRetry := time.Now().Add(computeRetryBackoff(nota.RetryCount))
		nota.NextRetryAt = &nextRetry
		_ = w.notaRepo.Update(ctx, nota)
		log.Error().
			Err(erpErr).
			Str("nota_id", payload.NotaID).
			Time("next_retry_at", nextRetry).
			Msg("nota_credito_worker: ERP failed after inline retries, scheduled for cron")
		return
	case erpResp.Resultado == "A":
		nota.EstadoERP = model.NotaERPRegistrada
		nota.LastError = nil
		nota.NextRetryAt = nil
		_ = w.notaRepo.Update(ctx, nota)
		log.Info().Str("folio", erpResp.Folio).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: registered in ERP")
	default:
		nota.EstadoERP = model.NotaERPRechazada
		detalle := fmt.Sprintf("ERP rechazó la nota: %s", erpResp.Detalle)
		nota.LastError = &detalle
		nota.NextRetryAt = nil
		_ = w.notaRepo.Update(ctx, nota)
		log.Warn().Str("detalle", erpResp.Detalle).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: ERP rejected")
		return
	}

	// 4. Notify the back-office mailbox, if configured
	if w.notificacionesEmail != "" && nota.PDFPath != nil {
		emailJob := EmailJobPayload{
			ToEmail: w.notificacionesEmail,
			Subject: fmt.Sprintf("Nota de crédito %s registrada", nota.NumeroNotaCredito),
			Body: fmt.Sprintf("Se registró la nota de crédito %s por $%s sobre la factura %s (%s).",
				nota.NumeroNotaCredito, nota.Monto.StringFixed(2), factura.NumeroFactura, factura.Proveedor),
			PDFPath: *nota.PDFPath,
		}
		if err := w.dispatcher.EnqueueEmail(ctx, emailJob); err != nil {
			log.Warn().Err(err).Str("nota_id", payload.NotaID).Msg("nota_credito_worker: failed to enqueue email")
		}
	}
}

// withRetry calls fn up to maxAttempts times with exponential backoff.
// Backoff schedule: attempt 1 = immediate, 2 = 1s, 3 = 2s.
// Returns nil if any attempt succeeds; last error otherwise.
func withRetry(ctx context.Context, maxAttempts int, fn func(attempt int) error) error {
	var lastErr error
	for i := 0; i < maxAttempts; i++ {
		if i > 0 {
			wait := time.Duration(1<<uint(i-1)) * time.Second
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := fn(i); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return lastErr
}
