package worker

// retry_cron.go
// Background goroutine that periodically re-attempts ERP registration for
// notas de crédito stuck in estado_erp='pendiente' with a next_retry_at in
// the past. Uses the Circuit Breaker to avoid hammering a downed sidecar.

import (
	"context"
	"fmt"
	"time"

	"nextops/internal/infra"
	"nextops/internal/model"
	"nextops/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	retryTickInterval = 30 * time.Second
	retryBatchSize    = 10

	// MaxNotaRetries is the attempt cap before a nota is parked in
	// estado_erp='error' and sent to the DLQ.
	MaxNotaRetries = 5
)

// computeRetryBackoff returns the wait before the next cron attempt.
// Schedule: 1m, 2m, 4m, 8m … capped at 30m.
func computeRetryBackoff(retryCount int) time.Duration {
	backoff := time.Minute * time.Duration(1<<uint(retryCount-1))
	if backoff > 30*time.Minute {
		backoff = 30 * time.Minute
	}
	return backoff
}

// RetryCronConfig holds all dependencies for the retry goroutine.
type RetryCronConfig struct {
	NotaRepo    repository.NotaCreditoRepository
	FacturaRepo repository.FacturaRepository
	OTRepo      repository.OTRepository
	ERPClient   *infra.ERPClient
	CB          *infra.CircuitBreaker
	RDB         *redis.Client
}

// StartRetryCron launches a background goroutine that ticks every 30s,
// queries pending notas, and re-attempts ERP registration through the CB.
// It respects the context for graceful shutdown.
func StartRetryCron(ctx context.Context, cfg RetryCronConfig) {
	go func() {
		ticker := time.NewTicker(retryTickInterval)
		defer ticker.Stop()

		log.Info().Msg("retry_cron: started")

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("retry_cron: shutting down")
				return
			case <-ticker.C:
				processRetries(ctx, cfg)
			}
		}
	}()
}

func processRetries(ctx context.Context, cfg RetryCronConfig) {
	// If CB is open, skip entirely — don't hammer a downed sidecar
	if cfg.CB.State() == infra.CBOpen {
		log.Debug().Msg("retry_cron: circuit breaker is open, skipping tick")
		return
	}

	notas, err := cfg.NotaRepo.FindPendientesERP(ctx, retryBatchSize)
	if err != nil {
		log.Error().Err(err).Msg("retry_cron: failed to query pending notas")
		return
	}

	if len(notas) == 0 {
		return
	}

	log.Info().Int("count", len(notas)).Msg("retry_cron: processing pending notas")

	for i := range notas {
		nota := &notas[i]

		// Check CB state before each call — it may have tripped mid-batch
		if cfg.CB.State() == infra.CBOpen {
			log.Debug().Msg("retry_cron: circuit breaker opened mid-batch, stopping")
			return
		}

		factura, err := cfg.FacturaRepo.FindByID(ctx, nota.FacturaID)
		if err != nil {
			log.Error().Err(err).Str("nota_id", nota.ID.String()).Msg("retry_cron: factura not found")
			continue
		}

		var numeroOT *string
		if nota.OTID != nil {
			if ot, err := cfg.OTRepo.FindByID(ctx, *nota.OTID); err == nil {
				numeroOT = &ot.NumeroOT
			}
		}

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
		cbErr := cfg.CB.Execute(func() error {
			resp, err := cfg.ERPClient.RegistrarNotaCredito(ctx, erpPayload)
			if err != nil {
				return err
			}
			erpResp = resp
			return nil
		})

		if cbErr != nil {
			// Failure — increment retry count, schedule next attempt
			nota.RetryCount++
			errMsg := cbErr.Error()
			nota.LastError = &errMsg
			nextRetry := time.Now().Add(computeRetryBackoff(nota.RetryCount))
			nota.NextRetryAt = &nextRetry

			if nota.RetryCount >= MaxNotaRetries {
				nota.EstadoERP = model.NotaERPError
				nota.NextRetryAt = nil
				log.Error().
					Str("nota_id", nota.ID.String()).
					Str("numero", nota.NumeroNotaCredito).
					Int("retries", nota.RetryCount).
					Msg("retry_cron: max retries exceeded, moving to error/DLQ")

				// Send to DLQ for manual inspection
				payload := fmt.Sprintf(`{"nota_id":"%s"}`, nota.ID)
				SendToDLQ(ctx, cfg.RDB, QueueNotasCredito, "nota_credito", []byte(payload),
					fmt.Sprintf("max retries (%d) exceeded: %s", MaxNotaRetries, errMsg),
					nota.RetryCount)
			} else {
				log.Warn().
					Str("nota_id", nota.ID.String()).
					Int("retry_count", nota.RetryCount).
					Time("next_retry_at", *nota.NextRetryAt).
					Msg("retry_cron: ERP retry failed, scheduled next attempt")
			}

			_ = cfg.NotaRepo.Update(ctx, nota)
			continue
		}

		// Success path
		if erpResp != nil && erpResp.Resultado == "A" {
			nota.EstadoERP = model.NotaERPRegistrada
			nota.NextRetryAt = nil
			nota.LastError = nil
			_ = cfg.NotaRepo.Update(ctx, nota)

			log.Info().
				Str("folio", erpResp.Folio).
				Str("nota_id", nota.ID.String()).
				Int("total_retries", nota.RetryCount).
				Msg("retry_cron: nota registered after retry")
		} else if erpResp != nil {
			nota.EstadoERP = model.NotaERPRechazada
			detalle := fmt.Sprintf("ERP rechazó la nota (retry): %s", erpResp.Detalle)
			nota.LastError = &detalle
			nota.NextRetryAt = nil
			_ = cfg.NotaRepo.Update(ctx, nota)
			log.Warn().
				Str("detalle", erpResp.Detalle).
				Str("nota_id", nota.ID.String()).
				Msg("retry_cron: ERP rejected on retry")
		}
	}
}
