package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de registro de una nota de crédito ante el sidecar contable.
// EstadoERP: "pendiente" | "registrada" | "rechazada" | "error"
const (
	NotaERPPendiente  = "pendiente"
	NotaERPRegistrada = "registrada"
	NotaERPRechazada  = "rechazada"
	NotaERPError      = "error"
)

// NotaCredito reduces or cancels a cost invoice's payable amount. When it
// originates from a dispute resolution, its Monto reconciles with the
// resolution: full invoice amount for a total approval, the recovered amount
// for a partial one (tolerance 0.01).
type NotaCredito struct {
	ID                uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroNotaCredito string     `gorm:"uniqueIndex;not null"`
	FacturaID         uuid.UUID  `gorm:"type:uuid;index;not null"`
	OTID              *uuid.UUID `gorm:"type:uuid;index;column:ot_id"`
	DisputaID         *uuid.UUID `gorm:"type:uuid;index"`
	Monto             decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	FechaEmision      time.Time  `gorm:"not null"`
	Motivo            string     `gorm:"not null"`
	// AdjuntoPath is the stored copy of the document uploaded with the
	// resolution (PDF only). Relative to ADJUNTOS_PATH.
	AdjuntoPath *string
	// PDFPath is the internally generated document. Relative to PDF_STORAGE_PATH.
	PDFPath *string `gorm:"column:pdf_path"`
	// ERP registration bookkeeping — used by the retry cron.
	EstadoERP   string     `gorm:"type:varchar(20);not null;default:'pendiente';column:estado_erp"`
	RetryCount  int        `gorm:"not null;default:0"`
	NextRetryAt *time.Time `gorm:"column:next_retry_at"`
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (NotaCredito) TableName() string { return "notas_credito" }
