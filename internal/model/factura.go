package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FacturaCosto is a provider cost invoice tied to an OT.
// EstadoProvision: "pendiente" | "revision" | "disputada" | "provisionada" |
// "anulada" | "anulada_parcialmente" | "rechazada"
type FacturaCosto struct {
	ID            uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroFactura string     `gorm:"type:varchar(50);not null;index"`
	OTID          *uuid.UUID `gorm:"type:uuid;index;column:ot_id"`
	Proveedor     string     `gorm:"not null"`
	Monto         decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	// MontoPagable starts equal to Monto and is reduced when a dispute ends in
	// partial approval. A fully annulled factura keeps Monto for the record but
	// is no longer payable.
	MontoPagable    decimal.Decimal `gorm:"type:decimal(14,2);not null"`
	EstadoProvision string          `gorm:"type:varchar(30);not null;default:'pendiente'"`
	Pagable         bool            `gorm:"not null;default:true"`
	// ExcluirEstadisticas removes the factura from dashboards once annulled by
	// a total dispute approval.
	ExcluirEstadisticas bool `gorm:"not null;default:false"`
	FechaEmision        *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

func (FacturaCosto) TableName() string { return "facturas_costo" }
