package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Estados de una disputa. "resuelta" y "cerrada" son terminales para la
// operación de resolución.
const (
	DisputaAbierta    = "abierta"
	DisputaEnRevision = "en_revision"
	DisputaResuelta   = "resuelta"
	DisputaCerrada    = "cerrada"
)

// Resultados posibles de una disputa.
const (
	ResultadoPendiente       = "pendiente"
	ResultadoAprobadaTotal   = "aprobada_total"
	ResultadoAprobadaParcial = "aprobada_parcial"
	ResultadoRechazada       = "rechazada"
	ResultadoAnulada         = "anulada"
)

// Tipos de evento en la línea de tiempo de una disputa.
const (
	EventoCreacion      = "creacion"
	EventoComentario    = "comentario"
	EventoActualizacion = "actualizacion"
	EventoResolucion    = "resolucion"
	EventoCierre        = "cierre"
)

// Disputa is a contested cost invoice amount under negotiation with a
// provider. MontoRecuperado is non-null only when Resultado is
// "aprobada_parcial" and never exceeds MontoDisputa.
type Disputa struct {
	ID           uuid.UUID  `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroCaso   string     `gorm:"uniqueIndex;not null"`
	FacturaID    uuid.UUID  `gorm:"type:uuid;index;not null"`
	OTID         *uuid.UUID `gorm:"type:uuid;index;column:ot_id"`
	Estado       string     `gorm:"type:varchar(20);not null;default:'abierta'"`
	Resultado    string     `gorm:"type:varchar(30);not null;default:'pendiente'"`
	MontoDisputa decimal.Decimal  `gorm:"type:decimal(14,2);not null"`
	MontoRecuperado *decimal.Decimal `gorm:"type:decimal(14,2)"`
	Detalle      string
	Resolucion   *string
	Factura      *FacturaCosto   `gorm:"foreignKey:FacturaID"`
	OT           *OrdenTrabajo   `gorm:"foreignKey:OTID"`
	Eventos      []DisputaEvento `gorm:"foreignKey:DisputaID"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (Disputa) TableName() string { return "disputas" }

// Terminal reports whether the dispute already went through resolution.
func (d *Disputa) Terminal() bool {
	return d.Estado == DisputaResuelta || d.Estado == DisputaCerrada
}

// DisputaEvento is an append-only timeline entry. One "creacion" event is
// written automatically when the dispute is opened and one "resolucion" event
// when it is resolved; users append "comentario" events in between.
type DisputaEvento struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	DisputaID       uuid.UUID `gorm:"type:uuid;index;not null"`
	Tipo            string    `gorm:"type:varchar(20);not null"`
	Descripcion     string    `gorm:"not null"`
	Usuario         string    `gorm:"not null"`
	MontoRecuperado *decimal.Decimal `gorm:"type:decimal(14,2)"`
	CreatedAt       time.Time
}

func (DisputaEvento) TableName() string { return "disputa_eventos" }
