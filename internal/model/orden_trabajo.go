package model

import (
	"time"

	"github.com/google/uuid"
)

// Estados de provisión de una OT — derivados del estado de sus facturas de
// costo, nunca editados por la importación.
const (
	ProvisionPendiente           = "pendiente"
	ProvisionRevision            = "revision"
	ProvisionDisputada           = "disputada"
	ProvisionProvisionada        = "provisionada"
	ProvisionAnulada             = "anulada"
	ProvisionAnuladaParcialmente = "anulada_parcialmente"
	ProvisionRechazada           = "rechazada"
)

// Tipos de operación declarados por archivo importado.
const (
	OperacionImportacion = "importacion"
	OperacionExportacion = "exportacion"
)

// Campos de la OT sujetos a detección de conflictos durante la importación.
const (
	CampoCliente   = "cliente"
	CampoOperativo = "operativo"
)

// OrdenTrabajo (OT) is a logistics work order tracking a shipment's client,
// responsible operative, vessel, ports, dates and billing state.
// Business key: NumeroOT, normalized to uppercase.
type OrdenTrabajo struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	NumeroOT      string    `gorm:"uniqueIndex;not null;column:numero_ot"`
	Cliente       string
	Operativo     string
	TipoOperacion string `gorm:"type:varchar(20);not null;default:'importacion'"`
	MBL           *string `gorm:"type:varchar(50);column:mbl"`
	Nave          *string
	PuertoOrigen  *string
	PuertoDestino *string
	ETD           *time.Time `gorm:"column:etd"`
	ETA           *time.Time `gorm:"column:eta"`
	// Contenedores and HBLs arrive as delimiter-separated cells in the spreadsheet.
	Contenedores []string `gorm:"type:jsonb;serializer:json"`
	HBLs         []string `gorm:"type:jsonb;serializer:json;column:hbls"`
	Comentarios  *string
	// EstadoProvision reflects invoice-driven state; the import never touches it.
	EstadoProvision string `gorm:"type:varchar(30);not null;default:'pendiente'"`
	// CamposEditados lists fields a user edited by hand after creation.
	// A field listed here is never silently overwritten by an import; it only
	// changes through explicit conflict resolution or direct edit.
	CamposEditados []string `gorm:"type:jsonb;serializer:json"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

func (OrdenTrabajo) TableName() string { return "ordenes_trabajo" }

// EditadoManualmente reports whether campo carries the manually-edited marker.
func (o *OrdenTrabajo) EditadoManualmente(campo string) bool {
	for _, c := range o.CamposEditados {
		if c == campo {
			return true
		}
	}
	return false
}
