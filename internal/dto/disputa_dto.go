package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type CrearDisputaRequest struct {
	NumeroCaso   string          `json:"numero_caso"   validate:"required,min=3"`
	MontoDisputa decimal.Decimal `json:"monto_disputa" validate:"required"`
	Detalle      string          `json:"detalle"       validate:"required,min=5"`
	Usuario      string          `json:"usuario"       validate:"required"`
	// OTID optionally links the dispute to the factura's work order.
	OTID *string `json:"ot_id" validate:"omitempty,uuid"`
}

// NotaCreditoInput accompanies a resolution whose resultado is aprobada_total
// or aprobada_parcial. Monto must match the resultado-specific expected value
// within 0.01: full invoice amount for total, monto_recuperado for partial.
type NotaCreditoInput struct {
	Numero       string          `json:"numero"        validate:"required"`
	Monto        decimal.Decimal `json:"monto"         validate:"required"`
	FechaEmision string          `json:"fecha_emision" validate:"omitempty,datetime=2006-01-02"`
	Motivo       string          `json:"motivo"        validate:"required,min=3"`
}

// ResolverDisputaRequest is bound from the multipart text fields of
// POST /v1/disputas/:id/resolver. The optional PDF attachment travels beside
// it and is validated at the boundary before the service is invoked.
type ResolverDisputaRequest struct {
	Resultado   string `json:"resultado"    validate:"required,oneof=aprobada_total aprobada_parcial rechazada anulada"`
	EstadoFinal string `json:"estado_final" validate:"required,oneof=resuelta cerrada"`
	Resolucion  string `json:"resolucion"   validate:"required,min=5"`
	Usuario     string `json:"usuario"      validate:"required"`
	// MontoRecuperado is required, positive and ≤ monto_disputa when resultado
	// is aprobada_parcial; it must be absent otherwise.
	MontoRecuperado *decimal.Decimal  `json:"monto_recuperado"`
	NotaCredito     *NotaCreditoInput `json:"nota_credito"`
}

type ComentarioRequest struct {
	Texto   string `json:"texto"   validate:"required,min=1"`
	Usuario string `json:"usuario" validate:"required"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type DisputaEventoResponse struct {
	Tipo            string           `json:"tipo"`
	Descripcion     string           `json:"descripcion"`
	Usuario         string           `json:"usuario"`
	MontoRecuperado *decimal.Decimal `json:"monto_recuperado,omitempty"`
	CreatedAt       string           `json:"created_at"`
}

type DisputaResponse struct {
	ID              string           `json:"id"`
	NumeroCaso      string           `json:"numero_caso"`
	FacturaID       string           `json:"factura_id"`
	OTID            *string          `json:"ot_id,omitempty"`
	Estado          string           `json:"estado"`
	Resultado       string           `json:"resultado"`
	MontoDisputa    decimal.Decimal  `json:"monto_disputa"`
	MontoRecuperado *decimal.Decimal `json:"monto_recuperado,omitempty"`
	Detalle         string           `json:"detalle"`
	Resolucion      *string          `json:"resolucion,omitempty"`
	Eventos         []DisputaEventoResponse `json:"eventos"`
	CreatedAt       string           `json:"created_at"`
}

// ResolucionDisputaResponse is returned by the resolution operation: the
// updated dispute plus the factura's new provisioning state and the created
// nota de crédito, if any.
type ResolucionDisputaResponse struct {
	Disputa             DisputaResponse `json:"disputa"`
	EstadoFactura       string          `json:"estado_factura"`
	MontoPagableFactura decimal.Decimal `json:"monto_pagable_factura"`
	NotaCreditoID       *string         `json:"nota_credito_id,omitempty"`
}

type DisputaFilter struct {
	Estado string `form:"estado"`
	Page   int    `form:"page,default=1"   validate:"min=1"`
	Limit  int    `form:"limit,default=50" validate:"min=1,max=200"`
}

type DisputaListResponse struct {
	Data  []DisputaResponse `json:"data"`
	Total int64             `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}
