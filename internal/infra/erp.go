package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// NotaCreditoPayload is sent to the ERP sidecar to register a credit note
// against the provider's account. The sidecar owns the fiscal bookkeeping; the
// backend only needs the registration folio back.
type NotaCreditoPayload struct {
	NumeroNotaCredito string  `json:"numero_nota_credito"`
	NumeroFactura     string  `json:"numero_factura"`
	Proveedor         string  `json:"proveedor"`
	Monto             float64 `json:"monto"`
	FechaEmision      string  `json:"fecha_emision"` // YYYY-MM-DD
	Motivo            string  `json:"motivo"`
	NumeroOT          *string `json:"numero_ot,omitempty"`
}

// NotaCreditoERPResponse is returned by the sidecar.
type NotaCreditoERPResponse struct {
	Folio     string `json:"folio"`
	Resultado string `json:"resultado"` // "A" (aceptada) | "R" (rechazada)
	Detalle   string `json:"detalle,omitempty"`
}

// ERPClient delegates accounting registration to the ERP sidecar over HTTP.
// The decoupling keeps ERP outages away from the synchronous dispute flow:
// registration always happens from the worker pool.
type ERPClient struct {
	sidecarURL string
	httpClient *http.Client
}

func NewERPClient(sidecarURL string) *ERPClient {
	return &ERPClient{
		sidecarURL: sidecarURL,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// RegistrarNotaCredito POSTs the nota to the sidecar and returns the folio.
func (c *ERPClient) RegistrarNotaCredito(ctx context.Context, payload NotaCreditoPayload) (*NotaCreditoERPResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("erp: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.sidecarURL+"/notas-credito", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("erp: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("erp: sidecar unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("erp: sidecar returned %d", resp.StatusCode)
	}

	var result NotaCreditoERPResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("erp: decode response: %w", err)
	}
	return &result, nil
}
