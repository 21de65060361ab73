package dto

// OTFilter is bound from the query string of GET /v1/ots.
type OTFilter struct {
	Busqueda        string `form:"q"`
	TipoOperacion   string `form:"tipo_operacion"    validate:"omitempty,oneof=importacion exportacion"`
	EstadoProvision string `form:"estado_provision"`
	Page            int    `form:"page,default=1"    validate:"min=1"`
	Limit           int    `form:"limit,default=50"  validate:"min=1,max=200"`
}

type OTResponse struct {
	ID              string   `json:"id"`
	NumeroOT        string   `json:"numero_ot"`
	Cliente         string   `json:"cliente"`
	Operativo       string   `json:"operativo"`
	TipoOperacion   string   `json:"tipo_operacion"`
	MBL             *string  `json:"mbl,omitempty"`
	Nave            *string  `json:"nave,omitempty"`
	PuertoOrigen    *string  `json:"puerto_origen,omitempty"`
	PuertoDestino   *string  `json:"puerto_destino,omitempty"`
	ETD             *string  `json:"etd,omitempty"`
	ETA             *string  `json:"eta,omitempty"`
	Contenedores    []string `json:"contenedores"`
	HBLs            []string `json:"hbls"`
	Comentarios     *string  `json:"comentarios,omitempty"`
	EstadoProvision string   `json:"estado_provision"`
	CamposEditados  []string `json:"campos_editados"`
	CreatedAt       string   `json:"created_at"`
	UpdatedAt       string   `json:"updated_at"`
}

type OTListResponse struct {
	Data  []OTResponse `json:"data"`
	Total int64        `json:"total"`
	Page  int          `json:"page"`
	Limit int          `json:"limit"`
}
