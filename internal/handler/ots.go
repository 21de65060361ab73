package handler

import (
	"net/http"

	"nextops/internal/apierror"
	"nextops/internal/dto"
	"nextops/internal/model"
	"nextops/internal/repository"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// OTsHandler serves read-only queries over ordenes de trabajo. Consultation
// goes straight to the repository; there is no business logic to interpose.
type OTsHandler struct{ repo repository.OTRepository }

func NewOTsHandler(repo repository.OTRepository) *OTsHandler { return &OTsHandler{repo: repo} }

// Listar godoc
// @Summary      Listar OTs
// @Produce      json
// @Param        q                query string false "Búsqueda por numero_ot, cliente o MBL"
// @Param        tipo_operacion   query string false "importacion | exportacion"
// @Param        estado_provision query string false "Estado de provisión"
// @Param        page             query int    false "Página (default 1)"
// @Param        limit            query int    false "Registros por página (default 50)"
// @Success      200 {object} dto.OTListResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/ots [get]
func (h *OTsHandler) Listar(c *gin.Context) {
	var filter dto.OTFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	if !validateStruct(c, &filter) {
		return
	}

	ots, total, err := h.repo.List(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar OTs"))
		return
	}

	data := make([]dto.OTResponse, 0, len(ots))
	for i := range ots {
		data = append(data, otToResponse(&ots[i]))
	}
	c.JSON(http.StatusOK, dto.OTListResponse{
		Data:  data,
		Total: total,
		Page:  filter.Page,
		Limit: filter.Limit,
	})
}

// Obtener godoc
// @Summary      Detalle de una OT
// @Produce      json
// @Param        id path string true "UUID de la OT"
// @Success      200 {object} dto.OTResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/ots/{id} [get]
func (h *OTsHandler) Obtener(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	ot, err := h.repo.FindByID(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusNotFound, apierror.New("OT no encontrada"))
		return
	}
	c.JSON(http.StatusOK, otToResponse(ot))
}

func otToResponse(ot *model.OrdenTrabajo) dto.OTResponse {
	resp := dto.OTResponse{
		ID:              ot.ID.String(),
		NumeroOT:        ot.NumeroOT,
		Cliente:         ot.Cliente,
		Operativo:       ot.Operativo,
		TipoOperacion:   ot.TipoOperacion,
		MBL:             ot.MBL,
		Nave:            ot.Nave,
		PuertoOrigen:    ot.PuertoOrigen,
		PuertoDestino:   ot.PuertoDestino,
		Contenedores:    ot.Contenedores,
		HBLs:            ot.HBLs,
		Comentarios:     ot.Comentarios,
		EstadoProvision: ot.EstadoProvision,
		CamposEditados:  ot.CamposEditados,
		CreatedAt:       ot.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:       ot.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	if ot.ETD != nil {
		s := ot.ETD.Format("2006-01-02")
		resp.ETD = &s
	}
	if ot.ETA != nil {
		s := ot.ETA.Format("2006-01-02")
		resp.ETA = &s
	}
	if resp.Contenedores == nil {
		resp.Contenedores = []string{}
	}
	if resp.HBLs == nil {
		resp.HBLs = []string{}
	}
	if resp.CamposEditados == nil {
		resp.CamposEditados = []string{}
	}
	return resp
}
