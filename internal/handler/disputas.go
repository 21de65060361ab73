package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"nextops/internal/apierror"
	"nextops/internal/dto"
	"nextops/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type DisputasHandler struct {
	svc            service.DisputaService
	adjuntosPath   string
	maxUploadBytes int64
}

func NewDisputasHandler(svc service.DisputaService, adjuntosPath string, maxUploadMB int) *DisputasHandler {
	return &DisputasHandler{
		svc:            svc,
		adjuntosPath:   adjuntosPath,
		maxUploadBytes: int64(maxUploadMB) << 20,
	}
}

// Crear godoc
// @Summary      Abrir disputa sobre una factura de costo
// @Description  Crea una disputa contra la factura indicada y la marca como disputada. Registra el evento de creación en la línea de tiempo.
// @Tags         disputas
// @Accept       json
// @Produce      json
// @Param        id   path string                  true "UUID de la factura"
// @Param        body body dto.CrearDisputaRequest true "Detalle de la disputa"
// @Success      201  {object} dto.DisputaResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/facturas/{id}/disputa [post]
func (h *DisputasHandler) Crear(c *gin.Context) {
	facturaID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.CrearDisputaRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CrearDisputa(c.Request.Context(), facturaID, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Resolver godoc
// @Summary      Resolver una disputa
// @Description  Aplica el resultado de la disputa: actualiza disputa, factura y opcionalmente crea la nota de crédito, todo en una transacción. Acepta un adjunto PDF opcional.
// @Tags         disputas
// @Accept       multipart/form-data
// @Produce      json
// @Param        id       path     string true "UUID de la disputa"
// @Param        payload  formData string true "JSON con resultado, estado_final, resolucion, usuario, monto_recuperado y nota_credito"
// @Param        adjunto  formData file   false "Documento PDF de respaldo (máx. 10MB)"
// @Success      200  {object} dto.ResolucionDisputaResponse
// @Failure      400  {object} apierror.APIError
// @Failure      422  {object} apierror.ValidationError
// @Router       /v1/disputas/{id}/resolver [post]
func (h *DisputasHandler) Resolver(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}

	raw := c.PostForm("payload")
	if raw == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Falta el campo 'payload'"))
		return
	}
	var req dto.ResolverDisputaRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido en 'payload': "+err.Error()))
		return
	}
	if !validateStruct(c, &req) {
		return
	}

	adjuntoPath, ok := h.guardarAdjunto(c)
	if !ok {
		return
	}

	resp, err := h.svc.ResolverDisputa(c.Request.Context(), id, req, adjuntoPath)
	if err != nil {
		// The resolution never committed, so the stored adjunto has no owner.
		if adjuntoPath != nil {
			if rmErr := os.Remove(*adjuntoPath); rmErr != nil {
				log.Warn().Err(rmErr).Str("adjunto", *adjuntoPath).Msg("no se pudo eliminar el adjunto huérfano")
			}
		}
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Comentar godoc
// @Summary      Agregar comentario a la disputa
// @Description  Anexa un comentario a la línea de tiempo de la disputa.
// @Tags         disputas
// @Accept       json
// @Produce      json
// @Param        id   path string                true "UUID de la disputa"
// @Param        body body dto.ComentarioRequest true "Comentario"
// @Success      201  {object} dto.DisputaEventoResponse
// @Failure      400  {object} apierror.APIError
// @Router       /v1/disputas/{id}/comentarios [post]
func (h *DisputasHandler) Comentar(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	var req dto.ComentarioRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AgregarComentario(c.Request.Context(), id, req)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtener godoc
// @Summary      Detalle de una disputa
// @Produce      json
// @Param        id path string true "UUID de la disputa"
// @Success      200 {object} dto.DisputaResponse
// @Failure      404 {object} apierror.APIError
// @Router       /v1/disputas/{id} [get]
func (h *DisputasHandler) Obtener(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("ID invalido"))
		return
	}
	resp, err := h.svc.Obtener(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Listar godoc
// @Summary      Listar disputas
// @Produce      json
// @Param        estado query string false "abierta | en_revision | resuelta | cerrada"
// @Param        page   query int    false "Página (default 1)"
// @Param        limit  query int    false "Registros por página (default 50)"
// @Success      200 {object} dto.DisputaListResponse
// @Failure      400 {object} apierror.APIError
// @Router       /v1/disputas [get]
func (h *DisputasHandler) Listar(c *gin.Context) {
	var filter dto.DisputaFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New(err.Error()))
		return
	}
	resp, err := h.svc.Listar(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("Error al listar disputas"))
		return
	}
	c.JSON(http.StatusOK, resp)
}

// guardarAdjunto validates and stores the optional "adjunto" upload.
// Only PDFs up to the configured size are accepted; the file is stored under
// adjuntosPath with a generated name. Returns (nil, true) when no attachment
// was sent.
func (h *DisputasHandler) guardarAdjunto(c *gin.Context) (*string, bool) {
	fh, err := c.FormFile("adjunto")
	if err != nil {
		return nil, true // no attachment
	}

	if fh.Size > h.maxUploadBytes {
		c.JSON(http.StatusBadRequest, apierror.New(
			fmt.Sprintf("El adjunto excede el máximo de %dMB", h.maxUploadBytes>>20)))
		return nil, false
	}
	if strings.ToLower(filepath.Ext(fh.Filename)) != ".pdf" {
		c.JSON(http.StatusBadRequest, apierror.New("El adjunto debe ser un PDF"))
		return nil, false
	}

	f, err := fh.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("No se pudo leer el adjunto"))
		return nil, false
	}
	defer f.Close()

	// Sniff the magic bytes — the extension alone is not trustworthy.
	header := make([]byte, 5)
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, []byte("%PDF-")) {
		c.JSON(http.StatusBadRequest, apierror.New("El adjunto no es un PDF valido"))
		return nil, false
	}

	if err := os.MkdirAll(h.adjuntosPath, 0755); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("No se pudo almacenar el adjunto"))
		return nil, false
	}
	dest := filepath.Join(h.adjuntosPath, uuid.NewString()+".pdf")
	if err := c.SaveUploadedFile(fh, dest); err != nil {
		c.JSON(http.StatusInternalServerError, apierror.New("No se pudo almacenar el adjunto"))
		return nil, false
	}
	return &dest, true
}
