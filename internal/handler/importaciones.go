package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"nextops/internal/apierror"
	"nextops/internal/dto"
	"nextops/internal/model"
	"nextops/internal/service"

	"github.com/gin-gonic/gin"
)

type ImportacionesHandler struct {
	svc            service.ImportService
	maxUploadBytes int64
}

func NewImportacionesHandler(svc service.ImportService, maxUploadMB int) *ImportacionesHandler {
	return &ImportacionesHandler{svc: svc, maxUploadBytes: int64(maxUploadMB) << 20}
}

// Importar godoc
// @Summary      Importar lote de planillas de OTs
// @Description  Procesa un lote de archivos CSV/XLSX como unidad atómica. Si se detectan conflictos en cliente u operativo no se persiste nada y responde 409 con el detalle.
// @Tags         importaciones
// @Accept       multipart/form-data
// @Produce      json
// @Param        archivos         formData file   true  "Planillas CSV o XLSX (repetible)"
// @Param        tipos_operacion  formData string true  "Tipo por archivo, en el mismo orden: importacion | exportacion (repetible)"
// @Success      200  {object} dto.ImportResult
// @Failure      400  {object} apierror.APIError
// @Failure      409  {object} dto.ImportResult
// @Router       /v1/importaciones [post]
func (h *ImportacionesHandler) Importar(c *gin.Context) {
	archivos, ok := h.leerArchivos(c)
	if !ok {
		return
	}

	result, err := h.svc.ImportarLote(c.Request.Context(), archivos)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if result.HasConflicts {
		c.JSON(http.StatusConflict, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// Resolver godoc
// @Summary      Resolver conflictos de importación
// @Description  Re-procesa el mismo lote de archivos aplicando las resoluciones indicadas. Conflictos sin entrada de resolución conservan el valor persistido.
// @Tags         importaciones
// @Accept       multipart/form-data
// @Produce      json
// @Param        archivos         formData file   true "Las mismas planillas del lote original (repetible)"
// @Param        tipos_operacion  formData string true "Tipo por archivo, en el mismo orden (repetible)"
// @Param        resoluciones     formData string true "JSON: {\"resoluciones\":[{\"numero_ot\":...,\"campo\":...,\"resolucion\":...}]}"
// @Success      200  {object} dto.ImportResult
// @Failure      400  {object} apierror.APIError
// @Router       /v1/importaciones/resolver [post]
func (h *ImportacionesHandler) Resolver(c *gin.Context) {
	raw := c.PostForm("resoluciones")
	if raw == "" {
		c.JSON(http.StatusBadRequest, apierror.New("Falta el campo 'resoluciones'"))
		return
	}
	var req dto.ResolverConflictosRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido en 'resoluciones': "+err.Error()))
		return
	}
	if !validateStruct(c, &req) {
		return
	}

	archivos, ok := h.leerArchivos(c)
	if !ok {
		return
	}

	result, err := h.svc.ResolverConflictos(c.Request.Context(), archivos, req.Resoluciones)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// leerArchivos reads the uploaded spreadsheets and their per-file operation
// types. Files and tipos_operacion pair up by position.
func (h *ImportacionesHandler) leerArchivos(c *gin.Context) ([]service.ArchivoImportacion, bool) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Formulario multipart invalido: "+err.Error()))
		return nil, false
	}

	files := form.File["archivos"]
	tipos := form.Value["tipos_operacion"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, apierror.New("Debe adjuntar al menos un archivo en 'archivos'"))
		return nil, false
	}
	if len(tipos) != len(files) {
		c.JSON(http.StatusBadRequest, apierror.New(
			fmt.Sprintf("Se recibieron %d archivos pero %d tipos_operacion", len(files), len(tipos))))
		return nil, false
	}

	archivos := make([]service.ArchivoImportacion, 0, len(files))
	for i, fh := range files {
		tipo := strings.ToLower(strings.TrimSpace(tipos[i]))
		if tipo != model.OperacionImportacion && tipo != model.OperacionExportacion {
			c.JSON(http.StatusBadRequest, apierror.New(
				fmt.Sprintf("tipo_operacion invalido para %s: %q", fh.Filename, tipos[i])))
			return nil, false
		}

		ext := strings.ToLower(filepath.Ext(fh.Filename))
		if ext != ".csv" && ext != ".xlsx" {
			c.JSON(http.StatusBadRequest, apierror.New(
				fmt.Sprintf("Formato no soportado para %s: se aceptan .csv y .xlsx", fh.Filename)))
			return nil, false
		}
		if fh.Size > h.maxUploadBytes {
			c.JSON(http.StatusBadRequest, apierror.New(
				fmt.Sprintf("%s excede el tamaño máximo permitido", fh.Filename)))
			return nil, false
		}

		f, err := fh.Open()
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("No se pudo leer "+fh.Filename))
			return nil, false
		}
		contenido, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("No se pudo leer "+fh.Filename))
			return nil, false
		}

		archivos = append(archivos, service.ArchivoImportacion{
			Nombre:        fh.Filename,
			Contenido:     contenido,
			TipoOperacion: tipo,
		})
	}
	return archivos, true
}
