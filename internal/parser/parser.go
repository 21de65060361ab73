// Package parser turns uploaded spreadsheet files (CSV / XLSX) into normalized
// OT candidate rows plus per-row diagnostics. It is a pure function over the
// file bytes: no persistence, no merge decisions — the import service owns
// those.
package parser

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"nextops/internal/dto"
	"nextops/internal/model"

	"github.com/xuri/excelize/v2"
)

// FilaOT is one spreadsheet row mapped to OT fields, with provenance for
// conflict diagnostics.
type FilaOT struct {
	Archivo string
	Fila    int // 1-based, as shown in the spreadsheet

	NumeroOT      string
	Cliente       string
	Operativo     string
	MBL           string
	Nave          string
	PuertoOrigen  string
	PuertoDestino string
	ETD           *time.Time
	ETA           *time.Time
	Contenedores  []string
	HBLs          []string
	Comentarios   string
}

// Resultado aggregates the parsed rows and the row-level issues of one file.
type Resultado struct {
	Filas        []FilaOT
	Advertencias []dto.FilaDiagnostico
	Errores      []dto.FilaDiagnostico
}

// headerSynonyms maps the column names seen in the field across customer
// spreadsheets to canonical field names. Lookup is done on the
// uppercased/trimmed header cell.
var headerSynonyms = map[string]string{
	"OT":           "numero_ot",
	"NRO OT":       "numero_ot",
	"NUMERO OT":    "numero_ot",
	"NÚMERO OT":    "numero_ot",
	"N OT":         "numero_ot",
	"ORDEN":        "numero_ot",
	"CLIENTE":      "cliente",
	"CONSIGNATARIO": "cliente",
	"SHIPPER":      "cliente",
	"OPERATIVO":    "operativo",
	"EJECUTIVO":    "operativo",
	"RESPONSABLE":  "operativo",
	"MBL":          "mbl",
	"MASTER":       "mbl",
	"BL MASTER":    "mbl",
	"NAVE":         "nave",
	"VESSEL":       "nave",
	"MOTONAVE":     "nave",
	"POL":          "puerto_origen",
	"PUERTO ORIGEN": "puerto_origen",
	"ORIGEN":       "puerto_origen",
	"POD":           "puerto_destino",
	"PUERTO DESTINO": "puerto_destino",
	"DESTINO":       "puerto_destino",
	"ETD":          "etd",
	"ETA":          "eta",
	"FECHA":        "fecha", // ETA for importación, ETD for exportación
	"CONTENEDOR":   "contenedores",
	"CONTENEDORES": "contenedores",
	"HBL":          "hbls",
	"HBLS":         "hbls",
	"BL HOUSE":     "hbls",
	"COMENTARIO":   "comentarios",
	"COMENTARIOS":  "comentarios",
	"OBSERVACIONES": "comentarios",
}

// Normalizar is the canonical comparison form for OT keys and for the two
// conflict-sensitive fields: trimmed, inner whitespace collapsed, uppercased.
// The normalized form is also what gets persisted.
func Normalizar(s string) string {
	return strings.ToUpper(strings.Join(strings.Fields(s), " "))
}

// ParseArchivo extracts OT candidate rows from one uploaded file.
// tipoOperacion decides how the generic FECHA column is interpreted.
// Rows with no parseable business key become advertencias; rows with a
// malformed date cell become errores. Both are skipped, never fatal.
func ParseArchivo(nombre string, data []byte, tipoOperacion string) (*Resultado, error) {
	if tipoOperacion != model.OperacionImportacion && tipoOperacion != model.OperacionExportacion {
		return nil, fmt.Errorf("parser: tipo de operación desconocido %q", tipoOperacion)
	}

	rows, err := extractRows(nombre, data)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, errors.New("parser: archivo vacío")
	}

	// Map header cells to canonical field names by column index.
	cols := make(map[int]string, len(rows[0]))
	for i, h := range rows[0] {
		if campo, ok := headerSynonyms[Normalizar(h)]; ok {
			cols[i] = campo
		}
	}
	if !hasCampo(cols, "numero_ot") {
		return nil, errors.New("parser: el archivo no tiene columna de número de OT")
	}

	res := &Resultado{}
	for idx, row := range rows[1:] {
		nroFila := idx + 2 // 1-based, header is row 1
		if emptyRow(row) {
			continue
		}

		fila := FilaOT{Archivo: nombre, Fila: nroFila}
		fechaErr := ""
		for i, cell := range row {
			campo, ok := cols[i]
			if !ok {
				continue
			}
			valor := strings.TrimSpace(cell)
			if valor == "" {
				continue
			}
			switch campo {
			case "numero_ot":
				fila.NumeroOT = Normalizar(valor)
			case "cliente":
				fila.Cliente = Normalizar(valor)
			case "operativo":
				fila.Operativo = Normalizar(valor)
			case "mbl":
				fila.MBL = valor
			case "nave":
				fila.Nave = valor
			case "puerto_origen":
				fila.PuertoOrigen = valor
			case "puerto_destino":
				fila.PuertoDestino = valor
			case "etd", "eta", "fecha":
				t, err := fechas.Parse(valor)
				if err != nil {
					fechaErr = fmt.Sprintf("fecha inválida %q en columna %s", valor, campo)
					continue
				}
				destino := campo
				if destino == "fecha" {
					// Operation-type-specific interpretation of the generic
					// date column: arrival for imports, departure for exports.
					if tipoOperacion == model.OperacionImportacion {
						destino = "eta"
					} else {
						destino = "etd"
					}
				}
				if destino == "eta" {
					fila.ETA = &t
				} else {
					fila.ETD = &t
				}
			case "contenedores":
				fila.Contenedores = splitLista(valor)
			case "hbls":
				fila.HBLs = splitLista(valor)
			case "comentarios":
				fila.Comentarios = valor
			}
		}

		if fila.NumeroOT == "" {
			res.Advertencias = append(res.Advertencias, dto.FilaDiagnostico{
				Archivo: nombre, Fila: nroFila, Detalle: "fila sin número de OT, omitida",
			})
			continue
		}
		if fechaErr != "" {
			res.Errores = append(res.Errores, dto.FilaDiagnostico{
				Archivo: nombre, Fila: nroFila, Detalle: fechaErr,
			})
			continue
		}
		res.Filas = append(res.Filas, fila)
	}
	return res, nil
}

// extractRows reads the raw cell matrix from CSV or XLSX content.
func extractRows(nombre string, data []byte) ([][]string, error) {
	switch strings.ToLower(filepath.Ext(nombre)) {
	case ".csv":
		r := csv.NewReader(bytes.NewReader(data))
		r.FieldsPerRecord = -1 // customer files often have ragged rows
		return r.ReadAll()
	case ".xlsx", ".xls":
		f, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return f.GetRows(f.GetSheetName(0))
	default:
		return nil, fmt.Errorf("parser: tipo de archivo no soportado %q", filepath.Ext(nombre))
	}
}

// splitLista splits list-valued cells (contenedores, HBLs) on the separators
// seen in customer files.
func splitLista(valor string) []string {
	parts := strings.FieldsFunc(valor, func(r rune) bool {
		return r == ',' || r == ';' || r == '/' || r == '\n'
	})
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func hasCampo(cols map[int]string, campo string) bool {
	for _, c := range cols {
		if c == campo {
			return true
		}
	}
	return false
}

func emptyRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// ── Date normalization ───────────────────────────────────────────────────────
// Heavy imports repeat the same handful of date strings thousands of times, so
// parsed values are cached.

var fechaLayouts = []string{
	"2006-01-02",
	"02/01/2006",
	"02-01-2006",
	"2/1/2006",
	"02/01/06",
	"2006-01-02 15:04:05",
}

type dateNormalizer struct {
	mu    sync.Mutex
	cache map[string]time.Time
}

var fechas = &dateNormalizer{cache: make(map[string]time.Time)}

func (d *dateNormalizer) Parse(s string) (time.Time, error) {
	d.mu.Lock()
	if t, ok := d.cache[s]; ok {
		d.mu.Unlock()
		return t, nil
	}
	d.mu.Unlock()

	for _, layout := range fechaLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.mu.Lock()
			d.cache[s] = t
			d.mu.Unlock()
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("formato de fecha no reconocido: %q", s)
}
