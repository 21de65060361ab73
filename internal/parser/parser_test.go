package parser

import (
	"testing"

	"nextops/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestNormalizar(t *testing.T) {
	assert.Equal(t, "ACME LOGISTICS SA", Normalizar("  acme   logistics  sa "))
	assert.Equal(t, "OT-2025-0001", Normalizar("ot-2025-0001"))
	assert.Equal(t, "", Normalizar("   "))
}

func TestParseCSVBasico(t *testing.T) {
	csv := "OT,CLIENTE,OPERATIVO,MBL,NAVE,CONTENEDORES\n" +
		"ot-100, acme  sa ,maria perez,MBLX1,MSC LORETO,\"ABCD1234567, EFGH7654321\"\n"

	res, err := ParseArchivo("lote.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 1)

	fila := res.Filas[0]
	assert.Equal(t, "OT-100", fila.NumeroOT)
	assert.Equal(t, "ACME SA", fila.Cliente)
	assert.Equal(t, "MARIA PEREZ", fila.Operativo)
	assert.Equal(t, "MBLX1", fila.MBL)
	assert.Equal(t, []string{"ABCD1234567", "EFGH7654321"}, fila.Contenedores)
	assert.Empty(t, res.Advertencias)
	assert.Empty(t, res.Errores)
}

func TestParseSinonimosDeEncabezado(t *testing.T) {
	csv := "NRO OT,CONSIGNATARIO,EJECUTIVO,BL MASTER,VESSEL\n" +
		"OT-7,Cliente Uno,Juan Soto,MBL99,EVER GIVEN\n"

	res, err := ParseArchivo("sinonimos.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 1)
	assert.Equal(t, "OT-7", res.Filas[0].NumeroOT)
	assert.Equal(t, "CLIENTE UNO", res.Filas[0].Cliente)
	assert.Equal(t, "JUAN SOTO", res.Filas[0].Operativo)
	assert.Equal(t, "MBL99", res.Filas[0].MBL)
	assert.Equal(t, "EVER GIVEN", res.Filas[0].Nave)
}

func TestParseFilaSinOTEsAdvertencia(t *testing.T) {
	csv := "OT,CLIENTE\n" +
		",Sin Clave SA\n" +
		"OT-1,Con Clave SA\n"

	res, err := ParseArchivo("lote.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 1)
	require.Len(t, res.Advertencias, 1)
	assert.Equal(t, 2, res.Advertencias[0].Fila)
	assert.Contains(t, res.Advertencias[0].Detalle, "sin número de OT")
}

func TestParseFechaInvalidaEsError(t *testing.T) {
	csv := "OT,CLIENTE,ETA\n" +
		"OT-1,Acme,31/31/2025\n" +
		"OT-2,Acme,2025-03-15\n"

	res, err := ParseArchivo("lote.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 1)
	assert.Equal(t, "OT-2", res.Filas[0].NumeroOT)
	require.Len(t, res.Errores, 1)
	assert.Equal(t, 2, res.Errores[0].Fila)
	assert.Contains(t, res.Errores[0].Detalle, "fecha inválida")
}

func TestParseColumnaFechaSegunTipoOperacion(t *testing.T) {
	csv := "OT,FECHA\nOT-1,15/03/2025\n"

	imp, err := ParseArchivo("imp.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, imp.Filas, 1)
	require.NotNil(t, imp.Filas[0].ETA)
	assert.Nil(t, imp.Filas[0].ETD)
	assert.Equal(t, "2025-03-15", imp.Filas[0].ETA.Format("2006-01-02"))

	exp, err := ParseArchivo("exp.csv", []byte(csv), model.OperacionExportacion)
	require.NoError(t, err)
	require.Len(t, exp.Filas, 1)
	require.NotNil(t, exp.Filas[0].ETD)
	assert.Nil(t, exp.Filas[0].ETA)
}

func TestParseVariosFormatosDeFecha(t *testing.T) {
	csv := "OT,ETA\n" +
		"OT-1,2025-03-15\n" +
		"OT-2,15/03/2025\n" +
		"OT-3,15-03-2025\n" +
		"OT-4,5/3/2025\n"

	res, err := ParseArchivo("fechas.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 4)
	for _, fila := range res.Filas {
		require.NotNil(t, fila.ETA, "fila %s", fila.NumeroOT)
	}
	assert.Equal(t, "2025-03-05", res.Filas[3].ETA.Format("2006-01-02"))
}

func TestParseSinColumnaOTEsFatal(t *testing.T) {
	csv := "CLIENTE,OPERATIVO\nAcme,Maria\n"
	_, err := ParseArchivo("lote.csv", []byte(csv), model.OperacionImportacion)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "número de OT")
}

func TestParseTipoOperacionDesconocido(t *testing.T) {
	_, err := ParseArchivo("lote.csv", []byte("OT\nOT-1\n"), "transbordo")
	require.Error(t, err)
}

func TestParseXLSX(t *testing.T) {
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetSheetRow(sheet, "A1", &[]interface{}{"OT", "CLIENTE", "HBL"}))
	require.NoError(t, f.SetSheetRow(sheet, "A2", &[]interface{}{"ot-55", "cliente dos", "HBL1; HBL2"}))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	res, err := ParseArchivo("lote.xlsx", buf.Bytes(), model.OperacionImportacion)
	require.NoError(t, err)
	require.Len(t, res.Filas, 1)
	assert.Equal(t, "OT-55", res.Filas[0].NumeroOT)
	assert.Equal(t, "CLIENTE DOS", res.Filas[0].Cliente)
	assert.Equal(t, []string{"HBL1", "HBL2"}, res.Filas[0].HBLs)
}

func TestParseArchivoVacio(t *testing.T) {
	_, err := ParseArchivo("vacio.csv", []byte(""), model.OperacionImportacion)
	require.Error(t, err)
}

func TestParseFilasVaciasSeIgnoran(t *testing.T) {
	csv := "OT,CLIENTE\nOT-1,Acme\n,,\n   ,\n"
	res, err := ParseArchivo("lote.csv", []byte(csv), model.OperacionImportacion)
	require.NoError(t, err)
	assert.Len(t, res.Filas, 1)
	assert.Empty(t, res.Advertencias)
}
