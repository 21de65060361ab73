package service

import (
	"context"
	"testing"

	"nextops/internal/dto"
	"nextops/internal/model"
	"nextops/internal/repository"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// ── Stubs ─────────────────────────────────────────────────────────────────────

// stubOTRepo is an in-memory OTRepository. Reads hand out copies so the merge
// working set never aliases "persisted" state — mirrors how a rolled-back
// transaction leaves the table untouched.
type stubOTRepo struct {
	persisted    map[string]*model.OrdenTrabajo
	creadas      []model.OrdenTrabajo
	actualizadas []model.OrdenTrabajo
}

func newStubOTRepo() *stubOTRepo {
	return &stubOTRepo{persisted: make(map[string]*model.OrdenTrabajo)}
}

func (r *stubOTRepo) seed(ot model.OrdenTrabajo) {
	if ot.ID == uuid.Nil {
		ot.ID = uuid.New()
	}
	r.persisted[ot.NumeroOT] = &ot
}

func (r *stubOTRepo) FindByNumero(_ context.Context, numeroOT string) (*model.OrdenTrabajo, error) {
	ot, ok := r.persisted[numeroOT]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *ot
	return &cp, nil
}

func (r *stubOTRepo) FindByID(_ context.Context, id uuid.UUID) (*model.OrdenTrabajo, error) {
	for _, ot := range r.persisted {
		if ot.ID == id {
			cp := *ot
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *stubOTRepo) CreateTx(_ context.Context, _ *gorm.DB, ot *model.OrdenTrabajo) error {
	if ot.ID == uuid.Nil {
		ot.ID = uuid.New()
	}
	cp := *ot
	r.persisted[ot.NumeroOT] = &cp
	r.creadas = append(r.creadas, cp)
	return nil
}

func (r *stubOTRepo) UpdateTx(_ context.Context, _ *gorm.DB, ot *model.OrdenTrabajo) error {
	cp := *ot
	r.persisted[ot.NumeroOT] = &cp
	r.actualizadas = append(r.actualizadas, cp)
	return nil
}

func (r *stubOTRepo) List(_ context.Context, _ dto.OTFilter) ([]model.OrdenTrabajo, int64, error) {
	return nil, 0, nil
}

func (r *stubOTRepo) DB() *gorm.DB { return nil }

var _ repository.OTRepository = (*stubOTRepo)(nil)

// ── Helpers ───────────────────────────────────────────────────────────────────

func archivoCSV(nombre, contenido, tipo string) ArchivoImportacion {
	return ArchivoImportacion{Nombre: nombre, Contenido: []byte(contenido), TipoOperacion: tipo}
}

// ── ImportarLote ──────────────────────────────────────────────────────────────

func TestImportarLoteCreaOTsNuevas(t *testing.T) {
	repo := newStubOTRepo()
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO,NAVE\n" +
		"OT-1,Acme SA,Maria Perez,MSC LORETO\n" +
		"OT-2,Beta Ltda,Juan Soto,EVER GIVEN\n"

	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)

	assert.False(t, res.HasConflicts)
	assert.Equal(t, 2, res.Creadas)
	assert.Equal(t, 0, res.Actualizadas)
	assert.Equal(t, 2, res.Procesadas)

	ot1 := repo.persisted["OT-1"]
	require.NotNil(t, ot1)
	assert.Equal(t, "ACME SA", ot1.Cliente)
	assert.Equal(t, "MARIA PEREZ", ot1.Operativo)
	assert.Equal(t, model.ProvisionPendiente, ot1.EstadoProvision)
	assert.Equal(t, model.OperacionImportacion, ot1.TipoOperacion)
}

func TestReimportacionEsIdempotente(t *testing.T) {
	repo := newStubOTRepo()
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO\nOT-1,Acme SA,Maria Perez\n"
	archivos := []ArchivoImportacion{archivoCSV("lote.csv", csv, model.OperacionImportacion)}

	_, err := svc.ImportarLote(context.Background(), archivos)
	require.NoError(t, err)
	antes := *repo.persisted["OT-1"]

	res, err := svc.ImportarLote(context.Background(), archivos)
	require.NoError(t, err)

	assert.False(t, res.HasConflicts, "valores idénticos no son conflicto")
	assert.Equal(t, 0, res.Creadas)
	assert.Equal(t, 1, res.Actualizadas)
	despues := *repo.persisted["OT-1"]
	assert.Equal(t, antes.Cliente, despues.Cliente)
	assert.Equal(t, antes.Operativo, despues.Operativo)
}

func TestVacioContraNoVacioNoEsConflicto(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	// Incoming fills the empty cliente; incoming empty operativo keeps current.
	csv := "OT,CLIENTE,OPERATIVO\nOT-1,Acme SA,\n"
	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)

	assert.False(t, res.HasConflicts)
	ot := repo.persisted["OT-1"]
	assert.Equal(t, "ACME SA", ot.Cliente)
	assert.Equal(t, "MARIA PEREZ", ot.Operativo)
}

func TestNormalizacionEvitaFalsosConflictos(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME LOGISTICS SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO\nOT-1,  acme   logistics sa , maria  perez \n"
	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)
	assert.False(t, res.HasConflicts)
}

func TestConflictoDetieneElLoteCompleto(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	// OT-1 clashes on cliente; OT-2 is brand new and clean.
	csv := "OT,CLIENTE,OPERATIVO\n" +
		"OT-1,Otro Cliente,Maria Perez\n" +
		"OT-2,Beta Ltda,Juan Soto\n"
	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)

	assert.True(t, res.HasConflicts)
	require.Len(t, res.Conflictos, 1)
	c := res.Conflictos[0]
	assert.Equal(t, "OT-1", c.NumeroOT)
	assert.Equal(t, model.CampoCliente, c.Campo)
	assert.Equal(t, "ACME SA", c.ValorActual)
	assert.Equal(t, "OTRO CLIENTE", c.ValorNuevo)
	assert.Equal(t, "lote.csv", c.ArchivoOrigen)
	assert.Equal(t, 2, c.Fila)

	// Nothing was persisted — not even the clean OT-2.
	assert.Empty(t, repo.creadas)
	assert.Empty(t, repo.actualizadas)
	assert.Equal(t, "ACME SA", repo.persisted["OT-1"].Cliente)
	assert.Nil(t, repo.persisted["OT-2"])
}

func TestConflictoIntraLoteEntreArchivos(t *testing.T) {
	repo := newStubOTRepo()
	svc := NewImportService(repo)

	// Same new OT with different operativo across two files of one batch.
	csvA := "OT,CLIENTE,OPERATIVO\nOT-9,Acme SA,Maria Perez\n"
	csvB := "OT,CLIENTE,OPERATIVO\nOT-9,Acme SA,Juan Soto\n"

	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("a.csv", csvA, model.OperacionImportacion),
		archivoCSV("b.csv", csvB, model.OperacionImportacion),
	})
	require.NoError(t, err)

	assert.True(t, res.HasConflicts)
	require.Len(t, res.Conflictos, 1)
	c := res.Conflictos[0]
	assert.Equal(t, model.CampoOperativo, c.Campo)
	assert.Equal(t, "MARIA PEREZ", c.ValorActual)
	assert.Equal(t, "JUAN SOTO", c.ValorNuevo)
	assert.Equal(t, "b.csv", c.ArchivoOrigen, "la proveniencia apunta al archivo que trajo el valor nuevo")
	assert.Empty(t, repo.creadas)
}

func TestConflictoRepetidoSeReportaUnaVez(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	// The same clash appears in two rows; conflict identity is (ot, campo).
	csv := "OT,CLIENTE\nOT-1,Otro Cliente\nOT-1,Otro Cliente\n"
	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)
	assert.True(t, res.HasConflicts)
	assert.Len(t, res.Conflictos, 1)
}

func TestFilasInvalidasNoDetienenElLote(t *testing.T) {
	repo := newStubOTRepo()
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,ETA\n" +
		",Sin Clave,\n" +
		"OT-1,Acme SA,fecha-rota\n" +
		"OT-2,Beta Ltda,2025-03-15\n"
	res, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Creadas)
	assert.Equal(t, 2, res.Omitidas)
	assert.Len(t, res.Advertencias, 1)
	assert.Len(t, res.Errores, 1)
	assert.Equal(t, 3, res.TotalFilas)
	assert.NotNil(t, repo.persisted["OT-2"])
}

// ── ResolverConflictos ────────────────────────────────────────────────────────

func TestResolverConflictosUsarNuevo(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO\nOT-1,Otro Cliente,Maria Perez\n"
	archivos := []ArchivoImportacion{archivoCSV("lote.csv", csv, model.OperacionImportacion)}

	res, err := svc.ResolverConflictos(context.Background(), archivos, []dto.ResolucionConflicto{
		{NumeroOT: "OT-1", Campo: model.CampoCliente, Resolucion: dto.ResolucionUsarNuevo},
	})
	require.NoError(t, err)

	assert.False(t, res.HasConflicts)
	assert.Equal(t, 1, res.Actualizadas)
	assert.Equal(t, "OTRO CLIENTE", repo.persisted["OT-1"].Cliente)
}

func TestResolverConflictosMantenerActual(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO\nOT-1,Otro Cliente,Maria Perez\n"
	archivos := []ArchivoImportacion{archivoCSV("lote.csv", csv, model.OperacionImportacion)}

	res, err := svc.ResolverConflictos(context.Background(), archivos, []dto.ResolucionConflicto{
		{NumeroOT: "OT-1", Campo: model.CampoCliente, Resolucion: dto.ResolucionMantenerActual},
	})
	require.NoError(t, err)

	assert.False(t, res.HasConflicts)
	assert.Equal(t, "ACME SA", repo.persisted["OT-1"].Cliente)
}

func TestConflictoSinResolucionConservaElActual(t *testing.T) {
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{NumeroOT: "OT-1", Cliente: "ACME SA", Operativo: "MARIA PEREZ"})
	svc := NewImportService(repo)

	// Two clashes, only cliente is covered by the resolution list. The
	// uncovered operativo clash keeps the persisted value — the merge never
	// overwrites on its own.
	csv := "OT,CLIENTE,OPERATIVO\nOT-1,Otro Cliente,Juan Soto\n"
	archivos := []ArchivoImportacion{archivoCSV("lote.csv", csv, model.OperacionImportacion)}

	res, err := svc.ResolverConflictos(context.Background(), archivos, []dto.ResolucionConflicto{
		{NumeroOT: "OT-1", Campo: model.CampoCliente, Resolucion: dto.ResolucionUsarNuevo},
	})
	require.NoError(t, err)

	assert.False(t, res.HasConflicts)
	ot := repo.persisted["OT-1"]
	assert.Equal(t, "OTRO CLIENTE", ot.Cliente)
	assert.Equal(t, "MARIA PEREZ", ot.Operativo)
}

func TestCamposEditadosManualmenteNoSeSobrescriben(t *testing.T) {
	nave := "NAVE MANUAL"
	repo := newStubOTRepo()
	repo.seed(model.OrdenTrabajo{
		NumeroOT:       "OT-1",
		Cliente:        "ACME SA",
		Operativo:      "MARIA PEREZ",
		Nave:           &nave,
		CamposEditados: []string{"nave"},
	})
	svc := NewImportService(repo)

	csv := "OT,CLIENTE,OPERATIVO,NAVE,MBL\nOT-1,Acme SA,Maria Perez,MSC LORETO,MBLX1\n"
	_, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.csv", csv, model.OperacionImportacion),
	})
	require.NoError(t, err)

	ot := repo.persisted["OT-1"]
	require.NotNil(t, ot.Nave)
	assert.Equal(t, "NAVE MANUAL", *ot.Nave, "campo editado a mano no se toca")
	require.NotNil(t, ot.MBL)
	assert.Equal(t, "MBLX1", *ot.MBL, "campo no editado sí se actualiza")
}

func TestArchivoIlegibleEsFatalParaElLote(t *testing.T) {
	repo := newStubOTRepo()
	svc := NewImportService(repo)

	_, err := svc.ImportarLote(context.Background(), []ArchivoImportacion{
		archivoCSV("lote.txt", "OT\nOT-1\n", model.OperacionImportacion),
	})
	require.Error(t, err)
	assert.Empty(t, repo.creadas)
}
