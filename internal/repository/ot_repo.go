package repository

import (
	"context"

	"nextops/internal/dto"
	"nextops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OTRepository interface {
	FindByNumero(ctx context.Context, numeroOT string) (*model.OrdenTrabajo, error)
	FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenTrabajo, error)
	CreateTx(ctx context.Context, tx *gorm.DB, ot *model.OrdenTrabajo) error
	UpdateTx(ctx context.Context, tx *gorm.DB, ot *model.OrdenTrabajo) error
	List(ctx context.Context, filter dto.OTFilter) ([]model.OrdenTrabajo, int64, error)
	DB() *gorm.DB // exposes the DB for transaction creation in the service layer
}

type otRepo struct{ db *gorm.DB }

func NewOTRepository(db *gorm.DB) OTRepository { return &otRepo{db: db} }

func (r *otRepo) DB() *gorm.DB { return r.db }

func (r *otRepo) FindByNumero(ctx context.Context, numeroOT string) (*model.OrdenTrabajo, error) {
	var ot model.OrdenTrabajo
	err := r.db.WithContext(ctx).Where("numero_ot = ?", numeroOT).First(&ot).Error
	if err != nil {
		return nil, err
	}
	return &ot, nil
}

func (r *otRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.OrdenTrabajo, error) {
	var ot model.OrdenTrabajo
	err := r.db.WithContext(ctx).First(&ot, id).Error
	if err != nil {
		return nil, err
	}
	return &ot, nil
}

func (r *otRepo) CreateTx(ctx context.Context, tx *gorm.DB, ot *model.OrdenTrabajo) error {
	return tx.WithContext(ctx).Create(ot).Error
}

func (r *otRepo) UpdateTx(ctx context.Context, tx *gorm.DB, ot *model.OrdenTrabajo) error {
	return tx.WithContext(ctx).Save(ot).Error
}

func (r *otRepo) List(ctx context.Context, filter dto.OTFilter) ([]model.OrdenTrabajo, int64, error) {
	var ots []model.OrdenTrabajo
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.OrdenTrabajo{})

	if filter.Busqueda != "" {
		like := "%" + filter.Busqueda + "%"
		q = q.Where("numero_ot ILIKE ? OR cliente ILIKE ? OR mbl ILIKE ?", like, like, like)
	}
	if filter.TipoOperacion != "" {
		q = q.Where("tipo_operacion = ?", filter.TipoOperacion)
	}
	if filter.EstadoProvision != "" {
		q = q.Where("estado_provision = ?", filter.EstadoProvision)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Order("created_at DESC").Offset(offset).Limit(filter.Limit).Find(&ots).Error
	return ots, total, err
}
