package repository

import (
	"context"

	"nextops/internal/dto"
	"nextops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type DisputaRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, d *model.Disputa) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Disputa, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, d *model.Disputa) error
	CreateEventoTx(ctx context.Context, tx *gorm.DB, e *model.DisputaEvento) error
	List(ctx context.Context, filter dto.DisputaFilter) ([]model.Disputa, int64, error)
	DB() *gorm.DB
}

type disputaRepo struct{ db *gorm.DB }

func NewDisputaRepository(db *gorm.DB) DisputaRepository { return &disputaRepo{db: db} }

func (r *disputaRepo) DB() *gorm.DB { return r.db }

func (r *disputaRepo) CreateTx(ctx context.Context, tx *gorm.DB, d *model.Disputa) error {
	return tx.WithContext(ctx).Create(d).Error
}

func (r *disputaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Disputa, error) {
	var d model.Disputa
	err := r.db.WithContext(ctx).
		Preload("Eventos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Preload("Factura").
		First(&d, id).Error
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *disputaRepo) UpdateTx(ctx context.Context, tx *gorm.DB, d *model.Disputa) error {
	return tx.WithContext(ctx).Save(d).Error
}

func (r *disputaRepo) CreateEventoTx(ctx context.Context, tx *gorm.DB, e *model.DisputaEvento) error {
	return tx.WithContext(ctx).Create(e).Error
}

func (r *disputaRepo) List(ctx context.Context, filter dto.DisputaFilter) ([]model.Disputa, int64, error) {
	var disputas []model.Disputa
	var total int64
	offset := (filter.Page - 1) * filter.Limit

	q := r.db.WithContext(ctx).Model(&model.Disputa{})
	if filter.Estado != "" && filter.Estado != "all" {
		q = q.Where("estado = ?", filter.Estado)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := q.Preload("Eventos", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC") }).
		Order("created_at DESC").
		Offset(offset).Limit(filter.Limit).
		Find(&disputas).Error
	return disputas, total, err
}
