package repository

import (
	"context"

	"nextops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type FacturaRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*model.FacturaCosto, error)
	UpdateTx(ctx context.Context, tx *gorm.DB, f *model.FacturaCosto) error
	DB() *gorm.DB
}

type facturaRepo struct{ db *gorm.DB }

func NewFacturaRepository(db *gorm.DB) FacturaRepository { return &facturaRepo{db: db} }

func (r *facturaRepo) DB() *gorm.DB { return r.db }

func (r *facturaRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.FacturaCosto, error) {
	var f model.FacturaCosto
	err := r.db.WithContext(ctx).First(&f, id).Error
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *facturaRepo) UpdateTx(ctx context.Context, tx *gorm.DB, f *model.FacturaCosto) error {
	return tx.WithContext(ctx).Save(f).Error
}
