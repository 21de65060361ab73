package repository

import (
	"context"
	"time"

	"nextops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type NotaCreditoRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, n *model.NotaCredito) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.NotaCredito, error)
	Update(ctx context.Context, n *model.NotaCredito) error
	// FindPendientesERP returns notas whose ERP registration is due for retry.
	FindPendientesERP(ctx context.Context, limit int) ([]model.NotaCredito, error)
	DB() *gorm.DB
}

type notaCreditoRepo struct{ db *gorm.DB }

func NewNotaCreditoRepository(db *gorm.DB) NotaCreditoRepository { return &notaCreditoRepo{db: db} }

func (r *notaCreditoRepo) DB() *gorm.DB { return r.db }

func (r *notaCreditoRepo) CreateTx(ctx context.Context, tx *gorm.DB, n *model.NotaCredito) error {
	return tx.WithContext(ctx).Create(n).Error
}

func (r *notaCreditoRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.NotaCredito, error) {
	var n model.NotaCredito
	err := r.db.WithContext(ctx).First(&n, id).Error
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *notaCreditoRepo) Update(ctx context.Context, n *model.NotaCredito) error {
	return r.db.WithContext(ctx).Save(n).Error
}

func (r *notaCreditoRepo) FindPendientesERP(ctx context.Context, limit int) ([]model.NotaCredito, error) {
	var notas []model.NotaCredito
	err := r.db.WithContext(ctx).
		Where("estado_erp = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?",
			model.NotaERPPendiente, time.Now()).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&notas).Error
	return notas, err
}
