package infra

import (
	"fmt"

	"nextops/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDatabase establishes a GORM connection backed by pgx, runs AutoMigrate
// for all tables, then applies the idempotent SQL patches GORM cannot express
// (partial indexes, jsonb defaults on pre-existing rows).
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations applies the schema. Also used by integration tests against a
// throwaway container database.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.OrdenTrabajo{},
		&model.FacturaCosto{},
		&model.Disputa{},
		&model.DisputaEvento{},
		&model.NotaCredito{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	return applySchemaPatches(db)
}

// applySchemaPatches runs idempotent DDL that AutoMigrate cannot fully handle.
// Each statement uses IF NOT EXISTS semantics so re-running is safe.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// Partial index backing the ERP retry cron query.
		`DO $$ BEGIN
		  IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'notas_credito')
		    AND NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_notas_credito_pendientes_erp') THEN
		    CREATE INDEX idx_notas_credito_pendientes_erp
		        ON notas_credito (next_retry_at)
		        WHERE estado_erp = 'pendiente' AND next_retry_at IS NOT NULL;
		  END IF;
		END $$`,
		// Timeline reads are always per dispute, oldest first.
		`DO $$ BEGIN
		  IF EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name = 'disputa_eventos')
		    AND NOT EXISTS (SELECT 1 FROM pg_indexes WHERE indexname = 'idx_disputa_eventos_timeline') THEN
		    CREATE INDEX idx_disputa_eventos_timeline
		        ON disputa_eventos (disputa_id, created_at);
		  END IF;
		END $$`,
	}

	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("schema patch: %w", err)
		}
	}
	return nil
}
