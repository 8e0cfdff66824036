package database

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TxFunc defines a transaction function
type TxFunc func(ctx context.Context, tx *gorm.DB) error

// Transaction executes fn within a database transaction. The transaction
// commits when fn returns nil and rolls back otherwise.
func (db *DB) Transaction(ctx context.Context, fn TxFunc) error {
	log := db.logger.WithContext(ctx)
	log.Debug("starting database transaction")

	return db.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := fn(ctx, tx); err != nil {
			log.Debug("transaction failed, rolling back", zap.Error(err))
			return err
		}

		log.Debug("transaction committed successfully")
		return nil
	})
}
