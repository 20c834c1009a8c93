package repository

import (
	"context"

	"gorm.io/gorm"

	"go-feature-platform/internal/utils"
)

// UnitOfWork runs a set of repository calls inside one transaction. The
// callback receives a DBOption that must be forwarded to every repository
// call taking part in the transaction.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(txOpt utils.DBOption) error) error
}

type unitOfWork struct {
	db *gorm.DB
}

func NewUnitOfWork(db *gorm.DB) UnitOfWork {
	return &unitOfWork{db: db}
}

func (u *unitOfWork) Do(ctx context.Context, fn func(txOpt utils.DBOption) error) error {
	return u.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(utils.WithTx(tx))
	})
}
