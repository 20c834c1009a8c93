package utils

import "gorm.io/gorm"

// DBOption lets callers thread an open transaction (or query modifier)
// through a repository call without changing its signature.
type DBOption func(*gorm.DB) *gorm.DB

func ApplyOptions(db *gorm.DB, opts ...DBOption) *gorm.DB {
	for _, opt := range opts {
		db = opt(db)
	}
	return db
}

// WithTx substitutes tx for the repository's own gorm handle.
func WithTx(tx *gorm.DB) DBOption {
	return func(*gorm.DB) *gorm.DB {
		return tx
	}
}
