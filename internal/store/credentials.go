package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrNotFound is returned when a lookup matches no stored record.
var ErrNotFound = errors.New("not found")

// CredentialsRepository handles saved_credentials table operations.
type CredentialsRepository struct {
	db *gorm.DB
}

// NewCredentialsRepository creates a new credentials repository.
func NewCredentialsRepository(db *gorm.DB) *CredentialsRepository {
	return &CredentialsRepository{db: db}
}

// Save upserts a token by its unique value and bumps last_used.
// Safe under concurrent callers: the conflict resolution happens in the database.
func (r *CredentialsRepository) Save(ctx context.Context, token string) error {
	cred := SavedCredential{
		Token:    token,
		LastUsed: time.Now().UTC(),
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "token"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_used"}),
	}).Create(&cred).Error
	if err != nil {
		return fmt.Errorf("save credential: %w", err)
	}
	return nil
}

// Latest returns the most recently used credential.
func (r *CredentialsRepository) Latest(ctx context.Context) (*SavedCredential, error) {
	var cred SavedCredential
	err := r.db.WithContext(ctx).Order("last_used DESC").First(&cred).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get latest credential: %w", err)
	}
	return &cred, nil
}
