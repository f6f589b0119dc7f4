package store

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ChannelsRepository handles saved_channels table operations.
type ChannelsRepository struct {
	db *gorm.DB
}

// NewChannelsRepository creates a new channels repository.
func NewChannelsRepository(db *gorm.DB) *ChannelsRepository {
	return &ChannelsRepository{db: db}
}

// Save upserts a channel by its unique channel_id and bumps last_used.
// A non-empty name replaces the stored one; an empty name leaves it untouched.
func (r *ChannelsRepository) Save(ctx context.Context, channelID, name string) error {
	ch := SavedChannel{
		ChannelID: channelID,
		Name:      name,
		LastUsed:  time.Now().UTC(),
	}

	updates := []string{"last_used"}
	if name != "" {
		updates = append(updates, "name")
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "channel_id"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(&ch).Error
	if err != nil {
		return fmt.Errorf("save channel: %w", err)
	}
	return nil
}

// List returns all saved channels, most recently used first.
func (r *ChannelsRepository) List(ctx context.Context) ([]SavedChannel, error) {
	var channels []SavedChannel
	err := r.db.WithContext(ctx).Order("last_used DESC").Find(&channels).Error
	if err != nil {
		return nil, fmt.Errorf("list channels: %w", err)
	}
	return channels, nil
}
