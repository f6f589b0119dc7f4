// Package store persists reusable credentials and channel identifiers.
package store

import "time"

// SavedCredential is a platform token remembered for reuse.
// Tokens are unique; saving an existing token bumps last_used.
type SavedCredential struct {
	ID       uint      `gorm:"primaryKey" json:"-"`
	Token    string    `gorm:"uniqueIndex" json:"token"`
	LastUsed time.Time `json:"last_used"`
}

// TableName keeps the table name aligned with the historical schema.
func (SavedCredential) TableName() string {
	return "saved_credentials"
}

// SavedChannel is a channel identifier remembered for reuse.
type SavedChannel struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	ChannelID string    `gorm:"uniqueIndex" json:"id"`
	Name      string    `json:"name,omitempty"`
	LastUsed  time.Time `json:"last_used"`
}

// TableName keeps the table name aligned with the historical schema.
func (SavedChannel) TableName() string {
	return "saved_channels"
}
