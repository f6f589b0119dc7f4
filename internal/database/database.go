// package database provides sqlite connection management.
package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fenrik/chanvault/internal/store"
)

// DB wraps the GORM instance backing the local store.
type DB struct {
	GORM *gorm.DB
}

// New opens (creating if needed) the sqlite database at path and migrates
// the store schema.
func New(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	gormDB, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := gormDB.AutoMigrate(&store.SavedCredential{}, &store.SavedChannel{}); err != nil {
		return nil, fmt.Errorf("migrate store schema: %w", err)
	}

	return &DB{GORM: gormDB}, nil
}

// Close closes the underlying sql connection.
func (db *DB) Close() {
	if sqlDB, err := db.GORM.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

// Ping checks if the database is reachable.
func (db *DB) Ping() error {
	sqlDB, err := db.GORM.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}
