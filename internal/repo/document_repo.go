// Package repo implements the data persistence layer for domain entities.
// This file provides repository functions for the Document model.
//
// Functions follow the thin-repository approach: no business logic, only
// persistence and query composition. A missing row is reported as
// ErrNotFound; every other failure is the raw gorm error.
package repo

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound so callers can match either.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateDocument inserts d as given; ID and UploadDate are set by the caller.
func CreateDocument(ctx context.Context, db *gorm.DB, d *domain.Document) error {
	return db.WithContext(ctx).Create(d).Error
}

// ListDocuments returns every document in insertion order.
func ListDocuments(ctx context.Context, db *gorm.DB) ([]domain.Document, error) {
	var out []domain.Document
	err := db.WithContext(ctx).Order("rowid ASC").Find(&out).Error
	return out, err
}

// GetDocument fetches one document by id.
func GetDocument(ctx context.Context, db *gorm.DB, id string) (*domain.Document, error) {
	var d domain.Document
	err := db.WithContext(ctx).First(&d, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// DeleteDocument removes the registry row. Storage objects are untouched.
func DeleteDocument(ctx context.Context, db *gorm.DB, id string) error {
	res := db.WithContext(ctx).Delete(&domain.Document{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
