package repo

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

// CreateQuestion inserts q as given.
func CreateQuestion(ctx context.Context, db *gorm.DB, q *domain.Question) error {
	return db.WithContext(ctx).Create(q).Error
}

// ListQuestions returns every question in insertion order.
func ListQuestions(ctx context.Context, db *gorm.DB) ([]domain.Question, error) {
	var out []domain.Question
	err := db.WithContext(ctx).Order("rowid ASC").Find(&out).Error
	return out, err
}

// GetQuestion fetches one question by id.
func GetQuestion(ctx context.Context, db *gorm.DB, id string) (*domain.Question, error) {
	var q domain.Question
	err := db.WithContext(ctx).First(&q, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}

// AnswerQuestion sets answer, answered=true and answered_at in one UPDATE and
// returns the updated row.
func AnswerQuestion(ctx context.Context, db *gorm.DB, id, answer string, at time.Time) (*domain.Question, error) {
	var out *domain.Question
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&domain.Question{}).
			Where("id = ?", id).
			Updates(map[string]any{
				"answer":      answer,
				"answered":    true,
				"answered_at": at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		q, err := GetQuestion(ctx, tx, id)
		if err != nil {
			return err
		}
		out = q
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
