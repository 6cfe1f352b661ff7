// Package repo implements the data persistence layer for domain entities.
// This file provides small aggregate queries used by the teacher dashboard.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

// QuestionStats counts all, pending and answered questions.
func QuestionStats(ctx context.Context, db *gorm.DB) (domain.QuestionStats, error) {
	var st domain.QuestionStats
	q := db.WithContext(ctx).Model(&domain.Question{})
	if err := q.Count(&st.Total).Error; err != nil {
		return domain.QuestionStats{}, err
	}
	if err := db.WithContext(ctx).Model(&domain.Question{}).Where("answered = ?", true).Count(&st.Answered).Error; err != nil {
		return domain.QuestionStats{}, err
	}
	st.Pending = st.Total - st.Answered
	return st, nil
}
