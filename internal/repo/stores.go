package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

// GormDocuments adapts the document free functions to a registry bound to db.
type GormDocuments struct{ DB *gorm.DB }

func (s GormDocuments) Append(ctx context.Context, d *domain.Document) error {
	return CreateDocument(ctx, s.DB, d)
}

func (s GormDocuments) List(ctx context.Context) ([]domain.Document, error) {
	return ListDocuments(ctx, s.DB)
}

func (s GormDocuments) Get(ctx context.Context, id string) (*domain.Document, error) {
	return GetDocument(ctx, s.DB, id)
}

func (s GormDocuments) Remove(ctx context.Context, id string) error {
	return DeleteDocument(ctx, s.DB, id)
}

// GormQuestions adapts the question free functions to a registry bound to db.
type GormQuestions struct{ DB *gorm.DB }

func (s GormQuestions) Append(ctx context.Context, q *domain.Question) error {
	return CreateQuestion(ctx, s.DB, q)
}

func (s GormQuestions) List(ctx context.Context) ([]domain.Question, error) {
	return ListQuestions(ctx, s.DB)
}

func (s GormQuestions) Get(ctx context.Context, id string) (*domain.Question, error) {
	return GetQuestion(ctx, s.DB, id)
}

func (s GormQuestions) SetAnswer(ctx context.Context, id, answer string, at time.Time) (*domain.Question, error) {
	return AnswerQuestion(ctx, s.DB, id, answer, at)
}

func (s GormQuestions) Stats(ctx context.Context) (domain.QuestionStats, error) {
	return QuestionStats(ctx, s.DB)
}

// GormIdempotency adapts the idempotency free functions to db.
type GormIdempotency struct{ DB *gorm.DB }

func (s GormIdempotency) Get(ctx context.Context, clientID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	return GetIdempotency(ctx, s.DB, clientID, scope, key, now)
}

func (s GormIdempotency) Create(ctx context.Context, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	return CreateIdempotency(ctx, s.DB, clientID, scope, key, resourceID, status, ttl)
}
