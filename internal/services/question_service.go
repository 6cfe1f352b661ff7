// Package services – QuestionService
//
// This file implements the question registry used to escalate questions from
// students to teachers. Questions are submitted with the student's name and
// id, listed in insertion order or filtered for the teacher dashboard, and
// answered by id. Answering sets answered=true permanently; answering again
// replaces the text.
package services

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/repo"
)

// Sort orders accepted by Query.
const (
	SortNewest = "newest"
	SortOldest = "oldest"
)

// SubmitScope namespaces idempotency keys used by SubmitOnce.
const SubmitScope = "questions.submit"

// QuestionStore is the registry of escalated questions. Get and SetAnswer
// return repo.ErrNotFound for unknown ids.
type QuestionStore interface {
	Append(ctx context.Context, q *domain.Question) error
	List(ctx context.Context) ([]domain.Question, error)
	Get(ctx context.Context, id string) (*domain.Question, error)
	SetAnswer(ctx context.Context, id, answer string, at time.Time) (*domain.Question, error)
	Stats(ctx context.Context) (domain.QuestionStats, error)
}

// IdempotencyStore remembers which resource a client's idempotency key created.
type IdempotencyStore interface {
	Get(ctx context.Context, clientID, scope, key string, now time.Time) (*domain.Idempotency, error)
	Create(ctx context.Context, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error)
}

// QuestionFilter narrows and orders Query results. Zero values mean all
// statuses, no search and insertion order.
type QuestionFilter struct {
	Status string
	Search string
	Sort   string
}

// QuestionService implements the question registry use-cases.
type QuestionService struct {
	Store QuestionStore

	// Idem and IdemTTL enable SubmitOnce replay; a nil Idem disables it.
	Idem    IdempotencyStore
	IdemTTL time.Duration

	Now   func() time.Time
	NewID func() string
}

// NewQuestionService returns a service without idempotency support.
func NewQuestionService(store QuestionStore) *QuestionService {
	return &QuestionService{
		Store:   store,
		IdemTTL: 24 * time.Hour,
		Now:     func() time.Time { return time.Now().UTC() },
		NewID:   uuid.NewString,
	}
}

// Submit registers a new pending question. All three fields are trimmed and
// must be non-empty.
func (s *QuestionService) Submit(ctx context.Context, question, studentName, studentID string) (*domain.Question, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "Submit", trace.WithAttributes(attribute.String("student.id", studentID)))
	defer span.End()

	question = strings.TrimSpace(question)
	studentName = strings.TrimSpace(studentName)
	studentID = strings.TrimSpace(studentID)
	if question == "" || studentName == "" || studentID == "" {
		return nil, ErrMissingField
	}

	q := &domain.Question{
		ID:          s.NewID(),
		Question:    question,
		StudentName: studentName,
		StudentID:   studentID,
		Timestamp:   s.Now(),
	}
	if err := s.Store.Append(ctx, q); err != nil {
		return nil, err
	}
	return q, nil
}

// SubmitOnce behaves like Submit, but a repeated idemKey from the same client
// returns the question created the first time. The boolean reports a replay.
// An empty key or an unconfigured store falls back to Submit.
func (s *QuestionService) SubmitOnce(ctx context.Context, clientID, idemKey, question, studentName, studentID string) (*domain.Question, bool, error) {
	idemKey = strings.TrimSpace(idemKey)
	if s.Idem == nil || idemKey == "" {
		q, err := s.Submit(ctx, question, studentName, studentID)
		return q, false, err
	}

	if q, ok := s.replay(ctx, clientID, idemKey); ok {
		return q, true, nil
	}

	q, err := s.Submit(ctx, question, studentName, studentID)
	if err != nil {
		return nil, false, err
	}
	if _, err := s.Idem.Create(ctx, clientID, SubmitScope, idemKey, q.ID, 201, s.IdemTTL); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			// a concurrent request with the same key won the insert
			if first, ok := s.replay(ctx, clientID, idemKey); ok {
				return first, true, nil
			}
		}
		log.Warn().Err(err).Str("question_id", q.ID).Msg("idempotency record not saved")
	}
	return q, false, nil
}

func (s *QuestionService) replay(ctx context.Context, clientID, key string) (*domain.Question, bool) {
	rec, err := s.Idem.Get(ctx, clientID, SubmitScope, key, s.Now())
	if err != nil || rec == nil {
		return nil, false
	}
	q, err := s.Store.Get(ctx, rec.ResourceID)
	if err != nil {
		return nil, false
	}
	return q, true
}

// Answer records the teacher's answer verbatim. Any non-empty text is
// accepted, and re-answering overwrites it.
func (s *QuestionService) Answer(ctx context.Context, id, answer string) (*domain.Question, error) {
	tr := otel.Tracer("services/QuestionService")
	ctx, span := tr.Start(ctx, "Answer", trace.WithAttributes(attribute.String("question.id", id)))
	defer span.End()

	id = strings.TrimSpace(id)
	if id == "" || answer == "" {
		return nil, ErrMissingField
	}
	q, err := s.Store.SetAnswer(ctx, id, answer, s.Now())
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrQuestionNotFound
		}
		return nil, err
	}
	return q, nil
}

// List returns every question in insertion order.
func (s *QuestionService) List(ctx context.Context) ([]domain.Question, error) {
	qs, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if qs == nil {
		qs = []domain.Question{}
	}
	return qs, nil
}

// Query filters by status, searches question text, student name and student
// id with Unicode case folding, then sorts by timestamp when asked to.
func (s *QuestionService) Query(ctx context.Context, f QuestionFilter) ([]domain.Question, error) {
	status := strings.ToLower(strings.TrimSpace(f.Status))
	switch status {
	case "", domain.StatusAll, domain.StatusAnswered, domain.StatusPending:
	default:
		return nil, ErrInvalidFilter
	}
	order := strings.ToLower(strings.TrimSpace(f.Sort))
	switch order {
	case "", SortNewest, SortOldest:
	default:
		return nil, ErrInvalidFilter
	}

	all, err := s.List(ctx)
	if err != nil {
		return nil, err
	}

	// Caser is stateful; one per call.
	fold := cases.Fold()
	needle := fold.String(strings.TrimSpace(f.Search))

	out := make([]domain.Question, 0, len(all))
	for _, q := range all {
		if status == domain.StatusAnswered && !q.Answered {
			continue
		}
		if status == domain.StatusPending && !q.Pending() {
			continue
		}
		if needle != "" &&
			!strings.Contains(fold.String(q.Question), needle) &&
			!strings.Contains(fold.String(q.StudentName), needle) &&
			!strings.Contains(fold.String(q.StudentID), needle) {
			continue
		}
		out = append(out, q)
	}

	switch order {
	case SortNewest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	case SortOldest:
		sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	}
	return out, nil
}

// Stats returns total, pending and answered counts.
func (s *QuestionService) Stats(ctx context.Context) (domain.QuestionStats, error) {
	return s.Store.Stats(ctx)
}
