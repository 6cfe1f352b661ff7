package repo

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

// MemoryDocuments is an in-process document registry guarded by a RWMutex.
// Contents are lost on restart.
type MemoryDocuments struct {
	mu   sync.RWMutex
	docs []domain.Document
}

// NewMemoryDocuments returns an empty registry.
func NewMemoryDocuments() *MemoryDocuments { return &MemoryDocuments{} }

func (s *MemoryDocuments) Append(ctx context.Context, d *domain.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.docs = append(s.docs, *d)
	s.mu.Unlock()
	return nil
}

// List returns a copy in insertion order.
func (s *MemoryDocuments) List(ctx context.Context) ([]domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.docs), nil
}

func (s *MemoryDocuments) Get(ctx context.Context, id string) (*domain.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := range s.docs {
		if s.docs[i].ID == id {
			d := s.docs[i]
			return &d, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryDocuments) Remove(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.IndexFunc(s.docs, func(d domain.Document) bool { return d.ID == id })
	if i < 0 {
		return ErrNotFound
	}
	s.docs = slices.Delete(s.docs, i, i+1)
	return nil
}

// MemoryQuestions is an in-process question registry guarded by a RWMutex.
type MemoryQuestions struct {
	mu    sync.RWMutex
	items []domain.Question
}

// NewMemoryQuestions returns an empty registry.
func NewMemoryQuestions() *MemoryQuestions { return &MemoryQuestions{} }

func (s *MemoryQuestions) Append(ctx context.Context, q *domain.Question) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.items = append(s.items, cloneQuestion(*q))
	s.mu.Unlock()
	return nil
}

// List returns a deep copy in insertion order.
func (s *MemoryQuestions) List(ctx context.Context) ([]domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Question, len(s.items))
	for i, q := range s.items {
		out[i] = cloneQuestion(q)
	}
	return out, nil
}

func (s *MemoryQuestions) Get(ctx context.Context, id string) (*domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, q := range s.items {
		if q.ID == id {
			c := cloneQuestion(q)
			return &c, nil
		}
	}
	return nil, ErrNotFound
}

// SetAnswer updates the record under the write lock so concurrent answers
// never interleave partially.
func (s *MemoryQuestions) SetAnswer(ctx context.Context, id, answer string, at time.Time) (*domain.Question, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.items {
		if s.items[i].ID != id {
			continue
		}
		a, ts := answer, at
		s.items[i].Answer = &a
		s.items[i].Answered = true
		s.items[i].AnsweredAt = &ts
		c := cloneQuestion(s.items[i])
		return &c, nil
	}
	return nil, ErrNotFound
}

func (s *MemoryQuestions) Stats(ctx context.Context) (domain.QuestionStats, error) {
	if err := ctx.Err(); err != nil {
		return domain.QuestionStats{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.QuestionStats{Total: int64(len(s.items))}
	for _, q := range s.items {
		if q.Pending() {
			st.Pending++
		}
	}
	st.Answered = st.Total - st.Pending
	return st, nil
}

func cloneQuestion(q domain.Question) domain.Question {
	if q.Answer != nil {
		a := *q.Answer
		q.Answer = &a
	}
	if q.AnsweredAt != nil {
		ts := *q.AnsweredAt
		q.AnsweredAt = &ts
	}
	return q
}
