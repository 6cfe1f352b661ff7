package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/repo"
)

// ----- Fakes -----

type fakeIdem struct {
	mu        sync.Mutex
	recs      map[string]*domain.Idempotency
	createErr error
}

func newFakeIdem() *fakeIdem { return &fakeIdem{recs: map[string]*domain.Idempotency{}} }

func (f *fakeIdem) Get(ctx context.Context, clientID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.recs[clientID+"|"+scope+"|"+key]
	if !ok || now.After(r.ExpiresAt) {
		return nil, repo.ErrNotFound
	}
	return r, nil
}

func (f *fakeIdem) Create(ctx context.Context, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	k := clientID + "|" + scope + "|" + key
	if _, ok := f.recs[k]; ok {
		return nil, repo.ErrDuplicate
	}
	r := &domain.Idempotency{ClientID: clientID, Scope: scope, Key: key, ResourceID: resourceID, Status: status, ExpiresAt: fixedNow.Add(ttl)}
	f.recs[k] = r
	return r, nil
}

func newQuestionService() *QuestionService {
	s := NewQuestionService(repo.NewMemoryQuestions())
	clock := fixedNow
	s.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	n := 0
	s.NewID = func() string {
		n++
		return fmt.Sprintf("q%d", n)
	}
	return s
}

// ----- Tests -----

func TestSubmit_TrimsAndValidates(t *testing.T) {
	s := newQuestionService()
	ctx := context.Background()

	q, err := s.Submit(ctx, "  Tư tưởng là gì?  ", " An ", " SV001 ")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if q.Question != "Tư tưởng là gì?" || q.StudentName != "An" || q.StudentID != "SV001" {
		t.Fatalf("fields not trimmed: %+v", q)
	}
	if q.Answered || q.Answer != nil || q.ID != "q1" || q.Timestamp.IsZero() {
		t.Fatalf("unexpected new question: %+v", q)
	}

	for _, in := range [][3]string{{"", "An", "1"}, {"q", "   ", "1"}, {"q", "An", ""}} {
		if _, err := s.Submit(ctx, in[0], in[1], in[2]); !errors.Is(err, ErrMissingField) {
			t.Fatalf("Submit(%q) = %v, want ErrMissingField", in, err)
		}
	}
}

func TestAnswer_Lifecycle(t *testing.T) {
	s := newQuestionService()
	ctx := context.Background()
	q, _ := s.Submit(ctx, "q", "An", "1")

	if _, err := s.Answer(ctx, q.ID, ""); !errors.Is(err, ErrMissingField) {
		t.Fatalf("empty answer = %v", err)
	}
	if _, err := s.Answer(ctx, "", "x"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("blank id = %v", err)
	}
	if _, err := s.Answer(ctx, "nope", "x"); !errors.Is(err, ErrQuestionNotFound) {
		t.Fatalf("unknown id = %v", err)
	}

	a, err := s.Answer(ctx, q.ID, "Đây là đáp án")
	if err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if !a.Answered || a.Answer == nil || *a.Answer != "Đây là đáp án" || a.AnsweredAt == nil {
		t.Fatalf("unexpected answered question: %+v", a)
	}

	b, err := s.Answer(ctx, q.ID, "Đáp án sửa")
	if err != nil || *b.Answer != "Đáp án sửa" || !b.Answered {
		t.Fatalf("re-answer = (%+v, %v)", b, err)
	}
	if !b.AnsweredAt.After(*a.AnsweredAt) {
		t.Fatalf("answeredAt should move forward on overwrite")
	}
}

func TestAnswer_StoresTextVerbatim(t *testing.T) {
	ctx := context.Background()
	for _, text := range []string{"  Đáp án:\n- ý 1\n", "   ", "\tCó\n"} {
		s := newQuestionService()
		q, _ := s.Submit(ctx, "q", "An", "1")
		a, err := s.Answer(ctx, q.ID, text)
		if err != nil {
			t.Fatalf("Answer(%q): %v", text, err)
		}
		if a.Answer == nil || *a.Answer != text {
			t.Fatalf("stored answer = %v, want %q", a.Answer, text)
		}
		got, err := s.Store.Get(ctx, q.ID)
		if err != nil || got.Answer == nil || *got.Answer != text {
			t.Fatalf("persisted answer = (%+v, %v), want %q", got, err, text)
		}
	}
}

func TestQuery_FilterSearchSort(t *testing.T) {
	s := newQuestionService()
	ctx := context.Background()
	q1, _ := s.Submit(ctx, "Độc lập dân tộc là gì?", "Nguyễn Văn An", "SV001")
	_, _ = s.Submit(ctx, "Đạo đức cách mạng", "Trần Bình", "SV002")
	q3, _ := s.Submit(ctx, "Đại đoàn kết", "Lê Chi", "sv003")
	_, _ = s.Answer(ctx, q1.ID, "ok")

	all, err := s.Query(ctx, QuestionFilter{})
	if err != nil || len(all) != 3 || all[0].ID != "q1" || all[2].ID != "q3" {
		t.Fatalf("default query = (%+v, %v)", all, err)
	}

	pending, _ := s.Query(ctx, QuestionFilter{Status: "pending"})
	if len(pending) != 2 || pending[0].ID != "q2" {
		t.Fatalf("pending = %+v", pending)
	}
	answered, _ := s.Query(ctx, QuestionFilter{Status: "ANSWERED"})
	if len(answered) != 1 || answered[0].ID != "q1" {
		t.Fatalf("answered = %+v", answered)
	}

	// case folding works on Vietnamese capitals and student ids
	hits, _ := s.Query(ctx, QuestionFilter{Search: "ĐỘC LẬP"})
	if len(hits) != 1 || hits[0].ID != "q1" {
		t.Fatalf("search question = %+v", hits)
	}
	hits, _ = s.Query(ctx, QuestionFilter{Search: "SV003"})
	if len(hits) != 1 || hits[0].ID != q3.ID {
		t.Fatalf("search student id = %+v", hits)
	}
	hits, _ = s.Query(ctx, QuestionFilter{Search: "bình"})
	if len(hits) != 1 || hits[0].ID != "q2" {
		t.Fatalf("search student name = %+v", hits)
	}

	newest, _ := s.Query(ctx, QuestionFilter{Sort: "newest"})
	if newest[0].ID != "q3" || newest[2].ID != "q1" {
		t.Fatalf("newest = %+v", newest)
	}
	oldest, _ := s.Query(ctx, QuestionFilter{Sort: "oldest", Status: "all"})
	if oldest[0].ID != "q1" || oldest[2].ID != "q3" {
		t.Fatalf("oldest = %+v", oldest)
	}

	if _, err := s.Query(ctx, QuestionFilter{Status: "closed"}); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("bad status = %v", err)
	}
	if _, err := s.Query(ctx, QuestionFilter{Sort: "random"}); !errors.Is(err, ErrInvalidFilter) {
		t.Fatalf("bad sort = %v", err)
	}

	st, err := s.Stats(ctx)
	if err != nil || st.Total != 3 || st.Answered != 1 || st.Pending != 2 {
		t.Fatalf("Stats = (%+v, %v)", st, err)
	}
}

func TestList_EmptyIsNonNil(t *testing.T) {
	s := newQuestionService()
	list, err := s.List(context.Background())
	if err != nil || list == nil || len(list) != 0 {
		t.Fatalf("List = (%v, %v)", list, err)
	}
}

func TestSubmitOnce_Replay(t *testing.T) {
	s := newQuestionService()
	s.Idem = newFakeIdem()
	s.IdemTTL = 24 * time.Hour
	ctx := context.Background()

	first, replayed, err := s.SubmitOnce(ctx, "client-1", "key-1", "q", "An", "1")
	if err != nil || replayed {
		t.Fatalf("first SubmitOnce = (%+v, %v, %v)", first, replayed, err)
	}
	again, replayed, err := s.SubmitOnce(ctx, "client-1", "key-1", "q", "An", "1")
	if err != nil || !replayed || again.ID != first.ID {
		t.Fatalf("replay = (%+v, %v, %v)", again, replayed, err)
	}

	// another client with the same key is independent
	other, replayed, _ := s.SubmitOnce(ctx, "client-2", "key-1", "q", "An", "1")
	if replayed || other.ID == first.ID {
		t.Fatalf("keys must be scoped per client")
	}

	// no key → plain submit
	_, replayed, _ = s.SubmitOnce(ctx, "client-1", "", "q", "An", "1")
	if replayed {
		t.Fatalf("empty key must not replay")
	}

	list, _ := s.List(ctx)
	if len(list) != 3 {
		t.Fatalf("expected 3 stored questions, got %d", len(list))
	}
}

func TestSubmitOnce_ValidationAndStoreErrors(t *testing.T) {
	s := newQuestionService()
	idem := newFakeIdem()
	s.Idem = idem
	ctx := context.Background()

	if _, _, err := s.SubmitOnce(ctx, "c", "k", "", "An", "1"); !errors.Is(err, ErrMissingField) {
		t.Fatalf("validation = %v", err)
	}

	idem.createErr = errors.New("db locked")
	q, replayed, err := s.SubmitOnce(ctx, "c", "k2", "q", "An", "1")
	if err != nil || replayed || q == nil {
		t.Fatalf("idempotency write failure must not fail the submission: (%v, %v, %v)", q, replayed, err)
	}
}
