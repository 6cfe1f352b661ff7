package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-study-assistant/internal/domain"
)

func TestQuestionStats_NoTable(t *testing.T) {
	db := newTestDB(t /* no migrations */)
	if _, err := QuestionStats(context.Background(), db); err == nil {
		t.Fatalf("expected error due to missing questions table")
	}
}

func TestQuestionStats_Empty(t *testing.T) {
	db := newTestDB(t, &domain.Question{})
	st, err := QuestionStats(context.Background(), db)
	if err != nil || st != (domain.QuestionStats{}) {
		t.Fatalf("QuestionStats = (%+v, %v)", st, err)
	}
}

func TestQuestionStats_Counts(t *testing.T) {
	db := newTestDB(t, &domain.Question{})
	ctx := context.Background()
	now := time.Now().UTC()
	for _, id := range []string{"a", "b", "c", "d"} {
		if err := CreateQuestion(ctx, db, question(id, now)); err != nil {
			t.Fatalf("CreateQuestion: %v", err)
		}
	}
	for _, id := range []string{"a", "c"} {
		if _, err := AnswerQuestion(ctx, db, id, "ok", now); err != nil {
			t.Fatalf("AnswerQuestion: %v", err)
		}
	}
	st, err := QuestionStats(ctx, db)
	if err != nil {
		t.Fatalf("QuestionStats: %v", err)
	}
	if st.Total != 4 || st.Answered != 2 || st.Pending != 2 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}
