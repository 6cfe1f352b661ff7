package handlers

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/http/middleware"
)

func (h *harness) submit(t *testing.T, req SubmitQuestionRequest, headers ...string) QuestionResponse {
	t.Helper()
	w := h.do(t, http.MethodPost, "/questions", req, headers...)
	if w.Code != http.StatusCreated {
		t.Fatalf("submit: status=%d body=%s", w.Code, w.Body.String())
	}
	return decode[QuestionResponse](t, w)
}

func TestSubmitQuestion_Created(t *testing.T) {
	h := newHarness(t)

	got := h.submit(t, SubmitQuestionRequest{Question: "  Câu hỏi 1 ", StudentName: "An", StudentID: "SV01"})
	if !got.Success || got.Message != "Câu hỏi đã được gửi thành công" {
		t.Fatalf("unexpected body: %+v", got)
	}
	q := got.Question
	if q.ID != "q1" || q.Question != "Câu hỏi 1" || q.Answered || q.Answer != nil {
		t.Fatalf("unexpected question: %+v", q)
	}
}

func TestSubmitQuestion_MissingField(t *testing.T) {
	h := newHarness(t)
	for _, req := range []SubmitQuestionRequest{
		{Question: "", StudentName: "An", StudentID: "SV01"},
		{Question: "Q", StudentName: " ", StudentID: "SV01"},
		{Question: "Q", StudentName: "An"},
	} {
		w := h.do(t, http.MethodPost, "/questions", req)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("%+v: status=%d", req, w.Code)
		}
		if er := decode[ErrorResponse](t, w); er.Code != ErrCodeMissingField {
			t.Fatalf("code=%q", er.Code)
		}
	}
	if st := decode[domain.QuestionStats](t, h.do(t, http.MethodGet, "/questions/stats", nil)); st.Total != 0 {
		t.Fatalf("rejected submit was stored: %+v", st)
	}
}

func TestSubmitQuestion_IdempotentReplay(t *testing.T) {
	h := newHarness(t)
	req := SubmitQuestionRequest{Question: "Q", StudentName: "An", StudentID: "SV01"}

	w := h.do(t, http.MethodPost, "/questions", req, middleware.HeaderIdempotencyKey, "key-1")
	if w.Code != http.StatusCreated || w.Header().Get(HeaderIdempotencyReplayed) != "" {
		t.Fatalf("first: status=%d replayed=%q", w.Code, w.Header().Get(HeaderIdempotencyReplayed))
	}
	first := decode[QuestionResponse](t, w)

	w = h.do(t, http.MethodPost, "/questions", req, middleware.HeaderIdempotencyKey, "key-1")
	if w.Code != http.StatusCreated || w.Header().Get(HeaderIdempotencyReplayed) != "true" {
		t.Fatalf("replay: status=%d replayed=%q", w.Code, w.Header().Get(HeaderIdempotencyReplayed))
	}
	if again := decode[QuestionResponse](t, w); again.Question.ID != first.Question.ID {
		t.Fatalf("replay returned %s, want %s", again.Question.ID, first.Question.ID)
	}

	// another client with the same key creates its own question
	w = h.do(t, http.MethodPost, "/questions", req, middleware.HeaderIdempotencyKey, "key-1", "X-User-ID", "other")
	if other := decode[QuestionResponse](t, w); other.Question.ID == first.Question.ID {
		t.Fatalf("key leaked across clients")
	}

	if w := h.do(t, http.MethodPost, "/questions", req, middleware.HeaderIdempotencyKey, "bad key!"); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid key: status=%d", w.Code)
	}
}

func TestAnswerQuestion_BothRoutes(t *testing.T) {
	h := newHarness(t)
	q1 := h.submit(t, SubmitQuestionRequest{Question: "Q1", StudentName: "An", StudentID: "SV01"}).Question
	q2 := h.submit(t, SubmitQuestionRequest{Question: "Q2", StudentName: "Bình", StudentID: "SV02"}).Question

	w := h.do(t, http.MethodPut, "/questions", AnswerQuestionRequest{ID: q1.ID, Answer: " Trả lời "})
	if w.Code != http.StatusOK {
		t.Fatalf("answer: status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[QuestionResponse](t, w)
	if !got.Question.Answered || got.Question.Answer == nil || *got.Question.Answer != "Trả lời" || got.Question.AnsweredAt == nil {
		t.Fatalf("unexpected answered question: %+v", got.Question)
	}
	if got.Message != "Câu hỏi đã được trả lời" {
		t.Fatalf("message=%q", got.Message)
	}

	w = h.do(t, http.MethodPut, "/questions/"+q2.ID+"/answer", AnswerQuestionRequest{ID: "ignored", Answer: "A2"})
	if w.Code != http.StatusOK || decode[QuestionResponse](t, w).Question.ID != q2.ID {
		t.Fatalf("answer by path: status=%d body=%s", w.Code, w.Body.String())
	}

	if w := h.do(t, http.MethodPut, "/questions", AnswerQuestionRequest{ID: "missing", Answer: "A"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status=%d", w.Code)
	}
	if w := h.do(t, http.MethodPut, "/questions", AnswerQuestionRequest{ID: q1.ID}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank answer: status=%d", w.Code)
	}

	st := decode[domain.QuestionStats](t, h.do(t, http.MethodGet, "/questions/stats", nil))
	if st != (domain.QuestionStats{Total: 2, Pending: 0, Answered: 2}) {
		t.Fatalf("stats=%+v", st)
	}
}

func TestListQuestions_FiltersAndETag(t *testing.T) {
	h := newHarness(t)
	h.submit(t, SubmitQuestionRequest{Question: "Độc lập là gì?", StudentName: "An", StudentID: "SV01"})
	q2 := h.submit(t, SubmitQuestionRequest{Question: "Tự do là gì?", StudentName: "Bình", StudentID: "SV02"}).Question
	h.do(t, http.MethodPut, "/questions/"+q2.ID+"/answer", AnswerQuestionRequest{Answer: "A"})

	ids := func(path string) []string {
		t.Helper()
		w := h.do(t, http.MethodGet, path, nil)
		if w.Code != http.StatusOK {
			t.Fatalf("%s: status=%d", path, w.Code)
		}
		var out []string
		for _, q := range decode[QuestionsResponse](t, w).Questions {
			out = append(out, q.ID)
		}
		return out
	}

	folded := "/questions?q=" + url.QueryEscape("ĐỘC LẬP")
	cases := map[string][]string{
		"/questions":                 {"q1", "q2"},
		"/questions?status=pending":  {"q1"},
		"/questions?status=ANSWERED": {"q2"},
		"/questions?sort=newest":     {"q2", "q1"},
		"/questions?q=sv02":          {"q2"},
		folded:                       {"q1"},
	}
	for path, want := range cases {
		got := ids(path)
		if len(got) != len(want) {
			t.Fatalf("%s: got %v want %v", path, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Fatalf("%s: got %v want %v", path, got, want)
			}
		}
	}

	if w := h.do(t, http.MethodGet, "/questions?status=done", nil); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid status: %d", w.Code)
	}

	w := h.do(t, http.MethodGet, "/questions", nil)
	etag := w.Header().Get("ETag")
	if etag == "" || etag[:2] != "W/" {
		t.Fatalf("expected weak ETag, got %q", etag)
	}
	w = h.do(t, http.MethodGet, "/questions", nil, "If-None-Match", etag)
	if w.Code != http.StatusNotModified || w.Body.Len() != 0 {
		t.Fatalf("conditional GET: status=%d len=%d", w.Code, w.Body.Len())
	}

	h.do(t, http.MethodPut, "/questions", AnswerQuestionRequest{ID: "q1", Answer: "B"})
	if w := h.do(t, http.MethodGet, "/questions", nil, "If-None-Match", etag); w.Code != http.StatusOK {
		t.Fatalf("stale ETag should miss, status=%d", w.Code)
	}
}
