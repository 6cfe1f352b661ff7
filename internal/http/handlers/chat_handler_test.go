package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/extract"
	"github.com/tbourn/go-study-assistant/internal/http/middleware"
	"github.com/tbourn/go-study-assistant/internal/llm"
	"github.com/tbourn/go-study-assistant/internal/repo"
	"github.com/tbourn/go-study-assistant/internal/services"
	"github.com/tbourn/go-study-assistant/internal/storage"
)

// ----- Fakes -----

type fakeGenerator struct {
	reply string
	err   error
	calls int
}

func (f *fakeGenerator) Generate(ctx context.Context, turns []llm.Turn, gen llm.GenerationConfig) (string, error) {
	f.calls++
	return f.reply, f.err
}

type memIdem struct {
	mu   sync.Mutex
	recs map[string]*domain.Idempotency
}

func (m *memIdem) Get(ctx context.Context, clientID, scope, key string, now time.Time) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.recs[clientID+"|"+scope+"|"+key]; ok {
		return r, nil
	}
	return nil, repo.ErrNotFound
}

func (m *memIdem) Create(ctx context.Context, clientID, scope, key, resourceID string, status int, ttl time.Duration) (*domain.Idempotency, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := clientID + "|" + scope + "|" + key
	if _, ok := m.recs[k]; ok {
		return nil, repo.ErrDuplicate
	}
	r := &domain.Idempotency{ClientID: clientID, Scope: scope, Key: key, ResourceID: resourceID, Status: status}
	m.recs[k] = r
	return r, nil
}

// ----- Harness -----

type harness struct {
	r    *gin.Engine
	gen  *fakeGenerator
	docs *services.DocumentService
	qs   *services.QuestionService
}

// textExtract treats the upload bytes as the extracted text.
func textExtract(data []byte, declaredType string) (extract.Result, error) {
	if strings.HasPrefix(string(data), "broken") {
		return extract.Result{}, &extract.UnreadableError{Type: declaredType, Err: errors.New("bad bytes")}
	}
	return extract.Result{Text: string(data), Pages: 3}, nil
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	gen := &fakeGenerator{reply: "Xin chào"}
	docs := services.NewDocumentService(repo.NewMemoryDocuments(), storage.NewLocal(t.TempDir()))
	docs.Extract = textExtract

	qs := services.NewQuestionService(repo.NewMemoryQuestions())
	qs.Idem = &memIdem{recs: map[string]*domain.Idempotency{}}
	clock := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	qs.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	n := 0
	qs.NewID = func() string {
		n++
		return fmt.Sprintf("q%d", n)
	}

	h := New(services.NewChatService(gen), docs, qs)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("X-Request-ID", "rid-test")
		c.Next()
	})
	r.Use(middleware.IdempotencyValidator(middleware.IdempotencyOptions{}, nil))

	r.POST("/chat", h.Chat)
	r.GET("/documents", h.ListDocuments)
	r.POST("/documents", h.UploadDocument)
	r.DELETE("/documents", h.DeleteDocumentByBody)
	r.DELETE("/documents/:id", h.DeleteDocument)
	r.GET("/documents/search", h.SearchDocuments)
	r.GET("/documents/:id/text", h.DocumentText)
	r.GET("/questions", h.ListQuestions)
	r.GET("/questions/stats", h.QuestionStats)
	r.POST("/questions", h.SubmitQuestion)
	r.PUT("/questions", h.AnswerQuestion)
	r.PUT("/questions/:id/answer", h.AnswerQuestionByID)

	return &harness{r: r, gen: gen, docs: docs, qs: qs}
}

func (h *harness) do(t *testing.T, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(w.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
	return v
}

// ----- Tests -----

func TestChat_OK(t *testing.T) {
	h := newHarness(t)
	h.gen.reply = "Đại đoàn kết là chiến lược."

	w := h.do(t, http.MethodPost, "/chat", ChatRequest{Message: "Đại đoàn kết là gì?"})
	if w.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[ChatResponse](t, w)
	if got.Response != "Đại đoàn kết là chiến lược." || got.Escalated {
		t.Fatalf("unexpected body: %+v", got)
	}
}

func TestChat_Escalation(t *testing.T) {
	h := newHarness(t)
	h.gen.reply = "Mình không chắc chắn về điều này."

	got := decode[ChatResponse](t, h.do(t, http.MethodPost, "/chat", ChatRequest{Message: "Câu hỏi khó"}))
	if !got.Escalated || !strings.HasSuffix(got.Response, services.TeacherSuggestion) {
		t.Fatalf("expected escalated reply, got %+v", got)
	}
}

func TestChat_Errors(t *testing.T) {
	cases := []struct {
		name     string
		body     any
		genErr   error
		wantCode int
		wantErr  string
		wantCall bool
	}{
		{"invalid json", "{", nil, http.StatusBadRequest, ErrCodeBadRequest, false},
		{"empty message", ChatRequest{Message: "   "}, nil, http.StatusBadRequest, ErrCodeEmptyMessage, false},
		{"credentials", ChatRequest{Message: "hi"}, llm.ErrInvalidCredentials, http.StatusBadGateway, ErrCodeInvalidCredentials, true},
		{"quota", ChatRequest{Message: "hi"}, llm.ErrQuotaExceeded, http.StatusTooManyRequests, ErrCodeQuotaExceeded, true},
		{"bad request", ChatRequest{Message: "hi"}, &llm.BadRequestError{Detail: "bad"}, http.StatusBadGateway, ErrCodeBackendBadRequest, true},
		{"backend", ChatRequest{Message: "hi"}, &llm.BackendError{Status: 503}, http.StatusBadGateway, ErrCodeBackendError, true},
		{"timeout", ChatRequest{Message: "hi"}, &llm.BackendError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, ErrCodeBackendTimeout, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.gen.err = tc.genErr

			w := h.do(t, http.MethodPost, "/chat", tc.body)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			er := decode[ErrorResponse](t, w)
			if er.Code != tc.wantErr || er.RequestID != "rid-test" {
				t.Fatalf("unexpected envelope: %+v", er)
			}
			if (h.gen.calls > 0) != tc.wantCall {
				t.Fatalf("generator calls=%d", h.gen.calls)
			}
		})
	}
}
