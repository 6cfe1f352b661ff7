// Question HTTP handlers.
//
// This file exposes the question registry used to escalate to teachers:
//   - GET  /questions               (filtered listing, weak ETag)
//   - GET  /questions/stats         (dashboard counters)
//   - POST /questions               (submit, honours Idempotency-Key)
//   - PUT  /questions               (answer by JSON {id, answer})
//   - PUT  /questions/:id/answer    (answer by path id)
package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/http/middleware"
	"github.com/tbourn/go-study-assistant/internal/services"
)

// HeaderIdempotencyReplayed is set on responses served from a stored
// idempotency record.
const HeaderIdempotencyReplayed = "Idempotency-Replayed"

// SubmitQuestionRequest is the JSON payload for a new question.
type SubmitQuestionRequest struct {
	Question    string `json:"question"    example:"Vì sao Bác chọn con đường cách mạng vô sản?"`
	StudentName string `json:"studentName" example:"Nguyễn Văn A"`
	StudentID   string `json:"studentId"   example:"SV001"`
}

// AnswerQuestionRequest answers a question. ID is ignored on the
// /questions/:id/answer route.
type AnswerQuestionRequest struct {
	ID     string `json:"id,omitempty"`
	Answer string `json:"answer"`
}

// QuestionResponse wraps a created or answered question.
type QuestionResponse struct {
	Success  bool            `json:"success"`
	Question domain.Question `json:"question"`
	Message  string          `json:"message"`
}

// QuestionsResponse wraps a question listing.
type QuestionsResponse struct {
	Questions []domain.Question `json:"questions"`
}

// ListQuestions godoc
// @ID          listQuestions
// @Summary     List questions
// @Description Returns questions filtered by status and a case-insensitive search over question text, student name and student id.
// @Tags        Questions
// @Produce     json
//
// @Param       status         query   string  false  "all | answered | pending"  default(all)
// @Param       q              query   string  false  "Search text"
// @Param       sort           query   string  false  "newest | oldest"
// @Param       If-None-Match  header  string  false  "Weak ETag from a previous response"
//
// @Success     200  {object}  handlers.QuestionsResponse
// @Success     304  "Not Modified"
// @Failure     400  {object}  handlers.ErrorResponse
// @Router      /questions [get]
func (h *Handlers) ListQuestions(c *gin.Context) {
	qs, err := h.qSvc.Query(c.Request.Context(), services.QuestionFilter{
		Status: c.Query("status"),
		Search: c.Query("q"),
		Sort:   c.Query("sort"),
	})
	if err != nil {
		failErr(c, err)
		return
	}

	etag := questionsETag(qs)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Header("ETag", etag)
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	ok(c, http.StatusOK, QuestionsResponse{Questions: qs})
}

// questionsETag derives a weak validator from the result size and the most
// recent submit or answer instant.
func questionsETag(qs []domain.Question) string {
	var last time.Time
	for _, q := range qs {
		if q.Timestamp.After(last) {
			last = q.Timestamp
		}
		if q.AnsweredAt != nil && q.AnsweredAt.After(last) {
			last = *q.AnsweredAt
		}
	}
	return fmt.Sprintf(`W/"questions:%d:%d"`, len(qs), last.UnixNano())
}

// QuestionStats godoc
// @ID          questionStats
// @Summary     Question counters
// @Tags        Questions
// @Produce     json
// @Success     200  {object}  domain.QuestionStats
// @Failure     500  {object}  handlers.ErrorResponse
// @Router      /questions/stats [get]
func (h *Handlers) QuestionStats(c *gin.Context) {
	st, err := h.qSvc.Stats(c.Request.Context())
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, st)
}

// SubmitQuestion godoc
// @ID          submitQuestion
// @Summary     Submit a question to the teachers
// @Description Registers a pending question. A repeated Idempotency-Key from the same client returns the first question with Idempotency-Replayed: true.
// @Tags        Questions
// @Accept      json
// @Produce     json
//
// @Param       Idempotency-Key  header  string                          false  "Deduplication key"
// @Param       body             body    handlers.SubmitQuestionRequest  true   "Question"
//
// @Success     201  {object}  handlers.QuestionResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Missing field or invalid Idempotency-Key"
// @Failure     429  {object}  handlers.ErrorResponse
// @Router      /questions [post]
func (h *Handlers) SubmitQuestion(c *gin.Context) {
	var req SubmitQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	key, _ := middleware.GetIdempotencyKey(c)
	q, replayed, err := h.qSvc.SubmitOnce(c.Request.Context(), middleware.ClientID(c), key,
		req.Question, req.StudentName, req.StudentID)
	if err != nil {
		failErr(c, err)
		return
	}
	if replayed {
		c.Header(HeaderIdempotencyReplayed, "true")
	}
	ok(c, http.StatusCreated, QuestionResponse{
		Success:  true,
		Question: *q,
		Message:  "Câu hỏi đã được gửi thành công",
	})
}

// AnswerQuestion godoc
// @ID          answerQuestion
// @Summary     Answer a question (JSON body)
// @Tags        Questions
// @Accept      json
// @Produce     json
// @Param       body  body  handlers.AnswerQuestionRequest  true  "Question id and answer"
// @Success     200  {object}  handlers.QuestionResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /questions [put]
func (h *Handlers) AnswerQuestion(c *gin.Context) {
	var req AnswerQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.answer(c, req.ID, req.Answer)
}

// AnswerQuestionByID godoc
// @ID          answerQuestionByID
// @Summary     Answer a question
// @Tags        Questions
// @Accept      json
// @Produce     json
// @Param       id    path  string                          true  "Question ID"
// @Param       body  body  handlers.AnswerQuestionRequest  true  "Answer"
// @Success     200  {object}  handlers.QuestionResponse
// @Failure     400  {object}  handlers.ErrorResponse
// @Failure     404  {object}  handlers.ErrorResponse
// @Router      /questions/{id}/answer [put]
func (h *Handlers) AnswerQuestionByID(c *gin.Context) {
	var req AnswerQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	h.answer(c, c.Param("id"), req.Answer)
}

func (h *Handlers) answer(c *gin.Context, id, answer string) {
	q, err := h.qSvc.Answer(c.Request.Context(), id, answer)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, QuestionResponse{
		Success:  true,
		Question: *q,
		Message:  "Câu hỏi đã được trả lời",
	})
}
