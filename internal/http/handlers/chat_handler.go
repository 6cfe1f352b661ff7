// Chat HTTP handlers and handler wiring.
//
// This file exposes the tutoring endpoint:
//   - POST /chat   (one stateless chat turn)
//
// It also declares the service contracts every handler in this package
// depends on and the Handlers struct that binds them.
package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/services"
)

//
// Service contracts (context-aware)
//

// ChatService runs one tutoring turn against the generative backend.
type ChatService interface {
	Converse(ctx context.Context, message string) (*services.ChatReply, error)
}

// DocumentService covers the upload pipeline and the document registry.
type DocumentService interface {
	Ingest(ctx context.Context, in services.IngestInput) (*services.IngestResult, error)
	List(ctx context.Context) ([]domain.Document, error)
	Remove(ctx context.Context, id string) error
	Text(ctx context.Context, id string) (string, error)
	Search(ctx context.Context, query string, k int) ([]services.DocumentHit, error)
}

// QuestionService covers the question registry.
type QuestionService interface {
	SubmitOnce(ctx context.Context, clientID, idemKey, question, studentName, studentID string) (*domain.Question, bool, error)
	Answer(ctx context.Context, id, answer string) (*domain.Question, error)
	Query(ctx context.Context, f services.QuestionFilter) ([]domain.Question, error)
	Stats(ctx context.Context) (domain.QuestionStats, error)
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints. It depends on abstract service
// interfaces to keep transport concerns separate from business logic.
type Handlers struct {
	chatSvc ChatService
	docSvc  DocumentService
	qSvc    QuestionService
}

// New constructs and returns a Handlers instance bound to the given services.
func New(chatSvc ChatService, docSvc DocumentService, qSvc QuestionService) *Handlers {
	return &Handlers{chatSvc: chatSvc, docSvc: docSvc, qSvc: qSvc}
}

//
// DTOs
//

// ChatRequest is the JSON payload for a chat turn.
type ChatRequest struct {
	Message string `json:"message" example:"Tư tưởng Hồ Chí Minh về đại đoàn kết dân tộc là gì?"`
}

// ChatResponse carries the assistant reply. Escalated is true when the
// ask-a-teacher suggestion was appended.
type ChatResponse struct {
	Response  string `json:"response"`
	Escalated bool   `json:"escalated"`
}

//
// Handlers
//

// Chat godoc
// @ID          chat
// @Summary     Ask the study assistant
// @Description Sends the student's message to the AI tutor (Ho Chi Minh Thought, Vietnamese) and returns its reply. Each turn is stateless.
// @Tags        Chat
// @Accept      json
// @Produce     json
//
// @Param       body  body  handlers.ChatRequest  true  "Student message"
//
// @Success     200  {object}  handlers.ChatResponse
// @Failure     400  {object}  handlers.ErrorResponse  "Empty or too long message"
// @Failure     429  {object}  handlers.ErrorResponse  "Backend quota exceeded"
// @Failure     502  {object}  handlers.ErrorResponse  "Backend error"
// @Failure     504  {object}  handlers.ErrorResponse  "Backend timeout"
// @Router      /chat [post]
func (h *Handlers) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	reply, err := h.chatSvc.Converse(c.Request.Context(), req.Message)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ChatResponse{Response: reply.Text, Escalated: reply.Escalated})
}
