// Package services – ChatService
//
// This file implements a single stateless chat turn: the student's message is
// wrapped in the subject preamble, sent to the generative backend as one user
// turn with fixed sampling, and the reply is checked for phrases that suggest
// asking a teacher. No history is kept between turns.
package services

import (
	"context"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-study-assistant/internal/llm"
	"github.com/tbourn/go-study-assistant/internal/observability"
)

// Sampling is the fixed generation config for every turn.
var Sampling = llm.GenerationConfig{
	Temperature:     0.7,
	MaxOutputTokens: 1000,
	TopP:            0.8,
	TopK:            40,
}

// Generator is the backend contract ChatService depends on.
type Generator interface {
	Generate(ctx context.Context, turns []llm.Turn, gen llm.GenerationConfig) (string, error)
}

// ChatReply is the assistant's answer for one turn.
type ChatReply struct {
	Text      string `json:"response"`
	Escalated bool   `json:"escalated"`
}

// ChatService answers student messages through the generative backend.
type ChatService struct {
	LLM Generator
	// MaxMessageRunes caps the student message; 0 disables the check.
	MaxMessageRunes int
}

// NewChatService returns a ChatService with a 4000 character message cap.
func NewChatService(g Generator) *ChatService {
	return &ChatService{LLM: g, MaxMessageRunes: 4000}
}

// Converse runs one turn. Backend failures are returned as the llm package's
// typed errors.
func (s *ChatService) Converse(ctx context.Context, message string) (*ChatReply, error) {
	tr := otel.Tracer("services/ChatService")
	ctx, span := tr.Start(ctx, "Converse",
		trace.WithAttributes(attribute.Int("message.runes", utf8.RuneCountInString(message))),
	)
	defer span.End()

	message = strings.TrimSpace(message)
	if message == "" {
		observability.ChatTurns.WithLabelValues("invalid").Inc()
		return nil, ErrEmptyMessage
	}
	if s.MaxMessageRunes > 0 && utf8.RuneCountInString(message) > s.MaxMessageRunes {
		observability.ChatTurns.WithLabelValues("invalid").Inc()
		return nil, ErrMessageTooLong
	}

	text, err := s.LLM.Generate(ctx, []llm.Turn{{Role: llm.RoleUser, Text: BuildPrompt(message)}}, Sampling)
	if err != nil {
		observability.ChatTurns.WithLabelValues("backend_error").Inc()
		span.RecordError(err)
		return nil, err
	}

	reply, escalated := WithTeacherSuggestion(text)
	if escalated {
		observability.ChatEscalations.Inc()
	}
	observability.ChatTurns.WithLabelValues("ok").Inc()
	span.SetAttributes(attribute.Bool("chat.escalated", escalated))
	return &ChatReply{Text: reply, Escalated: escalated}, nil
}
