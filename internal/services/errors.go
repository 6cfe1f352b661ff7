// Package services holds the study assistant's business logic: document
// ingestion, the question registry and the chat turn. This file centralizes
// the service-level error values so handlers can map them to HTTP results
// consistently.
package services

import (
	"errors"

	"github.com/tbourn/go-study-assistant/internal/extract"
)

// Ingestion errors.
var (
	// ErrMissingFile is returned when an upload carries no bytes.
	ErrMissingFile = errors.New("no file uploaded")

	// ErrUnsupportedType is returned when the declared type is not PDF, DOC
	// or DOCX, or when content sniffing disagrees with the declaration.
	ErrUnsupportedType = errors.New("only pdf and word documents are supported")

	// ErrFileTooLarge is returned for uploads over the size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrUnreadableDocument aliases the extractor's sentinel so callers only
	// import this package.
	ErrUnreadableDocument = extract.ErrUnreadableDocument

	// ErrDocumentNotFound indicates that no document has the given id.
	ErrDocumentNotFound = errors.New("document not found")
)

// Question registry errors.
var (
	// ErrMissingField is returned when a required field is empty after trimming.
	ErrMissingField = errors.New("missing required field")

	// ErrQuestionNotFound indicates that no question has the given id.
	ErrQuestionNotFound = errors.New("question not found")

	// ErrInvalidFilter is returned for an unknown status or sort value.
	ErrInvalidFilter = errors.New("invalid filter")
)

// Chat errors.
var (
	ErrEmptyMessage   = errors.New("message is empty")
	ErrMessageTooLong = errors.New("message too long")
)
