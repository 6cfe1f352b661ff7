// Package handlers defines HTTP-layer error codes used across all API endpoints.
//
// This file centralizes symbolic error code constants that are mapped to HTTP responses
// (via the `fail()` helper in this package) and the translation of service and backend
// errors into those codes. Clients branch on `code`; `message` is display text.
//
// Example response:
//
//	{
//	  "request_id": "e1b9be03-4999-4289-9f03-999b042d65d6",
//	  "code": "unsupported_type",
//	  "message": "Chỉ hỗ trợ file PDF và Word"
//	}
package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/tbourn/go-study-assistant/internal/llm"
	"github.com/tbourn/go-study-assistant/internal/services"
)

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeNotFound         = "not_found"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Uploads
	ErrCodeMissingFile        = "missing_file"
	ErrCodeUnsupportedType    = "unsupported_type"
	ErrCodeFileTooLarge       = "file_too_large"
	ErrCodeUnreadableDocument = "unreadable_document"

	// Questions
	ErrCodeMissingField  = "missing_field"
	ErrCodeInvalidFilter = "invalid_filter"

	// Chat
	ErrCodeEmptyMessage       = "empty_message"
	ErrCodeMessageTooLong     = "message_too_long"
	ErrCodeInvalidCredentials = "invalid_credentials"
	ErrCodeQuotaExceeded      = "quota_exceeded"
	ErrCodeBackendBadRequest  = "backend_bad_request"
	ErrCodeBackendError       = "backend_error"
	ErrCodeBackendTimeout     = "backend_timeout"
)

// apiError is the HTTP rendering of an error.
type apiError struct {
	status  int
	code    string
	message string
}

// classify maps service and backend errors to status, code and message.
// Unknown errors become 500 internal_error.
func classify(err error) apiError {
	var (
		badReq  *llm.BadRequestError
		backend *llm.BackendError
	)
	switch {
	case errors.Is(err, services.ErrMissingFile):
		return apiError{http.StatusBadRequest, ErrCodeMissingFile, "Không có file được tải lên"}
	case errors.Is(err, services.ErrUnsupportedType):
		return apiError{http.StatusBadRequest, ErrCodeUnsupportedType, "Chỉ hỗ trợ file PDF và Word"}
	case errors.Is(err, services.ErrFileTooLarge):
		return apiError{http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge, "File quá lớn. Kích thước tối đa là 10MB"}
	case errors.Is(err, services.ErrUnreadableDocument):
		return apiError{http.StatusBadRequest, ErrCodeUnreadableDocument, "Không thể đọc nội dung file"}
	case errors.Is(err, services.ErrMissingField):
		return apiError{http.StatusBadRequest, ErrCodeMissingField, "Thiếu thông tin bắt buộc"}
	case errors.Is(err, services.ErrInvalidFilter):
		return apiError{http.StatusBadRequest, ErrCodeInvalidFilter, "status must be all|answered|pending and sort newest|oldest"}
	case errors.Is(err, services.ErrDocumentNotFound):
		return apiError{http.StatusNotFound, ErrCodeNotFound, "Không tìm thấy tài liệu"}
	case errors.Is(err, services.ErrQuestionNotFound):
		return apiError{http.StatusNotFound, ErrCodeNotFound, "Không tìm thấy câu hỏi"}
	case errors.Is(err, services.ErrEmptyMessage):
		return apiError{http.StatusBadRequest, ErrCodeEmptyMessage, "Message is required"}
	case errors.Is(err, services.ErrMessageTooLong):
		return apiError{http.StatusBadRequest, ErrCodeMessageTooLong, "message too long"}
	case errors.Is(err, llm.ErrInvalidCredentials):
		return apiError{http.StatusBadGateway, ErrCodeInvalidCredentials, "API key không hợp lệ"}
	case errors.Is(err, llm.ErrQuotaExceeded):
		return apiError{http.StatusTooManyRequests, ErrCodeQuotaExceeded, "Đã vượt quá giới hạn API"}
	case errors.As(err, &badReq):
		return apiError{http.StatusBadGateway, ErrCodeBackendBadRequest, "Lỗi yêu cầu: " + badReq.Detail}
	case errors.As(err, &backend):
		if backend.Timeout() {
			return apiError{http.StatusGatewayTimeout, ErrCodeBackendTimeout, "Hết thời gian chờ phản hồi từ AI"}
		}
		if errors.Is(err, context.Canceled) {
			return apiError{499, ErrCodeBackendError, "request canceled"}
		}
		return apiError{http.StatusBadGateway, ErrCodeBackendError, backend.Error()}
	default:
		return apiError{http.StatusInternalServerError, ErrCodeInternal, "internal error"}
	}
}
