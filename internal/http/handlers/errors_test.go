package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/tbourn/go-study-assistant/internal/extract"
	"github.com/tbourn/go-study-assistant/internal/llm"
	"github.com/tbourn/go-study-assistant/internal/services"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{services.ErrMissingFile, http.StatusBadRequest, ErrCodeMissingFile},
		{services.ErrUnsupportedType, http.StatusBadRequest, ErrCodeUnsupportedType},
		{services.ErrFileTooLarge, http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{&extract.UnreadableError{Type: extract.MimePDF, Err: errors.New("x")}, http.StatusBadRequest, ErrCodeUnreadableDocument},
		{services.ErrMissingField, http.StatusBadRequest, ErrCodeMissingField},
		{services.ErrInvalidFilter, http.StatusBadRequest, ErrCodeInvalidFilter},
		{fmt.Errorf("wrapped: %w", services.ErrDocumentNotFound), http.StatusNotFound, ErrCodeNotFound},
		{services.ErrQuestionNotFound, http.StatusNotFound, ErrCodeNotFound},
		{services.ErrEmptyMessage, http.StatusBadRequest, ErrCodeEmptyMessage},
		{services.ErrMessageTooLong, http.StatusBadRequest, ErrCodeMessageTooLong},
		{llm.ErrInvalidCredentials, http.StatusBadGateway, ErrCodeInvalidCredentials},
		{llm.ErrQuotaExceeded, http.StatusTooManyRequests, ErrCodeQuotaExceeded},
		{&llm.BadRequestError{Detail: "x"}, http.StatusBadGateway, ErrCodeBackendBadRequest},
		{&llm.BackendError{Status: 500}, http.StatusBadGateway, ErrCodeBackendError},
		{&llm.BackendError{Err: context.DeadlineExceeded}, http.StatusGatewayTimeout, ErrCodeBackendTimeout},
		{&llm.BackendError{Err: context.Canceled}, 499, ErrCodeBackendError},
		{errors.New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}
	for _, tc := range cases {
		got := classify(tc.err)
		if got.status != tc.status || got.code != tc.code || got.message == "" {
			t.Fatalf("classify(%v) = %+v, want %d %s", tc.err, got, tc.status, tc.code)
		}
	}

	if got := classify(&llm.BadRequestError{Detail: "model not found"}); got.message != "Lỗi yêu cầu: model not found" {
		t.Fatalf("bad request message = %q", got.message)
	}
}
