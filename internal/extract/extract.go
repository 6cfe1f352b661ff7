// Package extract turns uploaded reference documents into plain text.
//
// Three formats are supported, selected by the declared MIME type:
// PDF (github.com/ledongthuc/pdf), Office Open XML Word (.docx, read
// straight from the zip package) and legacy Word 97-2003 (.doc, read from
// the OLE2 compound file via github.com/richardlehane/mscfb). Every failure
// is reported as ErrUnreadableDocument so callers need a single check.
package extract

import (
	"errors"
	"fmt"
	"unicode/utf8"
)

// Supported MIME types. Matching is exact.
const (
	MimePDF  = "application/pdf"
	MimeDOC  = "application/msword"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

// CharsPerWordPage is the rune count treated as one page of Word text.
const CharsPerWordPage = 2000

// ErrUnreadableDocument is matched by every extraction failure.
var ErrUnreadableDocument = errors.New("unreadable document")

// Result is the outcome of a successful extraction.
type Result struct {
	Text  string
	Pages int // true page count for PDF, estimate for Word
}

// UnreadableError carries the underlying cause of an extraction failure.
type UnreadableError struct {
	Type string
	Err  error
}

func (e *UnreadableError) Error() string {
	return fmt.Sprintf("unreadable %s document: %v", e.Type, e.Err)
}

func (e *UnreadableError) Unwrap() error { return e.Err }

// Is reports ErrUnreadableDocument as a match.
func (e *UnreadableError) Is(target error) bool { return target == ErrUnreadableDocument }

// Supported reports whether declaredType is one of the accepted MIME types.
func Supported(declaredType string) bool {
	switch declaredType {
	case MimePDF, MimeDOC, MimeDOCX:
		return true
	}
	return false
}

// Extract returns the text of data interpreted as declaredType.
func Extract(data []byte, declaredType string) (Result, error) {
	var (
		res Result
		err error
	)
	switch declaredType {
	case MimePDF:
		res, err = extractPDF(data)
	case MimeDOCX:
		var text string
		text, err = extractDOCX(data)
		res = Result{Text: text, Pages: EstimateWordPages(text)}
	case MimeDOC:
		var text string
		text, err = extractDOC(data)
		res = Result{Text: text, Pages: EstimateWordPages(text)}
	default:
		err = fmt.Errorf("unsupported type %q", declaredType)
	}
	if err != nil {
		return Result{}, &UnreadableError{Type: declaredType, Err: err}
	}
	return res, nil
}

// EstimateWordPages is ceil(runes / CharsPerWordPage); zero for empty text.
func EstimateWordPages(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerWordPage - 1) / CharsPerWordPage
}
