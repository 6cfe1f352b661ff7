package extract

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
)

func extractPDF(data []byte) (res Result, err error) {
	if len(data) == 0 {
		return Result{}, errors.New("empty pdf data")
	}
	// the parser panics on some malformed xref tables
	defer func() {
		if r := recover(); r != nil {
			res, err = Result{}, fmt.Errorf("pdf parser: %v", r)
		}
	}()

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return Result{}, fmt.Errorf("new pdf reader: %w", err)
	}

	var b strings.Builder
	total := doc.NumPage()
	for i := 1; i <= total; i++ {
		p := doc.Page(i)
		if p.V.IsNull() {
			continue
		}
		content, err := p.GetPlainText(nil)
		if err != nil {
			return Result{}, fmt.Errorf("page %d: %w", i, err)
		}
		b.WriteString(content)
		b.WriteString("\n")
	}
	return Result{Text: strings.TrimSpace(b.String()), Pages: total}, nil
}
