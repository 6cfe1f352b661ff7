package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-study-assistant/internal/extract"
	"github.com/tbourn/go-study-assistant/internal/services"
)

const sampleText = "Tư tưởng Hồ Chí Minh về độc lập dân tộc gắn liền với chủ nghĩa xã hội."

func (h *harness) upload(t *testing.T, field, name, contentType string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if field != "" {
		hdr := textproto.MIMEHeader{}
		hdr.Set("Content-Disposition", `form-data; name="`+field+`"; filename="`+name+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(data); err != nil {
			t.Fatalf("write part: %v", err)
		}
	} else if err := mw.WriteField("note", "no file"); err != nil {
		t.Fatalf("write field: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close multipart: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/documents", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	h.r.ServeHTTP(w, req)
	return w
}

func TestUploadDocument_Created(t *testing.T) {
	h := newHarness(t)

	w := h.upload(t, "file", "bai-giang.pdf", extract.MimePDF, []byte(sampleText))
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	got := decode[UploadResponse](t, w)
	if !got.Success || got.Pages != 3 || got.TextLength != len([]rune(sampleText)) {
		t.Fatalf("unexpected body: %+v", got)
	}
	if got.Document.Name != "bai-giang.pdf" || got.Document.Type != extract.MimePDF || got.Document.TextPreview != sampleText {
		t.Fatalf("unexpected document: %+v", got.Document)
	}
	if got.Message != "File đã được tải lên và xử lý thành công" {
		t.Fatalf("message=%q", got.Message)
	}

	list := decode[DocumentsResponse](t, h.do(t, http.MethodGet, "/documents", nil))
	if len(list.Documents) != 1 || list.Documents[0].ID != got.Document.ID {
		t.Fatalf("unexpected listing: %+v", list)
	}
}

func TestUploadDocument_Rejections(t *testing.T) {
	cases := []struct {
		name     string
		field    string
		typ      string
		data     []byte
		wantCode int
		wantErr  string
	}{
		{"no file part", "", "", nil, http.StatusBadRequest, ErrCodeMissingFile},
		{"unsupported type", "file", "text/plain", []byte(sampleText), http.StatusBadRequest, ErrCodeUnsupportedType},
		{"too large", "file", extract.MimeDOCX, bytes.Repeat([]byte("a"), int(services.MaxDocumentBytes)+1), http.StatusRequestEntityTooLarge, ErrCodeFileTooLarge},
		{"unreadable", "file", extract.MimeDOC, []byte("broken doc"), http.StatusBadRequest, ErrCodeUnreadableDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			w := h.upload(t, tc.field, "x.bin", tc.typ, tc.data)
			if w.Code != tc.wantCode {
				t.Fatalf("status=%d want %d body=%s", w.Code, tc.wantCode, w.Body.String())
			}
			if er := decode[ErrorResponse](t, w); er.Code != tc.wantErr {
				t.Fatalf("code=%q want %q", er.Code, tc.wantErr)
			}
			if docs := decode[DocumentsResponse](t, h.do(t, http.MethodGet, "/documents", nil)); len(docs.Documents) != 0 {
				t.Fatalf("rejected upload was registered: %+v", docs)
			}
		})
	}
}

func TestUploadDocument_BodyLimitIsFileTooLarge(t *testing.T) {
	h := newHarness(t)
	limited := gin.New()
	limited.POST("/documents", func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 512)
		c.Next()
	}, New(nil, h.docs, nil).UploadDocument)
	h.r = limited

	w := h.upload(t, "file", "big.pdf", extract.MimePDF, bytes.Repeat([]byte("x"), 4096))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
}

func TestDocumentText_SearchAndDelete(t *testing.T) {
	h := newHarness(t)
	up := decode[UploadResponse](t, h.upload(t, "file", "a.docx", extract.MimeDOCX, []byte(sampleText)))
	id := up.Document.ID

	w := h.do(t, http.MethodGet, "/documents/"+id+"/text", nil)
	if w.Code != http.StatusOK || w.Body.String() != sampleText {
		t.Fatalf("text: status=%d body=%q", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/plain") {
		t.Fatalf("content-type=%q", ct)
	}

	sr := decode[SearchResponse](t, h.do(t, http.MethodGet, "/documents/search?q="+url.QueryEscape("độc lập dân tộc")+"&k=3", nil))
	if len(sr.Results) != 1 || sr.Results[0].DocumentID != id || sr.Results[0].DocumentName != "a.docx" {
		t.Fatalf("unexpected search results: %+v", sr)
	}

	for _, bad := range []string{"/documents/search?q=x&k=0", "/documents/search?q=x&k=abc", "/documents/search?q=x&k=21", "/documents/search?q=%20"} {
		if w := h.do(t, http.MethodGet, bad, nil); w.Code != http.StatusBadRequest {
			t.Fatalf("%s: status=%d", bad, w.Code)
		}
	}

	w = h.do(t, http.MethodDelete, "/documents/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("delete: status=%d body=%s", w.Code, w.Body.String())
	}
	if got := decode[SuccessResponse](t, w); !got.Success || got.Message != "Tài liệu đã được xóa thành công" {
		t.Fatalf("unexpected delete body: %+v", got)
	}

	if w := h.do(t, http.MethodDelete, "/documents/"+id, nil); w.Code != http.StatusNotFound {
		t.Fatalf("second delete: status=%d", w.Code)
	}
	if w := h.do(t, http.MethodGet, "/documents/"+id+"/text", nil); w.Code != http.StatusNotFound {
		t.Fatalf("text after delete: status=%d", w.Code)
	}
}

func TestDeleteDocumentByBody(t *testing.T) {
	h := newHarness(t)
	up := decode[UploadResponse](t, h.upload(t, "file", "a.pdf", extract.MimePDF, []byte(sampleText)))

	if w := h.do(t, http.MethodDelete, "/documents", DeleteDocumentRequest{ID: ""}); w.Code != http.StatusBadRequest {
		t.Fatalf("blank id: status=%d", w.Code)
	}
	if w := h.do(t, http.MethodDelete, "/documents", DeleteDocumentRequest{ID: "nope"}); w.Code != http.StatusNotFound {
		t.Fatalf("unknown id: status=%d", w.Code)
	}
	if w := h.do(t, http.MethodDelete, "/documents", DeleteDocumentRequest{ID: up.Document.ID}); w.Code != http.StatusOK {
		t.Fatalf("delete: status=%d body=%s", w.Code, w.Body.String())
	}
}
