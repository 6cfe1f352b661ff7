// Package services – DocumentService
//
// This file implements the upload pipeline. An upload is validated (presence,
// declared type, size and optionally sniffed content), its raw bytes are
// written to object storage, the text is extracted and written next to it as
// a ".txt" sidecar, and only then is the Document appended to the registry.
// Removing a document drops the registry record; stored objects are kept.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/go-study-assistant/internal/domain"
	"github.com/tbourn/go-study-assistant/internal/extract"
	"github.com/tbourn/go-study-assistant/internal/observability"
	"github.com/tbourn/go-study-assistant/internal/repo"
	"github.com/tbourn/go-study-assistant/internal/search"
	"github.com/tbourn/go-study-assistant/internal/storage"
)

const (
	// MaxDocumentBytes is the hard upload limit (10 MiB).
	MaxDocumentBytes int64 = 10 * 1024 * 1024

	// PreviewRunes is the length of Document.TextPreview in characters.
	PreviewRunes = 1000
)

// DocumentStore is the registry of ingested documents. List returns records
// in insertion order; Get and Remove return repo.ErrNotFound for unknown ids.
type DocumentStore interface {
	Append(ctx context.Context, d *domain.Document) error
	List(ctx context.Context) ([]domain.Document, error)
	Get(ctx context.Context, id string) (*domain.Document, error)
	Remove(ctx context.Context, id string) error
}

// ExtractFunc turns raw bytes of a declared type into text.
type ExtractFunc func(data []byte, declaredType string) (extract.Result, error)

// IngestInput is one upload as received from the transport.
type IngestInput struct {
	Data         []byte
	FileName     string
	DeclaredType string
	DeclaredSize int64 // 0 means len(Data)
}

// IngestResult is what a successful upload reports back.
type IngestResult struct {
	Document     *domain.Document
	PageEstimate int
	TextLength   int
}

// DocumentHit is a passage search result attributed to its document.
type DocumentHit struct {
	DocumentID   string  `json:"documentId"`
	DocumentName string  `json:"documentName"`
	Snippet      string  `json:"snippet"`
	Score        float64 `json:"score"`
}

// DocumentService coordinates ingestion, listing and removal of documents.
type DocumentService struct {
	Store   DocumentStore
	Objects storage.ObjectStore
	Extract ExtractFunc

	// MaxBytes caps uploads; values outside (0, MaxDocumentBytes] use the hard limit.
	MaxBytes int64
	// VerifyContentType rejects uploads whose sniffed type differs from the declared one.
	VerifyContentType bool
	// CleanupOrphans deletes the raw object when extraction or the sidecar write fails.
	CleanupOrphans bool

	Now   func() time.Time
	NewID func() string
}

// NewDocumentService returns a service with the real extractor, the hard
// size limit and orphan cleanup enabled.
func NewDocumentService(store DocumentStore, objects storage.ObjectStore) *DocumentService {
	return &DocumentService{
		Store:          store,
		Objects:        objects,
		Extract:        extract.Extract,
		MaxBytes:       MaxDocumentBytes,
		CleanupOrphans: true,
		Now:            func() time.Time { return time.Now().UTC() },
		NewID:          uuid.NewString,
	}
}

func (s *DocumentService) maxBytes() int64 {
	if s.MaxBytes <= 0 || s.MaxBytes > MaxDocumentBytes {
		return MaxDocumentBytes
	}
	return s.MaxBytes
}

// Ingest runs the upload pipeline. Checks short-circuit in order: missing
// file, declared type, size, sniffed content. No I/O happens before all of
// them pass.
func (s *DocumentService) Ingest(ctx context.Context, in IngestInput) (*IngestResult, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Ingest",
		trace.WithAttributes(
			attribute.String("document.type", in.DeclaredType),
			attribute.Int("document.bytes", len(in.Data)),
		),
	)
	defer span.End()

	res, outcome, err := s.ingest(ctx, in)
	observability.DocumentsIngested.WithLabelValues(typeLabel(in.DeclaredType), outcome).Inc()
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	log.Info().
		Str("document_id", res.Document.ID).
		Str("file_path", res.Document.FilePath).
		Int64("size", res.Document.Size).
		Int("pages", res.PageEstimate).
		Int("text_length", res.TextLength).
		Msg("document ingested")
	return res, nil
}

func (s *DocumentService) ingest(ctx context.Context, in IngestInput) (*IngestResult, string, error) {
	if len(in.Data) == 0 {
		return nil, "missing_file", ErrMissingFile
	}
	if !extract.Supported(in.DeclaredType) {
		return nil, "unsupported_type", ErrUnsupportedType
	}
	size := in.DeclaredSize
	if size <= 0 {
		size = int64(len(in.Data))
	}
	if size > s.maxBytes() || int64(len(in.Data)) > s.maxBytes() {
		return nil, "file_too_large", ErrFileTooLarge
	}
	if s.VerifyContentType {
		if detected := mimetype.Detect(in.Data); !detected.Is(in.DeclaredType) {
			log.Debug().
				Str("declared", in.DeclaredType).
				Str("detected", detected.String()).
				Msg("content type mismatch")
			return nil, "unsupported_type", ErrUnsupportedType
		}
	}

	now := s.Now()
	rawKey := storage.RawKey(now, in.FileName)
	if err := s.Objects.Put(ctx, rawKey, in.DeclaredType, bytes.NewReader(in.Data), int64(len(in.Data))); err != nil {
		return nil, "storage_error", fmt.Errorf("store raw file: %w", err)
	}

	text, pages, err := s.extractText(in.Data, in.DeclaredType)
	if err != nil {
		s.cleanup(ctx, rawKey)
		return nil, "unreadable", err
	}

	sidecar := storage.SidecarKey(rawKey)
	if err := s.Objects.Put(ctx, sidecar, "text/plain; charset=utf-8", strings.NewReader(text), int64(len(text))); err != nil {
		s.cleanup(ctx, rawKey)
		return nil, "storage_error", fmt.Errorf("store extracted text: %w", err)
	}

	doc := &domain.Document{
		ID:           s.NewID(),
		Name:         in.FileName,
		OriginalName: in.FileName,
		Size:         int64(len(in.Data)),
		Type:         in.DeclaredType,
		UploadDate:   now,
		FilePath:     rawKey,
		TextPreview:  preview(text, PreviewRunes),
	}
	if err := s.Store.Append(ctx, doc); err != nil {
		return nil, "store_error", fmt.Errorf("register document: %w", err)
	}

	return &IngestResult{
		Document:     doc,
		PageEstimate: pages,
		TextLength:   utf8.RuneCountInString(text),
	}, "ok", nil
}

func (s *DocumentService) extractText(data []byte, declaredType string) (string, int, error) {
	fn := s.Extract
	if fn == nil {
		fn = extract.Extract
	}
	res, err := fn(data, declaredType)
	if err != nil {
		if !errors.Is(err, ErrUnreadableDocument) {
			err = &extract.UnreadableError{Type: declaredType, Err: err}
		}
		return "", 0, err
	}
	return res.Text, res.Pages, nil
}

func (s *DocumentService) cleanup(ctx context.Context, rawKey string) {
	if !s.CleanupOrphans {
		return
	}
	if err := s.Objects.Delete(ctx, rawKey); err != nil {
		log.Warn().Err(err).Str("key", rawKey).Msg("orphan cleanup failed")
	}
}

// List returns all documents in insertion order.
func (s *DocumentService) List(ctx context.Context) ([]domain.Document, error) {
	docs, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	return docs, nil
}

// Remove drops the registry record. The raw object and sidecar stay in storage.
func (s *DocumentService) Remove(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return ErrMissingField
	}
	if err := s.Store.Remove(ctx, id); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrDocumentNotFound
		}
		return err
	}
	return nil
}

// Text returns the full extracted text of a document.
func (s *DocumentService) Text(ctx context.Context, id string) (string, error) {
	doc, err := s.Store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return "", ErrDocumentNotFound
		}
		return "", err
	}
	return s.readSidecar(ctx, doc)
}

func (s *DocumentService) readSidecar(ctx context.Context, doc *domain.Document) (string, error) {
	rc, err := s.Objects.Get(ctx, storage.SidecarKey(doc.FilePath))
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return "", fmt.Errorf("%w: extracted text missing for %s", ErrDocumentNotFound, doc.ID)
		}
		return "", err
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("read extracted text: %w", err)
	}
	return string(b), nil
}

// Search ranks passages of every registered document's extracted text
// against query. Documents whose sidecar cannot be read are skipped.
func (s *DocumentService) Search(ctx context.Context, query string, k int) ([]DocumentHit, error) {
	tr := otel.Tracer("services/DocumentService")
	ctx, span := tr.Start(ctx, "Search", trace.WithAttributes(attribute.Int("search.k", k)))
	defer span.End()

	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrMissingField
	}
	docs, err := s.Store.List(ctx)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(docs))
	var passages []search.Passage
	for i := range docs {
		text, err := s.readSidecar(ctx, &docs[i])
		if err != nil {
			log.Warn().Err(err).Str("document_id", docs[i].ID).Msg("search: skipping document")
			continue
		}
		names[docs[i].ID] = docs[i].Name
		for _, p := range search.SplitPassages(text) {
			passages = append(passages, search.Passage{Source: docs[i].ID, Text: p})
		}
	}

	idx := search.NewIndex(passages, search.WithStopwords(search.VietnameseStopwords))
	results := idx.TopK(query, k)
	hits := make([]DocumentHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, DocumentHit{
			DocumentID:   r.Source,
			DocumentName: names[r.Source],
			Snippet:      r.Snippet,
			Score:        r.Score,
		})
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	return hits, nil
}

// preview returns the first n characters of s.
func preview(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func typeLabel(declared string) string {
	if extract.Supported(declared) {
		return declared
	}
	return "other"
}
