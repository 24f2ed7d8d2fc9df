package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/local/docqa/api/config"
	"github.com/local/docqa/api/db"
	"github.com/local/docqa/api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// orphanGrace keeps Reconcile away from files an in-flight upload has
// written but not yet recorded.
const orphanGrace = 10 * time.Minute

// UploadResult describes a stored and indexed upload.
type UploadResult struct {
	Document  models.Document
	NumChunks int
}

// ReconcileReport counts what a Reconcile pass did.
type ReconcileReport struct {
	Reindexed    int
	MissingFiles int
	OrphansFound int
}

// DocumentService ties together storage, indexing, question answering and
// summarization for uploaded PDFs.
type DocumentService struct {
	store      *db.DocumentStore
	index      *VectorIndex
	synth      *Synthesizer
	summarizer *MapReduceSummarizer
	extract    TextExtractor
	closers    []io.Closer

	uploadDir     string
	maxUploadSize int64
	topK          int
	logger        zerolog.Logger
}

func NewDocumentService(cfg *config.Config, database *gorm.DB, logger zerolog.Logger) (*DocumentService, error) {
	embedder, err := NewEmbeddingProvider(cfg)
	if err != nil {
		return nil, err
	}

	chunker, err := NewTextSplitter(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid chunk settings: %w", err)
	}
	summaryChunker, err := NewTextSplitter(cfg.SummaryChunkSize, cfg.SummaryChunkOverlap)
	if err != nil {
		return nil, fmt.Errorf("invalid summary chunk settings: %w", err)
	}

	summaryModel := NewSummaryModel(cfg)

	var closers []io.Closer
	if c, ok := embedder.(io.Closer); ok {
		closers = append(closers, c)
	}
	if l, ok := summaryModel.(*LLMSummarizer); ok {
		if c, ok := l.Provider.(io.Closer); ok {
			closers = append(closers, c)
		}
	}

	return &DocumentService{
		store:         db.NewDocumentStore(database),
		index:         NewVectorIndex(database, embedder, chunker, cfg.EmbedConcurrency, logger),
		synth:         NewSynthesizer(NewQAModel(cfg), cfg.QASegmentSize, cfg.MinConfidence, logger),
		summarizer:    NewMapReduceSummarizer(summaryModel, summaryChunker, cfg.EmbedConcurrency, logger),
		extract:       ExtractText,
		closers:       closers,
		uploadDir:     cfg.UploadDir,
		maxUploadSize: cfg.MaxUploadSize,
		topK:          cfg.TopK,
		logger:        logger.With().Str("component", "documents").Logger(),
	}, nil
}

// Close releases SDK clients held by the configured providers.
func (s *DocumentService) Close() error {
	var errs []error
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// SetExtractor replaces the PDF text extractor.
func (s *DocumentService) SetExtractor(fn TextExtractor) {
	s.extract = fn
}

// Upload validates and stores a PDF, records it and builds its index.
func (s *DocumentService) Upload(ctx context.Context, filename string, content []byte) (*UploadResult, error) {
	name := filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return nil, ErrNotPDF
	}
	if len(content) == 0 {
		return nil, ErrEmptyFile
	}
	if int64(len(content)) > s.maxUploadSize {
		return nil, ErrFileTooLarge
	}

	if err := os.MkdirAll(s.uploadDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	storedPath := filepath.Join(s.uploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), name))
	if err := os.WriteFile(storedPath, content, 0644); err != nil {
		return nil, fmt.Errorf("failed to save file: %w", err)
	}

	text, err := s.extractClean(content)
	if err != nil {
		s.removeFile(storedPath)
		return nil, err
	}

	id, err := s.store.Save(ctx, name, storedPath)
	if err != nil {
		s.removeFile(storedPath)
		return nil, err
	}

	numChunks, err := s.index.Build(ctx, id, text)
	if err != nil {
		// the next question rebuilds it
		s.logger.Warn().Err(err).Uint("document_id", id).Msg("Indexing failed")
		numChunks = 0
	} else if err := s.store.UpdateChunkCount(ctx, id, numChunks); err != nil {
		s.logger.Warn().Err(err).Uint("document_id", id).Msg("Failed to record chunk count")
	}

	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}

	s.logger.Info().
		Uint("document_id", id).
		Str("filename", name).
		Int("size", len(content)).
		Int("chunks", numChunks).
		Msg("Document uploaded")

	return &UploadResult{Document: *doc, NumChunks: numChunks}, nil
}

func (s *DocumentService) List(ctx context.Context) ([]models.Document, error) {
	return s.store.List(ctx)
}

func (s *DocumentService) Get(ctx context.Context, id uint) (*models.Document, error) {
	doc, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Delete removes the document's metadata, index and stored file.
func (s *DocumentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if err := s.index.Delete(ctx, id); err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.removeFile(doc.StoredPath)

	s.logger.Info().Uint("document_id", id).Str("filename", doc.Filename).Msg("Document deleted")
	return nil
}

// Ask answers a question from the document's most relevant chunks.
func (s *DocumentService) Ask(ctx context.Context, id uint, question string) (*Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}

	filename, found, err := s.store.GetFilename(ctx, id)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, ErrDocumentNotFound
	}

	results, err := s.index.Search(ctx, id, question, s.topK)
	if isIndexMiss(err) {
		s.logger.Info().Err(err).Uint("document_id", id).Str("filename", filename).Msg("Rebuilding index")
		doc, getErr := s.Get(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		if _, err := s.reindex(ctx, doc); err != nil {
			return nil, err
		}
		results, err = s.index.Search(ctx, id, question, s.topK)
	}
	if err != nil {
		return nil, err
	}

	ans, err := s.synth.Answer(ctx, question, results)
	if err != nil {
		return nil, err
	}

	s.logger.Debug().
		Uint("document_id", id).
		Str("filename", filename).
		Float64("confidence", ans.Confidence).
		Bool("detailed", ans.Detailed).
		Msg("Question answered")

	return &ans, nil
}

// Summarize produces a map-reduce summary of the whole document.
func (s *DocumentService) Summarize(ctx context.Context, id uint) (string, error) {
	doc, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}

	content, err := s.readStored(doc)
	if err != nil {
		return "", err
	}
	text, err := s.extractClean(content)
	if err != nil {
		return "", err
	}

	start := time.Now()
	summary, err := s.summarizer.Summarize(ctx, text)
	if err != nil {
		return "", err
	}

	s.logger.Info().Uint("document_id", id).Dur("took", time.Since(start)).Msg("Document summarized")
	return summary, nil
}

// Reconcile rebuilds missing indexes, reports documents whose file is gone
// and removes upload files no document refers to.
func (s *DocumentService) Reconcile(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	docs, err := s.store.List(ctx)
	if err != nil {
		return report, err
	}

	referenced := make(map[string]struct{}, len(docs))
	for i := range docs {
		doc := &docs[i]
		referenced[filepath.Clean(doc.StoredPath)] = struct{}{}

		if _, err := os.Stat(doc.StoredPath); err != nil {
			report.MissingFiles++
			s.logger.Warn().Uint("document_id", doc.ID).Str("path", doc.StoredPath).Msg("Stored file is missing")
			continue
		}

		ok, err := s.index.Has(ctx, doc.ID)
		if err != nil {
			return report, err
		}
		if ok {
			continue
		}
		if _, err := s.reindex(ctx, doc); err != nil {
			s.logger.Warn().Err(err).Uint("document_id", doc.ID).Msg("Reindex failed")
			continue
		}
		report.Reindexed++
	}

	entries, err := os.ReadDir(s.uploadDir)
	if errors.Is(err, os.ErrNotExist) {
		return report, nil
	}
	if err != nil {
		return report, fmt.Errorf("failed to read upload directory: %w", err)
	}

	cutoff := time.Now().Add(-orphanGrace)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Clean(filepath.Join(s.uploadDir, entry.Name()))
		if _, ok := referenced[path]; ok {
			continue
		}
		info, err := entry.Info()
		if err != nil || info.ModTime().After(cutoff) {
			continue
		}
		report.OrphansFound++
		s.removeFile(path)
		s.logger.Info().Str("path", path).Msg("Removed orphaned upload")
	}

	return report, nil
}

func (s *DocumentService) reindex(ctx context.Context, doc *models.Document) (int, error) {
	content, err := s.readStored(doc)
	if err != nil {
		return 0, err
	}
	text, err := s.extractClean(content)
	if err != nil {
		return 0, err
	}

	n, err := s.index.Build(ctx, doc.ID, text)
	if err != nil {
		return 0, err
	}
	if err := s.store.UpdateChunkCount(ctx, doc.ID, n); err != nil {
		return 0, err
	}
	return n, nil
}

func (s *DocumentService) readStored(doc *models.Document) ([]byte, error) {
	content, err := os.ReadFile(doc.StoredPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrFileMissing
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stored file: %w", err)
	}
	return content, nil
}

func (s *DocumentService) extractClean(content []byte) (string, error) {
	raw, err := s.extract(content)
	if err != nil {
		if errors.Is(err, ErrEmptyFile) {
			return "", err
		}
		s.logger.Debug().Err(err).Msg("Text extraction failed")
		return "", ErrInvalidPDF
	}

	text := CleanText(raw)
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}

func (s *DocumentService) removeFile(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.logger.Warn().Err(err).Str("path", path).Msg("Failed to remove file")
	}
}
