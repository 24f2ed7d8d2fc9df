package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/local/docqa/api/models"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

const defaultTopK = 5

// RetrievedChunk is a chunk returned by a similarity search.
type RetrievedChunk struct {
	ChunkNum int     `json:"chunk_num"`
	Content  string  `json:"content"`
	Score    float64 `json:"score"`
}

type indexedChunk struct {
	num     int
	content string
	vector  []float32
}

type docIndex struct {
	model     string
	dimension int
	chunks    []indexedChunk
}

// VectorIndex stores one vector index per document in the database and keeps
// loaded indexes in memory.
type VectorIndex struct {
	db          *gorm.DB
	embedder    EmbeddingProvider
	splitter    *TextSplitter
	concurrency int
	logger      zerolog.Logger

	mu    sync.RWMutex
	cache map[uint]*docIndex
}

func NewVectorIndex(db *gorm.DB, embedder EmbeddingProvider, splitter *TextSplitter, concurrency int, logger zerolog.Logger) *VectorIndex {
	return &VectorIndex{
		db:          db,
		embedder:    embedder,
		splitter:    splitter,
		concurrency: concurrency,
		logger:      logger.With().Str("component", "vector_index").Logger(),
		cache:       make(map[uint]*docIndex),
	}
}

// Build splits text, embeds every chunk and replaces whatever index the
// document had. It returns the number of chunks indexed.
func (v *VectorIndex) Build(ctx context.Context, docID uint, text string) (int, error) {
	if strings.TrimSpace(text) == "" {
		return 0, ErrNoText
	}

	pieces := v.splitter.SplitText(text)
	if len(pieces) == 0 {
		return 0, ErrNoText
	}

	start := time.Now()
	vectors, err := EmbedAll(ctx, v.embedder, pieces, v.concurrency)
	if err != nil {
		return 0, err
	}

	model := v.embedder.GetModelName()
	now := time.Now()
	chunks := make([]models.Chunk, len(pieces))
	embeddings := make([]models.Embedding, len(pieces))
	for i, piece := range pieces {
		chunkID := uuid.New().String()
		chunks[i] = models.Chunk{
			ID:         chunkID,
			DocumentID: docID,
			Content:    piece,
			ChunkNum:   i,
			CreatedAt:  now,
		}
		embeddings[i] = models.Embedding{
			ID:         uuid.New().String(),
			ChunkID:    chunkID,
			DocumentID: docID,
			Vector:     EncodeVector(vectors[i]),
			Dimension:  len(vectors[i]),
			Model:      model,
			CreatedAt:  now,
		}
	}

	err = v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := deleteIndexRows(tx, docID); err != nil {
			return err
		}
		if err := tx.CreateInBatches(chunks, 100).Error; err != nil {
			return fmt.Errorf("failed to save chunks: %w", err)
		}
		if err := tx.CreateInBatches(embeddings, 100).Error; err != nil {
			return fmt.Errorf("failed to save embeddings: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	v.evict(docID)

	v.logger.Info().
		Uint("document_id", docID).
		Int("chunks", len(chunks)).
		Str("model", model).
		Dur("took", time.Since(start)).
		Msg("Index built")

	return len(chunks), nil
}

// Search returns the k chunks most similar to query, best first.
func (v *VectorIndex) Search(ctx context.Context, docID uint, query string, k int) ([]RetrievedChunk, error) {
	if k <= 0 {
		k = defaultTopK
	}

	idx, err := v.load(ctx, docID)
	if err != nil {
		return nil, err
	}
	if idx.model != v.embedder.GetModelName() {
		return nil, ErrIndexStale
	}

	queryVec, err := v.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed question: %w", err)
	}
	if len(queryVec) != idx.dimension {
		return nil, ErrIndexStale
	}

	results := make([]RetrievedChunk, len(idx.chunks))
	for i, c := range idx.chunks {
		results[i] = RetrievedChunk{
			ChunkNum: c.num,
			Content:  c.content,
			Score:    CosineSimilarity(queryVec, c.vector),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ChunkNum < results[j].ChunkNum
	})

	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (v *VectorIndex) Has(ctx context.Context, docID uint) (bool, error) {
	v.mu.RLock()
	_, ok := v.cache[docID]
	v.mu.RUnlock()
	if ok {
		return true, nil
	}

	var count int64
	err := v.db.WithContext(ctx).Model(&models.Embedding{}).Where("document_id = ?", docID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	return count > 0, nil
}

func (v *VectorIndex) Delete(ctx context.Context, docID uint) error {
	err := v.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return deleteIndexRows(tx, docID)
	})
	v.evict(docID)
	return err
}

func (v *VectorIndex) load(ctx context.Context, docID uint) (*docIndex, error) {
	v.mu.RLock()
	idx, ok := v.cache[docID]
	v.mu.RUnlock()
	if ok {
		return idx, nil
	}

	var chunks []models.Chunk
	if err := v.db.WithContext(ctx).Where("document_id = ?", docID).Order("chunk_num ASC").Find(&chunks).Error; err != nil {
		return nil, fmt.Errorf("failed to load chunks: %w", err)
	}
	if len(chunks) == 0 {
		return nil, ErrIndexNotFound
	}

	var embeddings []models.Embedding
	if err := v.db.WithContext(ctx).Where("document_id = ?", docID).Find(&embeddings).Error; err != nil {
		return nil, fmt.Errorf("failed to load embeddings: %w", err)
	}
	byChunk := make(map[string]models.Embedding, len(embeddings))
	for _, e := range embeddings {
		byChunk[e.ChunkID] = e
	}

	idx = &docIndex{chunks: make([]indexedChunk, 0, len(chunks))}
	for _, c := range chunks {
		e, ok := byChunk[c.ID]
		if !ok {
			return nil, ErrIndexNotFound
		}
		vec, err := DecodeVector(e.Vector)
		if err != nil {
			return nil, err
		}
		if idx.model == "" {
			idx.model = e.Model
			idx.dimension = e.Dimension
		} else if e.Model != idx.model || e.Dimension != idx.dimension {
			return nil, ErrIndexStale
		}
		idx.chunks = append(idx.chunks, indexedChunk{num: c.ChunkNum, content: c.Content, vector: vec})
	}

	v.mu.Lock()
	v.cache[docID] = idx
	v.mu.Unlock()

	v.logger.Debug().Uint("document_id", docID).Int("chunks", len(idx.chunks)).Msg("Index loaded")
	return idx, nil
}

func (v *VectorIndex) evict(docID uint) {
	v.mu.Lock()
	delete(v.cache, docID)
	v.mu.Unlock()
}

func deleteIndexRows(tx *gorm.DB, docID uint) error {
	if err := tx.Where("document_id = ?", docID).Delete(&models.Embedding{}).Error; err != nil {
		return fmt.Errorf("failed to delete embeddings: %w", err)
	}
	if err := tx.Where("document_id = ?", docID).Delete(&models.Chunk{}).Error; err != nil {
		return fmt.Errorf("failed to delete chunks: %w", err)
	}
	return nil
}

// isIndexMiss reports whether err means the index must be (re)built.
func isIndexMiss(err error) bool {
	return errors.Is(err, ErrIndexNotFound) || errors.Is(err, ErrIndexStale)
}
