package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/local/docqa/api/models"
	"gorm.io/gorm"
)

// DocumentStore keeps document metadata: id, original filename, upload date
// and where the uploaded file lives on disk.
type DocumentStore struct {
	db *gorm.DB
}

func NewDocumentStore(db *gorm.DB) *DocumentStore {
	return &DocumentStore{db: db}
}

// Save records a new upload and returns its id.
func (s *DocumentStore) Save(ctx context.Context, filename, storedPath string) (uint, error) {
	now := time.Now()
	doc := &models.Document{
		Filename:   filename,
		StoredPath: storedPath,
		UploadDate: now.Format(time.RFC3339),
		CreatedAt:  now,
	}
	if err := s.db.WithContext(ctx).Create(doc).Error; err != nil {
		return 0, fmt.Errorf("failed to save document metadata: %w", err)
	}
	return doc.ID, nil
}

func (s *DocumentStore) List(ctx context.Context) ([]models.Document, error) {
	docs := []models.Document{}
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&docs).Error; err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// Get returns nil, nil when the document does not exist.
func (s *DocumentStore) Get(ctx context.Context, id uint) (*models.Document, error) {
	var doc models.Document
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return &doc, nil
}

func (s *DocumentStore) GetFilename(ctx context.Context, id uint) (string, bool, error) {
	doc, err := s.Get(ctx, id)
	if err != nil || doc == nil {
		return "", false, err
	}
	return doc.Filename, true, nil
}

func (s *DocumentStore) UpdateChunkCount(ctx context.Context, id uint, n int) error {
	err := s.db.WithContext(ctx).Model(&models.Document{}).Where("id = ?", id).Update("num_chunks", n).Error
	if err != nil {
		return fmt.Errorf("failed to update chunk count: %w", err)
	}
	return nil
}

func (s *DocumentStore) Delete(ctx context.Context, id uint) error {
	if err := s.db.WithContext(ctx).Delete(&models.Document{}, id).Error; err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return nil
}
