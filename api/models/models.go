package models

import (
	"time"

	"gorm.io/gorm"
)

// Document is the metadata row kept for every uploaded PDF
type Document struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	Filename   string    `gorm:"size:255;not null" json:"filename"`
	StoredPath string    `json:"-"`
	UploadDate string    `gorm:"size:64;not null" json:"upload_date"` // RFC3339
	NumChunks  int       `json:"num_chunks"`
	CreatedAt  time.Time `json:"-"`
}

// Chunk is one indexed segment of a document's extracted text
type Chunk struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	DocumentID uint      `gorm:"index" json:"document_id"`
	Content    string    `json:"content"`
	ChunkNum   int       `json:"chunk_num"`
	CreatedAt  time.Time `json:"created_at"`
}

// Embedding holds the vector for a chunk
type Embedding struct {
	ID         string    `gorm:"primaryKey" json:"id"`
	ChunkID    string    `gorm:"uniqueIndex" json:"chunk_id"`
	DocumentID uint      `gorm:"index" json:"document_id"`
	Vector     []byte    `json:"-"` // little-endian float32
	Dimension  int       `json:"dimension"`
	Model      string    `json:"model"`
	CreatedAt  time.Time `json:"created_at"`
}

// AutoMigrate runs all migrations
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&Document{},
		&Chunk{},
		&Embedding{},
	)
}
