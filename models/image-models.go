package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"gorm.io/gorm"
)

// AI processing status values for ImageMetadata.
const (
	AIStatusPending    = "pending"
	AIStatusProcessing = "processing"
	AIStatusCompleted  = "completed"
	AIStatusFailed     = "failed"
)

type Image struct {
	gorm.Model
	UserID        string    `json:"user_id" gorm:"not null;index"`
	Filename      string    `json:"filename" gorm:"not null"`
	OriginalPath  string    `json:"original_path" gorm:"not null"`
	ThumbnailPath string    `json:"thumbnail_path" gorm:"not null"`
	FileSize      int64     `json:"file_size" gorm:"not null"`
	MimeType      string    `json:"mime_type" gorm:"not null"`
	UploadedAt    time.Time `json:"uploaded_at" gorm:"not null;index"`

	// Relationship
	Metadata *ImageMetadata `json:"metadata,omitempty" gorm:"foreignKey:ImageID"`
}

type ImageMetadata struct {
	ID                 uint             `json:"id" gorm:"primaryKey"`
	ImageID            uint             `json:"image_id" gorm:"not null;uniqueIndex"`
	UserID             string           `json:"user_id" gorm:"not null;index"`
	Description        *string          `json:"description"`
	Tags               pq.StringArray   `json:"tags" gorm:"type:text[]"`
	Colors             pq.StringArray   `json:"colors" gorm:"type:text[]"`
	DominantColor      *string          `json:"dominant_color"`
	Embedding          *pgvector.Vector `json:"-" gorm:"type:vector(768)"`
	AIProcessingStatus string           `json:"ai_processing_status" gorm:"not null;default:'pending';index"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

func (ImageMetadata) TableName() string {
	return "image_metadata"
}
