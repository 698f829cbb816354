package services

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"time"

	"github.com/lib/pq"
	"github.com/pixgrove/pixgrove/models"
	"github.com/pixgrove/pixgrove/storage"
)

const MaxUploadBytes = 10 << 20 // 10 MiB per file

var (
	allowedMimeRe = regexp.MustCompile(`(?i)^image/(jpeg|png|webp)$`)
	keyCharRe     = regexp.MustCompile(`[^A-Za-z0-9.-]`)
)

// UploadFile is one file of a multipart upload.
type UploadFile struct {
	OriginalName string
	MimeType     string
	Size         int64
	Buffer       []byte
}

// UploadResult is the image row merged with the extracted colors and the
// initial AI status.
type UploadResult struct {
	ID                 uint      `json:"id"`
	UserID             string    `json:"user_id"`
	Filename           string    `json:"filename"`
	OriginalPath       string    `json:"original_path"`
	ThumbnailPath      string    `json:"thumbnail_path"`
	FileSize           int64     `json:"file_size"`
	MimeType           string    `json:"mime_type"`
	UploadedAt         time.Time `json:"uploaded_at"`
	Colors             []string  `json:"colors"`
	DominantColor      *string   `json:"dominant_color"`
	AIProcessingStatus string    `json:"ai_processing_status"`
}

// ImageCreator persists the rows written by an upload.
type ImageCreator interface {
	CreateImage(img *models.Image) error
	CreateMetadata(md *models.ImageMetadata) error
}

// UploadService orchestrates a single-file upload: validation, color
// extraction, thumbnailing, blob writes, row writes, then fire-and-forget
// AI dispatch.
type UploadService struct {
	store    ImageCreator
	blobs    storage.BlobStore
	pipeline Processor

	// injectable for tests
	extractColors func([]byte) ([]string, error)
	thumbnail     func([]byte) ([]byte, error)
	now           func() time.Time
}

func NewUploadService(store ImageCreator, blobs storage.BlobStore, pipeline Processor) *UploadService {
	return &UploadService{
		store:         store,
		blobs:         blobs,
		pipeline:      pipeline,
		extractColors: ExtractDominantColors,
		thumbnail:     GenerateThumbnail,
		now:           time.Now,
	}
}

// Upload runs the orchestration for one file. Failed uploads leave no
// database rows; a blob already written before a later failure is an
// accepted orphan and is not rolled back.
func (s *UploadService) Upload(ctx context.Context, userID string, file UploadFile) (*UploadResult, error) {
	if len(file.Buffer) == 0 || file.OriginalName == "" {
		return nil, Validation("No file provided")
	}
	if !allowedMimeRe.MatchString(file.MimeType) {
		return nil, Validation("Unsupported media type: only JPEG, PNG and WebP are accepted")
	}
	if file.Size > MaxUploadBytes {
		return nil, Validation("File too large (max 10 MiB)")
	}

	// Color data is cosmetic: a failed extraction logs a warning and the
	// upload continues with no colors.
	colors, err := s.extractColors(file.Buffer)
	if err != nil {
		log.Printf("warning: color extraction failed for %s: %v", file.OriginalName, err)
		colors = nil
	}

	thumb, err := s.thumbnail(file.Buffer)
	if err != nil {
		return nil, Upstream("Thumbnail generation failed", err)
	}

	stamp := s.now().UnixMilli()
	safeName := keyCharRe.ReplaceAllString(file.OriginalName, "")
	originalKey := fmt.Sprintf("originals/%s/original-%d-%s", userID, stamp, safeName)
	thumbKey := fmt.Sprintf("thumbnails/%s/thumb-%d-%s", userID, stamp, safeName)

	originalPath, err := s.blobs.Upload(ctx, originalKey, file.Buffer, file.MimeType)
	if err != nil {
		return nil, Upstream("Failed to store original image", err)
	}

	thumbnailPath, err := s.blobs.Upload(ctx, thumbKey, thumb, "image/jpeg")
	if err != nil {
		return nil, Upstream("Failed to store thumbnail", err)
	}

	img := models.Image{
		UserID:        userID,
		Filename:      file.OriginalName,
		OriginalPath:  originalPath,
		ThumbnailPath: thumbnailPath,
		FileSize:      file.Size,
		MimeType:      file.MimeType,
		UploadedAt:    s.now(),
	}
	if err := s.store.CreateImage(&img); err != nil {
		return nil, Upstream("Failed to save image record", err)
	}

	var dominant *string
	if len(colors) > 0 {
		dominant = &colors[0]
	}

	md := models.ImageMetadata{
		ImageID:            img.ID,
		UserID:             userID,
		Colors:             pq.StringArray(colors),
		DominantColor:      dominant,
		AIProcessingStatus: models.AIStatusPending,
	}
	if err := s.store.CreateMetadata(&md); err != nil {
		return nil, Upstream("Failed to save image metadata", err)
	}

	// Fire-and-forget: upload latency must not include the AI round trip,
	// and pipeline errors never reach this caller.
	go s.pipeline.Process(img.ID, userID, file.Buffer)

	return &UploadResult{
		ID:                 img.ID,
		UserID:             img.UserID,
		Filename:           img.Filename,
		OriginalPath:       img.OriginalPath,
		ThumbnailPath:      img.ThumbnailPath,
		FileSize:           img.FileSize,
		MimeType:           img.MimeType,
		UploadedAt:         img.UploadedAt,
		Colors:             append([]string{}, colors...),
		DominantColor:      dominant,
		AIProcessingStatus: models.AIStatusPending,
	}, nil
}
