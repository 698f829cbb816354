package services

import (
	"context"

	"github.com/pixgrove/pixgrove/models"
	"github.com/pixgrove/pixgrove/storage"
)

// RetryStore reads the rows a retry must validate before re-dispatching.
type RetryStore interface {
	GetImage(id uint, userID string) (*models.Image, error)
	GetMetadata(imageID uint, userID string) (*models.ImageMetadata, error)
}

// RetryResult acknowledges an accepted retry; processing itself is async.
type RetryResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ImageID uint   `json:"image_id"`
}

// RetryService re-triggers AI processing for an image after validating
// ownership and current status. Completion is terminal: a completed image is
// rejected without touching the blob store or the AI API.
type RetryService struct {
	store    RetryStore
	blobs    storage.BlobStore
	pipeline Processor
}

func NewRetryService(store RetryStore, blobs storage.BlobStore, pipeline Processor) *RetryService {
	return &RetryService{store: store, blobs: blobs, pipeline: pipeline}
}

func (s *RetryService) Retry(ctx context.Context, imageID uint, userID string) (*RetryResult, error) {
	img, err := s.store.GetImage(imageID, userID)
	if err != nil {
		return nil, err
	}

	md, err := s.store.GetMetadata(imageID, userID)
	if err != nil {
		return nil, err
	}

	if md.AIProcessingStatus == models.AIStatusCompleted {
		return nil, Conflict("AI processing already completed")
	}

	data, err := s.blobs.Download(ctx, img.OriginalPath)
	if err != nil || len(data) == 0 {
		return nil, Upstream("Failed to download original image", err)
	}

	go s.pipeline.Process(img.ID, userID, data)

	return &RetryResult{
		Success: true,
		Message: "AI processing retry initiated",
		ImageID: img.ID,
	}, nil
}
