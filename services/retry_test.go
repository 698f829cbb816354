package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pixgrove/pixgrove/models"
)

type fakeRetryStore struct {
	image    *models.Image
	metadata *models.ImageMetadata
}

func (f *fakeRetryStore) GetImage(id uint, userID string) (*models.Image, error) {
	if f.image == nil || f.image.ID != id || f.image.UserID != userID {
		return nil, NotFound("Image not found")
	}
	return f.image, nil
}

func (f *fakeRetryStore) GetMetadata(imageID uint, userID string) (*models.ImageMetadata, error) {
	if f.metadata == nil {
		return nil, NotFound("Image metadata not found")
	}
	return f.metadata, nil
}

func retryFixture(status string) *fakeRetryStore {
	img := testImage(1, "u1")
	return &fakeRetryStore{
		image: &img,
		metadata: &models.ImageMetadata{
			ImageID:            1,
			UserID:             "u1",
			AIProcessingStatus: status,
		},
	}
}

func TestRetryFailedImage(t *testing.T) {
	store := retryFixture(models.AIStatusFailed)
	blobs := &fakeBlobStore{downloadData: []byte("original-bytes")}
	pipeline := newFakeProcessor()
	svc := NewRetryService(store, blobs, pipeline)

	result, err := svc.Retry(context.Background(), 1, "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if !result.Success || result.ImageID != 1 {
		t.Errorf("unexpected result: %+v", result)
	}
	if result.Message != "AI processing retry initiated" {
		t.Errorf("unexpected message: %q", result.Message)
	}
	if len(blobs.downloads) != 1 {
		t.Errorf("expected one blob download, got %d", len(blobs.downloads))
	}

	select {
	case <-pipeline.calls:
	case <-time.After(time.Second):
		t.Fatal("expected pipeline dispatch")
	}
}

func TestRetryCompletedIsRejected(t *testing.T) {
	store := retryFixture(models.AIStatusCompleted)
	blobs := &fakeBlobStore{downloadData: []byte("original-bytes")}
	pipeline := newFakeProcessor()
	svc := NewRetryService(store, blobs, pipeline)

	_, err := svc.Retry(context.Background(), 1, "u1")
	if err == nil {
		t.Fatal("expected rejection for completed image")
	}
	if HTTPStatus(err) != 400 {
		t.Errorf("expected 400, got %d", HTTPStatus(err))
	}

	// neither the blob store nor the AI pipeline may be touched
	if len(blobs.downloads) != 0 {
		t.Errorf("expected zero blob downloads, got %d", len(blobs.downloads))
	}
	if pipeline.callCount() != 0 {
		t.Errorf("expected zero pipeline calls, got %d", pipeline.callCount())
	}
}

func TestRetryCrossUserIsNotFound(t *testing.T) {
	store := retryFixture(models.AIStatusFailed)
	svc := NewRetryService(store, &fakeBlobStore{}, newFakeProcessor())

	_, err := svc.Retry(context.Background(), 1, "someone-else")
	if err == nil {
		t.Fatal("expected not-found for cross-user retry")
	}
	if HTTPStatus(err) != 404 {
		t.Errorf("expected 404, got %d", HTTPStatus(err))
	}
}

func TestRetryMissingMetadata(t *testing.T) {
	store := retryFixture(models.AIStatusFailed)
	store.metadata = nil
	svc := NewRetryService(store, &fakeBlobStore{}, newFakeProcessor())

	_, err := svc.Retry(context.Background(), 1, "u1")
	if err == nil {
		t.Fatal("expected error for missing metadata")
	}
	if HTTPStatus(err) != 404 {
		t.Errorf("expected 404, got %d", HTTPStatus(err))
	}
}

func TestRetryDownloadFailure(t *testing.T) {
	store := retryFixture(models.AIStatusFailed)
	pipeline := newFakeProcessor()

	// explicit error and empty payload are treated the same
	for _, blobs := range []*fakeBlobStore{
		{downloadErr: errors.New("object missing")},
		{downloadData: nil},
	} {
		svc := NewRetryService(store, blobs, pipeline)

		_, err := svc.Retry(context.Background(), 1, "u1")
		if err == nil {
			t.Fatal("expected error on download failure")
		}
		if HTTPStatus(err) != 500 {
			t.Errorf("expected 500, got %d", HTTPStatus(err))
		}
	}

	if pipeline.callCount() != 0 {
		t.Errorf("expected no pipeline dispatch, got %d", pipeline.callCount())
	}
}
