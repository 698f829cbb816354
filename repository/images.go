package repository

import (
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/pgvector/pgvector-go"
	"github.com/pixgrove/pixgrove/models"
	"github.com/pixgrove/pixgrove/services"
	"gorm.io/gorm"
)

// ImageRepo is the GORM-backed store behind the upload, search, retry and AI
// pipeline services.
type ImageRepo struct {
	db *gorm.DB
}

func NewImageRepo(db *gorm.DB) *ImageRepo {
	return &ImageRepo{db: db}
}

var (
	_ services.ImageCreator   = (*ImageRepo)(nil)
	_ services.ImageReader    = (*ImageRepo)(nil)
	_ services.MetadataWriter = (*ImageRepo)(nil)
	_ services.RetryStore     = (*ImageRepo)(nil)
)

func (r *ImageRepo) CreateImage(img *models.Image) error {
	return r.db.Create(img).Error
}

func (r *ImageRepo) CreateMetadata(md *models.ImageMetadata) error {
	return r.db.Create(md).Error
}

// SetStatus writes an AI status transition scoped by (image_id, user_id);
// the compound predicate re-asserts ownership on every mutation.
func (r *ImageRepo) SetStatus(imageID uint, userID string, status string) error {
	return r.db.Model(&models.ImageMetadata{}).
		Where("image_id = ? AND user_id = ?", imageID, userID).
		Updates(map[string]interface{}{
			"ai_processing_status": status,
			"updated_at":           time.Now(),
		}).Error
}

// Complete persists a successful AI run as a single atomic update.
func (r *ImageRepo) Complete(imageID uint, userID string, description string, tags []string, embedding []float32) error {
	fields := map[string]interface{}{
		"description":          description,
		"tags":                 pq.StringArray(tags),
		"ai_processing_status": models.AIStatusCompleted,
		"updated_at":           time.Now(),
	}
	if len(embedding) > 0 {
		vec := pgvector.NewVector(embedding)
		fields["embedding"] = &vec
	}

	return r.db.Model(&models.ImageMetadata{}).
		Where("image_id = ? AND user_id = ?", imageID, userID).
		Updates(fields).Error
}

func (r *ImageRepo) ListImages(userID string, limit, offset int, sort string) ([]models.Image, int64, error) {
	var total int64
	if err := r.db.Model(&models.Image{}).Where("user_id = ?", userID).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var imgs []models.Image
	err := r.db.Where("user_id = ?", userID).
		Preload("Metadata").
		Order(orderClause(sort)).
		Limit(limit).Offset(offset).
		Find(&imgs).Error

	return imgs, total, err
}

func (r *ImageRepo) FilteredSearch(f services.SearchFilter, limit, offset int, sort string) ([]models.Image, int64, error) {
	// fresh query per use: reusing a gorm chain across Count and Find
	// leaks statement state
	build := func() *gorm.DB {
		q := r.db.Model(&models.Image{}).
			Joins("LEFT JOIN image_metadata ON image_metadata.image_id = images.id").
			Where("images.user_id = ?", f.UserID)

		if f.Query != "" {
			q = q.Where(
				"(image_metadata.description ILIKE ? OR ? = ANY(image_metadata.tags))",
				"%"+f.Query+"%", f.Query,
			)
		}

		if f.Color != "" {
			if f.DominantOnly {
				q = q.Where("image_metadata.dominant_color = ?", f.Color)
			} else {
				q = q.Where(
					"(? = ANY(image_metadata.colors) OR image_metadata.dominant_color = ?)",
					f.Color, f.Color,
				)
			}
		}

		return q
	}

	var total int64
	if err := build().Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var imgs []models.Image
	err := build().
		Select("images.*").
		Preload("Metadata").
		Order("images." + orderClause(sort)).
		Limit(limit).Offset(offset).
		Find(&imgs).Error

	return imgs, total, err
}

// FuzzySearch calls the trigram stored function; result order is the
// procedure's ranking, strongest match first.
func (r *ImageRepo) FuzzySearch(userID, query string, limit, offset int) ([]uint, error) {
	var ids []uint
	err := r.db.
		Raw("SELECT image_id FROM search_images_fuzzy(?, ?, ?, ?)", userID, query, limit, offset).
		Scan(&ids).Error
	return ids, err
}

func (r *ImageRepo) FuzzySearchCount(userID, query string) (int64, error) {
	var total int64
	err := r.db.
		Raw("SELECT search_images_fuzzy_count(?, ?)", userID, query).
		Scan(&total).Error
	return total, err
}

func (r *ImageRepo) ImagesByIDs(userID string, ids []uint) ([]models.Image, error) {
	var imgs []models.Image
	err := r.db.Where("id IN ? AND user_id = ?", ids, userID).
		Preload("Metadata").
		Find(&imgs).Error
	return imgs, err
}

// GetImage is ownership-scoped: a cross-user id reports not-found.
func (r *ImageRepo) GetImage(id uint, userID string) (*models.Image, error) {
	var img models.Image
	err := r.db.Where("id = ? AND user_id = ?", id, userID).
		Preload("Metadata").
		First(&img).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.NotFound("Image not found")
		}
		return nil, services.Upstream("Failed to load image", err)
	}

	return &img, nil
}

func (r *ImageRepo) GetMetadata(imageID uint, userID string) (*models.ImageMetadata, error) {
	var md models.ImageMetadata
	err := r.db.Where("image_id = ? AND user_id = ?", imageID, userID).First(&md).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, services.NotFound("Image metadata not found")
		}
		return nil, services.Upstream("Failed to load image metadata", err)
	}

	return &md, nil
}

func (r *ImageRepo) CompletedColors(userID string) ([][]string, error) {
	var rows []pq.StringArray
	err := r.db.Model(&models.ImageMetadata{}).
		Where("user_id = ? AND ai_processing_status = ? AND colors IS NOT NULL", userID, models.AIStatusCompleted).
		Pluck("colors", &rows).Error
	if err != nil {
		return nil, err
	}

	out := make([][]string, 0, len(rows))
	for _, row := range rows {
		out = append(out, []string(row))
	}

	return out, nil
}

func orderClause(sort string) string {
	if sort == services.SortOldest {
		return "uploaded_at ASC"
	}
	return "uploaded_at DESC"
}
