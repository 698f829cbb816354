package services

import (
	"strconv"
	"strings"

	"github.com/pixgrove/pixgrove/models"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 50

	SortNewest = "newest"
	SortOldest = "oldest"
)

// MetadataView is the client-facing metadata shape: nullable description and
// dominant color, never-null lists.
type MetadataView struct {
	Description        *string  `json:"description"`
	Tags               []string `json:"tags"`
	Colors             []string `json:"colors"`
	DominantColor      *string  `json:"dominant_color"`
	AIProcessingStatus string   `json:"ai_processing_status"`
}

// ImageView is one gallery item. Metadata is null when no metadata row
// exists for the image.
type ImageView struct {
	ID            uint          `json:"id"`
	UserID        string        `json:"user_id"`
	Filename      string        `json:"filename"`
	OriginalPath  string        `json:"original_path"`
	ThumbnailPath string        `json:"thumbnail_path"`
	FileSize      int64         `json:"file_size"`
	MimeType      string        `json:"mime_type"`
	UploadedAt    string        `json:"uploaded_at"`
	Metadata      *MetadataView `json:"metadata"`
}

// Page is a filtered, sorted, paginated result set.
type Page struct {
	Items      []ImageView
	Total      int64
	Limit      int
	Offset     int
	HasNext    bool
	HasPrev    bool
	NextOffset *int
	PrevOffset *int
}

// SearchFilter is the relational-path predicate: optional substring/tag text
// match ANDed with an optional color match.
type SearchFilter struct {
	UserID       string
	Query        string
	Color        string
	DominantOnly bool
}

// ImageReader is the read side of the metadata store.
type ImageReader interface {
	ListImages(userID string, limit, offset int, sort string) ([]models.Image, int64, error)
	FilteredSearch(f SearchFilter, limit, offset int, sort string) ([]models.Image, int64, error)
	FuzzySearch(userID, query string, limit, offset int) ([]uint, error)
	FuzzySearchCount(userID, query string) (int64, error)
	ImagesByIDs(userID string, ids []uint) ([]models.Image, error)
	GetImage(id uint, userID string) (*models.Image, error)
	CompletedColors(userID string) ([][]string, error)
}

// SearchQuery carries raw client parameters; normalization happens here, not
// in the handlers.
type SearchQuery struct {
	UserID       string
	Query        string
	Color        string
	DominantOnly bool
	RawLimit     string
	RawOffset    string
	RawSort      string
}

type SearchService struct {
	repo ImageReader
}

func NewSearchService(repo ImageReader) *SearchService {
	return &SearchService{repo: repo}
}

// List returns the user's gallery page, newest first by default.
func (s *SearchService) List(userID, rawLimit, rawOffset, rawSort string) (*Page, error) {
	limit := normalizeLimit(rawLimit)
	offset := normalizeOffset(rawOffset)
	sort := normalizeSort(rawSort)

	imgs, total, err := s.repo.ListImages(userID, limit, offset, sort)
	if err != nil {
		return nil, Upstream("Failed to list images", err)
	}

	return newPage(toViews(imgs), total, limit, offset), nil
}

// Search dispatches between the fuzzy stored-procedure path and the direct
// relational filter. The fuzzy path is used only for a pure text search with
// default ordering; any color filter or oldest sort forces the relational
// path, where text becomes a substring/tag match.
func (s *SearchService) Search(q SearchQuery) (*Page, error) {
	limit := normalizeLimit(q.RawLimit)
	offset := normalizeOffset(q.RawOffset)
	sort := normalizeSort(q.RawSort)
	query := strings.TrimSpace(q.Query)

	color := q.Color
	if color != "" {
		normalized, ok := normalizeHexColor(color)
		if !ok {
			return nil, Validation("Invalid color format")
		}
		color = normalized
	}

	if query != "" && color == "" && sort == SortNewest {
		return s.fuzzySearch(q.UserID, query, limit, offset)
	}

	filter := SearchFilter{
		UserID:       q.UserID,
		Query:        query,
		Color:        color,
		DominantOnly: q.DominantOnly,
	}

	imgs, total, err := s.repo.FilteredSearch(filter, limit, offset, sort)
	if err != nil {
		return nil, Upstream("Search failed", err)
	}

	return newPage(toViews(imgs), total, limit, offset), nil
}

func (s *SearchService) fuzzySearch(userID, query string, limit, offset int) (*Page, error) {
	ids, err := s.repo.FuzzySearch(userID, query, limit, offset)
	if err != nil {
		return nil, Upstream("Search failed", err)
	}

	total, err := s.repo.FuzzySearchCount(userID, query)
	if err != nil {
		return nil, Upstream("Search failed", err)
	}

	items := make([]ImageView, 0, len(ids))
	if len(ids) > 0 {
		imgs, err := s.repo.ImagesByIDs(userID, ids)
		if err != nil {
			return nil, Upstream("Search failed", err)
		}

		// The relational fetch returns rows in its own natural order;
		// re-sequence to preserve the procedure's ranking.
		byID := make(map[uint]models.Image, len(imgs))
		for _, img := range imgs {
			byID[img.ID] = img
		}
		for _, id := range ids {
			if img, ok := byID[id]; ok {
				items = append(items, toView(img))
			}
		}
	}

	return newPage(items, total, limit, offset), nil
}

// Get returns one image with metadata, scoped to the owner. A cross-user id
// is indistinguishable from a nonexistent one.
func (s *SearchService) Get(userID string, id uint) (*ImageView, error) {
	img, err := s.repo.GetImage(id, userID)
	if err != nil {
		return nil, err
	}

	v := toView(*img)
	return &v, nil
}

// DistinctColors returns the deduplicated valid hex colors across the user's
// completed images, capped by limit when it parses as a positive integer.
func (s *SearchService) DistinctColors(userID, rawLimit string) ([]string, error) {
	rows, err := s.repo.CompletedColors(userID)
	if err != nil {
		return nil, Upstream("Failed to load colors", err)
	}

	seen := make(map[string]bool)
	colors := []string{}
	for _, row := range rows {
		for _, c := range row {
			if !IsHexColor(c) || seen[c] {
				continue
			}
			seen[c] = true
			colors = append(colors, c)
		}
	}

	if limit, err := strconv.Atoi(strings.TrimSpace(rawLimit)); err == nil && limit > 0 && limit < len(colors) {
		colors = colors[:limit]
	}

	return colors, nil
}

func normalizeLimit(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return DefaultPageLimit
	}
	if n < 1 {
		return 1
	}
	if n > MaxPageLimit {
		return MaxPageLimit
	}
	return n
}

func normalizeOffset(raw string) int {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func normalizeSort(raw string) string {
	if raw == SortOldest {
		return SortOldest
	}
	return SortNewest
}

// normalizeHexColor validates "#" + 6 hex digits, case-insensitive, and
// returns the lowercase form.
func normalizeHexColor(c string) (string, bool) {
	lower := strings.ToLower(c)
	if !IsHexColor(lower) {
		return "", false
	}
	return lower, true
}

func newPage(items []ImageView, total int64, limit, offset int) *Page {
	p := &Page{
		Items:   items,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
		HasNext: int64(offset+limit) < total,
		HasPrev: offset > 0,
	}

	if p.HasNext {
		next := offset + limit
		p.NextOffset = &next
	}
	if p.HasPrev {
		prev := offset - limit
		if prev < 0 {
			prev = 0
		}
		p.PrevOffset = &prev
	}

	return p
}

func toViews(imgs []models.Image) []ImageView {
	views := make([]ImageView, 0, len(imgs))
	for _, img := range imgs {
		views = append(views, toView(img))
	}
	return views
}

func toView(img models.Image) ImageView {
	v := ImageView{
		ID:            img.ID,
		UserID:        img.UserID,
		Filename:      img.Filename,
		OriginalPath:  img.OriginalPath,
		ThumbnailPath: img.ThumbnailPath,
		FileSize:      img.FileSize,
		MimeType:      img.MimeType,
		UploadedAt:    img.UploadedAt.UTC().Format("2006-01-02T15:04:05.000Z"),
	}

	if md := img.Metadata; md != nil {
		v.Metadata = &MetadataView{
			Description:        md.Description,
			Tags:               emptyIfNil(md.Tags),
			Colors:             emptyIfNil(md.Colors),
			DominantColor:      md.DominantColor,
			AIProcessingStatus: md.AIProcessingStatus,
		}
	}

	return v
}

func emptyIfNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}
