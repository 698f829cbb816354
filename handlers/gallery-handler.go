package handler

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/middleware"
	"github.com/pixgrove/pixgrove/services"
)

// Library is the read side of the gallery consumed by the HTTP layer.
type Library interface {
	List(userID, rawLimit, rawOffset, rawSort string) (*services.Page, error)
	Search(q services.SearchQuery) (*services.Page, error)
	Get(userID string, id uint) (*services.ImageView, error)
	DistinctColors(userID, rawLimit string) ([]string, error)
}

// GalleryHandler serves the listing, search and color-palette routes.
type GalleryHandler struct {
	library Library
}

func NewGalleryHandler(library Library) *GalleryHandler {
	return &GalleryHandler{library: library}
}

func (h *GalleryHandler) List(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page, err := h.library.List(userID, c.Query("limit"), c.Query("offset"), c.Query("sort"))
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error": services.ClientMessage(err, "Failed to list images"),
		})
	}

	return c.JSON(pageEnvelope(page, "/api/images", c.Query("sort"), nil))
}

func (h *GalleryHandler) Search(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	page, err := h.library.Search(services.SearchQuery{
		UserID:       userID,
		Query:        c.Query("q"),
		Color:        c.Query("color"),
		DominantOnly: c.Query("dominantOnly") == "true",
		RawLimit:     c.Query("limit"),
		RawOffset:    c.Query("offset"),
		RawSort:      c.Query("sort"),
	})
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error": services.ClientMessage(err, "Search failed"),
		})
	}

	echoed := []services.QueryParam{
		{Key: "q", Value: c.Query("q")},
		{Key: "color", Value: c.Query("color")},
		{Key: "dominantOnly", Value: c.Query("dominantOnly")},
	}

	return c.JSON(pageEnvelope(page, "/api/images/search", c.Query("sort"), echoed))
}

// Colors returns the distinct valid hex colors across the user's completed
// images, optionally capped by limit.
func (h *GalleryHandler) Colors(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	colors, err := h.library.DistinctColors(userID, c.Query("limit"))
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error": services.ClientMessage(err, "Failed to load colors"),
		})
	}

	return c.JSON(fiber.Map{
		"colors": colors,
		"total":  len(colors),
	})
}

func pageEnvelope(page *services.Page, basePath, sort string, echoed []services.QueryParam) fiber.Map {
	return fiber.Map{
		"items": page.Items,
		"pagination": fiber.Map{
			"total":   page.Total,
			"limit":   page.Limit,
			"offset":  page.Offset,
			"hasNext": page.HasNext,
			"hasPrev": page.HasPrev,
			"links":   services.BuildPaginationLinks(basePath, page, sort, echoed),
		},
	}
}
