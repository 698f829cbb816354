package handler

import (
	"context"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/middleware"
	"github.com/pixgrove/pixgrove/services"
)

const maxBatchFiles = 5

// Uploader runs the single-file upload orchestration.
type Uploader interface {
	Upload(ctx context.Context, userID string, file services.UploadFile) (*services.UploadResult, error)
}

// Retrier re-triggers AI processing for a failed image.
type Retrier interface {
	Retry(ctx context.Context, imageID uint, userID string) (*services.RetryResult, error)
}

// ImageHandler serves the upload, detail and retry routes.
type ImageHandler struct {
	uploads Uploader
	retries Retrier
	library Library
}

func NewImageHandler(uploads Uploader, retries Retrier, library Library) *ImageHandler {
	return &ImageHandler{uploads: uploads, retries: retries, library: library}
}

type fileError struct {
	Filename string `json:"filename"`
	Error    string `json:"error"`
}

// Upload accepts up to 5 files under the "images" multipart field. Each file
// is attempted independently: 201 when all succeed, 207 on partial success,
// 500 when everything fails. A failing single-file batch returns that file's
// specific error directly.
func (h *ImageHandler) Upload(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	form, err := c.MultipartForm()
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No files uploaded"})
	}

	files := form.File["images"]
	if len(files) == 0 {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No files uploaded"})
	}
	if len(files) > maxBatchFiles {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Too many files (max 5)"})
	}

	uploaded := []*services.UploadResult{}
	failures := []fileError{}
	var lastErr error

	for _, fh := range files {
		buf, err := readMultipartFile(fh)
		if err != nil {
			failures = append(failures, fileError{Filename: fh.Filename, Error: "Failed to read file"})
			lastErr = err
			continue
		}

		result, err := h.uploads.Upload(c.Context(), userID, services.UploadFile{
			OriginalName: fh.Filename,
			MimeType:     fh.Header.Get("Content-Type"),
			Size:         fh.Size,
			Buffer:       buf,
		})
		if err != nil {
			failures = append(failures, fileError{
				Filename: fh.Filename,
				Error:    services.ClientMessage(err, "Upload failed"),
			})
			lastErr = err
			continue
		}

		uploaded = append(uploaded, result)
	}

	switch {
	case len(failures) == 0:
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"images": uploaded})

	case len(uploaded) == 0 && len(files) == 1:
		// no multi-status wrapping for a single-file batch
		return c.Status(services.HTTPStatus(lastErr)).JSON(fiber.Map{
			"error": failures[0].Error,
		})

	case len(uploaded) == 0:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error":  "All uploads failed",
			"errors": failures,
		})

	default:
		return c.Status(fiber.StatusMultiStatus).JSON(fiber.Map{
			"images": uploaded,
			"errors": failures,
		})
	}
}

// Get returns one image with metadata. Ownership mismatch is reported as
// not-found, indistinguishable from a nonexistent id.
func (h *ImageHandler) Get(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, ok := parseImageID(c.Params("id"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image ID"})
	}

	img, err := h.library.Get(userID, id)
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error": services.ClientMessage(err, "Failed to load image"),
		})
	}

	return c.JSON(img)
}

// Retry accepts a manual re-trigger of AI processing and responds 202; the
// pipeline itself runs detached.
func (h *ImageHandler) Retry(c *fiber.Ctx) error {
	userID, err := middleware.UserID(c)
	if err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Unauthorized"})
	}

	id, ok := parseImageID(c.Params("imageId"))
	if !ok {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid image ID"})
	}

	result, err := h.retries.Retry(c.Context(), id, userID)
	if err != nil {
		return c.Status(services.HTTPStatus(err)).JSON(fiber.Map{
			"error": services.ClientMessage(err, "Failed to retry AI processing"),
		})
	}

	return c.Status(fiber.StatusAccepted).JSON(result)
}

func parseImageID(raw string) (uint, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return 0, false
	}
	return uint(n), true
}

func readMultipartFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}
