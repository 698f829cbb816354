package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"testing"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/services"
)

type fakeUploader struct {
	failName string
	failWith error
	nextID   uint
}

func (f *fakeUploader) Upload(ctx context.Context, userID string, file services.UploadFile) (*services.UploadResult, error) {
	if file.OriginalName == f.failName {
		return nil, f.failWith
	}
	f.nextID++
	return &services.UploadResult{
		ID:                 f.nextID,
		UserID:             userID,
		Filename:           file.OriginalName,
		AIProcessingStatus: "pending",
		Colors:             []string{},
	}, nil
}

type fakeRetrier struct {
	err    error
	result *services.RetryResult
	calls  int
}

func (f *fakeRetrier) Retry(ctx context.Context, imageID uint, userID string) (*services.RetryResult, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLibrary struct {
	page *services.Page
	view *services.ImageView
	err  error
}

func (f *fakeLibrary) List(userID, rawLimit, rawOffset, rawSort string) (*services.Page, error) {
	return f.page, f.err
}

func (f *fakeLibrary) Search(q services.SearchQuery) (*services.Page, error) {
	return f.page, f.err
}

func (f *fakeLibrary) Get(userID string, id uint) (*services.ImageView, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.view, nil
}

func (f *fakeLibrary) DistinctColors(userID, rawLimit string) ([]string, error) {
	return []string{"#ff0000"}, f.err
}

func newTestApp(images *ImageHandler, gallery *GalleryHandler) *fiber.App {
	app := fiber.New()
	app.Use(func(c *fiber.Ctx) error {
		c.Locals("user", token.User{ID: "u1"})
		return c.Next()
	})

	app.Get("/api/images", gallery.List)
	app.Get("/api/images/search", gallery.Search)
	app.Get("/api/images/colors", gallery.Colors)
	app.Post("/api/images/upload", images.Upload)
	app.Post("/api/images/:imageId/retry-ai", images.Retry)
	app.Get("/api/images/:id", images.Get)

	return app
}

func multipartUpload(t *testing.T, filenames ...string) *http.Request {
	t.Helper()

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, name := range filenames {
		part, err := w.CreateFormFile("images", name)
		if err != nil {
			t.Fatalf("failed to create form file: %v", err)
		}
		if _, err := part.Write([]byte("fake-image-bytes")); err != nil {
			t.Fatalf("failed to write form file: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("failed to close multipart writer: %v", err)
	}

	req, _ := http.NewRequest(http.MethodPost, "/api/images/upload", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, res *http.Response) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(res.Body)
	if err != nil {
		t.Fatalf("failed to read response body: %v", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("response is not JSON: %s", raw)
	}
	return out
}

func TestUploadBatchPartialFailure(t *testing.T) {
	uploads := &fakeUploader{
		failName: "broken.jpg",
		failWith: services.Upstream("Failed to store original image", nil),
	}
	app := newTestApp(NewImageHandler(uploads, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	res, err := app.Test(multipartUpload(t, "good.jpg", "broken.jpg"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	if res.StatusCode != fiber.StatusMultiStatus {
		t.Fatalf("expected 207, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	images := body["images"].([]interface{})
	errs := body["errors"].([]interface{})

	if len(images) != 1 {
		t.Errorf("expected 1 uploaded image, got %d", len(images))
	}
	if len(errs) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(errs))
	}

	entry := errs[0].(map[string]interface{})
	if entry["filename"] != "broken.jpg" {
		t.Errorf("expected failing filename broken.jpg, got %v", entry["filename"])
	}
}

func TestUploadAllSucceed(t *testing.T) {
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	res, err := app.Test(multipartUpload(t, "a.jpg", "b.jpg"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusCreated {
		t.Fatalf("expected 201, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if len(body["images"].([]interface{})) != 2 {
		t.Error("expected 2 uploaded images")
	}
	if _, present := body["errors"]; present {
		t.Error("expected no errors key on full success")
	}
}

func TestUploadSingleFileFailureReturnsSpecificStatus(t *testing.T) {
	uploads := &fakeUploader{
		failName: "big.jpg",
		failWith: services.Validation("File too large (max 10 MiB)"),
	}
	app := newTestApp(NewImageHandler(uploads, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	res, err := app.Test(multipartUpload(t, "big.jpg"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}

	// no 207 wrapping for a single-file batch
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["error"] != "File too large (max 10 MiB)" {
		t.Errorf("expected the file's specific error, got %v", body["error"])
	}
}

func TestUploadAllFailed(t *testing.T) {
	uploads := &fakeUploader{failName: "", failWith: services.Upstream("Failed to store original image", nil)}
	// every file fails: failName matches nothing, so make both fail explicitly
	uploads.failName = "x.jpg"
	app := newTestApp(NewImageHandler(uploads, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	res, err := app.Test(multipartUpload(t, "x.jpg", "x.jpg"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["error"] != "All uploads failed" {
		t.Errorf("expected 'All uploads failed', got %v", body["error"])
	}
	if len(body["errors"].([]interface{})) != 2 {
		t.Error("expected 2 error entries")
	}
}

func TestUploadNoFiles(t *testing.T) {
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	req, _ := http.NewRequest(http.MethodPost, "/api/images/upload", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Errorf("expected 400, got %d", res.StatusCode)
	}
}

func TestRetryAccepted(t *testing.T) {
	retries := &fakeRetrier{result: &services.RetryResult{
		Success: true,
		Message: "AI processing retry initiated",
		ImageID: 7,
	}}
	app := newTestApp(NewImageHandler(&fakeUploader{}, retries, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	req, _ := http.NewRequest(http.MethodPost, "/api/images/7/retry-ai", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusAccepted {
		t.Fatalf("expected 202, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["success"] != true || body["image_id"] != float64(7) {
		t.Errorf("unexpected body: %v", body)
	}
}

func TestRetryAlreadyCompleted(t *testing.T) {
	retries := &fakeRetrier{err: services.Conflict("AI processing already completed")}
	app := newTestApp(NewImageHandler(&fakeUploader{}, retries, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	req, _ := http.NewRequest(http.MethodPost, "/api/images/7/retry-ai", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["error"] != "AI processing already completed" {
		t.Errorf("unexpected error message: %v", body["error"])
	}
}

func TestGetInvalidID(t *testing.T) {
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, &fakeLibrary{}), NewGalleryHandler(&fakeLibrary{}))

	for _, id := range []string{"0", "-4", "abc"} {
		req, _ := http.NewRequest(http.MethodGet, "/api/images/"+id, nil)
		res, err := app.Test(req)
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		if res.StatusCode != fiber.StatusBadRequest {
			t.Errorf("id %q: expected 400, got %d", id, res.StatusCode)
		}

		body := decodeBody(t, res)
		if body["error"] != "Invalid image ID" {
			t.Errorf("id %q: unexpected error %v", id, body["error"])
		}
	}
}

func TestGetNotFoundShape(t *testing.T) {
	library := &fakeLibrary{err: services.NotFound("Image not found")}
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, library), NewGalleryHandler(library))

	req, _ := http.NewRequest(http.MethodGet, "/api/images/42", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["error"] != "Image not found" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func newListPage() *services.Page {
	next := 20
	return &services.Page{
		Items:      []services.ImageView{},
		Total:      45,
		Limit:      20,
		Offset:     0,
		HasNext:    true,
		NextOffset: &next,
	}
}

func TestListEnvelope(t *testing.T) {
	library := &fakeLibrary{page: newListPage()}
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, library), NewGalleryHandler(library))

	req, _ := http.NewRequest(http.MethodGet, "/api/images?limit=20", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	pagination := body["pagination"].(map[string]interface{})

	if pagination["total"] != float64(45) {
		t.Errorf("expected total 45, got %v", pagination["total"])
	}
	if pagination["hasNext"] != true || pagination["hasPrev"] != false {
		t.Errorf("unexpected pagination flags: %v", pagination)
	}

	links := pagination["links"].(map[string]interface{})
	if links["self"] == nil || links["next"] == nil {
		t.Errorf("expected self and next links, got %v", links)
	}
	if _, present := links["prev"]; present {
		t.Error("expected prev link to be absent on the first page")
	}
}

func TestSearchInvalidColorResponse(t *testing.T) {
	library := &fakeLibrary{err: services.Validation("Invalid color format")}
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, library), NewGalleryHandler(library))

	req, _ := http.NewRequest(http.MethodGet, "/api/images/search?color=red", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["error"] != "Invalid color format" {
		t.Errorf("unexpected error body: %v", body)
	}
}

func TestColorsEndpoint(t *testing.T) {
	library := &fakeLibrary{}
	app := newTestApp(NewImageHandler(&fakeUploader{}, &fakeRetrier{}, library), NewGalleryHandler(library))

	req, _ := http.NewRequest(http.MethodGet, "/api/images/colors", nil)
	res, err := app.Test(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if res.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}

	body := decodeBody(t, res)
	if body["total"] != float64(1) {
		t.Errorf("expected total 1, got %v", body["total"])
	}
}
