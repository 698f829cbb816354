package main

import (
	"context"
	"fmt"
	"log"

	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/auth"
	"github.com/pixgrove/pixgrove/config"
	"github.com/pixgrove/pixgrove/database"
	handler "github.com/pixgrove/pixgrove/handlers"
	"github.com/pixgrove/pixgrove/models"
	"github.com/pixgrove/pixgrove/repository"
	"github.com/pixgrove/pixgrove/router"
	"github.com/pixgrove/pixgrove/services"
	"github.com/pixgrove/pixgrove/storage"
)

func main() {
	ctx := context.Background()

	db := database.GetDB()

	// Run migrations
	err := database.MigrateModels(&models.User{}, &models.Image{}, &models.ImageMetadata{})
	if err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	auth.SetupAuthService()

	blobs, err := storage.NewGCSStore(ctx, config.Config("GCS_BUCKET_NAME"))
	if err != nil {
		log.Fatalf("Failed to create storage client: %v", err)
	}

	vision, err := services.NewGeminiVision(ctx,
		config.ConfigOr("GEMINI_VISION_MODEL", "gemini-2.5-flash"),
		config.ConfigOr("GEMINI_EMBED_MODEL", "gemini-embedding-001"),
	)
	if err != nil {
		log.Fatalf("Failed to create AI client: %v", err)
	}

	repo := repository.NewImageRepo(db)
	embeddings := config.ConfigOr("ENABLE_EMBEDDINGS", "false") == "true"
	pipeline := services.NewAIPipeline(vision, repo, embeddings)

	uploads := services.NewUploadService(repo, blobs, pipeline)
	retries := services.NewRetryService(repo, blobs, pipeline)
	library := services.NewSearchService(repo)

	app := fiber.New(fiber.Config{
		BodyLimit: 64 << 20, // multipart batches: 5 files at 10 MiB plus overhead
	})

	router.SetupRoutes(app,
		handler.NewImageHandler(uploads, retries, library),
		handler.NewGalleryHandler(library),
	)

	// close the database connection
	defer func() {
		if err := database.CloseDB(); err != nil {
			log.Fatalf("Error closing the database connection: %v", err)
		}
	}()

	fmt.Println("Server is listening at the port 3000")
	log.Fatal(app.Listen(":3000"))
}
