package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	handler "github.com/pixgrove/pixgrove/handlers"
	"github.com/pixgrove/pixgrove/middleware"
)

func SetupRoutes(app *fiber.App, images *handler.ImageHandler, gallery *handler.GalleryHandler) {
	api := app.Group("/api", logger.New())
	api.Get("/hello", handler.Hello)

	// Auth
	auth := api.Group("/auth")
	auth.Post("/login", handler.Login)
	auth.Post("/logout", handler.Logout)

	// User
	user := api.Group("/user")
	user.Get("/:id", handler.GetUser)
	user.Post("/", handler.CreateUser)
	user.Put("/:id", middleware.AuthMiddleware(), handler.UpdateUser)
	user.Delete("/:id", middleware.AuthMiddleware(), handler.DeleteUser)

	// Gallery; static segments must register before /:id
	img := api.Group("/images", middleware.AuthMiddleware())
	img.Get("/", gallery.List)
	img.Get("/search", gallery.Search)
	img.Get("/colors", gallery.Colors)
	img.Post("/upload", images.Upload)
	img.Post("/:imageId/retry-ai", images.Retry)
	img.Get("/:id", images.Get)
}
