package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/pixgrove/pixgrove/auth"
	"github.com/pixgrove/pixgrove/database"
	"github.com/pixgrove/pixgrove/models"
	"gorm.io/gorm"
)

func Hello(c *fiber.Ctx) error {
	return c.SendString("Hello, World!")
}

func GetUser(c *fiber.Ctx) error {
	type UserResponse struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"name"`
	}

	id := c.Params("id")

	db := database.GetDB()
	user := models.User{}
	db.Find(&user, id)

	if user.Username == "" {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "No user found with ID"})
	}

	return c.JSON(UserResponse{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	})
}

func CreateUser(c *fiber.Ctx) error {
	type NewUser struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"name"`
	}

	db := database.GetDB()
	user := new(models.User)

	if err := c.BodyParser(user); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if user.Email == "" || user.Username == "" || user.Password == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Email, username and password are required"})
	}

	hash, err := auth.HashPassword(user.Password)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to hash password"})
	}
	user.Password = hash

	if err := db.Create(user).Error; err != nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Failed to create user"})
	}

	return c.Status(fiber.StatusCreated).JSON(NewUser{
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	})
}

func UpdateUser(c *fiber.Ctx) error {
	type UpdateUser struct {
		Username string `json:"username"`
		FullName string `json:"name"`
	}
	type UserResponse struct {
		ID       uint   `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"name"`
	}

	var userInput UpdateUser
	if err := c.BodyParser(&userInput); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "User ID is required"})
	}

	db := database.GetDB()
	var user models.User

	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	if userInput.Username == "" || userInput.FullName == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Username and name are required"})
	}

	var existingUser models.User
	if err := db.Where("username = ? AND id != ?", userInput.Username, id).First(&existingUser).Error; err == nil {
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "Username already taken"})
	}

	user.Username = userInput.Username
	user.FullName = userInput.FullName

	if err := db.Save(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to update user"})
	}

	return c.Status(fiber.StatusOK).JSON(UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
	})
}

func DeleteUser(c *fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "User ID is required"})
	}

	db := database.GetDB()
	var user models.User

	if err := db.First(&user, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "User not found"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	if err := db.Delete(&user).Error; err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to delete user"})
	}

	// Past time to clear cookie
	c.Cookie(&fiber.Cookie{
		Name:     "JWT",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   false,
		SameSite: "Lax",
	})

	return c.JSON(fiber.Map{"message": "User deleted successfully"})
}
