package handler

import (
	"strconv"
	"time"

	"github.com/go-pkgz/auth/v2/token"
	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/pixgrove/pixgrove/auth"
)

// Login validates credentials and issues a JWT, both as a bearer token in the
// response body and as an HTTP-only cookie for web clients.
func Login(c *fiber.Ctx) error {
	type LoginData struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}

	type UserResponse struct {
		ID       uint   `json:"id"`
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"name"`
		Token    string `json:"token"`
	}

	input := new(LoginData)
	if err := c.BodyParser(&input); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	userModel, err := auth.FindByIdentity(input.Identity)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Database error"})
	}

	if userModel == nil || !auth.CheckPasswordHash(input.Password, userModel.Password) {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "Invalid identity or password"})
	}

	authService := auth.GetAuthService()

	user := token.User{
		ID:    strconv.FormatUint(uint64(userModel.ID), 10),
		Name:  userModel.FullName,
		Email: userModel.Email,
		Attributes: map[string]interface{}{
			"username": userModel.Username,
		},
	}

	claims := token.Claims{
		User: &user,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    authService.TokenService().Issuer,
			Audience:  []string{"pixgrove"},
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour * 24)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	}

	tokenStr, err := authService.TokenService().Token(claims)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "Failed to generate token"})
	}

	c.Cookie(&fiber.Cookie{
		Name:     "JWT",
		Value:    tokenStr,
		Expires:  time.Now().Add(time.Hour * 24 * 7),
		HTTPOnly: true,
		Secure:   false, // set true behind HTTPS
		SameSite: "Lax",
	})

	return c.Status(fiber.StatusOK).JSON(UserResponse{
		ID:       userModel.ID,
		Email:    userModel.Email,
		Username: userModel.Username,
		FullName: userModel.FullName,
		Token:    tokenStr,
	})
}

func Logout(c *fiber.Ctx) error {
	// Clear JWT cookie
	c.Cookie(&fiber.Cookie{
		Name:     "JWT",
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"message": "Logout successful"})
}
