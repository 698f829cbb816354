package auth

import (
	"errors"
	"net/mail"
	"time"

	"github.com/go-pkgz/auth/v2"
	"github.com/go-pkgz/auth/v2/avatar"
	"github.com/go-pkgz/auth/v2/provider"
	"github.com/go-pkgz/auth/v2/token"
	"github.com/pixgrove/pixgrove/config"
	"github.com/pixgrove/pixgrove/database"
	"github.com/pixgrove/pixgrove/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Global auth service instance
var authService *auth.Service

// Initialize auth service
func SetupAuthService() *auth.Service {
	options := auth.Opts{
		SecretReader: token.SecretFunc(func(id string) (string, error) {
			return config.Config("JWT_SECRET"), nil
		}),
		TokenDuration:  time.Hour * 24,     // JWT token duration
		CookieDuration: time.Hour * 24 * 7, // Cookie duration
		Issuer:         "pixgrove",
		URL:            config.ConfigOr("APP_URL", "http://localhost:3000"),
		AvatarStore:    avatar.NewLocalFS("/tmp/avatars"),
	}

	service := auth.NewService(options)

	// Direct authentication provider backed by the local user table
	service.AddDirectProvider("local", provider.CredCheckerFunc(func(identity, password string) (bool, error) {
		return ValidateUserCredentials(identity, password)
	}))

	authService = service
	return service
}

// Get the auth service instance
func GetAuthService() *auth.Service {
	return authService
}

// ValidateUserCredentials validates user credentials against the database
func ValidateUserCredentials(identity, password string) (bool, error) {
	user, err := FindByIdentity(identity)
	if err != nil {
		return false, err
	}

	if user == nil {
		return false, nil // User not found
	}

	if !CheckPasswordHash(password, user.Password) {
		return false, nil // Invalid password
	}

	return true, nil
}

// FindByIdentity looks a user up by email or username; a missing user is
// (nil, nil), not an error.
func FindByIdentity(identity string) (*models.User, error) {
	if isEmail(identity) {
		return findUser("email = ?", identity)
	}
	return findUser("username = ?", identity)
}

func CheckPasswordHash(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), 10)
	return string(hashed), err
}

func isEmail(identity string) bool {
	_, err := mail.ParseAddress(identity)
	return err == nil
}

func findUser(query string, arg interface{}) (*models.User, error) {
	db := database.GetDB()
	var user models.User
	if err := db.Where(query, arg).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}
