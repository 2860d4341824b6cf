package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/monocle-dev/taskboard/internal/models"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// Authenticator verifies username/password pairs against stored bcrypt hashes.
type Authenticator struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewAuthenticator(db *gorm.DB, logger *slog.Logger) *Authenticator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Authenticator{db: db, logger: logger}
}

// Authenticate returns the matching user, or nil when the username is unknown
// or the password is wrong. The error is reserved for storage failures.
func (a *Authenticator) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	var user models.User

	err := a.db.WithContext(ctx).Where("username = ?", username).First(&user).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a.logger.Warn("login failed for unknown user", "username", username)
			return nil, nil
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		a.logger.Warn("invalid password attempt", "username", username)
		return nil, nil
	}

	a.logger.Info("user authenticated", "username", username, "role", user.Role)
	return &user, nil
}
