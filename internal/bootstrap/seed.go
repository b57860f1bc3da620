package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/mediagallery/internal/entity"
	userRepo "anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// Migrate creates or updates every table.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(entity.AutoMigrateModels()...)
}

// SeedUser makes sure a verified account named username exists. An existing
// account is left untouched, including its password.
func SeedUser(ctx context.Context, users userRepo.UserRepository, username, password string) (*entity.User, error) {
	existing, err := users.FindByUsername(ctx, username)
	if err == nil {
		logrus.WithField("username", username).Info("seed user already exists, skipping seed")
		return existing, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash seed password: %w", err)
	}

	user := &entity.User{
		Username:     username,
		PasswordHash: string(hash),
		Verified:     true,
	}
	if err := users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to seed user: %w", err)
	}

	logrus.WithFields(logrus.Fields{"username": username, "user_id": user.ID}).Info("seed user created")
	return user, nil
}
