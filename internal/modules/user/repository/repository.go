package repository

import (
	"context"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UserRepository interface {
	Create(ctx context.Context, user *entity.User) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error)
	FindByUsername(ctx context.Context, username string) (*entity.User, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, verified, banned bool) error
}

type userRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(ctx context.Context, user *entity.User) error {
	return database.Conn(ctx, r.db).Create(user).Error
}

func (r *userRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	var user entity.User
	if err := database.Conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, database.NotFound(err)
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	var user entity.User
	if err := database.Conn(ctx, r.db).Where("username = ?", username).First(&user).Error; err != nil {
		return nil, database.NotFound(err)
	}
	return &user, nil
}

func (r *userRepository) UpdateStatus(ctx context.Context, id uuid.UUID, verified, banned bool) error {
	res := database.Conn(ctx, r.db).
		Model(&entity.User{}).
		Where("id = ?", id).
		Updates(map[string]any{"verified": verified, "banned": banned})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.NotFound(gorm.ErrRecordNotFound)
	}
	return nil
}
