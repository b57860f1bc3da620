package admin

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/mediagallery/internal/modules/admin/dto"
	userDto "anoa.com/mediagallery/internal/modules/user/dto"
	userRepo "anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type AdminService interface {
	Moderate(ctx context.Context, adminID uuid.UUID, req dto.ModerateRequest) (*userDto.UserResponse, error)
}

type adminService struct {
	userRepo userRepo.UserRepository
}

func NewAdminService(userRepo userRepo.UserRepository) AdminService {
	return &adminService{userRepo: userRepo}
}

func (s *adminService) Moderate(ctx context.Context, adminID uuid.UUID, req dto.ModerateRequest) (*userDto.UserResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	id, err := validator.ParseID("userId", req.UserID)
	if err != nil {
		return nil, err
	}
	if id == adminID && *req.Banned {
		return nil, fmt.Errorf("admins cannot ban themselves: %w", apperror.ErrBadRequest)
	}

	if err := s.userRepo.UpdateStatus(ctx, id, *req.Verified, *req.Banned); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"admin_id": adminID,
		"user_id":  id,
		"verified": user.Verified,
		"banned":   user.Banned,
	}).Info("user moderated")

	res := userDto.NewUserResponse(user)
	return &res, nil
}
