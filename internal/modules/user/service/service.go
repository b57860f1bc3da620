package user

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"anoa.com/mediagallery/internal/entity"
	characterDto "anoa.com/mediagallery/internal/modules/character/dto"
	characterRepo "anoa.com/mediagallery/internal/modules/character/repository"
	mediaRepo "anoa.com/mediagallery/internal/modules/media/repository"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/internal/modules/user/dto"
	"anoa.com/mediagallery/internal/modules/user/repository"
	"anoa.com/mediagallery/pkg/apperror"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

var errInvalidCredentials = fmt.Errorf("invalid credentials: %w", apperror.ErrUnauthorized)

type Options struct {
	JWTSecret  string
	TokenTTL   time.Duration
	AutoVerify bool
}

type UserService interface {
	Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error)
	Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error)
	GetProfile(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, error)
}

type userService struct {
	repo          repository.UserRepository
	characterRepo characterRepo.CharacterRepository
	tagRepo       tagRepo.TagRepository
	mediaRepo     mediaRepo.MediaRepository
	opts          Options
}

func NewUserService(
	repo repository.UserRepository,
	characterRepo characterRepo.CharacterRepository,
	tagRepo tagRepo.TagRepository,
	mediaRepo mediaRepo.MediaRepository,
	opts Options,
) UserService {
	return &userService{
		repo:          repo,
		characterRepo: characterRepo,
		tagRepo:       tagRepo,
		mediaRepo:     mediaRepo,
		opts:          opts,
	}
}

func (s *userService) Register(ctx context.Context, req dto.RegisterRequest) (*dto.UserResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &entity.User{
		Username:     req.Username,
		PasswordHash: string(hash),
		Verified:     s.opts.AutoVerify,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, fmt.Errorf("username %q is taken: %w", req.Username, apperror.ErrConflict)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"user_id": user.ID, "verified": user.Verified}).Info("user registered")

	res := dto.NewUserResponse(user)
	return &res, nil
}

func (s *userService) Login(ctx context.Context, req dto.LoginRequest) (*dto.LoginResponse, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Password = strings.TrimSpace(req.Password)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	user, err := s.repo.FindByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, errInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, errInvalidCredentials
	}

	if !user.CanSignIn() {
		return nil, fmt.Errorf("account is banned or awaiting verification: %w", apperror.ErrUnauthorized)
	}

	token, expiresAt, err := s.generateToken(user)
	if err != nil {
		return nil, err
	}

	return &dto.LoginResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresAt,
		User:        dto.NewUserResponse(user),
	}, nil
}

func (s *userService) generateToken(user *entity.User) (string, int64, error) {
	now := time.Now()
	expiresAt := now.Add(s.opts.TokenTTL)

	claims := jwt.RegisteredClaims{
		Subject:   user.ID.String(),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
		IssuedAt:  jwt.NewNumericDate(now),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.opts.JWTSecret))
	if err != nil {
		return "", 0, fmt.Errorf("failed to sign token: %w", err)
	}

	return signed, expiresAt.Unix(), nil
}

// GetProfile bundles what a user created and liked. The four lists are
// independent reads.
func (s *userService) GetProfile(ctx context.Context, id uuid.UUID) (*dto.ProfileResponse, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	characters, err := s.characterRepo.FindByAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	tags, err := s.tagRepo.FindByAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	uploaded, err := s.mediaRepo.FindByAuthor(ctx, id)
	if err != nil {
		return nil, err
	}
	liked, err := s.mediaRepo.FindLikedBy(ctx, id)
	if err != nil {
		return nil, err
	}

	return &dto.ProfileResponse{
		User:              dto.NewUserResponse(user),
		CreatedCharacters: characterDto.NewCharacterResponses(characters),
		CreatedTags:       commonDto.NewTagSummaries(tags),
		UploadedMedia:     commonDto.NewMediaResponses(uploaded, nil),
		LikedMedia:        commonDto.NewMediaResponses(liked, nil),
	}, nil
}
