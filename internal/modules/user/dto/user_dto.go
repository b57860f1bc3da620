package dto

import (
	"time"

	"anoa.com/mediagallery/internal/entity"
	characterDto "anoa.com/mediagallery/internal/modules/character/dto"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"github.com/google/uuid"
)

type RegisterRequest struct {
	Username string `json:"username" validate:"min=3,max=18"`
	Password string `json:"password" validate:"min=8,max=18"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UserResponse struct {
	ID        uuid.UUID `json:"id"`
	Username  string    `json:"username"`
	Verified  bool      `json:"verified"`
	Banned    bool      `json:"banned"`
	CreatedAt time.Time `json:"createdAt"`
}

func NewUserResponse(u *entity.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Username:  u.Username,
		Verified:  u.Verified,
		Banned:    u.Banned,
		CreatedAt: u.CreatedAt,
	}
}

type LoginResponse struct {
	AccessToken string       `json:"accessToken"`
	TokenType   string       `json:"tokenType"`
	ExpiresIn   int64        `json:"expiresIn"`
	User        UserResponse `json:"user"`
}

// ProfileResponse is the user.single bundle.
type ProfileResponse struct {
	User              UserResponse                     `json:"user"`
	CreatedCharacters []characterDto.CharacterResponse `json:"createdCharacters"`
	CreatedTags       []commonDto.TagSummary           `json:"createdTags"`
	UploadedMedia     []commonDto.MediaResponse        `json:"uploadedMedia"`
	LikedMedia        []commonDto.MediaResponse        `json:"likedMedia"`
}
