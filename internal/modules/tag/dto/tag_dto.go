package dto

import (
	"time"

	"anoa.com/mediagallery/internal/entity"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"github.com/google/uuid"
)

type CreateTagRequest struct {
	Name        string `json:"name" validate:"min=2,max=18"`
	Description string `json:"description" validate:"max=140"`
}

type UpdateTagRequest struct {
	TagID       string `json:"tagId" validate:"required,uuid"`
	Name        string `json:"name" validate:"min=2,max=18"`
	Description string `json:"description" validate:"max=140"`
}

type TagIDRequest struct {
	TagID string `json:"tagId" form:"tagId" validate:"required,uuid"`
}

// TagMediaRequest is the input of tag.setMain.
type TagMediaRequest struct {
	MediaID string `json:"mediaId" validate:"required,uuid"`
	TagID   string `json:"tagId" validate:"required,uuid"`
}

type TagResponse struct {
	ID             uuid.UUID                 `json:"id"`
	Name           string                    `json:"name"`
	Description    string                    `json:"description"`
	AuthorID       uuid.UUID                 `json:"authorId"`
	Author         *commonDto.AuthorResponse `json:"author"`
	CoverID        *uuid.UUID                `json:"coverId"`
	Cover          *commonDto.MediaResponse  `json:"cover"`
	CharacterIDs   []uuid.UUID               `json:"characterIds"`
	CharacterCount int                       `json:"characterCount"`
	LikeTotal      int                       `json:"likeTotal"`
	Usage          float64                   `json:"usage"`
	CreatedAt      time.Time                 `json:"createdAt"`
	UpdatedAt      time.Time                 `json:"updatedAt"`
}

func NewTagResponse(t *entity.Tag, likeTotal int, usage float64) TagResponse {
	return TagResponse{
		ID:             t.ID,
		Name:           t.Name,
		Description:    t.Description,
		AuthorID:       t.AuthorID,
		Author:         commonDto.NewAuthorResponse(t.Author),
		CoverID:        t.CoverID,
		Cover:          commonDto.OptionalMedia(t.Cover),
		CharacterIDs:   t.CharacterIDs(),
		CharacterCount: t.CharacterCount(),
		LikeTotal:      likeTotal,
		Usage:          usage,
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
}
