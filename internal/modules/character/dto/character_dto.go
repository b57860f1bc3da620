package dto

import (
	"time"

	"anoa.com/mediagallery/internal/aggregate"
	"anoa.com/mediagallery/internal/entity"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"github.com/google/uuid"
)

const (
	SortLikesAsc  = "likes_asc"
	SortLikesDesc = "likes_desc"
)

type CreateCharacterRequest struct {
	Name        string   `json:"name" validate:"min=3,max=18"`
	Description string   `json:"description" validate:"omitempty,min=3,max=140"`
	Tags        []string `json:"tags" validate:"dive,uuid"`
}

type UpdateCharacterRequest struct {
	CharacterID string   `json:"characterId" validate:"required,uuid"`
	Name        string   `json:"name" validate:"min=3,max=18"`
	Description string   `json:"description" validate:"omitempty,min=3,max=140"`
	Tags        []string `json:"tags" validate:"dive,uuid"`
}

type CharacterIDRequest struct {
	CharacterID string `json:"characterId" form:"characterId" validate:"required,uuid"`
}

// CharacterMediaRequest is the input of character.setMain and character.removeMedia.
type CharacterMediaRequest struct {
	MediaID     string `json:"mediaId" validate:"required,uuid"`
	CharacterID string `json:"characterId" validate:"required,uuid"`
}

// ListCharactersQuery narrows character.all and character.search. Every field is optional.
type ListCharactersQuery struct {
	Query string   `form:"query" validate:"max=140"`
	Tags  []string `form:"tags" validate:"dive,uuid"`
	Sort  string   `form:"sort" validate:"omitempty,oneof=likes_asc likes_desc"`
}

type CharacterResponse struct {
	ID          uuid.UUID                 `json:"id"`
	Name        string                    `json:"name"`
	Description *string                   `json:"description"`
	AuthorID    uuid.UUID                 `json:"authorId"`
	Author      *commonDto.AuthorResponse `json:"author"`
	TagIDs      []uuid.UUID               `json:"tagIds"`
	Tags        []commonDto.TagSummary    `json:"tags"`
	CoverID     *uuid.UUID                `json:"coverId"`
	Cover       *commonDto.MediaResponse  `json:"cover"`
	MediaIDs    []uuid.UUID               `json:"mediaIds"`
	Media       []commonDto.MediaResponse `json:"media"`
	LikeTotal   int                       `json:"likeTotal"`
	CreatedAt   time.Time                 `json:"createdAt"`
	UpdatedAt   time.Time                 `json:"updatedAt"`
}

func NewCharacterResponse(c *entity.Character) CharacterResponse {
	return CharacterResponse{
		ID:          c.ID,
		Name:        c.Name,
		Description: c.Description,
		AuthorID:    c.AuthorID,
		Author:      commonDto.NewAuthorResponse(c.Author),
		TagIDs:      c.TagIDs(),
		Tags:        commonDto.NewTagSummaries(c.Tags()),
		CoverID:     c.CoverID,
		Cover:       commonDto.OptionalMedia(c.Cover),
		MediaIDs:    c.MediaIDs(),
		Media:       commonDto.NewMediaResponses(c.GalleryMedia(), nil),
		LikeTotal:   aggregate.CharacterLikeTotal(c),
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func NewCharacterResponses(characters []*entity.Character) []CharacterResponse {
	res := make([]CharacterResponse, 0, len(characters))
	for _, c := range characters {
		res = append(res, NewCharacterResponse(c))
	}
	return res
}
