package dto

import (
	commonDto "anoa.com/mediagallery/pkg/dto"
	"github.com/google/uuid"
)

type MediaIDRequest struct {
	MediaID string `json:"mediaId" validate:"required,uuid"`
}

type AssignMediaRequest struct {
	MediaIDs     []string `json:"mediaIds" validate:"required,min=1,dive,uuid"`
	CharacterIDs []string `json:"characterIds" validate:"required,min=1,dive,uuid"`
}

type AssignMediaResponse struct {
	CharacterIDs []uuid.UUID `json:"characterIds"`
}

// FileDescriptor describes one file the client is about to upload. UUID is a
// client-chosen correlation token, not the media id.
type FileDescriptor struct {
	UUID          string `json:"uuid" validate:"required,max=64"`
	FileName      string `json:"fileName" validate:"required,max=255"`
	FileExtension string `json:"fileExtension" validate:"required,max=16"`
	Mimetype      string `json:"mimetype" validate:"required"`
}

type AllocateMediaRequest struct {
	CharacterID string           `json:"characterId" validate:"required,uuid"`
	Files       []FileDescriptor `json:"files" validate:"required,min=1,max=20,dive"`
}

// AllocateMediaResponse maps each correlation token to its media id.
type AllocateMediaResponse struct {
	IDs map[string]uuid.UUID `json:"ids"`
}

// UploadMediaRequest carries the non-file fields of media.upload. MediaIDs,
// when set, name allocated media the files fill in order and CharacterID is
// ignored.
type UploadMediaRequest struct {
	CharacterID string
	MediaIDs    []string
}

type UploadMediaResponse struct {
	Media []commonDto.MediaResponse `json:"media"`
}
