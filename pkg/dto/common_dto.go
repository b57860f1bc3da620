package dto

import (
	"time"

	"anoa.com/mediagallery/internal/entity"
	"github.com/google/uuid"
)

type AuthorResponse struct {
	ID       uuid.UUID `json:"id"`
	Username string    `json:"username"`
}

type IDResponse struct {
	ID uuid.UUID `json:"id"`
}

type TagSummary struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type MediaResponse struct {
	ID            uuid.UUID   `json:"id"`
	FileName      string      `json:"fileName"`
	FileExtension string      `json:"fileExtension"`
	Mimetype      string      `json:"mimetype"`
	URL           string      `json:"url"`
	AuthorID      uuid.UUID   `json:"authorId"`
	LikeIDs       []uuid.UUID `json:"likeIds"`
	CharacterIDs  []uuid.UUID `json:"characterIds,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
}

func NewAuthorResponse(u *entity.User) *AuthorResponse {
	if u == nil {
		return nil
	}
	return &AuthorResponse{ID: u.ID, Username: u.Username}
}

func NewMediaResponse(m *entity.Media) MediaResponse {
	return MediaResponse{
		ID:            m.ID,
		FileName:      m.FileName,
		FileExtension: m.FileExtension,
		Mimetype:      m.Mimetype,
		URL:           m.URL,
		AuthorID:      m.AuthorID,
		LikeIDs:       m.LikeIDs(),
		CreatedAt:     m.CreatedAt,
	}
}

// NewMediaResponses maps media in order. characterIDs, when non-nil, fills
// each item's characterIds; media attached to no character omits the field.
func NewMediaResponses(media []*entity.Media, characterIDs map[uuid.UUID][]uuid.UUID) []MediaResponse {
	res := make([]MediaResponse, 0, len(media))
	for _, m := range media {
		r := NewMediaResponse(m)
		if characterIDs != nil {
			r.CharacterIDs = characterIDs[m.ID]
		}
		res = append(res, r)
	}
	return res
}

// OptionalMedia maps a cover that may be absent.
func OptionalMedia(m *entity.Media) *MediaResponse {
	if m == nil {
		return nil
	}
	r := NewMediaResponse(m)
	return &r
}

func NewTagSummaries(tags []*entity.Tag) []TagSummary {
	res := make([]TagSummary, 0, len(tags))
	for _, t := range tags {
		res = append(res, TagSummary{ID: t.ID, Name: t.Name})
	}
	return res
}
