package character

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"anoa.com/mediagallery/internal/aggregate"
	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/internal/modules/character/dto"
	"anoa.com/mediagallery/internal/modules/character/repository"
	mediaRepo "anoa.com/mediagallery/internal/modules/media/repository"
	search "anoa.com/mediagallery/internal/modules/search/service"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/cache"
	"anoa.com/mediagallery/pkg/database"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"anoa.com/mediagallery/pkg/logger"
	"anoa.com/mediagallery/pkg/slice"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const searchLimit = 100

type CharacterService interface {
	GetAllCharacters(ctx context.Context, query dto.ListCharactersQuery) ([]dto.CharacterResponse, error)
	GetCharacter(ctx context.Context, id uuid.UUID) (*dto.CharacterResponse, error)
	SearchCharacters(ctx context.Context, query dto.ListCharactersQuery) ([]dto.CharacterResponse, error)
	CreateCharacter(ctx context.Context, authorID uuid.UUID, req dto.CreateCharacterRequest) (*commonDto.IDResponse, error)
	UpdateCharacter(ctx context.Context, authorID uuid.UUID, req dto.UpdateCharacterRequest) (*dto.CharacterResponse, error)
	DeleteCharacter(ctx context.Context, authorID uuid.UUID, req dto.CharacterIDRequest) (*commonDto.IDResponse, error)
	SetCover(ctx context.Context, authorID uuid.UUID, req dto.CharacterMediaRequest) (*dto.CharacterResponse, error)
	RemoveMedia(ctx context.Context, authorID uuid.UUID, req dto.CharacterMediaRequest) (*dto.CharacterResponse, error)
}

type characterService struct {
	tx         database.Transactor
	repo       repository.CharacterRepository
	tagRepo    tagRepo.TagRepository
	mediaRepo  mediaRepo.MediaRepository
	index      search.CharacterIndex
	likeTotals *cache.LikeTotals
}

// NewCharacterService wires the character maintainer. index may be nil, in
// which case search filters in process.
func NewCharacterService(
	tx database.Transactor,
	repo repository.CharacterRepository,
	tagRepo tagRepo.TagRepository,
	mediaRepo mediaRepo.MediaRepository,
	index search.CharacterIndex,
	likeTotals *cache.LikeTotals,
) CharacterService {
	return &characterService{
		tx:         tx,
		repo:       repo,
		tagRepo:    tagRepo,
		mediaRepo:  mediaRepo,
		index:      index,
		likeTotals: likeTotals,
	}
}

func (s *characterService) GetAllCharacters(ctx context.Context, query dto.ListCharactersQuery) ([]dto.CharacterResponse, error) {
	if err := validator.Struct(query); err != nil {
		return nil, err
	}
	tagIDs, err := validator.ParseIDs("tags", query.Tags)
	if err != nil {
		return nil, err
	}

	characters, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	if query.Query != "" || len(tagIDs) > 0 {
		characters = aggregate.FilterCharacters(characters, query.Query, tagIDs)
	}
	return dto.NewCharacterResponses(sortCharacters(characters, query.Sort)), nil
}

func sortCharacters(characters []*entity.Character, sort string) []*entity.Character {
	switch sort {
	case dto.SortLikesAsc:
		return aggregate.SortByLikes(characters, aggregate.CharacterLikeTotal, true)
	case dto.SortLikesDesc:
		return aggregate.SortByLikes(characters, aggregate.CharacterLikeTotal, false)
	default:
		return characters
	}
}

func (s *characterService) GetCharacter(ctx context.Context, id uuid.UUID) (*dto.CharacterResponse, error) {
	character, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	res := dto.NewCharacterResponse(character)
	return &res, nil
}

func (s *characterService) SearchCharacters(ctx context.Context, query dto.ListCharactersQuery) ([]dto.CharacterResponse, error) {
	if err := validator.Struct(query); err != nil {
		return nil, err
	}
	tagIDs, err := validator.ParseIDs("tags", query.Tags)
	if err != nil {
		return nil, err
	}

	if s.index != nil && query.Query != "" {
		characters, err := s.searchIndex(ctx, query.Query, tagIDs)
		if err == nil {
			return dto.NewCharacterResponses(sortCharacters(characters, query.Sort)), nil
		}
		logrus.WithError(err).Warn("character index search failed, filtering in process")
	}

	characters, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	characters = aggregate.FilterCharacters(characters, query.Query, tagIDs)
	return dto.NewCharacterResponses(sortCharacters(characters, query.Sort)), nil
}

// searchIndex loads index hits in relevance order. Hits for characters that no
// longer exist are dropped.
func (s *characterService) searchIndex(ctx context.Context, query string, tagIDs []uuid.UUID) ([]*entity.Character, error) {
	ids, err := s.index.SearchCharacters(ctx, query, tagIDs, searchLimit)
	if err != nil {
		return nil, err
	}

	found, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	byID := make(map[uuid.UUID]*entity.Character, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	characters := make([]*entity.Character, 0, len(ids))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			characters = append(characters, c)
		}
	}
	return characters, nil
}

func (s *characterService) CreateCharacter(ctx context.Context, authorID uuid.UUID, req dto.CreateCharacterRequest) (*commonDto.IDResponse, error) {
	if authorID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	req.Name = validator.Sanitize(req.Name)
	req.Description = validator.Sanitize(req.Description)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	tagIDs, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return nil, err
	}

	character := &entity.Character{
		Name:        req.Name,
		Description: optional(req.Description),
		AuthorID:    authorID,
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, character); err != nil {
			return err
		}
		return s.repo.ReplaceTags(ctx, character.ID, tagIDs)
	})
	if err != nil {
		return nil, err
	}

	s.reindex(ctx, "character.create", character.ID)

	return &commonDto.IDResponse{ID: character.ID}, nil
}

func (s *characterService) UpdateCharacter(ctx context.Context, authorID uuid.UUID, req dto.UpdateCharacterRequest) (*dto.CharacterResponse, error) {
	req.Name = validator.Sanitize(req.Name)
	req.Description = validator.Sanitize(req.Description)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	character, err := s.loadOwned(ctx, authorID, req.CharacterID)
	if err != nil {
		return nil, err
	}

	tagIDs, err := s.resolveTags(ctx, req.Tags)
	if err != nil {
		return nil, err
	}

	character.Name = req.Name
	character.Description = optional(req.Description)

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.Update(ctx, character); err != nil {
			return err
		}
		return s.repo.ReplaceTags(ctx, character.ID, tagIDs)
	})
	if err != nil {
		return nil, err
	}

	if !sameIDs(character.TagIDs(), tagIDs) {
		s.invalidateLikeTotals(ctx, "character.update", character.ID)
	}
	s.reindex(ctx, "character.update", character.ID)

	return s.GetCharacter(ctx, character.ID)
}

func (s *characterService) DeleteCharacter(ctx context.Context, authorID uuid.UUID, req dto.CharacterIDRequest) (*commonDto.IDResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	character, err := s.loadOwned(ctx, authorID, req.CharacterID)
	if err != nil {
		return nil, err
	}

	// Tag links and gallery rows go with the character; media and tags themselves stay.
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.repo.Delete(ctx, character.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateLikeTotals(ctx, "character.delete", character.ID)
	if s.index != nil {
		if err := s.index.DeleteCharacter(ctx, character.ID); err != nil {
			logger.PartialConsistency("character.delete", err, logrus.Fields{"character_id": character.ID})
		}
	}

	return &commonDto.IDResponse{ID: character.ID}, nil
}

// SetCover makes mediaId the cover. The previous cover moves into the
// gallery and the new cover leaves it, so a media item is never both.
func (s *characterService) SetCover(ctx context.Context, authorID uuid.UUID, req dto.CharacterMediaRequest) (*dto.CharacterResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	character, err := s.loadOwned(ctx, authorID, req.CharacterID)
	if err != nil {
		return nil, err
	}

	media, err := s.findMedia(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}

	if !character.IsCover(media.ID) {
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if character.CoverID != nil {
				if _, err := s.repo.AddMedia(ctx, character.ID, []uuid.UUID{*character.CoverID}); err != nil {
					return err
				}
			}
			if err := s.repo.RemoveMedia(ctx, character.ID, media.ID); err != nil {
				return err
			}
			return s.repo.SetCover(ctx, character.ID, &media.ID)
		})
		if err != nil {
			return nil, err
		}

		s.invalidateLikeTotals(ctx, "character.setMain", character.ID)
	}

	return s.GetCharacter(ctx, character.ID)
}

// RemoveMedia drops a gallery item. The cover is untouched.
func (s *characterService) RemoveMedia(ctx context.Context, authorID uuid.UUID, req dto.CharacterMediaRequest) (*dto.CharacterResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	character, err := s.loadOwned(ctx, authorID, req.CharacterID)
	if err != nil {
		return nil, err
	}

	mediaID, err := validator.ParseID("mediaId", req.MediaID)
	if err != nil {
		return nil, err
	}

	if slices.Contains(character.MediaIDs(), mediaID) {
		if err := s.repo.RemoveMedia(ctx, character.ID, mediaID); err != nil {
			return nil, err
		}
		s.invalidateLikeTotals(ctx, "character.removeMedia", character.ID)
	}

	return s.GetCharacter(ctx, character.ID)
}

// loadOwned fetches the character and checks that authorID wrote it.
func (s *characterService) loadOwned(ctx context.Context, authorID uuid.UUID, rawID string) (*entity.Character, error) {
	if authorID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	id, err := validator.ParseID("characterId", rawID)
	if err != nil {
		return nil, err
	}

	character, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	if character.AuthorID != authorID {
		return nil, fmt.Errorf("only the author can change this character: %w", apperror.ErrForbidden)
	}
	return character, nil
}

func (s *characterService) findMedia(ctx context.Context, rawID string) (*entity.Media, error) {
	id, err := validator.ParseID("mediaId", rawID)
	if err != nil {
		return nil, err
	}

	media, err := s.mediaRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("media not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return media, nil
}

// resolveTags parses the requested tag ids and checks that each one exists.
func (s *characterService) resolveTags(ctx context.Context, raw []string) ([]uuid.UUID, error) {
	ids, err := validator.ParseIDs("tags", raw)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}

	tags, err := s.tagRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(tags) != len(ids) {
		return nil, apperror.NewValidation(apperror.FieldError{Field: "tags", Message: "contains an unknown tag"})
	}
	return ids, nil
}

func (s *characterService) reindex(ctx context.Context, op string, id uuid.UUID) {
	if s.index == nil {
		return
	}

	character, err := s.repo.FindByID(ctx, id)
	if err == nil {
		err = s.index.IndexCharacter(ctx, character)
	}
	if err != nil {
		logger.PartialConsistency(op, err, logrus.Fields{"character_id": id})
	}
}

func (s *characterService) invalidateLikeTotals(ctx context.Context, op string, id uuid.UUID) {
	if err := s.likeTotals.Invalidate(ctx); err != nil {
		logger.PartialConsistency(op, err, logrus.Fields{"character_id": id})
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sameIDs(a, b []uuid.UUID) bool {
	return len(slice.Difference(a, b)) == 0 && len(slice.Difference(b, a)) == 0
}
