package tag

import (
	"context"
	"errors"
	"fmt"

	"anoa.com/mediagallery/internal/aggregate"
	"anoa.com/mediagallery/internal/entity"
	characterRepo "anoa.com/mediagallery/internal/modules/character/repository"
	mediaRepo "anoa.com/mediagallery/internal/modules/media/repository"
	search "anoa.com/mediagallery/internal/modules/search/service"
	"anoa.com/mediagallery/internal/modules/tag/dto"
	"anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/cache"
	"anoa.com/mediagallery/pkg/database"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"anoa.com/mediagallery/pkg/logger"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

type TagService interface {
	GetAllTags(ctx context.Context) ([]dto.TagResponse, error)
	GetTag(ctx context.Context, id uuid.UUID) (*dto.TagResponse, error)
	GetTagMedia(ctx context.Context, id uuid.UUID) ([]commonDto.MediaResponse, error)
	CreateTag(ctx context.Context, authorID uuid.UUID, req dto.CreateTagRequest) (*commonDto.IDResponse, error)
	UpdateTag(ctx context.Context, authorID uuid.UUID, req dto.UpdateTagRequest) (*dto.TagResponse, error)
	DeleteTag(ctx context.Context, authorID uuid.UUID, req dto.TagIDRequest) (*commonDto.IDResponse, error)
	SetCover(ctx context.Context, authorID uuid.UUID, req dto.TagMediaRequest) (*dto.TagResponse, error)
}

type tagService struct {
	tx            database.Transactor
	repo          repository.TagRepository
	characterRepo characterRepo.CharacterRepository
	mediaRepo     mediaRepo.MediaRepository
	index         search.CharacterIndex
	likeTotals    *cache.LikeTotals
}

func NewTagService(
	tx database.Transactor,
	repo repository.TagRepository,
	characterRepo characterRepo.CharacterRepository,
	mediaRepo mediaRepo.MediaRepository,
	index search.CharacterIndex,
	likeTotals *cache.LikeTotals,
) TagService {
	return &tagService{
		tx:            tx,
		repo:          repo,
		characterRepo: characterRepo,
		mediaRepo:     mediaRepo,
		index:         index,
		likeTotals:    likeTotals,
	}
}

// GetAllTags is the one listing that embeds aggregation: each tag carries its
// like total across the union of its characters' media.
func (s *tagService) GetAllTags(ctx context.Context) ([]dto.TagResponse, error) {
	tags, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	totals, err := s.tagLikeTotals(ctx, tags)
	if err != nil {
		return nil, err
	}

	res := make([]dto.TagResponse, 0, len(tags))
	for _, t := range tags {
		res = append(res, dto.NewTagResponse(t, totals[t.ID], aggregate.TagUsageRatio(t, tags)))
	}
	return res, nil
}

// tagLikeTotals serves totals from the cache when it covers every tag and
// recomputes them otherwise.
func (s *tagService) tagLikeTotals(ctx context.Context, tags []*entity.Tag) (map[uuid.UUID]int, error) {
	cached, ok, err := s.likeTotals.Get(ctx)
	if err != nil {
		logrus.WithError(err).Warn("tag like totals cache unavailable")
	}
	if ok && coversAll(cached, tags) {
		return cached, nil
	}

	version, versionErr := s.likeTotals.Version(ctx)

	characters, err := s.characterRepo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	totals := aggregate.TagLikeTotals(tags, characters)
	if versionErr != nil {
		logrus.WithError(versionErr).Warn("tag like totals cache unavailable")
		return totals, nil
	}

	switch err := s.likeTotals.Set(ctx, version, totals); {
	case errors.Is(err, cache.ErrStale):
		logrus.Debug("tag like totals changed while computing, not caching")
	case err != nil:
		logrus.WithError(err).Warn("failed to cache tag like totals")
	}
	return totals, nil
}

func coversAll(totals map[uuid.UUID]int, tags []*entity.Tag) bool {
	for _, t := range tags {
		if _, ok := totals[t.ID]; !ok {
			return false
		}
	}
	return true
}

func (s *tagService) GetTag(ctx context.Context, id uuid.UUID) (*dto.TagResponse, error) {
	tag, err := s.findTag(ctx, id)
	if err != nil {
		return nil, err
	}

	characters, err := s.characterRepo.FindByTag(ctx, tag.ID)
	if err != nil {
		return nil, err
	}

	all, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	res := dto.NewTagResponse(tag, aggregate.TagLikeTotal(tag.ID, characters), aggregate.TagUsageRatio(tag, all))
	return &res, nil
}

func (s *tagService) GetTagMedia(ctx context.Context, id uuid.UUID) ([]commonDto.MediaResponse, error) {
	tag, err := s.findTag(ctx, id)
	if err != nil {
		return nil, err
	}

	characters, err := s.characterRepo.FindByTag(ctx, tag.ID)
	if err != nil {
		return nil, err
	}

	return commonDto.NewMediaResponses(aggregate.TagMedia(tag, characters), nil), nil
}

func (s *tagService) CreateTag(ctx context.Context, authorID uuid.UUID, req dto.CreateTagRequest) (*commonDto.IDResponse, error) {
	if authorID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	req.Name = validator.Sanitize(req.Name)
	req.Description = validator.Sanitize(req.Description)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	tag := &entity.Tag{
		Name:        req.Name,
		Description: req.Description,
		AuthorID:    authorID,
	}
	if err := s.repo.Create(ctx, tag); err != nil {
		return nil, err
	}

	return &commonDto.IDResponse{ID: tag.ID}, nil
}

func (s *tagService) UpdateTag(ctx context.Context, authorID uuid.UUID, req dto.UpdateTagRequest) (*dto.TagResponse, error) {
	req.Name = validator.Sanitize(req.Name)
	req.Description = validator.Sanitize(req.Description)
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	tag, err := s.loadOwned(ctx, authorID, req.TagID)
	if err != nil {
		return nil, err
	}

	renamed := tag.Name != req.Name
	tag.Name = req.Name
	tag.Description = req.Description

	if err := s.repo.Update(ctx, tag); err != nil {
		return nil, err
	}

	// Character documents carry tag names.
	if renamed {
		s.reindexCharacters(ctx, "tag.update", tag.CharacterIDs())
	}

	return s.GetTag(ctx, tag.ID)
}

// DeleteTag unlinks the tag from every character before removing it.
func (s *tagService) DeleteTag(ctx context.Context, authorID uuid.UUID, req dto.TagIDRequest) (*commonDto.IDResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	tag, err := s.loadOwned(ctx, authorID, req.TagID)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.characterRepo.RemoveTagEverywhere(ctx, tag.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, tag.ID)
	})
	if err != nil {
		return nil, err
	}

	if err := s.likeTotals.Invalidate(ctx); err != nil {
		logger.PartialConsistency("tag.delete", err, logrus.Fields{"tag_id": tag.ID})
	}
	s.reindexCharacters(ctx, "tag.delete", tag.CharacterIDs())

	return &commonDto.IDResponse{ID: tag.ID}, nil
}

func (s *tagService) SetCover(ctx context.Context, authorID uuid.UUID, req dto.TagMediaRequest) (*dto.TagResponse, error) {
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	tag, err := s.loadOwned(ctx, authorID, req.TagID)
	if err != nil {
		return nil, err
	}

	mediaID, err := validator.ParseID("mediaId", req.MediaID)
	if err != nil {
		return nil, err
	}
	if _, err := s.mediaRepo.FindByID(ctx, mediaID); err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("media not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	if err := s.repo.SetCover(ctx, tag.ID, &mediaID); err != nil {
		return nil, err
	}

	return s.GetTag(ctx, tag.ID)
}

func (s *tagService) findTag(ctx context.Context, id uuid.UUID) (*entity.Tag, error) {
	tag, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("tag not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return tag, nil
}

func (s *tagService) loadOwned(ctx context.Context, authorID uuid.UUID, rawID string) (*entity.Tag, error) {
	if authorID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	id, err := validator.ParseID("tagId", rawID)
	if err != nil {
		return nil, err
	}

	tag, err := s.findTag(ctx, id)
	if err != nil {
		return nil, err
	}

	if tag.AuthorID != authorID {
		return nil, fmt.Errorf("only the author can change this tag: %w", apperror.ErrForbidden)
	}
	return tag, nil
}

func (s *tagService) reindexCharacters(ctx context.Context, op string, ids []uuid.UUID) {
	if s.index == nil || len(ids) == 0 {
		return
	}

	characters, err := s.characterRepo.FindByIDs(ctx, ids)
	if err != nil {
		logger.PartialConsistency(op, err, logrus.Fields{"character_ids": ids})
		return
	}
	for _, c := range characters {
		if err := s.index.IndexCharacter(ctx, c); err != nil {
			logger.PartialConsistency(op, err, logrus.Fields{"character_id": c.ID})
		}
	}
}
