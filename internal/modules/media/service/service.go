package media

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"anoa.com/mediagallery/internal/entity"
	characterRepo "anoa.com/mediagallery/internal/modules/character/repository"
	"anoa.com/mediagallery/internal/modules/media/dto"
	"anoa.com/mediagallery/internal/modules/media/repository"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/cache"
	"anoa.com/mediagallery/pkg/database"
	commonDto "anoa.com/mediagallery/pkg/dto"
	"anoa.com/mediagallery/pkg/logger"
	"anoa.com/mediagallery/pkg/ratelimiter"
	"anoa.com/mediagallery/pkg/slice"
	"anoa.com/mediagallery/pkg/storage"
	"anoa.com/mediagallery/pkg/validator"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// uploadAction names the rate-limit window that guards creating media records.
const uploadAction = "media.upload"

type MediaService interface {
	GetAllMedia(ctx context.Context) ([]commonDto.MediaResponse, error)
	ToggleLike(ctx context.Context, userID uuid.UUID, req dto.MediaIDRequest) (*commonDto.MediaResponse, error)
	DeleteMedia(ctx context.Context, userID uuid.UUID, req dto.MediaIDRequest) (*commonDto.MediaResponse, error)
	AssignMedia(ctx context.Context, userID uuid.UUID, req dto.AssignMediaRequest) (*dto.AssignMediaResponse, error)
	AllocateMedia(ctx context.Context, userID uuid.UUID, req dto.AllocateMediaRequest) (*dto.AllocateMediaResponse, error)
	UploadMedia(ctx context.Context, userID uuid.UUID, req dto.UploadMediaRequest, files []*multipart.FileHeader) (*dto.UploadMediaResponse, error)
	CleanupStaleUploads(ctx context.Context, cutoff time.Time) (int, error)
}

type mediaService struct {
	tx            database.Transactor
	repo          repository.MediaRepository
	characterRepo characterRepo.CharacterRepository
	tagRepo       tagRepo.TagRepository
	storage       storage.MediaStorage
	limiter       *ratelimiter.Limiter
	likeTotals    *cache.LikeTotals
	uploadWindow  time.Duration
}

func NewMediaService(
	tx database.Transactor,
	repo repository.MediaRepository,
	characterRepo characterRepo.CharacterRepository,
	tagRepo tagRepo.TagRepository,
	storage storage.MediaStorage,
	limiter *ratelimiter.Limiter,
	likeTotals *cache.LikeTotals,
	uploadWindow time.Duration,
) MediaService {
	return &mediaService{
		tx:            tx,
		repo:          repo,
		characterRepo: characterRepo,
		tagRepo:       tagRepo,
		storage:       storage,
		limiter:       limiter,
		likeTotals:    likeTotals,
		uploadWindow:  uploadWindow,
	}
}

func (s *mediaService) GetAllMedia(ctx context.Context) ([]commonDto.MediaResponse, error) {
	media, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return s.responses(ctx, media)
}

func (s *mediaService) responses(ctx context.Context, media []*entity.Media) ([]commonDto.MediaResponse, error) {
	ids := make([]uuid.UUID, 0, len(media))
	for _, m := range media {
		ids = append(ids, m.ID)
	}

	characterIDs, err := s.repo.CharacterIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	return commonDto.NewMediaResponses(media, characterIDs), nil
}

func (s *mediaService) response(ctx context.Context, m *entity.Media) (*commonDto.MediaResponse, error) {
	res, err := s.responses(ctx, []*entity.Media{m})
	if err != nil {
		return nil, err
	}
	return &res[0], nil
}

// ToggleLike flips the caller's like on a media item.
func (s *mediaService) ToggleLike(ctx context.Context, userID uuid.UUID, req dto.MediaIDRequest) (*commonDto.MediaResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	media, err := s.findMedia(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}

	liked, err := s.repo.ToggleLike(ctx, media.ID, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("media not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"media_id": media.ID, "user_id": userID, "liked": liked}).Debug("media like toggled")
	s.invalidateLikeTotals(ctx, "media.update", media.ID)

	updated, err := s.repo.FindByID(ctx, media.ID)
	if err != nil {
		return nil, err
	}
	return s.response(ctx, updated)
}

// DeleteMedia removes an item the caller uploaded. Every cover and gallery
// reference goes in the same transaction; the stored bytes go after commit.
func (s *mediaService) DeleteMedia(ctx context.Context, userID uuid.UUID, req dto.MediaIDRequest) (*commonDto.MediaResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}

	media, err := s.findMedia(ctx, req.MediaID)
	if err != nil {
		return nil, err
	}
	if media.AuthorID != userID {
		return nil, fmt.Errorf("only the uploader can delete this media: %w", apperror.ErrForbidden)
	}

	res, err := s.response(ctx, media)
	if err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.characterRepo.DetachMediaEverywhere(ctx, media.ID); err != nil {
			return err
		}
		if err := s.tagRepo.ClearCoverEverywhere(ctx, media.ID); err != nil {
			return err
		}
		return s.repo.Delete(ctx, media.ID)
	})
	if err != nil {
		return nil, err
	}

	s.invalidateLikeTotals(ctx, "media.delete", media.ID)
	if media.URL != "" {
		if err := s.storage.Delete(ctx, media.StorageKey(), media.Mimetype); err != nil {
			logger.PartialConsistency("media.delete", err, logrus.Fields{"media_id": media.ID, "key": media.StorageKey()})
		}
	}

	return res, nil
}

// AssignMedia adds every media item to every target character's gallery.
// Items already held as cover or gallery entry are skipped, so repeating a
// call changes nothing. It returns the characters that gained media.
func (s *mediaService) AssignMedia(ctx context.Context, userID uuid.UUID, req dto.AssignMediaRequest) (*dto.AssignMediaResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	mediaIDs, err := validator.ParseIDs("mediaIds", req.MediaIDs)
	if err != nil {
		return nil, err
	}
	characterIDs, err := validator.ParseIDs("characterIds", req.CharacterIDs)
	if err != nil {
		return nil, err
	}

	characters, err := s.characterRepo.FindByIDs(ctx, characterIDs)
	if err != nil {
		return nil, err
	}
	if len(characters) != len(characterIDs) {
		return nil, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
	}
	for _, c := range characters {
		if c.AuthorID != userID {
			return nil, fmt.Errorf("only the author can add media to %q: %w", c.Name, apperror.ErrForbidden)
		}
	}

	media, err := s.repo.FindByIDs(ctx, mediaIDs)
	if err != nil {
		return nil, err
	}
	if len(media) != len(mediaIDs) {
		return nil, fmt.Errorf("media not found: %w", apperror.ErrNotFound)
	}

	affected := make([]uuid.UUID, 0, len(characters))
	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, c := range characters {
			toAdd := make([]uuid.UUID, 0, len(mediaIDs))
			for _, id := range mediaIDs {
				if !c.IsCover(id) && !c.HasMedia(id) {
					toAdd = append(toAdd, id)
				}
			}
			if len(toAdd) == 0 {
				continue
			}

			added, err := s.characterRepo.AddMedia(ctx, c.ID, toAdd)
			if err != nil {
				return err
			}
			if added > 0 {
				affected = append(affected, c.ID)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(affected) > 0 {
		s.invalidateLikeTotals(ctx, "media.assign", uuid.Nil)
	}
	return &dto.AssignMediaResponse{CharacterIDs: affected}, nil
}

// AllocateMedia creates media records for files about to be uploaded and puts
// them in the target character's gallery. Ids are returned keyed by the
// client's correlation token. Allocation shares the per-user creation window
// with uploads that allocate on the fly.
func (s *mediaService) AllocateMedia(ctx context.Context, userID uuid.UUID, req dto.AllocateMediaRequest) (*dto.AllocateMediaResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if err := validator.Struct(req); err != nil {
		return nil, err
	}

	character, err := s.loadOwnedCharacter(ctx, userID, req.CharacterID)
	if err != nil {
		return nil, err
	}

	tokens := make(map[string]struct{}, len(req.Files))
	media := make([]*entity.Media, 0, len(req.Files))
	for i, f := range req.Files {
		if _, dup := tokens[f.UUID]; dup {
			return nil, apperror.NewValidation(apperror.FieldError{Field: fmt.Sprintf("files[%d].uuid", i), Message: "must be unique"})
		}
		tokens[f.UUID] = struct{}{}

		if _, err := storage.ResourceType(f.Mimetype); err != nil {
			return nil, apperror.NewValidation(apperror.FieldError{Field: fmt.Sprintf("files[%d].mimetype", i), Message: "must be an image or video type"})
		}

		media = append(media, &entity.Media{
			FileName:      validator.Sanitize(f.FileName),
			FileExtension: normalizeExtension(f.FileExtension),
			Mimetype:      f.Mimetype,
			AuthorID:      userID,
		})
	}

	if err := s.claimCreateWindow(ctx, userID); err != nil {
		return nil, err
	}

	err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repo.CreateBatch(ctx, media); err != nil {
			return err
		}

		ids := make([]uuid.UUID, 0, len(media))
		for _, m := range media {
			ids = append(ids, m.ID)
		}
		_, err := s.characterRepo.AddMedia(ctx, character.ID, ids)
		return err
	})
	if err != nil {
		s.releaseCreateWindow(ctx, userID)
		return nil, err
	}

	res := &dto.AllocateMediaResponse{IDs: make(map[string]uuid.UUID, len(media))}
	for i, f := range req.Files {
		res.IDs[f.UUID] = media[i].ID
	}
	return res, nil
}

// UploadMedia pushes each file's bytes to storage under
// "{mediaId}.{fileExtension}". With req.MediaIDs the files fill media
// allocated earlier, in order; otherwise records are allocated for them in
// req.CharacterID first. Files that fail to upload keep an empty url until
// CleanupStaleUploads removes them.
func (s *mediaService) UploadMedia(ctx context.Context, userID uuid.UUID, req dto.UploadMediaRequest, files []*multipart.FileHeader) (*dto.UploadMediaResponse, error) {
	if userID == uuid.Nil {
		return nil, apperror.ErrUnauthorized
	}
	if len(files) == 0 {
		return nil, apperror.NewValidation(apperror.FieldError{Field: "files", Message: "is required"})
	}

	var (
		targets []*entity.Media
		err     error
	)
	if len(req.MediaIDs) > 0 {
		targets, err = s.loadPending(ctx, userID, req.MediaIDs, len(files))
	} else {
		targets, err = s.allocateFor(ctx, userID, req.CharacterID, files)
	}
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(files))
	var uploadErrs []error
	for i, fh := range files {
		m := targets[i]
		ids = append(ids, m.ID)

		if err := s.push(ctx, m, fh); err != nil {
			logger.PartialConsistency(uploadAction, err, logrus.Fields{"media_id": m.ID, "file": fh.Filename})
			uploadErrs = append(uploadErrs, fmt.Errorf("%s: %w", fh.Filename, err))
		}
	}
	if len(uploadErrs) > 0 {
		return nil, fmt.Errorf("failed to upload %d of %d files: %w", len(uploadErrs), len(files), errors.Join(uploadErrs...))
	}

	media, err := s.repo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	res, err := s.responses(ctx, media)
	if err != nil {
		return nil, err
	}
	return &dto.UploadMediaResponse{Media: res}, nil
}

func (s *mediaService) allocateFor(ctx context.Context, userID uuid.UUID, characterID string, files []*multipart.FileHeader) ([]*entity.Media, error) {
	req := dto.AllocateMediaRequest{CharacterID: characterID}
	for i, fh := range files {
		ext := filepath.Ext(fh.Filename)
		req.Files = append(req.Files, dto.FileDescriptor{
			UUID:          strconv.Itoa(i),
			FileName:      strings.TrimSuffix(fh.Filename, ext),
			FileExtension: ext,
			Mimetype:      detectMimetype(fh, ext),
		})
	}

	allocated, err := s.AllocateMedia(ctx, userID, req)
	if err != nil {
		return nil, err
	}

	media := make([]*entity.Media, len(req.Files))
	for i, f := range req.Files {
		media[i] = &entity.Media{
			ID:            allocated.IDs[f.UUID],
			FileExtension: normalizeExtension(f.FileExtension),
			Mimetype:      f.Mimetype,
		}
	}
	return media, nil
}

// loadPending resolves media allocated by userID that still wait for bytes.
func (s *mediaService) loadPending(ctx context.Context, userID uuid.UUID, rawIDs []string, files int) ([]*entity.Media, error) {
	if len(rawIDs) != files {
		return nil, apperror.NewValidation(apperror.FieldError{Field: "mediaIds", Message: "must match the number of files"})
	}
	ids, err := validator.ParseIDs("mediaIds", rawIDs)
	if err != nil {
		return nil, err
	}
	if len(slice.UniqueBy(ids, func(id uuid.UUID) uuid.UUID { return id })) != len(ids) {
		return nil, apperror.NewValidation(apperror.FieldError{Field: "mediaIds", Message: "must be unique"})
	}

	media := make([]*entity.Media, 0, len(ids))
	for _, id := range ids {
		m, err := s.repo.FindByID(ctx, id)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return nil, fmt.Errorf("media %s not found: %w", id, apperror.ErrNotFound)
			}
			return nil, err
		}
		if m.AuthorID != userID {
			return nil, fmt.Errorf("only the uploader can fill media %s: %w", id, apperror.ErrForbidden)
		}
		if m.URL != "" {
			return nil, fmt.Errorf("media %s is already uploaded: %w", id, apperror.ErrConflict)
		}
		media = append(media, m)
	}
	return media, nil
}

func (s *mediaService) claimCreateWindow(ctx context.Context, userID uuid.UUID) error {
	allowed, err := s.limiter.Allow(ctx, userID, uploadAction, s.uploadWindow)
	if err != nil {
		return err
	}
	if !allowed {
		ttl, _ := s.limiter.TTL(ctx, userID, uploadAction)
		return fmt.Errorf("%w: try again in %s", apperror.ErrRateLimitExceeded, ttl.Round(time.Second))
	}
	return nil
}

func (s *mediaService) releaseCreateWindow(ctx context.Context, userID uuid.UUID) {
	if err := s.limiter.Clear(ctx, userID, uploadAction); err != nil {
		logrus.WithError(err).Warn("failed to release upload rate limit")
	}
}

func (s *mediaService) push(ctx context.Context, m *entity.Media, fh *multipart.FileHeader) error {
	f, err := fh.Open()
	if err != nil {
		return err
	}
	defer f.Close()

	url, err := s.storage.Upload(ctx, f, m.StorageKey(), m.Mimetype)
	if err != nil {
		return err
	}
	return s.repo.UpdateURL(ctx, m.ID, url)
}

// CleanupStaleUploads deletes media allocated before cutoff whose bytes never
// arrived, together with their gallery and cover references.
func (s *mediaService) CleanupStaleUploads(ctx context.Context, cutoff time.Time) (int, error) {
	stale, err := s.repo.FindPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, m := range stale {
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			if err := s.characterRepo.DetachMediaEverywhere(ctx, m.ID); err != nil {
				return err
			}
			if err := s.tagRepo.ClearCoverEverywhere(ctx, m.ID); err != nil {
				return err
			}
			return s.repo.Delete(ctx, m.ID)
		})
		if err != nil {
			logrus.WithError(err).WithField("media_id", m.ID).Warn("failed to remove stale upload")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.invalidateLikeTotals(ctx, "media.cleanup", uuid.Nil)
	}
	return removed, nil
}

func (s *mediaService) findMedia(ctx context.Context, rawID string) (*entity.Media, error) {
	id, err := validator.ParseID("mediaId", rawID)
	if err != nil {
		return nil, err
	}

	media, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("media not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	return media, nil
}

func (s *mediaService) loadOwnedCharacter(ctx context.Context, userID uuid.UUID, rawID string) (*entity.Character, error) {
	id, err := validator.ParseID("characterId", rawID)
	if err != nil {
		return nil, err
	}

	character, err := s.characterRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, fmt.Errorf("character not found: %w", apperror.ErrNotFound)
		}
		return nil, err
	}
	if character.AuthorID != userID {
		return nil, fmt.Errorf("only the author can add media to this character: %w", apperror.ErrForbidden)
	}
	return character, nil
}

func (s *mediaService) invalidateLikeTotals(ctx context.Context, op string, mediaID uuid.UUID) {
	if err := s.likeTotals.Invalidate(ctx); err != nil {
		fields := logrus.Fields{}
		if mediaID != uuid.Nil {
			fields["media_id"] = mediaID
		}
		logger.PartialConsistency(op, err, fields)
	}
}

func normalizeExtension(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func detectMimetype(fh *multipart.FileHeader, ext string) string {
	ct := fh.Header.Get("Content-Type")
	if ct != "" && ct != "application/octet-stream" {
		return ct
	}
	if byExt := mime.TypeByExtension(strings.ToLower(ext)); byExt != "" {
		return strings.SplitN(byExt, ";", 2)[0]
	}
	return ct
}
