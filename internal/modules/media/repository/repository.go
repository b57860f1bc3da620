package repository

import (
	"context"
	"time"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/pkg/database"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type MediaRepository interface {
	CreateBatch(ctx context.Context, media []*entity.Media) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Media, error)
	FindAll(ctx context.Context) ([]*entity.Media, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Media, error)
	FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Media, error)
	FindLikedBy(ctx context.Context, userID uuid.UUID) ([]*entity.Media, error)
	// FindPendingBefore lists media allocated before cutoff whose bytes never reached storage.
	FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*entity.Media, error)
	UpdateURL(ctx context.Context, id uuid.UUID, url string) error
	Delete(ctx context.Context, id uuid.UUID) error
	// ToggleLike removes userID's like when present and adds it otherwise.
	// It reports whether the media is liked by userID afterwards.
	ToggleLike(ctx context.Context, mediaID, userID uuid.UUID) (bool, error)
	// CharacterIDs maps each media id to the characters holding it as cover or gallery item.
	CharacterIDs(ctx context.Context, mediaIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error)
}

type mediaRepository struct {
	db *gorm.DB
}

func NewMediaRepository(db *gorm.DB) MediaRepository {
	return &mediaRepository{db: db}
}

func withLikes(db *gorm.DB) *gorm.DB {
	return db.Preload("Likes", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	})
}

func (r *mediaRepository) CreateBatch(ctx context.Context, media []*entity.Media) error {
	if len(media) == 0 {
		return nil
	}
	return database.Conn(ctx, r.db).Create(media).Error
}

func (r *mediaRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Media, error) {
	var media entity.Media
	if err := withLikes(database.Conn(ctx, r.db)).First(&media, "id = ?", id).Error; err != nil {
		return nil, database.NotFound(err)
	}
	return &media, nil
}

func (r *mediaRepository) FindAll(ctx context.Context) ([]*entity.Media, error) {
	var media []*entity.Media
	if err := withLikes(database.Conn(ctx, r.db)).Order("created_at ASC").Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Media, error) {
	var media []*entity.Media
	if len(ids) == 0 {
		return media, nil
	}
	if err := withLikes(database.Conn(ctx, r.db)).Where("id IN ?", ids).Order("created_at ASC").Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepository) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Media, error) {
	var media []*entity.Media
	if err := withLikes(database.Conn(ctx, r.db)).Where("author_id = ?", authorID).Order("created_at ASC").Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepository) FindLikedBy(ctx context.Context, userID uuid.UUID) ([]*entity.Media, error) {
	var media []*entity.Media
	err := withLikes(database.Conn(ctx, r.db)).
		Joins("JOIN media_likes ON media_likes.media_id = media.id").
		Where("media_likes.user_id = ?", userID).
		Order("media_likes.created_at ASC").
		Find(&media).Error
	if err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepository) FindPendingBefore(ctx context.Context, cutoff time.Time) ([]*entity.Media, error) {
	var media []*entity.Media
	if err := database.Conn(ctx, r.db).Where("url = '' AND created_at < ?", cutoff).Order("created_at ASC").Find(&media).Error; err != nil {
		return nil, err
	}
	return media, nil
}

func (r *mediaRepository) UpdateURL(ctx context.Context, id uuid.UUID, url string) error {
	return database.Conn(ctx, r.db).Model(&entity.Media{}).Where("id = ?", id).Update("url", url).Error
}

func (r *mediaRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := database.Conn(ctx, r.db)
	if err := db.Where("media_id = ?", id).Delete(&entity.MediaLike{}).Error; err != nil {
		return err
	}

	res := db.Delete(&entity.Media{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.NotFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *mediaRepository) ToggleLike(ctx context.Context, mediaID, userID uuid.UUID) (bool, error) {
	db := database.Conn(ctx, r.db)

	res := db.Where("media_id = ? AND user_id = ?", mediaID, userID).Delete(&entity.MediaLike{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected > 0 {
		return false, nil
	}

	like := &entity.MediaLike{MediaID: mediaID, UserID: userID}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(like).Error; err != nil {
		return false, err
	}
	return true, nil
}

func (r *mediaRepository) CharacterIDs(ctx context.Context, mediaIDs []uuid.UUID) (map[uuid.UUID][]uuid.UUID, error) {
	result := make(map[uuid.UUID][]uuid.UUID, len(mediaIDs))
	if len(mediaIDs) == 0 {
		return result, nil
	}

	type pair struct {
		MediaID     uuid.UUID
		CharacterID uuid.UUID
	}
	var pairs []pair

	err := database.Conn(ctx, r.db).Raw(`
		SELECT cover_id AS media_id, id AS character_id, created_at AS at FROM characters WHERE cover_id IN ?
		UNION ALL
		SELECT media_id, character_id, added_at AS at FROM character_media WHERE media_id IN ?
		ORDER BY at ASC`, mediaIDs, mediaIDs).
		Scan(&pairs).Error
	if err != nil {
		return nil, err
	}

	for _, p := range pairs {
		result[p.MediaID] = append(result[p.MediaID], p.CharacterID)
	}
	return result, nil
}
