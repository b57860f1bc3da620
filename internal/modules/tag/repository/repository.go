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

type TagRepository interface {
	Create(ctx context.Context, tag *entity.Tag) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Tag, error)
	FindAll(ctx context.Context) ([]*entity.Tag, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Tag, error)
	FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Tag, error)
	Update(ctx context.Context, tag *entity.Tag) error
	SetCover(ctx context.Context, tagID uuid.UUID, mediaID *uuid.UUID) error
	// ClearCoverEverywhere unsets the cover of every tag pointing at mediaID.
	ClearCoverEverywhere(ctx context.Context, mediaID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type tagRepository struct {
	db *gorm.DB
}

func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Cover.Likes").
		Preload("CharacterLinks")
}

func (r *tagRepository) Create(ctx context.Context, tag *entity.Tag) error {
	return database.Conn(ctx, r.db).Omit(clause.Associations).Create(tag).Error
}

func (r *tagRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Tag, error) {
	var tag entity.Tag
	if err := withRelations(database.Conn(ctx, r.db)).First(&tag, "id = ?", id).Error; err != nil {
		return nil, database.NotFound(err)
	}
	return &tag, nil
}

func (r *tagRepository) FindAll(ctx context.Context) ([]*entity.Tag, error) {
	var tags []*entity.Tag
	if err := withRelations(database.Conn(ctx, r.db)).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Tag, error) {
	var tags []*entity.Tag
	if len(ids) == 0 {
		return tags, nil
	}
	if err := withRelations(database.Conn(ctx, r.db)).Where("id IN ?", ids).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Tag, error) {
	var tags []*entity.Tag
	if err := withRelations(database.Conn(ctx, r.db)).Where("author_id = ?", authorID).Order("name ASC").Find(&tags).Error; err != nil {
		return nil, err
	}
	return tags, nil
}

func (r *tagRepository) Update(ctx context.Context, tag *entity.Tag) error {
	return database.Conn(ctx, r.db).
		Model(&entity.Tag{}).
		Where("id = ?", tag.ID).
		Updates(map[string]any{
			"name":        tag.Name,
			"description": tag.Description,
			"updated_at":  time.Now(),
		}).Error
}

func (r *tagRepository) SetCover(ctx context.Context, tagID uuid.UUID, mediaID *uuid.UUID) error {
	return database.Conn(ctx, r.db).
		Model(&entity.Tag{}).
		Where("id = ?", tagID).
		Update("cover_id", mediaID).Error
}

func (r *tagRepository) ClearCoverEverywhere(ctx context.Context, mediaID uuid.UUID) error {
	return database.Conn(ctx, r.db).
		Model(&entity.Tag{}).
		Where("cover_id = ?", mediaID).
		Update("cover_id", nil).Error
}

func (r *tagRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res := database.Conn(ctx, r.db).Delete(&entity.Tag{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.NotFound(gorm.ErrRecordNotFound)
	}
	return nil
}
