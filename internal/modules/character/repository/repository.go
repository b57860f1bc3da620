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

type CharacterRepository interface {
	Create(ctx context.Context, character *entity.Character) error
	FindByID(ctx context.Context, id uuid.UUID) (*entity.Character, error)
	FindAll(ctx context.Context) ([]*entity.Character, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Character, error)
	FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Character, error)
	FindByTag(ctx context.Context, tagID uuid.UUID) ([]*entity.Character, error)
	Update(ctx context.Context, character *entity.Character) error
	Delete(ctx context.Context, id uuid.UUID) error

	// ReplaceTags sets the character's tags to tagIDs, keeping their order.
	ReplaceTags(ctx context.Context, characterID uuid.UUID, tagIDs []uuid.UUID) error
	// RemoveTagEverywhere unlinks tagID from every character.
	RemoveTagEverywhere(ctx context.Context, tagID uuid.UUID) error

	SetCover(ctx context.Context, characterID uuid.UUID, mediaID *uuid.UUID) error
	// AddMedia appends media to the gallery, skipping entries already present.
	// It returns how many rows were added.
	AddMedia(ctx context.Context, characterID uuid.UUID, mediaIDs []uuid.UUID) (int64, error)
	RemoveMedia(ctx context.Context, characterID, mediaID uuid.UUID) error
	// DetachMediaEverywhere clears every cover pointing at mediaID and removes
	// it from every gallery.
	DetachMediaEverywhere(ctx context.Context, mediaID uuid.UUID) error
}

type characterRepository struct {
	db *gorm.DB
}

func NewCharacterRepository(db *gorm.DB) CharacterRepository {
	return &characterRepository{db: db}
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author").
		Preload("Cover.Likes").
		Preload("TagLinks", func(db *gorm.DB) *gorm.DB {
			return db.Order("position ASC")
		}).
		Preload("TagLinks.Tag").
		Preload("MediaLinks", func(db *gorm.DB) *gorm.DB {
			return db.Order("added_at ASC")
		}).
		Preload("MediaLinks.Media.Likes")
}

func (r *characterRepository) Create(ctx context.Context, character *entity.Character) error {
	return database.Conn(ctx, r.db).Omit(clause.Associations).Create(character).Error
}

func (r *characterRepository) FindByID(ctx context.Context, id uuid.UUID) (*entity.Character, error) {
	var character entity.Character
	if err := withRelations(database.Conn(ctx, r.db)).First(&character, "id = ?", id).Error; err != nil {
		return nil, database.NotFound(err)
	}
	return &character, nil
}

func (r *characterRepository) FindAll(ctx context.Context) ([]*entity.Character, error) {
	var characters []*entity.Character
	if err := withRelations(database.Conn(ctx, r.db)).Order("created_at ASC").Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *characterRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Character, error) {
	var characters []*entity.Character
	if len(ids) == 0 {
		return characters, nil
	}
	if err := withRelations(database.Conn(ctx, r.db)).Where("id IN ?", ids).Order("created_at ASC").Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *characterRepository) FindByAuthor(ctx context.Context, authorID uuid.UUID) ([]*entity.Character, error) {
	var characters []*entity.Character
	if err := withRelations(database.Conn(ctx, r.db)).Where("author_id = ?", authorID).Order("created_at ASC").Find(&characters).Error; err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *characterRepository) FindByTag(ctx context.Context, tagID uuid.UUID) ([]*entity.Character, error) {
	var characters []*entity.Character
	err := withRelations(database.Conn(ctx, r.db)).
		Where("id IN (?)", database.Conn(ctx, r.db).Model(&entity.CharacterTag{}).Select("character_id").Where("tag_id = ?", tagID)).
		Order("created_at ASC").
		Find(&characters).Error
	if err != nil {
		return nil, err
	}
	return characters, nil
}

func (r *characterRepository) Update(ctx context.Context, character *entity.Character) error {
	return database.Conn(ctx, r.db).
		Model(&entity.Character{}).
		Where("id = ?", character.ID).
		Updates(map[string]any{
			"name":        character.Name,
			"description": character.Description,
			"updated_at":  time.Now(),
		}).Error
}

func (r *characterRepository) Delete(ctx context.Context, id uuid.UUID) error {
	db := database.Conn(ctx, r.db)
	if err := db.Where("character_id = ?", id).Delete(&entity.CharacterTag{}).Error; err != nil {
		return err
	}
	if err := db.Where("character_id = ?", id).Delete(&entity.CharacterMedia{}).Error; err != nil {
		return err
	}

	res := db.Delete(&entity.Character{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return database.NotFound(gorm.ErrRecordNotFound)
	}
	return nil
}

func (r *characterRepository) ReplaceTags(ctx context.Context, characterID uuid.UUID, tagIDs []uuid.UUID) error {
	db := database.Conn(ctx, r.db)
	if err := db.Where("character_id = ?", characterID).Delete(&entity.CharacterTag{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}

	links := make([]entity.CharacterTag, 0, len(tagIDs))
	for i, id := range tagIDs {
		links = append(links, entity.CharacterTag{CharacterID: characterID, TagID: id, Position: i})
	}
	return db.Omit(clause.Associations).Create(&links).Error
}

func (r *characterRepository) RemoveTagEverywhere(ctx context.Context, tagID uuid.UUID) error {
	return database.Conn(ctx, r.db).Where("tag_id = ?", tagID).Delete(&entity.CharacterTag{}).Error
}

func (r *characterRepository) SetCover(ctx context.Context, characterID uuid.UUID, mediaID *uuid.UUID) error {
	return database.Conn(ctx, r.db).
		Model(&entity.Character{}).
		Where("id = ?", characterID).
		Update("cover_id", mediaID).Error
}

func (r *characterRepository) AddMedia(ctx context.Context, characterID uuid.UUID, mediaIDs []uuid.UUID) (int64, error) {
	if len(mediaIDs) == 0 {
		return 0, nil
	}

	now := time.Now()
	links := make([]entity.CharacterMedia, 0, len(mediaIDs))
	for i, id := range mediaIDs {
		links = append(links, entity.CharacterMedia{
			CharacterID: characterID,
			MediaID:     id,
			AddedAt:     now.Add(time.Duration(i) * time.Microsecond),
		})
	}

	res := database.Conn(ctx, r.db).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&links)
	return res.RowsAffected, res.Error
}

func (r *characterRepository) RemoveMedia(ctx context.Context, characterID, mediaID uuid.UUID) error {
	return database.Conn(ctx, r.db).
		Where("character_id = ? AND media_id = ?", characterID, mediaID).
		Delete(&entity.CharacterMedia{}).Error
}

func (r *characterRepository) DetachMediaEverywhere(ctx context.Context, mediaID uuid.UUID) error {
	db := database.Conn(ctx, r.db)
	if err := db.Model(&entity.Character{}).Where("cover_id = ?", mediaID).Update("cover_id", nil).Error; err != nil {
		return err
	}
	return db.Where("media_id = ?", mediaID).Delete(&entity.CharacterMedia{}).Error
}
