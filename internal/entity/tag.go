package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Tag struct {
	ID             uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Name           string         `gorm:"size:18;not null" json:"name"`
	Description    string         `gorm:"size:140" json:"description"`
	AuthorID       uuid.UUID      `gorm:"type:uuid;index;not null" json:"authorId"`
	Author         *User          `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CoverID        *uuid.UUID     `gorm:"type:uuid;index" json:"coverId"`
	Cover          *Media         `gorm:"foreignKey:CoverID;constraint:OnDelete:SET NULL" json:"-"`
	CharacterLinks []CharacterTag `gorm:"foreignKey:TagID" json:"-"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (t *Tag) BeforeCreate(tx *gorm.DB) (err error) {
	if t.ID == uuid.Nil {
		t.ID, err = uuid.NewV7()
	}
	return
}

// CharacterIDs is the inverse of Character.TagIDs, read from the same link rows.
func (t *Tag) CharacterIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(t.CharacterLinks))
	for _, l := range t.CharacterLinks {
		ids = append(ids, l.CharacterID)
	}
	return ids
}

func (t *Tag) CharacterCount() int {
	return len(t.CharacterLinks)
}

// AutoMigrateModels lists every table in dependency order.
func AutoMigrateModels() []any {
	return []any{
		&User{},
		&Media{},
		&MediaLike{},
		&Tag{},
		&Character{},
		&CharacterTag{},
		&CharacterMedia{},
	}
}
