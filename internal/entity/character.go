package entity

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Character struct {
	ID          uuid.UUID        `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string           `gorm:"size:18;not null" json:"name"`
	Description *string          `gorm:"size:140" json:"description"`
	AuthorID    uuid.UUID        `gorm:"type:uuid;index;not null" json:"authorId"`
	Author      *User            `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	CoverID     *uuid.UUID       `gorm:"type:uuid;index" json:"coverId"`
	Cover       *Media           `gorm:"foreignKey:CoverID;constraint:OnDelete:SET NULL" json:"-"`
	TagLinks    []CharacterTag   `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE" json:"-"`
	MediaLinks  []CharacterMedia `gorm:"foreignKey:CharacterID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (c *Character) BeforeCreate(tx *gorm.DB) (err error) {
	if c.ID == uuid.Nil {
		c.ID, err = uuid.NewV7()
	}
	return
}

func (c *Character) sortedTagLinks() []CharacterTag {
	links := append([]CharacterTag(nil), c.TagLinks...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].Position < links[j].Position })
	return links
}

// TagIDs returns the character's tags in the order they were given.
func (c *Character) TagIDs() []uuid.UUID {
	links := c.sortedTagLinks()
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.TagID)
	}
	return ids
}

// Tags returns the loaded tags in tag order. Links whose tag was not loaded are skipped.
func (c *Character) Tags() []*Tag {
	links := c.sortedTagLinks()
	tags := make([]*Tag, 0, len(links))
	for _, l := range links {
		if l.Tag != nil {
			tags = append(tags, l.Tag)
		}
	}
	return tags
}

func (c *Character) HasTag(id uuid.UUID) bool {
	for _, l := range c.TagLinks {
		if l.TagID == id {
			return true
		}
	}
	return false
}

func (c *Character) sortedMediaLinks() []CharacterMedia {
	links := append([]CharacterMedia(nil), c.MediaLinks...)
	sort.SliceStable(links, func(i, j int) bool { return links[i].AddedAt.Before(links[j].AddedAt) })
	return links
}

// MediaIDs returns the gallery (cover excluded) in the order media was added.
func (c *Character) MediaIDs() []uuid.UUID {
	links := c.sortedMediaLinks()
	ids := make([]uuid.UUID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.MediaID)
	}
	return ids
}

// GalleryMedia returns the loaded gallery media, cover excluded.
func (c *Character) GalleryMedia() []*Media {
	links := c.sortedMediaLinks()
	media := make([]*Media, 0, len(links))
	for _, l := range links {
		if l.Media != nil {
			media = append(media, l.Media)
		}
	}
	return media
}

// IsCover reports whether id is the character's cover.
func (c *Character) IsCover(id uuid.UUID) bool {
	return c.CoverID != nil && *c.CoverID == id
}

// HasMedia reports whether id is attached to the character as cover or gallery item.
func (c *Character) HasMedia(id uuid.UUID) bool {
	if c.IsCover(id) {
		return true
	}
	for _, l := range c.MediaLinks {
		if l.MediaID == id {
			return true
		}
	}
	return false
}

// CharacterTag links a character to a tag. Position keeps the character's tag order.
type CharacterTag struct {
	CharacterID uuid.UUID `gorm:"type:uuid;primaryKey"`
	TagID       uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Tag         *Tag      `gorm:"foreignKey:TagID;constraint:OnDelete:CASCADE"`
	Position    int       `gorm:"not null;default:0"`
}

// CharacterMedia is one gallery entry. A character's cover never has a row here.
type CharacterMedia struct {
	CharacterID uuid.UUID `gorm:"type:uuid;primaryKey"`
	MediaID     uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	Media       *Media    `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE"`
	AddedAt     time.Time `gorm:"not null"`
}

func (CharacterTag) TableName() string { return "character_tags" }

func (CharacterMedia) TableName() string { return "character_media" }
