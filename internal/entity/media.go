package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Media struct {
	ID            uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	FileName      string      `gorm:"size:255;not null" json:"fileName"`
	FileExtension string      `gorm:"size:16;not null" json:"fileExtension"`
	Mimetype      string      `gorm:"size:100;not null" json:"mimetype"`
	URL           string      `gorm:"type:text" json:"url"`
	AuthorID      uuid.UUID   `gorm:"type:uuid;index;not null" json:"authorId"`
	Author        *User       `gorm:"foreignKey:AuthorID;constraint:OnDelete:CASCADE" json:"-"`
	Likes         []MediaLike `gorm:"foreignKey:MediaID;constraint:OnDelete:CASCADE" json:"-"`
	CreatedAt     time.Time   `gorm:"autoCreateTime" json:"createdAt"`
}

func (m *Media) BeforeCreate(tx *gorm.DB) (err error) {
	if m.ID == uuid.Nil {
		m.ID, err = uuid.NewV7()
	}
	return
}

// LikeIDs lists the users who liked the media, oldest like first.
func (m *Media) LikeIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(m.Likes))
	for _, l := range m.Likes {
		ids = append(ids, l.UserID)
	}
	return ids
}

func (m *Media) LikeCount() int {
	if m == nil {
		return 0
	}
	return len(m.Likes)
}

// StorageKey is the CDN object key, "{mediaId}.{fileExtension}".
func (m *Media) StorageKey() string {
	return m.ID.String() + "." + m.FileExtension
}

// MediaLike is one user's like on one media. The composite key makes a
// second like by the same user impossible.
type MediaLike struct {
	MediaID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;primaryKey;index"`
	User      *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

func (Media) TableName() string { return "media" }

func (MediaLike) TableName() string { return "media_likes" }
