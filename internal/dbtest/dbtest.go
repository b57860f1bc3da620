// Package dbtest opens throwaway SQLite databases migrated with the gallery
// schema, for repository tests.
package dbtest

import (
	"testing"

	"anoa.com/mediagallery/internal/entity"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a private in-memory database. It is closed when t finishes.
func Open(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// One connection keeps every statement on the same in-memory database.
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(entity.AutoMigrateModels()...))
	return db
}

// User inserts a verified account.
func User(t *testing.T, db *gorm.DB, username string) *entity.User {
	t.Helper()
	u := &entity.User{Username: username, PasswordHash: "x", Verified: true}
	require.NoError(t, db.Create(u).Error)
	return u
}

// Media inserts an uploaded media record owned by authorID.
func Media(t *testing.T, db *gorm.DB, authorID uuid.UUID) *entity.Media {
	t.Helper()
	m := &entity.Media{
		FileName:      "pic.png",
		FileExtension: "png",
		Mimetype:      "image/png",
		AuthorID:      authorID,
	}
	require.NoError(t, db.Create(m).Error)
	m.URL = "https://cdn.test/" + m.StorageKey()
	require.NoError(t, db.Model(m).Update("url", m.URL).Error)
	return m
}

// Tag inserts a tag owned by authorID.
func Tag(t *testing.T, db *gorm.DB, authorID uuid.UUID, name string) *entity.Tag {
	t.Helper()
	tag := &entity.Tag{Name: name, AuthorID: authorID}
	require.NoError(t, db.Create(tag).Error)
	return tag
}

// Character inserts a character owned by authorID.
func Character(t *testing.T, db *gorm.DB, authorID uuid.UUID, name string) *entity.Character {
	t.Helper()
	c := &entity.Character{Name: name, AuthorID: authorID}
	require.NoError(t, db.Create(c).Error)
	return c
}
