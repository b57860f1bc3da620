package repository

import (
	"context"
	"errors"
	"testing"

	"anoa.com/mediagallery/internal/dbtest"
	"anoa.com/mediagallery/internal/entity"
	tagRepo "anoa.com/mediagallery/internal/modules/tag/repository"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/database"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReplaceTags_BothSidesStayInStep(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)
	tags := tagRepo.NewTagRepository(db)

	author := dbtest.User(t, db, "aria")
	ember := dbtest.Character(t, db, author.ID, "Ember")
	frost := dbtest.Character(t, db, author.ID, "Frost")
	fire := dbtest.Tag(t, db, author.ID, "fire")
	hero := dbtest.Tag(t, db, author.ID, "hero")
	ice := dbtest.Tag(t, db, author.ID, "ice")

	require.NoError(t, repo.ReplaceTags(ctx, ember.ID, []uuid.UUID{hero.ID, fire.ID}))
	require.NoError(t, repo.ReplaceTags(ctx, frost.ID, []uuid.UUID{hero.ID}))

	got, err := repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{hero.ID, fire.ID}, got.TagIDs())
	require.Len(t, got.Tags(), 2)
	assert.Equal(t, "hero", got.Tags()[0].Name)

	loaded, err := tags.FindByID(ctx, hero.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{ember.ID, frost.ID}, loaded.CharacterIDs())

	// Replacing drops the old links on the tag side too.
	require.NoError(t, repo.ReplaceTags(ctx, ember.ID, []uuid.UUID{ice.ID}))

	loaded, err = tags.FindByID(ctx, hero.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{frost.ID}, loaded.CharacterIDs())
	loaded, err = tags.FindByID(ctx, fire.ID)
	require.NoError(t, err)
	assert.Empty(t, loaded.CharacterIDs())
	loaded, err = tags.FindByID(ctx, ice.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ember.ID}, loaded.CharacterIDs())

	tagged, err := repo.FindByTag(ctx, ice.ID)
	require.NoError(t, err)
	require.Len(t, tagged, 1)
	assert.Equal(t, ember.ID, tagged[0].ID)

	require.NoError(t, repo.RemoveTagEverywhere(ctx, hero.ID))

	got, err = repo.FindByID(ctx, frost.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs())
	loaded, err = tags.FindByID(ctx, hero.ID)
	require.NoError(t, err)
	assert.Zero(t, loaded.CharacterCount())

	tagged, err = repo.FindByTag(ctx, hero.ID)
	require.NoError(t, err)
	assert.Empty(t, tagged)
}

func TestAddMedia_SkipsEntriesAlreadyInGallery(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)

	author := dbtest.User(t, db, "aria")
	ember := dbtest.Character(t, db, author.ID, "Ember")
	first := dbtest.Media(t, db, author.ID)
	second := dbtest.Media(t, db, author.ID)
	third := dbtest.Media(t, db, author.ID)

	added, err := repo.AddMedia(ctx, ember.ID, []uuid.UUID{first.ID, second.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 2, added)

	added, err = repo.AddMedia(ctx, ember.ID, []uuid.UUID{second.ID, third.ID})
	require.NoError(t, err)
	assert.EqualValues(t, 1, added)

	added, err = repo.AddMedia(ctx, ember.ID, []uuid.UUID{first.ID})
	require.NoError(t, err)
	assert.Zero(t, added)

	got, err := repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, second.ID, third.ID}, got.MediaIDs())

	require.NoError(t, repo.RemoveMedia(ctx, ember.ID, second.ID))
	got, err = repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{first.ID, third.ID}, got.MediaIDs())
}

func TestDetachMediaEverywhere_ClearsCoversAndGalleries(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)

	author := dbtest.User(t, db, "aria")
	ember := dbtest.Character(t, db, author.ID, "Ember")
	frost := dbtest.Character(t, db, author.ID, "Frost")
	shared := dbtest.Media(t, db, author.ID)
	other := dbtest.Media(t, db, author.ID)

	require.NoError(t, repo.SetCover(ctx, ember.ID, &shared.ID))
	_, err := repo.AddMedia(ctx, ember.ID, []uuid.UUID{other.ID})
	require.NoError(t, err)
	_, err = repo.AddMedia(ctx, frost.ID, []uuid.UUID{shared.ID, other.ID})
	require.NoError(t, err)

	got, err := repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCover(shared.ID))
	require.NotNil(t, got.Cover)
	assert.Equal(t, shared.ID, got.Cover.ID)

	require.NoError(t, repo.DetachMediaEverywhere(ctx, shared.ID))

	got, err = repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.Nil(t, got.CoverID)
	assert.Nil(t, got.Cover)
	assert.Equal(t, []uuid.UUID{other.ID}, got.MediaIDs())

	got, err = repo.FindByID(ctx, frost.ID)
	require.NoError(t, err)
	assert.False(t, got.HasMedia(shared.ID))
	assert.Equal(t, []uuid.UUID{other.ID}, got.MediaIDs())

	// The media row itself is left for the caller to delete.
	var count int64
	require.NoError(t, db.Model(&entity.Media{}).Where("id = ?", shared.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestDelete_RemovesLinkRows(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)

	author := dbtest.User(t, db, "aria")
	ember := dbtest.Character(t, db, author.ID, "Ember")
	fire := dbtest.Tag(t, db, author.ID, "fire")
	pic := dbtest.Media(t, db, author.ID)

	require.NoError(t, repo.ReplaceTags(ctx, ember.ID, []uuid.UUID{fire.ID}))
	_, err := repo.AddMedia(ctx, ember.ID, []uuid.UUID{pic.ID})
	require.NoError(t, err)

	require.NoError(t, repo.Delete(ctx, ember.ID))

	_, err = repo.FindByID(ctx, ember.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	var links int64
	require.NoError(t, db.Model(&entity.CharacterTag{}).Where("character_id = ?", ember.ID).Count(&links).Error)
	assert.Zero(t, links)
	require.NoError(t, db.Model(&entity.CharacterMedia{}).Where("character_id = ?", ember.ID).Count(&links).Error)
	assert.Zero(t, links)

	assert.ErrorIs(t, repo.Delete(ctx, ember.ID), apperror.ErrNotFound)
}

func TestUpdate_ChangesOnlyEditableFields(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)

	author := dbtest.User(t, db, "aria")
	ember := dbtest.Character(t, db, author.ID, "Ember")

	desc := "keeps the flame"
	require.NoError(t, repo.Update(ctx, &entity.Character{ID: ember.ID, Name: "Blaze", Description: &desc, AuthorID: uuid.New()}))

	got, err := repo.FindByID(ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, "Blaze", got.Name)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	assert.Equal(t, author.ID, got.AuthorID)
	require.NotNil(t, got.Author)
	assert.Equal(t, "aria", got.Author.Username)

	mine, err := repo.FindByAuthor(ctx, author.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)

	some, err := repo.FindByIDs(ctx, []uuid.UUID{ember.ID, uuid.New()})
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, ember.ID, some[0].ID)
}

func TestWithinTransaction_RollsBackEveryRepositoryWrite(t *testing.T) {
	ctx := context.Background()
	db := dbtest.Open(t)
	repo := NewCharacterRepository(db)
	tx := database.NewTransactor(db)

	author := dbtest.User(t, db, "aria")
	fire := dbtest.Tag(t, db, author.ID, "fire")
	boom := errors.New("boom")

	var created uuid.UUID
	err := tx.WithinTransaction(ctx, func(ctx context.Context) error {
		c := &entity.Character{Name: "Ember", AuthorID: author.ID}
		if err := repo.Create(ctx, c); err != nil {
			return err
		}
		created = c.ID
		if err := repo.ReplaceTags(ctx, c.ID, []uuid.UUID{fire.ID}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NotEqual(t, uuid.Nil, created)

	_, err = repo.FindByID(ctx, created)
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	tagged, err := repo.FindByTag(ctx, fire.ID)
	require.NoError(t, err)
	assert.Empty(t, tagged)
}
