package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/internal/memstore"
	"anoa.com/mediagallery/internal/modules/media/dto"
	"anoa.com/mediagallery/pkg/apperror"
	"anoa.com/mediagallery/pkg/cache"
	"anoa.com/mediagallery/pkg/ratelimiter"
	"anoa.com/mediagallery/pkg/storage"
	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	ctx     context.Context
	store   *memstore.Store
	storage *storage.MemoryStorage
	service MediaService
	author  *entity.User
	other   *entity.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memstore.New()
	files := storage.NewMemoryStorage("https://cdn.test")

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	author := &entity.User{Username: "aria", Verified: true}
	other := &entity.User{Username: "bram", Verified: true}
	require.NoError(t, store.Users().Create(ctx, author))
	require.NoError(t, store.Users().Create(ctx, other))

	return &fixture{
		ctx:     ctx,
		store:   store,
		storage: files,
		service: NewMediaService(
			store, store.Media(), store.Characters(), store.Tags(),
			files, ratelimiter.New(rdb), cache.NewLikeTotals(rdb, time.Minute), 10*time.Second,
		),
		author: author,
		other:  other,
	}
}

func (f *fixture) character(t *testing.T, name string, author *entity.User) *entity.Character {
	t.Helper()
	c := &entity.Character{Name: name, AuthorID: author.ID}
	require.NoError(t, f.store.Characters().Create(f.ctx, c))
	return c
}

func (f *fixture) media(t *testing.T, n int) []*entity.Media {
	t.Helper()
	media := make([]*entity.Media, n)
	for i := range media {
		media[i] = &entity.Media{FileName: "img", FileExtension: "png", Mimetype: "image/png", URL: "https://cdn.test/x", AuthorID: f.author.ID}
	}
	require.NoError(t, f.store.Media().CreateBatch(f.ctx, media))
	return media
}

type upload struct {
	name     string
	mimetype string
	body     string
}

func fileHeaders(t *testing.T, files ...upload) []*multipart.FileHeader {
	t.Helper()
	body := &bytes.Buffer{}
	w := multipart.NewWriter(body)
	for _, f := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, f.name))
		h.Set("Content-Type", f.mimetype)
		part, err := w.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte(f.body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	form, err := multipart.NewReader(body, w.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { _ = form.RemoveAll() })
	return form.File["files"]
}

func TestToggleLike_IsSymmetricAndReversible(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 1)[0]
	req := dto.MediaIDRequest{MediaID: m.ID.String()}

	got, err := f.service.ToggleLike(f.ctx, f.other.ID, req)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{f.other.ID}, got.LikeIDs)

	liked, err := f.store.Media().FindLikedBy(f.ctx, f.other.ID)
	require.NoError(t, err)
	require.Len(t, liked, 1)
	assert.Equal(t, m.ID, liked[0].ID)

	got, err = f.service.ToggleLike(f.ctx, f.other.ID, req)
	require.NoError(t, err)
	assert.Empty(t, got.LikeIDs)

	liked, err = f.store.Media().FindLikedBy(f.ctx, f.other.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)
}

func TestToggleLike_ConcurrentUsersAllCount(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 1)[0]

	users := make([]uuid.UUID, 20)
	for i := range users {
		u := &entity.User{Username: fmt.Sprintf("user%02d", i), Verified: true}
		require.NoError(t, f.store.Users().Create(f.ctx, u))
		users[i] = u.ID
	}

	var wg sync.WaitGroup
	for _, id := range users {
		wg.Add(1)
		go func(id uuid.UUID) {
			defer wg.Done()
			_, err := f.service.ToggleLike(f.ctx, id, dto.MediaIDRequest{MediaID: m.ID.String()})
			assert.NoError(t, err)
		}(id)
	}
	wg.Wait()

	got, err := f.store.Media().FindByID(f.ctx, m.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, users, got.LikeIDs())
}

func TestToggleLike_Errors(t *testing.T) {
	f := newFixture(t)

	_, err := f.service.ToggleLike(f.ctx, f.other.ID, dto.MediaIDRequest{MediaID: uuid.NewString()})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.service.ToggleLike(f.ctx, f.other.ID, dto.MediaIDRequest{MediaID: "nope"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.service.ToggleLike(f.ctx, uuid.Nil, dto.MediaIDRequest{MediaID: uuid.NewString()})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized)
}

func TestDeleteMedia_ClearsEveryReference(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 2)
	ember := f.character(t, "Ember", f.author)
	blaze := f.character(t, "Blaze", f.author)
	tag := &entity.Tag{Name: "fire", AuthorID: f.author.ID}
	require.NoError(t, f.store.Tags().Create(f.ctx, tag))

	require.NoError(t, f.store.Characters().SetCover(f.ctx, ember.ID, &m[0].ID))
	_, err := f.store.Characters().AddMedia(f.ctx, blaze.ID, []uuid.UUID{m[0].ID, m[1].ID})
	require.NoError(t, err)
	require.NoError(t, f.store.Tags().SetCover(f.ctx, tag.ID, &m[0].ID))
	_, err = f.store.Media().ToggleLike(f.ctx, m[0].ID, f.other.ID)
	require.NoError(t, err)

	_, err = f.service.DeleteMedia(f.ctx, f.other.ID, dto.MediaIDRequest{MediaID: m[0].ID.String()})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	deleted, err := f.service.DeleteMedia(f.ctx, f.author.ID, dto.MediaIDRequest{MediaID: m[0].ID.String()})
	require.NoError(t, err)
	assert.Equal(t, m[0].ID, deleted.ID)
	assert.ElementsMatch(t, []uuid.UUID{ember.ID, blaze.ID}, deleted.CharacterIDs)

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	assert.Nil(t, c.CoverID)

	c, err = f.store.Characters().FindByID(f.ctx, blaze.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m[1].ID}, c.MediaIDs())

	tg, err := f.store.Tags().FindByID(f.ctx, tag.ID)
	require.NoError(t, err)
	assert.Nil(t, tg.CoverID)

	liked, err := f.store.Media().FindLikedBy(f.ctx, f.other.ID)
	require.NoError(t, err)
	assert.Empty(t, liked)
}

func TestDeleteMedia_RollsBackOnFailure(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 1)[0]
	ember := f.character(t, "Ember", f.author)
	require.NoError(t, f.store.Characters().SetCover(f.ctx, ember.ID, &m.ID))

	boom := errors.New("boom")
	f.store.FailOn("media.Delete", boom)
	_, err := f.service.DeleteMedia(f.ctx, f.author.ID, dto.MediaIDRequest{MediaID: m.ID.String()})
	assert.ErrorIs(t, err, boom)
	f.store.FailOn("media.Delete", nil)

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	require.NotNil(t, c.CoverID)
	assert.Equal(t, m.ID, *c.CoverID)
}

func TestDeleteMedia_StorageFailureDoesNotFailRequest(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 1)[0]
	f.storage.FailDelete = true

	_, err := f.service.DeleteMedia(f.ctx, f.author.ID, dto.MediaIDRequest{MediaID: m.ID.String()})
	require.NoError(t, err)

	_, err = f.store.Media().FindByID(f.ctx, m.ID)
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAssignMedia_IsIdempotentAndSkipsCover(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 2)
	ember := f.character(t, "Ember", f.author)
	blaze := f.character(t, "Blaze", f.author)
	require.NoError(t, f.store.Characters().SetCover(f.ctx, ember.ID, &m[0].ID))

	req := dto.AssignMediaRequest{
		MediaIDs:     []string{m[0].ID.String(), m[1].ID.String()},
		CharacterIDs: []string{ember.ID.String(), blaze.ID.String()},
	}

	res, err := f.service.AssignMedia(f.ctx, f.author.ID, req)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{ember.ID, blaze.ID}, res.CharacterIDs)

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, m[0].ID, *c.CoverID)
	assert.Equal(t, []uuid.UUID{m[1].ID}, c.MediaIDs())

	c, err = f.store.Characters().FindByID(f.ctx, blaze.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{m[0].ID, m[1].ID}, c.MediaIDs())

	res, err = f.service.AssignMedia(f.ctx, f.author.ID, req)
	require.NoError(t, err)
	assert.Empty(t, res.CharacterIDs)

	c, err = f.store.Characters().FindByID(f.ctx, blaze.ID)
	require.NoError(t, err)
	assert.Len(t, c.MediaIDs(), 2)
}

func TestAssignMedia_RequiresAuthorOfEveryTarget(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 1)
	mine := f.character(t, "Ember", f.author)
	theirs := f.character(t, "Brook", f.other)

	_, err := f.service.AssignMedia(f.ctx, f.author.ID, dto.AssignMediaRequest{
		MediaIDs:     []string{m[0].ID.String()},
		CharacterIDs: []string{mine.ID.String(), theirs.ID.String()},
	})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	c, err := f.store.Characters().FindByID(f.ctx, mine.ID)
	require.NoError(t, err)
	assert.Empty(t, c.MediaIDs())

	_, err = f.service.AssignMedia(f.ctx, f.author.ID, dto.AssignMediaRequest{
		MediaIDs:     []string{uuid.NewString()},
		CharacterIDs: []string{mine.ID.String()},
	})
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestAllocateMedia(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	res, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files: []dto.FileDescriptor{
			{UUID: "a", FileName: "sunset", FileExtension: ".PNG", Mimetype: "image/png"},
			{UUID: "b", FileName: "clip", FileExtension: "mp4", Mimetype: "video/mp4"},
		},
	})
	require.NoError(t, err)
	require.Len(t, res.IDs, 2)

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{res.IDs["a"], res.IDs["b"]}, c.MediaIDs())

	m, err := f.store.Media().FindByID(f.ctx, res.IDs["a"])
	require.NoError(t, err)
	assert.Equal(t, "png", m.FileExtension)
	assert.Equal(t, f.author.ID, m.AuthorID)
	assert.Equal(t, res.IDs["a"].String()+".png", m.StorageKey())
}

func TestAllocateMedia_Rejects(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)
	file := dto.FileDescriptor{UUID: "a", FileName: "doc", FileExtension: "pdf", Mimetype: "application/pdf"}

	_, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{CharacterID: ember.ID.String(), Files: []dto.FileDescriptor{file}})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	file.Mimetype = "image/png"
	_, err = f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{CharacterID: ember.ID.String(), Files: []dto.FileDescriptor{file, file}})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.service.AllocateMedia(f.ctx, f.other.ID, dto.AllocateMediaRequest{CharacterID: ember.ID.String(), Files: []dto.FileDescriptor{file}})
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	all, err := f.store.Media().FindAll(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAllocateMedia_RollsBackWhenGalleryLinkFails(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)
	boom := errors.New("boom")
	f.store.FailOn("character.AddMedia", boom)

	_, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files:       []dto.FileDescriptor{{UUID: "a", FileName: "sunset", FileExtension: "png", Mimetype: "image/png"}},
	})
	assert.ErrorIs(t, err, boom)

	all, err := f.store.Media().FindAll(f.ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestUploadMedia(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	files := fileHeaders(t,
		upload{name: "sunset.png", mimetype: "image/png", body: "png-bytes"},
		upload{name: "clip.mp4", mimetype: "video/mp4", body: "mp4-bytes"},
	)

	res, err := f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{CharacterID: ember.ID.String()}, files)
	require.NoError(t, err)
	require.Len(t, res.Media, 2)

	for _, m := range res.Media {
		key := m.ID.String() + "." + m.FileExtension
		assert.True(t, f.storage.Has(key))
		assert.Equal(t, "https://cdn.test/"+key, m.URL)
		assert.Equal(t, []uuid.UUID{ember.ID}, m.CharacterIDs)
	}

	// A second upload inside the window is refused.
	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{CharacterID: ember.ID.String()}, fileHeaders(t, upload{name: "b.png", mimetype: "image/png", body: "x"}))
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)
}

func TestUploadMedia_FailedAllocationReleasesLimit(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	_, err := f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{CharacterID: ember.ID.String()}, fileHeaders(t, upload{name: "notes.txt", mimetype: "text/plain", body: "x"}))
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{CharacterID: ember.ID.String()}, fileHeaders(t, upload{name: "a.png", mimetype: "image/png", body: "x"}))
	assert.NoError(t, err)
}

func TestUploadMedia_FillsAllocatedMedia(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	allocated, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files:       []dto.FileDescriptor{{UUID: "a", FileName: "sunset", FileExtension: "png", Mimetype: "image/png"}},
	})
	require.NoError(t, err)
	id := allocated.IDs["a"]

	res, err := f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{MediaIDs: []string{id.String()}},
		fileHeaders(t, upload{name: "sunset.png", mimetype: "image/png", body: "png-bytes"}))
	require.NoError(t, err)
	require.Len(t, res.Media, 1)
	assert.Equal(t, id, res.Media[0].ID)
	assert.Equal(t, "https://cdn.test/"+id.String()+".png", res.Media[0].URL)
	assert.True(t, f.storage.Has(id.String()+".png"))

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{id}, c.MediaIDs())

	removed, err := f.service.CleanupStaleUploads(f.ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, removed)
}

func TestUploadMedia_AllocatedMediaErrors(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	allocated, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files:       []dto.FileDescriptor{{UUID: "a", FileName: "sunset", FileExtension: "png", Mimetype: "image/png"}},
	})
	require.NoError(t, err)
	id := allocated.IDs["a"].String()
	file := func() []*multipart.FileHeader {
		return fileHeaders(t, upload{name: "sunset.png", mimetype: "image/png", body: "x"})
	}

	_, err = f.service.UploadMedia(f.ctx, f.other.ID, dto.UploadMediaRequest{MediaIDs: []string{id}}, file())
	assert.ErrorIs(t, err, apperror.ErrForbidden)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{MediaIDs: []string{id, id}}, file())
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{MediaIDs: []string{uuid.NewString()}}, file())
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{MediaIDs: []string{id}}, file())
	require.NoError(t, err)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{MediaIDs: []string{id}}, file())
	assert.ErrorIs(t, err, apperror.ErrConflict)
}

func TestAllocateMedia_SharesUploadRateLimit(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)
	req := dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files:       []dto.FileDescriptor{{UUID: "a", FileName: "sunset", FileExtension: "png", Mimetype: "image/png"}},
	}

	_, err := f.service.AllocateMedia(f.ctx, f.author.ID, req)
	require.NoError(t, err)

	_, err = f.service.AllocateMedia(f.ctx, f.author.ID, req)
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	_, err = f.service.UploadMedia(f.ctx, f.author.ID, dto.UploadMediaRequest{CharacterID: ember.ID.String()},
		fileHeaders(t, upload{name: "b.png", mimetype: "image/png", body: "x"}))
	assert.ErrorIs(t, err, apperror.ErrRateLimitExceeded)

	all, err := f.store.Media().FindAll(f.ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestCleanupStaleUploads(t *testing.T) {
	f := newFixture(t)
	ember := f.character(t, "Ember", f.author)

	res, err := f.service.AllocateMedia(f.ctx, f.author.ID, dto.AllocateMediaRequest{
		CharacterID: ember.ID.String(),
		Files:       []dto.FileDescriptor{{UUID: "a", FileName: "sunset", FileExtension: "png", Mimetype: "image/png"}},
	})
	require.NoError(t, err)
	uploaded := f.media(t, 1)[0]

	removed, err := f.service.CleanupStaleUploads(f.ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	_, err = f.store.Media().FindByID(f.ctx, res.IDs["a"])
	assert.ErrorIs(t, err, apperror.ErrNotFound)
	_, err = f.store.Media().FindByID(f.ctx, uploaded.ID)
	assert.NoError(t, err)

	c, err := f.store.Characters().FindByID(f.ctx, ember.ID)
	require.NoError(t, err)
	assert.Empty(t, c.MediaIDs())
}

func TestGetAllMedia_DerivesCharacterIDs(t *testing.T) {
	f := newFixture(t)
	m := f.media(t, 2)
	ember := f.character(t, "Ember", f.author)
	blaze := f.character(t, "Blaze", f.author)
	require.NoError(t, f.store.Characters().SetCover(f.ctx, ember.ID, &m[0].ID))
	_, err := f.store.Characters().AddMedia(f.ctx, blaze.ID, []uuid.UUID{m[0].ID})
	require.NoError(t, err)

	got, err := f.service.GetAllMedia(f.ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.ElementsMatch(t, []uuid.UUID{ember.ID, blaze.ID}, got[0].CharacterIDs)
	assert.Empty(t, got[1].CharacterIDs)
}
