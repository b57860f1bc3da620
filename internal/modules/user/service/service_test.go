package user

import (
	"context"
	"testing"
	"time"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/internal/memstore"
	"anoa.com/mediagallery/internal/modules/user/dto"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(store *memstore.Store, autoVerify bool) UserService {
	return NewUserService(store.Users(), store.Characters(), store.Tags(), store.Media(), Options{
		JWTSecret:  "test-secret",
		TokenTTL:   time.Hour,
		AutoVerify: autoVerify,
	})
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc := newService(memstore.New(), false)

	res, err := svc.Register(ctx, dto.RegisterRequest{Username: "aria", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "aria", res.Username)
	assert.False(t, res.Verified)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "aria", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "ab", Password: "short"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}

func TestRegister_TrimsCredentials(t *testing.T) {
	ctx := context.Background()
	svc := newService(memstore.New(), true)

	res, err := svc.Register(ctx, dto.RegisterRequest{Username: "  bob ", Password: " password123 "})
	require.NoError(t, err)
	assert.Equal(t, "bob", res.Username)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: "bob", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrConflict)

	_, err = svc.Register(ctx, dto.RegisterRequest{Username: " ab  ", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "bob", Password: "password123"})
	assert.NoError(t, err)
}

func TestLogin_IssuesToken(t *testing.T) {
	ctx := context.Background()
	svc := newService(memstore.New(), true)

	registered, err := svc.Register(ctx, dto.RegisterRequest{Username: "aria", Password: "password123"})
	require.NoError(t, err)

	res, err := svc.Login(ctx, dto.LoginRequest{Username: "aria", Password: "password123"})
	require.NoError(t, err)
	assert.Equal(t, "Bearer", res.TokenType)
	assert.Equal(t, registered.ID, res.User.ID)

	claims := &jwt.RegisteredClaims{}
	_, err = jwt.ParseWithClaims(res.AccessToken, claims, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	assert.Equal(t, registered.ID.String(), claims.Subject)
	assert.Equal(t, claims.ExpiresAt.Unix(), res.ExpiresIn)
}

func TestLogin_Rejects(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newService(store, false)

	_, err := svc.Register(ctx, dto.RegisterRequest{Username: "aria", Password: "password123"})
	require.NoError(t, err)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "aria", Password: "password123"})
	assert.ErrorIs(t, err, apperror.ErrUnauthorized, "unverified accounts cannot sign in")

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "aria", Password: "wrong-password"})
	assert.ErrorIs(t, err, errInvalidCredentials)

	_, err = svc.Login(ctx, dto.LoginRequest{Username: "ghost", Password: "password123"})
	assert.ErrorIs(t, err, errInvalidCredentials)
}

func TestGetProfile(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := newService(store, true)

	aria := &entity.User{Username: "aria", PasswordHash: "x", Verified: true}
	require.NoError(t, store.Users().Create(ctx, aria))

	character := &entity.Character{Name: "Ember", AuthorID: aria.ID}
	require.NoError(t, store.Characters().Create(ctx, character))
	tag := &entity.Tag{Name: "fire", AuthorID: aria.ID}
	require.NoError(t, store.Tags().Create(ctx, tag))

	res, err := svc.GetProfile(ctx, aria.ID)
	require.NoError(t, err)
	assert.Equal(t, "aria", res.User.Username)
	require.Len(t, res.CreatedCharacters, 1)
	assert.Equal(t, "Ember", res.CreatedCharacters[0].Name)
	require.Len(t, res.CreatedTags, 1)
	assert.Equal(t, "fire", res.CreatedTags[0].Name)
	assert.Empty(t, res.UploadedMedia)
	assert.Empty(t, res.LikedMedia)

	_, err = svc.GetProfile(ctx, uuid.New())
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}
