package admin

import (
	"context"
	"testing"

	"anoa.com/mediagallery/internal/entity"
	"anoa.com/mediagallery/internal/memstore"
	"anoa.com/mediagallery/internal/modules/admin/dto"
	"anoa.com/mediagallery/pkg/apperror"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func boolPtr(b bool) *bool { return &b }

func TestModerate(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewAdminService(store.Users())

	root := &entity.User{Username: "root", PasswordHash: "x", Verified: true}
	require.NoError(t, store.Users().Create(ctx, root))
	aria := &entity.User{Username: "aria", PasswordHash: "x"}
	require.NoError(t, store.Users().Create(ctx, aria))

	res, err := svc.Moderate(ctx, root.ID, dto.ModerateRequest{
		UserID:   aria.ID.String(),
		Verified: boolPtr(true),
		Banned:   boolPtr(false),
	})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	assert.False(t, res.Banned)

	stored, err := store.Users().FindByID(ctx, aria.ID)
	require.NoError(t, err)
	assert.True(t, stored.CanSignIn())
}

func TestModerate_Errors(t *testing.T) {
	ctx := context.Background()
	store := memstore.New()
	svc := NewAdminService(store.Users())

	root := &entity.User{Username: "root", PasswordHash: "x", Verified: true}
	require.NoError(t, store.Users().Create(ctx, root))

	_, err := svc.Moderate(ctx, root.ID, dto.ModerateRequest{UserID: root.ID.String(), Verified: boolPtr(true), Banned: boolPtr(true)})
	assert.ErrorIs(t, err, apperror.ErrBadRequest)

	_, err = svc.Moderate(ctx, root.ID, dto.ModerateRequest{UserID: uuid.NewString(), Verified: boolPtr(true), Banned: boolPtr(false)})
	assert.ErrorIs(t, err, apperror.ErrNotFound)

	_, err = svc.Moderate(ctx, root.ID, dto.ModerateRequest{UserID: "nope"})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
}
