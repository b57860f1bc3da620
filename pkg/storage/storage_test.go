package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResourceType(t *testing.T) {
	rt, err := ResourceType("image/png")
	require.NoError(t, err)
	assert.Equal(t, "image", rt)

	rt, err = ResourceType("video/mp4")
	require.NoError(t, err)
	assert.Equal(t, "video", rt)

	_, err = ResourceType("application/pdf")
	assert.Error(t, err)
}

func TestCloudinaryPublicID(t *testing.T) {
	s := &cloudinaryStorage{folder: "media_gallery"}
	assert.Equal(t, "media_gallery/abc", s.publicID("abc.png"))

	s.folder = ""
	assert.Equal(t, "abc", s.publicID("abc.webm"))
}

func TestMemoryStorage(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage("https://cdn.test")

	url, err := s.Upload(ctx, strings.NewReader("bytes"), "m1.png", "image/png")
	require.NoError(t, err)
	assert.Equal(t, "https://cdn.test/m1.png", url)
	assert.True(t, s.Has("m1.png"))

	_, err = s.Upload(ctx, strings.NewReader("bytes"), "m2.txt", "text/plain")
	assert.Error(t, err)

	require.NoError(t, s.Delete(ctx, "m1.png", "image/png"))
	assert.False(t, s.Has("m1.png"))
}
