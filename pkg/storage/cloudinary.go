package storage

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
)

// MediaStorage is the CDN that holds media binaries. Objects are addressed by
// key ("{mediaId}.{ext}"); the mimetype picks the resource class.
type MediaStorage interface {
	// Upload stores r under key and returns the public URL.
	Upload(ctx context.Context, r io.Reader, key, mimetype string) (string, error)
	// Delete removes the object stored under key. Missing objects are not an error.
	Delete(ctx context.Context, key, mimetype string) error
}

type Options struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

type cloudinaryStorage struct {
	cld    *cloudinary.Cloudinary
	folder string
}

// NewCloudinaryStorage creates a Cloudinary-backed MediaStorage.
func NewCloudinaryStorage(opts Options) (MediaStorage, error) {
	cld, err := cloudinary.NewFromParams(opts.CloudName, opts.APIKey, opts.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary client: %w", err)
	}

	cld.Config.URL.Secure = true

	return &cloudinaryStorage{cld: cld, folder: opts.Folder}, nil
}

func (s *cloudinaryStorage) Upload(ctx context.Context, r io.Reader, key, mimetype string) (string, error) {
	resourceType, err := ResourceType(mimetype)
	if err != nil {
		return "", err
	}

	params := uploader.UploadParams{
		PublicID:     s.publicID(key),
		ResourceType: resourceType,
		Overwrite:    api.Bool(true),
	}

	resp, err := s.cld.Upload.Upload(ctx, r, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload media to cloudinary: %w", err)
	}

	if resp.SecureURL == "" {
		return "", fmt.Errorf("cloudinary upload succeeded but secure URL is empty")
	}

	return resp.SecureURL, nil
}

func (s *cloudinaryStorage) Delete(ctx context.Context, key, mimetype string) error {
	resourceType, err := ResourceType(mimetype)
	if err != nil {
		return err
	}

	params := uploader.DestroyParams{
		PublicID:     s.publicID(key),
		ResourceType: resourceType,
		Invalidate:   api.Bool(true),
	}

	resp, err := s.cld.Upload.Destroy(ctx, params)
	if err != nil {
		return fmt.Errorf("failed to delete media from cloudinary: %w", err)
	}

	if resp.Result != "ok" && resp.Result != "not found" {
		return fmt.Errorf("cloudinary destroy api returned result: %s", resp.Result)
	}

	return nil
}

// publicID strips the extension: Cloudinary appends the format itself.
func (s *cloudinaryStorage) publicID(key string) string {
	id := strings.TrimSuffix(key, path.Ext(key))
	if s.folder == "" {
		return id
	}
	return s.folder + "/" + id
}

// ResourceType maps a mimetype onto Cloudinary's resource classes. Only image
// and video media are accepted.
func ResourceType(mimetype string) (string, error) {
	switch {
	case strings.HasPrefix(mimetype, "image/"):
		return "image", nil
	case strings.HasPrefix(mimetype, "video/"):
		return "video", nil
	default:
		return "", fmt.Errorf("unsupported mimetype %q", mimetype)
	}
}
