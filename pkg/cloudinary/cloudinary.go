package cloudinary

import (
	"context"
	"fmt"
	"io"

	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/cloudinary/cloudinary-go/v2/config"
)

// Client uploads and removes avatar images.
type Client interface {
	UploadAvatar(ctx context.Context, file io.Reader, folder, publicID string) (url string, err error)
	Delete(ctx context.Context, folder, publicID string) error
}

// Avatar delivery params.
const (
	AvatarSize  = 256
	avatarEager = "q_auto,f_auto,w_256,h_256,c_fill,g_face"
)

var eagerAsyncFalse = false

// BuildAvatarURL returns the optimized delivery URL for an uploaded avatar.
func BuildAvatarURL(cloudName, publicID string) string {
	return fmt.Sprintf("https://res.cloudinary.com/%s/image/upload/q_auto,f_auto,w_%d,h_%d,c_fill,g_face/%s",
		cloudName, AvatarSize, AvatarSize, publicID)
}

type clientImpl struct {
	cloudName string
	uploader  *uploader.API
}

func (c *clientImpl) UploadAvatar(ctx context.Context, file io.Reader, folder, publicID string) (string, error) {
	overwrite := true
	result, err := c.uploader.Upload(ctx, file, uploader.UploadParams{
		Folder:     folder,
		PublicID:   publicID,
		Overwrite:  &overwrite,
		Eager:      avatarEager,
		EagerAsync: &eagerAsyncFalse,
	})
	if err != nil {
		return "", err
	}
	if len(result.Eager) > 0 && result.Eager[0].SecureURL != "" {
		return result.Eager[0].SecureURL, nil
	}
	if result.SecureURL != "" {
		return result.SecureURL, nil
	}
	return BuildAvatarURL(c.cloudName, result.PublicID), nil
}

func (c *clientImpl) Delete(ctx context.Context, folder, publicID string) error {
	id := publicID
	if folder != "" {
		id = folder + "/" + publicID
	}
	_, err := c.uploader.Destroy(ctx, uploader.DestroyParams{PublicID: id})
	return err
}

// NewClientFromParams builds a Client from Cloudinary cloud name, API key, and secret.
func NewClientFromParams(cloudName, apiKey, apiSecret string) (Client, error) {
	cfg, err := config.NewFromParams(cloudName, apiKey, apiSecret)
	if err != nil {
		return nil, err
	}
	up, err := uploader.NewWithConfiguration(cfg)
	if err != nil {
		return nil, err
	}
	return &clientImpl{cloudName: cloudName, uploader: up}, nil
}
