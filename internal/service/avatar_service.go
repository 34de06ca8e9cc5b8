package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"statusboard/config"
	"statusboard/pkg/cloudinary"
)

// AvatarService stores avatar images in Cloudinary and falls back to an
// inline data URL when Cloudinary is unavailable.
type AvatarService struct {
	cloud    cloudinary.Client
	maxBytes int64
	log      zerolog.Logger
}

// NewAvatarService accepts a nil cloud client; every upload is then inlined.
func NewAvatarService(cfg *config.Config, cloud cloudinary.Client, logger zerolog.Logger) *AvatarService {
	limit := cfg.Upload.MaxAvatarBytes
	if limit <= 0 {
		limit = 5 << 20
	}
	return &AvatarService{cloud: cloud, maxBytes: limit, log: logger}
}

// Store validates and stores one image for workerID and returns its reference.
func (s *AvatarService) Store(ctx context.Context, workerID string, r io.Reader, declaredType string) (string, error) {
	data, err := io.ReadAll(io.LimitReader(r, s.maxBytes+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > s.maxBytes {
		return "", ErrAvatarTooLarge
	}
	mime := strings.TrimSpace(strings.SplitN(declaredType, ";", 2)[0])
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mime, "image/") || len(data) == 0 {
		return "", ErrAvatarType
	}

	if s.cloud != nil {
		folder := "statusboard/avatars/" + workerID
		publicID := "avatar_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
		url, err := s.cloud.UploadAvatar(ctx, bytes.NewReader(data), folder, publicID)
		if err == nil {
			return url, nil
		}
		s.log.Warn().Err(err).Str("worker", workerID).Msg("avatar upload failed; storing inline")
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
