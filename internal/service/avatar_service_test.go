package service

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// smallest valid PNG header is enough for content sniffing
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)

func TestAvatarInlineWithoutCloud(t *testing.T) {
	svc := NewAvatarService(testConfig(), nil, zerolog.Nop())
	url, err := svc.Store(context.Background(), "a", bytes.NewReader(pngBytes), "")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestAvatarUploadsToCloud(t *testing.T) {
	cloud := &fakeCloud{url: "https://res.cloudinary.com/demo/a.png"}
	svc := NewAvatarService(testConfig(), cloud, zerolog.Nop())
	url, err := svc.Store(context.Background(), "a", bytes.NewReader(pngBytes), "image/png")
	require.NoError(t, err)
	assert.Equal(t, cloud.url, url)
	require.Len(t, cloud.uploaded, 1)
	assert.True(t, strings.HasPrefix(cloud.uploaded[0], "statusboard/avatars/a/avatar_"))
}

func TestAvatarFallsBackWhenCloudFails(t *testing.T) {
	svc := NewAvatarService(testConfig(), &fakeCloud{err: errCloudDown}, zerolog.Nop())
	url, err := svc.Store(context.Background(), "a", bytes.NewReader(pngBytes), "image/png")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "data:image/png;base64,"))
}

func TestAvatarValidation(t *testing.T) {
	cfg := testConfig()
	cfg.Upload.MaxAvatarBytes = 16
	svc := NewAvatarService(cfg, nil, zerolog.Nop())

	_, err := svc.Store(context.Background(), "a", bytes.NewReader(pngBytes), "image/png")
	assert.ErrorIs(t, err, ErrAvatarTooLarge)

	_, err = svc.Store(context.Background(), "a", strings.NewReader("hello"), "text/plain")
	assert.ErrorIs(t, err, ErrAvatarType)

	_, err = svc.Store(context.Background(), "a", strings.NewReader("plain text"), "")
	assert.ErrorIs(t, err, ErrAvatarType)
}
