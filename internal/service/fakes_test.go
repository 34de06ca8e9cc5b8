package service

import (
	"context"
	"errors"
	"io"

	"statusboard/config"
	"statusboard/internal/domain"
	"statusboard/internal/models"
)

type fakeCloud struct {
	url      string
	err      error
	uploaded []string
}

func (c *fakeCloud) UploadAvatar(_ context.Context, file io.Reader, folder, publicID string) (string, error) {
	if _, err := io.ReadAll(file); err != nil {
		return "", err
	}
	c.uploaded = append(c.uploaded, folder+"/"+publicID)
	return c.url, c.err
}

func (c *fakeCloud) Delete(context.Context, string, string) error { return nil }

var errCloudDown = errors.New("cloud down")

func testConfig() *config.Config {
	cfg := config.Load()
	cfg.JWT.AccessSecret = "test-secret"
	cfg.OAuth.AllowedEmailDomain = "@getrime.com"
	return cfg
}

func employee(id, username string) models.Worker {
	return models.Worker{ID: id, Username: username, DisplayName: username, Status: domain.StatusFree, Role: domain.RoleEmployee}
}

func strptr(s string) *string { return &s }
