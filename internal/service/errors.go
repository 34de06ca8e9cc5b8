package service

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrInvalidCreds      = errors.New("invalid username or password")
	ErrDomainNotAllowed  = errors.New("email domain not allowed")
	ErrWorkerNotFound    = errors.New("worker not found")
	ErrForbidden         = errors.New("forbidden")
	ErrUsernameExists    = errors.New("username already taken")
	ErrEmailExists       = errors.New("email already registered")
	ErrPasswordTooShort  = errors.New("password must be at least 6 characters")
	ErrDisplayNameEmpty  = errors.New("display name required")
	ErrSelfDelete        = errors.New("cannot delete your own account")
	ErrIntegrity         = errors.New("write returned a different record")
	ErrAvatarTooLarge    = errors.New("avatar exceeds the size limit")
	ErrAvatarType        = errors.New("avatar must be an image")
	ErrNoPasswordAccount = errors.New("account uses Google sign-in; ask an admin to set a password")
)

const minPasswordLen = 6

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrWorkerNotFound
	}
	return err
}
