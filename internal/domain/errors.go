package domain

import "errors"

var (
	ErrValidation         = errors.New("validation failed")
	ErrUnauthorized       = errors.New("unauthorized")
	ErrNotFound           = errors.New("not found")
	ErrVersionExists      = errors.New("version already exists")
	ErrInvalidArchiveType = errors.New("invalid archive type")
	ErrCorruptArchive     = errors.New("corrupt archive")
	ErrInvalidToken       = errors.New("invalid upload token")
	ErrTokenExpired       = errors.New("upload token expired")
)
