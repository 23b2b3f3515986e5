package service

import "registry/internal/domain"

// The service surfaces the domain taxonomy directly; transport maps these
// to status codes.
var (
	ErrValidation         = domain.ErrValidation
	ErrUnauthorized       = domain.ErrUnauthorized
	ErrNotFound           = domain.ErrNotFound
	ErrVersionExists      = domain.ErrVersionExists
	ErrInvalidArchiveType = domain.ErrInvalidArchiveType
	ErrCorruptArchive     = domain.ErrCorruptArchive
	ErrInvalidToken       = domain.ErrInvalidToken
	ErrTokenExpired       = domain.ErrTokenExpired
)
