// Package apperr holds sentinel errors shared by the service layer and its transports.
package apperr

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrUnavailable     = errors.New("knowledge base unavailable")
	ErrCatalogDisabled = errors.New("catalog disabled")
)
