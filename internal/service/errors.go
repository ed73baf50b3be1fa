package service

import (
	"errors"

	"github.com/foxford/event/internal/apperr"
	"github.com/foxford/event/internal/repository"
)

// mapNotFound turns a repository ErrNotFound into the caller-supplied
// apperr taxonomy entry, and anything else into a database failure.
// Every service in this package funnels its repository errors through
// this instead of leaking gorm/redis error types upward.
func mapNotFound(err error, notFound apperr.Type, detail string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.New(notFound, detail)
	}
	return apperr.Wrap(apperr.DatabaseQueryFailed, detail, err)
}

func mapDuplicate(err error, conflict apperr.Type, detail string) error {
	if errors.Is(err, repository.ErrDuplicateEntry) {
		return apperr.New(conflict, detail)
	}
	return apperr.Wrap(apperr.DatabaseQueryFailed, detail, err)
}
