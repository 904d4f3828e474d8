package services

import (
	"errors"

	"orquidea/notify"
)

// Failure classes of the update pipeline. Callers match them with errors.Is.
var (
	ErrSourceUnavailable = errors.New("record source unavailable")
	ErrPersistence       = errors.New("persistence failure")
	ErrDispatch          = errors.New("notification dispatch failure")
	ErrRunInProgress     = errors.New("update run already in progress")
	ErrInvalidInput      = errors.New("invalid input")
	ErrConfiguration     = notify.ErrConfiguration
)
