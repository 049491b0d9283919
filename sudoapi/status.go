package sudoapi

import (
	"github.com/givemart/givemart"
)

var (
	ErrNoUpdates       = givemart.ErrNoUpdates
	ErrMissingRequired = givemart.ErrMissingRequired

	ErrNotFound     = givemart.ErrNotFound
	ErrUnknownError = givemart.ErrUnknownError

	ErrEmptyDonationSet = givemart.ErrEmptyDonationSet
	ErrDonationConflict = givemart.ErrDonationConflict
)

type StatusError = givemart.StatusError

// Shorthands for the root package constructors.

func Statusf(status int, format string, args ...any) *StatusError {
	return givemart.Statusf(status, format, args...)
}

func WrapError(err error, text string) *StatusError {
	return givemart.WrapError(err, text)
}

func WrapStorageError(err error, text string) *StatusError {
	return givemart.WrapStorageError(err, text)
}

// validationError turns an ozzo validation failure into a 400 carrying its message.
func validationError(err error, prefix string) *StatusError {
	return &StatusError{Code: 400, Text: prefix + ": " + err.Error(), WrappedError: err}
}
