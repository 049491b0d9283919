package givemart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

var (
	ErrNoUpdates       = Statusf(400, "No updates specified")
	ErrMissingRequired = Statusf(400, "Missing required fields")

	ErrNotFound = Statusf(404, "Not found")

	ErrUnknownError = Statusf(500, "Unknown error occured")

	ErrEmptyDonationSet = Statusf(400, "No donations selected for payout")
	ErrDonationConflict = Statusf(409, "Some donations are invalid or already paid. Refresh and try again.")
	ErrStorage          = Statusf(503, "Temporary storage failure, please retry.")
)

var _ error = &StatusError{}

type StatusError struct {
	Code int
	Text string

	WrappedError error
}

func (s *StatusError) LogValue() slog.Value {
	if s == nil {
		return slog.Value{}
	}
	if s.WrappedError != nil {
		return slog.GroupValue(slog.String("text", s.Text), slog.Int("code", s.Code), slog.Any("err", s.WrappedError))
	}
	return slog.StringValue(s.Text)
}

func (s *StatusError) Error() string {
	return s.Text
}

func (s *StatusError) Unwrap() error {
	return s.WrappedError
}

func (s *StatusError) Is(target error) bool {
	if err, ok := target.(*StatusError); ok {
		return err.Text == s.Text
	}
	return false
}

func (s *StatusError) WriteError(w http.ResponseWriter) {
	if s == nil {
		StatusData(w, "error", ErrUnknownError.Text, 500)
		return
	}
	StatusData(w, "error", s.Text, s.Code)
}

func Statusf(status int, format string, args ...any) *StatusError {
	return &StatusError{Code: status, Text: fmt.Sprintf(format, args...)}
}

// WrapError attaches text to err. Errors that already carry a status are
// returned untouched so their code survives the trip up the stack.
func WrapError(err error, text string) *StatusError {
	if err == nil {
		return nil
	}
	var err2 *StatusError
	if errors.As(err, &err2) {
		return err2
	}
	return &StatusError{Code: 500, Text: text, WrappedError: err}
}

// WrapStorageError is like WrapError, but failures coming from the store are
// reported as retryable (503).
func WrapStorageError(err error, text string) *StatusError {
	if err == nil {
		return nil
	}
	var err2 *StatusError
	if errors.As(err, &err2) {
		return err2
	}
	if errors.Is(err, context.Canceled) {
		return &StatusError{Code: 499, Text: "Request cancelled", WrappedError: err}
	}
	return &StatusError{Code: ErrStorage.Code, Text: text + ": " + ErrStorage.Text, WrappedError: err}
}

func ErrorCode(err error) int {
	if err == nil {
		return 200
	}
	var err2 *StatusError
	if errors.As(err, &err2) {
		return err2.Code
	}
	return 500
}

// IsValidation reports malformed input that was rejected before reaching the store.
func IsValidation(err error) bool {
	return ErrorCode(err) == 400
}

// IsConflict reports a payout request whose donation set no longer matches the ledger.
func IsConflict(err error) bool {
	return ErrorCode(err) == 409
}

// IsStorage reports a store failure. The ledger is unchanged and the call may be retried.
func IsStorage(err error) bool {
	return ErrorCode(err) == 503
}
