package givemart

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"syscall"
)

// envelope is the body of every JSON API response.
type envelope struct {
	Status string `json:"status"`
	Data   any    `json:"data"`
}

// StatusData writes retData wrapped in the response envelope. Status errors
// replace statusCode with their own code; other errors are sent as text.
func StatusData(w http.ResponseWriter, status string, retData any, statusCode int) {
	if err, ok := retData.(error); ok {
		var serr *StatusError
		switch {
		case errors.As(err, &serr) && serr != nil:
			status, retData, statusCode = "error", serr.Text, serr.Code
		case errors.As(err, &serr):
			status, retData, statusCode = "error", ErrUnknownError.Text, ErrUnknownError.Code
		default:
			retData = err.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(envelope{Status: status, Data: retData}); err != nil && !errors.Is(err, syscall.EPIPE) {
		slog.Warn("Couldn't send response", slog.Any("err", err))
	}
}
