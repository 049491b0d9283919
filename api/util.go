package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/givemart/givemart"
	"github.com/go-chi/chi/v5"
)

func returnData(w http.ResponseWriter, retData any) {
	givemart.StatusData(w, "success", retData, 200)
}

func errorData(w http.ResponseWriter, retData any, errCode int) {
	givemart.StatusData(w, "error", retData, errCode)
}

// statusError writes err with its status code. Errors without a status are
// logged and hidden behind a generic message.
func statusError(w http.ResponseWriter, r *http.Request, err error) {
	var serr *givemart.StatusError
	if errors.As(err, &serr) {
		if serr.Code >= 500 {
			slog.WarnContext(r.Context(), "Request failed", slog.String("path", r.URL.Path), slog.Any("err", serr))
		}
		serr.WriteError(w)
		return
	}
	slog.ErrorContext(r.Context(), "Unexpected error", slog.String("path", r.URL.Path), slog.Any("err", err))
	givemart.ErrUnknownError.WriteError(w)
}

func parseJSONBody[T any](r *http.Request, output *T) *givemart.StatusError {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(output); err != nil {
		return givemart.Statusf(400, "Invalid JSON input.")
	}
	return nil
}

func urlID(r *http.Request, name string) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
