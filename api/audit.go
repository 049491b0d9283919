package api

import (
	"net/http"

	"github.com/givemart/givemart"
)

func (s *API) auditLogs(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		errorData(w, "Malformed query string", http.StatusBadRequest)
		return
	}
	var args struct {
		Page     int `json:"page"`
		PageSize int `json:"page_size"`
	}
	if err := decoder.Decode(&args, r.Form); err != nil {
		errorData(w, "Invalid query parameters", http.StatusBadRequest)
		return
	}
	if args.Page < 1 {
		args.Page = 1
	}
	if args.PageSize <= 0 || args.PageSize > 100 {
		args.PageSize = 50
	}

	cnt, err := s.base.GetLogCount(r.Context())
	if err != nil {
		statusError(w, r, err)
		return
	}
	args.Page = max(1, min(args.Page, (cnt+args.PageSize-1)/args.PageSize))
	logs, err := s.base.GetAuditLogs(r.Context(), args.PageSize, (args.Page-1)*args.PageSize)
	if err != nil {
		statusError(w, r, err)
		return
	}
	returnData(w, struct {
		Logs  []*givemart.AuditLog `json:"logs"`
		Count int                  `json:"total_count"`
	}{Logs: logs, Count: cnt})
}
