package sudoapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/givemart/givemart"
	"github.com/givemart/givemart/internal/auth"
)

type logEntry struct {
	Message string
	Author  *string
	System  bool
}

func (s *BaseAPI) LogSystemAction(ctx context.Context, msg string, args ...any) {
	s.queueLog(ctx, &logEntry{
		Message: fmt.Sprintf(msg, args...),
		System:  true,
	})
}

// LogUserAction attributes the entry to the token subject of the request, if any.
func (s *BaseAPI) LogUserAction(ctx context.Context, msg string, args ...any) {
	s.queueLog(ctx, &logEntry{
		Message: fmt.Sprintf(msg, args...),
		Author:  auth.SubjectContext(ctx),
	})
}

func (s *BaseAPI) queueLog(ctx context.Context, entry *logEntry) {
	select {
	case s.logChan <- entry:
	default:
		slog.WarnContext(ctx, "Audit log queue is full, dropping entry", slog.String("msg", entry.Message))
	}
}

func (s *BaseAPI) GetAuditLogs(ctx context.Context, count int, offset int) ([]*givemart.AuditLog, error) {
	logs, err := s.db.AuditLogs(ctx, count, offset)
	if err != nil {
		return nil, WrapStorageError(err, "Couldn't fetch audit logs")
	}
	return logs, nil
}

func (s *BaseAPI) GetLogCount(ctx context.Context) (int, error) {
	cnt, err := s.db.AuditLogCount(ctx)
	if err != nil {
		return -1, WrapStorageError(err, "Couldn't get audit log count")
	}
	return cnt, nil
}

func (s *BaseAPI) ingestAuditLogs(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			if !errors.Is(ctx.Err(), context.Canceled) {
				return ctx.Err()
			}
			return nil
		case val := <-s.logChan:
			s.storeLog(ctx, val)
		}
	}
}

func (s *BaseAPI) storeLog(ctx context.Context, val *logEntry) {
	if _, err := s.db.CreateAuditLog(ctx, val.Message, val.Author, val.System); err != nil {
		slog.WarnContext(ctx, "Couldn't store audit log entry to database", slog.Any("err", err))
	}

	attrs := []any{slog.String("msg", val.Message)}
	if val.Author != nil {
		attrs = append(attrs, slog.String("author", *val.Author))
	}
	if val.System {
		attrs = append(attrs, slog.Bool("system", true))
	}
	slog.InfoContext(ctx, "Action", attrs...)
}

// FlushAuditLogs stores every queued entry. Used on shutdown and in tests.
func (s *BaseAPI) FlushAuditLogs(ctx context.Context) {
	for {
		select {
		case val := <-s.logChan:
			s.storeLog(ctx, val)
		default:
			return
		}
	}
}
