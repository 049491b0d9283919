package db

import (
	"context"
	"strings"
	"time"

	"github.com/givemart/givemart"
	"github.com/jackc/pgx/v5"
)

type auditRow struct {
	ID       int       `db:"id"`
	LoggedAt time.Time `db:"logged_at"`
	System   bool      `db:"system_log"`
	Msg      string    `db:"msg"`
	Author   *string   `db:"author"`
}

func (r *auditRow) toEntry() *givemart.AuditLog {
	return &givemart.AuditLog{
		ID:        r.ID,
		LogTime:   r.LoggedAt,
		SystemLog: r.System,
		Message:   r.Msg,
		Author:    r.Author,
	}
}

// CreateAuditLog stores one entry. Author is the token subject, nil for CLI actions.
func (s *DB) CreateAuditLog(ctx context.Context, msg string, author *string, system bool) (int, error) {
	query, args, err := psql.Insert("audit_logs").
		Columns("system_log", "msg", "author").
		Values(system, strings.TrimSpace(msg), author).
		Suffix("RETURNING id").ToSql()
	if err != nil {
		return -1, err
	}
	var id int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&id)
	return id, err
}

// AuditLogs returns the newest entries first. A non-positive limit returns everything.
func (s *DB) AuditLogs(ctx context.Context, limit, offset int) ([]*givemart.AuditLog, error) {
	sb := psql.Select("id", "logged_at", "system_log", "msg", "author").
		From("audit_logs").
		OrderBy("logged_at DESC", "id DESC")
	if limit > 0 {
		sb = sb.Limit(uint64(limit))
	}
	if offset > 0 {
		sb = sb.Offset(uint64(offset))
	}
	query, args, err := sb.ToSql()
	if err != nil {
		return nil, err
	}
	rows, _ := s.conn.Query(ctx, query, args...)
	entries, err := pgx.CollectRows(rows, pgx.RowToAddrOfStructByName[auditRow])
	if err != nil {
		return nil, err
	}
	return mapper(entries, (*auditRow).toEntry), nil
}

func (s *DB) AuditLogCount(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").From("audit_logs").ToSql()
	if err != nil {
		return -1, err
	}
	var cnt int
	err = s.conn.QueryRow(ctx, query, args...).Scan(&cnt)
	return cnt, err
}
