package store

import (
	"context"
	"fmt"
	"time"

	"leadscout-engine/internal/domain"
)

// AppendRunLog writes one audit row; the table is append-only by convention.
func AppendRunLog(ctx context.Context, q Querier, e domain.RunLogEntry) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := q.ExecContext(ctx, `
INSERT INTO run_logs (run_id, scrape_type, source, target, status, found, new_leads, updated_leads, errors, error_msg, duration_ms, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?);`,
		e.RunID, e.ScrapeType, string(e.Source), e.Target, string(e.Status),
		e.Found, e.New, e.Updated, e.Errors, e.ErrorMsg, e.DurationMs,
		encodeTime(e.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("append run log: %w", err)
	}
	return nil
}

func ListRunLogs(ctx context.Context, q Querier, limit int) ([]domain.RunLogEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = 100
	}
	rows, err := q.QueryContext(ctx, `
SELECT id, run_id, scrape_type, source, target, status, found, new_leads, updated_leads, errors, error_msg, duration_ms, created_at
FROM run_logs
ORDER BY id DESC
LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.RunLogEntry
	for rows.Next() {
		var e domain.RunLogEntry
		var src, status, created string
		if err := rows.Scan(
			&e.ID, &e.RunID, &e.ScrapeType, &src, &e.Target, &status,
			&e.Found, &e.New, &e.Updated, &e.Errors, &e.ErrorMsg, &e.DurationMs, &created,
		); err != nil {
			return nil, err
		}
		e.Source = domain.Source(src)
		e.Status = domain.RunStatus(status)
		e.CreatedAt = decodeTime(created)
		out = append(out, e)
	}
	return out, rows.Err()
}
