package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"leadscout-engine/internal/domain"
)

const leadColumns = `lead_id, source, record_id, title, company_name, company_url, company_logo_url,
employment_type, industry, description, requirements, benefits, work_hours,
salary_min, salary_max, salary_text, locations, location_text, labels, keywords, page_url,
date_posted, date_expires, date_updated, scraped_at, last_checked_at, is_active, ng_matches`

// GetLeadByIdentity returns the stored lead, or nil when the identity has
// never been seen.
func GetLeadByIdentity(ctx context.Context, q Querier, id domain.Identity) (*domain.Lead, error) {
	row := q.QueryRowContext(ctx, `
SELECT `+leadColumns+`
FROM leads
WHERE source = ? AND record_id = ?;`,
		string(id.Source), id.RecordID,
	)
	lead, err := scanLead(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get lead %s/%s: %w", id.Source, id.RecordID, err)
	}
	return lead, nil
}

func InsertLead(ctx context.Context, q Querier, l domain.Lead) error {
	_, err := q.ExecContext(ctx, `
INSERT INTO leads (`+leadColumns+`)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?);`,
		l.ID, string(l.Identity.Source), l.Identity.RecordID,
		l.Title, l.CompanyName, l.CompanyURL, l.CompanyLogoURL,
		l.EmploymentType, l.Industry, l.Description, l.Requirements, l.Benefits, l.WorkHours,
		l.SalaryMin, l.SalaryMax, l.SalaryText,
		jsonList(l.Locations), l.LocationText, jsonList(l.Labels), jsonList(l.Keywords), l.PageURL,
		encodeTime(l.DatePosted), encodeTimePtr(l.DateExpires), encodeTimePtr(l.DateUpdated),
		encodeTime(l.ScrapedAt), encodeTime(l.LastCheckedAt), boolInt(l.IsActive),
		jsonList(l.NGKeywordMatches),
	)
	if err != nil {
		return fmt.Errorf("insert lead %s: %w", l.ID, err)
	}
	return nil
}

// UpdateLead rewrites every mutable field of an existing lead. Identity and
// scraped_at are deliberately left alone.
func UpdateLead(ctx context.Context, q Querier, l domain.Lead) error {
	res, err := q.ExecContext(ctx, `
UPDATE leads SET
  title = ?, company_name = ?, company_url = ?, company_logo_url = ?,
  employment_type = ?, industry = ?, description = ?, requirements = ?, benefits = ?, work_hours = ?,
  salary_min = ?, salary_max = ?, salary_text = ?,
  locations = ?, location_text = ?, labels = ?, keywords = ?, page_url = ?,
  date_posted = ?, date_expires = ?, date_updated = ?,
  last_checked_at = ?, is_active = ?, ng_matches = ?
WHERE lead_id = ?;`,
		l.Title, l.CompanyName, l.CompanyURL, l.CompanyLogoURL,
		l.EmploymentType, l.Industry, l.Description, l.Requirements, l.Benefits, l.WorkHours,
		l.SalaryMin, l.SalaryMax, l.SalaryText,
		jsonList(l.Locations), l.LocationText, jsonList(l.Labels), jsonList(l.Keywords), l.PageURL,
		encodeTime(l.DatePosted), encodeTimePtr(l.DateExpires), encodeTimePtr(l.DateUpdated),
		encodeTime(l.LastCheckedAt), boolInt(l.IsActive), jsonList(l.NGKeywordMatches),
		l.ID,
	)
	if err != nil {
		return fmt.Errorf("update lead %s: %w", l.ID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("update lead %s: no such row", l.ID)
	}
	return nil
}

// TouchLead refreshes only the liveness timestamp.
func TouchLead(ctx context.Context, q Querier, leadID string, ts time.Time) error {
	_, err := q.ExecContext(ctx, `
UPDATE leads SET last_checked_at = ? WHERE lead_id = ?;`,
		encodeTime(ts), leadID,
	)
	if err != nil {
		return fmt.Errorf("touch lead %s: %w", leadID, err)
	}
	return nil
}

// MarkStale flips is_active off for leads not observed since cutoff. Rows are
// kept for history, never deleted.
func MarkStale(ctx context.Context, q Querier, cutoff time.Time) (int64, error) {
	res, err := q.ExecContext(ctx, `
UPDATE leads SET is_active = 0
WHERE is_active = 1 AND last_checked_at < ?;`,
		encodeTime(cutoff),
	)
	if err != nil {
		return 0, fmt.Errorf("mark stale: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

type ListLeadsOpts struct {
	Source     string // "" = all
	ActiveOnly bool
	Window     string // 24h | 7d | all
	Limit      int
}

func ListLeads(ctx context.Context, q Querier, opts ListLeadsOpts) ([]domain.Lead, error) {
	if opts.Limit <= 0 || opts.Limit > 2000 {
		opts.Limit = 500
	}

	where := "WHERE 1=1"
	var args []any
	if opts.Source != "" {
		where += " AND source = ?"
		args = append(args, opts.Source)
	}
	if opts.ActiveOnly {
		where += " AND is_active = 1"
	}
	switch opts.Window {
	case "24h":
		where += " AND date_posted >= datetime('now','-24 hours')"
	case "all":
	default:
		where += " AND date_posted >= datetime('now','-7 days')"
	}
	args = append(args, opts.Limit)

	rows, err := q.QueryContext(ctx, `
SELECT `+leadColumns+`
FROM leads
`+where+`
ORDER BY date_posted DESC
LIMIT ?;`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *l)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLead(r rowScanner) (*domain.Lead, error) {
	var l domain.Lead
	var src string
	var locations, labels, keywords, ngMatches string
	var datePosted, scrapedAt, lastCheckedAt string
	var dateExpires, dateUpdated sql.NullString
	var active int

	if err := r.Scan(
		&l.ID, &src, &l.Identity.RecordID,
		&l.Title, &l.CompanyName, &l.CompanyURL, &l.CompanyLogoURL,
		&l.EmploymentType, &l.Industry, &l.Description, &l.Requirements, &l.Benefits, &l.WorkHours,
		&l.SalaryMin, &l.SalaryMax, &l.SalaryText,
		&locations, &l.LocationText, &labels, &keywords, &l.PageURL,
		&datePosted, &dateExpires, &dateUpdated, &scrapedAt, &lastCheckedAt, &active,
		&ngMatches,
	); err != nil {
		return nil, err
	}

	l.Identity.Source = domain.Source(src)
	l.IsActive = active != 0
	_ = json.Unmarshal([]byte(locations), &l.Locations)
	_ = json.Unmarshal([]byte(labels), &l.Labels)
	_ = json.Unmarshal([]byte(keywords), &l.Keywords)
	_ = json.Unmarshal([]byte(ngMatches), &l.NGKeywordMatches)
	l.DatePosted = decodeTime(datePosted)
	l.ScrapedAt = decodeTime(scrapedAt)
	l.LastCheckedAt = decodeTime(lastCheckedAt)
	l.DateExpires = decodeTimePtr(dateExpires)
	l.DateUpdated = decodeTimePtr(dateUpdated)
	return &l, nil
}

func jsonList(xs []string) string {
	if len(xs) == 0 {
		return "[]"
	}
	b, _ := json.Marshal(xs)
	return string(b)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func encodeTimePtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return encodeTime(*t)
}

func decodeTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func decodeTimePtr(s sql.NullString) *time.Time {
	if !s.Valid || s.String == "" {
		return nil
	}
	t := decodeTime(s.String)
	return &t
}
