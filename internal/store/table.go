package store

import "database/sql"

func Migrate(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var v int
	if err := tx.QueryRow(`PRAGMA user_version;`).Scan(&v); err != nil {
		return err
	}

	if v >= 1 {
		return tx.Commit()
	}

	// ---- Schema v1: tables ----

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS leads (
  lead_id TEXT PRIMARY KEY,
  source TEXT NOT NULL,
  record_id TEXT NOT NULL,
  title TEXT NOT NULL,
  company_name TEXT NOT NULL DEFAULT '',
  company_url TEXT NOT NULL DEFAULT '',
  company_logo_url TEXT NOT NULL DEFAULT '',
  employment_type TEXT NOT NULL DEFAULT '',
  industry TEXT NOT NULL DEFAULT '',
  description TEXT NOT NULL DEFAULT '',
  requirements TEXT NOT NULL DEFAULT '',
  benefits TEXT NOT NULL DEFAULT '',
  work_hours TEXT NOT NULL DEFAULT '',
  salary_min INTEGER,
  salary_max INTEGER,
  salary_text TEXT NOT NULL DEFAULT '',
  locations TEXT NOT NULL DEFAULT '[]',
  location_text TEXT NOT NULL DEFAULT '',
  labels TEXT NOT NULL DEFAULT '[]',
  keywords TEXT NOT NULL DEFAULT '[]',
  page_url TEXT NOT NULL DEFAULT '',
  date_posted TEXT NOT NULL,
  date_expires TEXT,
  date_updated TEXT,
  scraped_at TEXT NOT NULL,
  last_checked_at TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  ng_matches TEXT NOT NULL DEFAULT '[]'
);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE TABLE IF NOT EXISTS run_logs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  run_id TEXT NOT NULL,
  scrape_type TEXT NOT NULL,
  source TEXT NOT NULL,
  target TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL,
  found INTEGER NOT NULL DEFAULT 0,
  new_leads INTEGER NOT NULL DEFAULT 0,
  updated_leads INTEGER NOT NULL DEFAULT 0,
  errors INTEGER NOT NULL DEFAULT 0,
  error_msg TEXT NOT NULL DEFAULT '',
  duration_ms INTEGER NOT NULL DEFAULT 0,
  created_at TEXT NOT NULL
);
`); err != nil {
		return err
	}

	// ---- Schema v1: indexes ----

	if _, err := tx.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_leads_identity
ON leads(source, record_id);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_leads_last_checked
ON leads(last_checked_at);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`
CREATE INDEX IF NOT EXISTS idx_run_logs_created
ON run_logs(created_at DESC);
`); err != nil {
		return err
	}

	if _, err := tx.Exec(`PRAGMA user_version = 1;`); err != nil {
		return err
	}

	return tx.Commit()
}
