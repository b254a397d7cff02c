package domain

import (
	"crypto/sha1"
	"encoding/hex"
	"time"
)

// Source identifies one of the recruiting sites the engine knows how to crawl.
type Source string

const (
	SourceRikunabi Source = "rikunabi"
	SourceMynavi   Source = "mynavi"
	SourceDoda     Source = "doda"
)

// AllSources lists every supported source in a stable order.
var AllSources = []Source{SourceRikunabi, SourceMynavi, SourceDoda}

func (s Source) Valid() bool {
	switch s {
	case SourceRikunabi, SourceMynavi, SourceDoda:
		return true
	}
	return false
}

// Identity is the (source, source-local id) pair that names a posting across
// crawls. It is immutable once assigned.
type Identity struct {
	Source   Source `json:"source"`
	RecordID string `json:"record_id"`
}

// LeadID derives the storage primary key from the identity.
func (id Identity) LeadID() string {
	sum := sha1.Sum([]byte(string(id.Source) + ":" + id.RecordID))
	return hex.EncodeToString(sum[:])
}

// RawLead is what a site strategy hands to reconciliation: extracted and
// normalized field values, no storage bookkeeping yet.
type RawLead struct {
	Identity Identity

	Title          string
	CompanyName    string
	CompanyURL     string
	CompanyLogoURL string
	EmploymentType string
	Industry       string
	Description    string
	Requirements   string
	Benefits       string
	WorkHours      string
	SalaryMin      *int // 万円/year where parseable
	SalaryMax      *int
	SalaryText     string
	Locations      []string
	LocationText   string
	Labels         []string
	Keywords       []string
	PageURL        string

	DatePosted  time.Time
	DateExpires *time.Time
	DateUpdated *time.Time
	IsActive    bool
}

// Lead is the stored canonical record.
type Lead struct {
	ID       string   `json:"id"`
	Identity Identity `json:"identity"`

	Title          string   `json:"title"`
	CompanyName    string   `json:"company_name"`
	CompanyURL     string   `json:"company_url"`
	CompanyLogoURL string   `json:"company_logo_url"`
	EmploymentType string   `json:"employment_type"`
	Industry       string   `json:"industry"`
	Description    string   `json:"description"`
	Requirements   string   `json:"requirements"`
	Benefits       string   `json:"benefits"`
	WorkHours      string   `json:"work_hours"`
	SalaryMin      *int     `json:"salary_min"`
	SalaryMax      *int     `json:"salary_max"`
	SalaryText     string   `json:"salary_text"`
	Locations      []string `json:"locations"`
	LocationText   string   `json:"location_text"`
	Labels         []string `json:"labels"`
	Keywords       []string `json:"keywords"`
	PageURL        string   `json:"page_url"`

	DatePosted  time.Time  `json:"date_posted"`
	DateExpires *time.Time `json:"date_expires"`
	DateUpdated *time.Time `json:"date_updated"`

	ScrapedAt     time.Time `json:"scraped_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	IsActive      bool      `json:"is_active"`

	NGKeywordMatches []string `json:"ng_keyword_matches"`
}

// RunStatus classifies how a single source task ended.
type RunStatus string

const (
	RunSuccess RunStatus = "success"
	RunPartial RunStatus = "partial"
	RunFailure RunStatus = "failure"
)

// RunLogEntry is the append-only audit record written once per source per
// crawl invocation.
type RunLogEntry struct {
	ID         int64     `json:"id"`
	RunID      string    `json:"run_id"`
	ScrapeType string    `json:"scrape_type"`
	Source     Source    `json:"source"`
	Target     string    `json:"target"`
	Status     RunStatus `json:"status"`
	Found      int       `json:"found"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Errors     int       `json:"errors"`
	ErrorMsg   string    `json:"error_msg,omitempty"`
	DurationMs int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}
