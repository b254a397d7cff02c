package crawl

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/store"
)

// Outcome is what reconciling one raw lead against storage produced.
type Outcome int

const (
	Inserted Outcome = iota
	Updated
	Touched
)

func (o Outcome) String() string {
	switch o {
	case Inserted:
		return "inserted"
	case Updated:
		return "updated"
	case Touched:
		return "touched"
	}
	return "unknown"
}

// NewOrChanged is the boolean the smart-stop tracker consumes: a touch means
// "already known, nothing new here".
func (o Outcome) NewOrChanged() bool { return o != Touched }

// Reconciler compares freshly extracted leads to stored state and performs
// the minimal write: full insert, full mutable-field update, or a
// last_checked_at touch. It holds no state of its own.
type Reconciler struct {
	DB *store.DB
	NG *NGMatcher

	// Now is replaceable in tests.
	Now func() time.Time
}

func NewReconciler(db *store.DB, ng *NGMatcher) *Reconciler {
	return &Reconciler{DB: db, NG: ng, Now: func() time.Time { return time.Now().UTC() }}
}

// Reconcile runs the lookup-compare-write for one lead inside a single
// transaction, so concurrent source tasks can share the storage handle.
func (r *Reconciler) Reconcile(ctx context.Context, raw domain.RawLead) (Outcome, error) {
	now := r.Now()
	var out Outcome

	err := r.DB.WithTx(ctx, func(tx *sql.Tx) error {
		stored, err := store.GetLeadByIdentity(ctx, tx, raw.Identity)
		if err != nil {
			return err
		}

		if stored == nil {
			lead := leadFromRaw(raw)
			lead.ScrapedAt = now
			lead.LastCheckedAt = now
			lead.NGKeywordMatches = r.NG.Match(raw)
			out = Inserted
			return store.InsertLead(ctx, tx, lead)
		}

		if significantChange(stored, raw) {
			lead := leadFromRaw(raw)
			lead.ID = stored.ID
			lead.ScrapedAt = stored.ScrapedAt // set once, never overwritten
			lead.LastCheckedAt = laterOf(now, stored.LastCheckedAt)
			lead.NGKeywordMatches = r.NG.Match(raw)
			out = Updated
			return store.UpdateLead(ctx, tx, lead)
		}

		out = Touched
		return store.TouchLead(ctx, tx, stored.ID, laterOf(now, stored.LastCheckedAt))
	})
	if err != nil {
		return out, fmt.Errorf("reconcile %s/%s: %w", raw.Identity.Source, raw.Identity.RecordID, err)
	}
	return out, nil
}

// significantChange compares the fixed field set that justifies a full row
// rewrite. Everything else rides along when one of these moves.
func significantChange(stored *domain.Lead, raw domain.RawLead) bool {
	if stored.Title != raw.Title {
		return true
	}
	if !intPtrEq(stored.SalaryMin, raw.SalaryMin) || !intPtrEq(stored.SalaryMax, raw.SalaryMax) {
		return true
	}
	if stored.Description != raw.Description {
		return true
	}
	if !timePtrEq(stored.DateExpires, raw.DateExpires) {
		return true
	}
	if stored.IsActive != raw.IsActive {
		return true
	}
	return false
}

func leadFromRaw(raw domain.RawLead) domain.Lead {
	return domain.Lead{
		ID:             raw.Identity.LeadID(),
		Identity:       raw.Identity,
		Title:          raw.Title,
		CompanyName:    raw.CompanyName,
		CompanyURL:     raw.CompanyURL,
		CompanyLogoURL: raw.CompanyLogoURL,
		EmploymentType: raw.EmploymentType,
		Industry:       raw.Industry,
		Description:    raw.Description,
		Requirements:   raw.Requirements,
		Benefits:       raw.Benefits,
		WorkHours:      raw.WorkHours,
		SalaryMin:      raw.SalaryMin,
		SalaryMax:      raw.SalaryMax,
		SalaryText:     raw.SalaryText,
		Locations:      raw.Locations,
		LocationText:   raw.LocationText,
		Labels:         raw.Labels,
		Keywords:       raw.Keywords,
		PageURL:        raw.PageURL,
		DatePosted:     raw.DatePosted,
		DateExpires:    raw.DateExpires,
		DateUpdated:    raw.DateUpdated,
		IsActive:       raw.IsActive,
	}
}

func intPtrEq(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func timePtrEq(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func laterOf(a, b time.Time) time.Time {
	if b.After(a) {
		return b
	}
	return a
}
