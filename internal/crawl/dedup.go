package crawl

// DefaultDedupThreshold is how many consecutive already-known, unchanged
// leads a task tolerates before assuming it has crawled past the tail of
// genuinely fresh postings.
const DefaultDedupThreshold = 50

// Tracker is the per-task smart-stop counter. It never consults storage; it
// consumes the reconciliation outcome per record, in production order.
type Tracker struct {
	threshold int
	enabled   bool
	streak    int
}

func NewTracker(threshold int, enabled bool) *Tracker {
	if threshold <= 0 {
		threshold = DefaultDedupThreshold
	}
	return &Tracker{threshold: threshold, enabled: enabled}
}

// Observe feeds one outcome in. It reports true when the task should stop:
// the consecutive-duplicate streak has reached the threshold. Any new or
// changed lead resets the streak.
func (t *Tracker) Observe(newOrChanged bool) (stop bool) {
	if newOrChanged {
		t.streak = 0
		return false
	}
	t.streak++
	return t.enabled && t.streak >= t.threshold
}

func (t *Tracker) Streak() int { return t.streak }
