package crawl

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/crawl/gate"
	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/events"
	"leadscout-engine/internal/monitoring"
	"leadscout-engine/internal/store"
)

type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateStopped   State = "stopped"
	StateFailed    State = "failed"
)

// ConfigError rejects a start request synchronously, before any task spawns.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "invalid crawl configuration: " + e.Reason }

var ErrAlreadyRunning = errors.New("a crawl is already running")

// Status is the externally visible run snapshot.
type Status struct {
	State      State     `json:"state"`
	RunID      string    `json:"run_id,omitempty"`
	StartedAt  time.Time `json:"started_at,omitempty"`
	Found      int       `json:"found"`
	New        int       `json:"new"`
	Updated    int       `json:"updated"`
	Duplicates int       `json:"duplicates"`
	Errors     int       `json:"errors"`
}

// Orchestrator owns the crawl lifecycle: one task per selected source under a
// global concurrency cap, cooperative stop, per-source run log entries, and a
// final summary event.
type Orchestrator struct {
	db      *store.DB
	hub     *events.Hub
	log     *zap.Logger
	metrics *monitoring.Metrics

	mu            sync.Mutex
	state         State
	runID         string
	cancel        context.CancelFunc
	stopRequested bool
	done          chan struct{}
	startedAt     time.Time
	perSource     map[domain.Source]Status
	lastSummary   *events.Summary
}

func NewOrchestrator(db *store.DB, hub *events.Hub, log *zap.Logger, metrics *monitoring.Metrics) *Orchestrator {
	return &Orchestrator{
		db:      db,
		hub:     hub,
		log:     log,
		metrics: metrics,
		state:   StateIdle,
	}
}

// StrategyFactory builds the per-run strategy set. The gate is created by
// the orchestrator per run so rate limits always reflect the run's config.
type StrategyFactory func(cfg config.Config, g types.Gate) map[domain.Source]types.Strategy

// Start validates and, if the config holds up, launches the run in the
// background. The returned run ID tags every event and run log row.
func (o *Orchestrator) Start(cfg config.Config, factory StrategyFactory) (string, error) {
	cfg, v := config.NormalizeAndValidateCrawl(cfg)
	if !v.OK() {
		return "", &ConfigError{Reason: strings.Join(v.Errors, "; ")}
	}
	sources := cfg.EnabledSources()
	if len(sources) == 0 {
		return "", &ConfigError{Reason: "no sources selected"}
	}

	limits := make(map[domain.Source]gate.Limits, len(sources))
	for _, s := range sources {
		sc := cfg.Site(s)
		limits[s] = gate.Limits{
			Interval:    time.Duration(sc.RequestInterval * float64(time.Second)),
			MaxInFlight: sc.MaxInFlight,
		}
	}
	gt := gate.New(limits)

	strategies := factory(cfg, gt)
	for _, s := range sources {
		if _, ok := strategies[s]; !ok {
			return "", &ConfigError{Reason: fmt.Sprintf("no strategy registered for source %q", s)}
		}
	}

	o.mu.Lock()
	if o.state == StateRunning {
		o.mu.Unlock()
		return "", ErrAlreadyRunning
	}

	runID := uuid.NewString()
	ctx := context.Background()
	var cancel context.CancelFunc
	if d := cfg.MaxDuration(); d > 0 {
		ctx, cancel = context.WithTimeout(ctx, d)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	o.state = StateRunning
	o.runID = runID
	o.cancel = cancel
	o.stopRequested = false
	o.done = make(chan struct{})
	o.startedAt = time.Now()
	o.perSource = make(map[domain.Source]Status)
	o.mu.Unlock()

	go o.run(ctx, cancel, cfg, sources, strategies, runID)
	return runID, nil
}

// Stop requests cooperative cancellation. Tasks finish the record in flight,
// skip further pages, and the run lands in StateStopped. Reports whether a
// run was actually active.
func (o *Orchestrator) Stop() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state != StateRunning {
		return false
	}
	o.stopRequested = true
	o.cancel()
	return true
}

// Done exposes the current run's completion channel; nil when idle.
func (o *Orchestrator) Done() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.done
}

func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	st := Status{State: o.state, RunID: o.runID, StartedAt: o.startedAt}
	for _, s := range o.perSource {
		st.Found += s.Found
		st.New += s.New
		st.Updated += s.Updated
		st.Duplicates += s.Duplicates
		st.Errors += s.Errors
	}
	return st
}

func (o *Orchestrator) LastSummary() *events.Summary {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastSummary
}

type sourceResult struct {
	entry      domain.RunLogEntry
	duplicates int
}

func (o *Orchestrator) run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, sources []domain.Source, strategies map[domain.Source]types.Strategy, runID string) {
	defer cancel()

	rec := NewReconciler(o.db, NewNGMatcher(cfg.NGKeywords))

	maxTasks := cfg.Crawl.MaxConcurrency
	if maxTasks <= 0 || maxTasks > len(sources) {
		maxTasks = len(sources)
	}
	sem := semaphore.NewWeighted(int64(maxTasks))

	o.hub.PublishEvent(runID, events.TypeRunStarted, map[string]any{"sources": sources})
	o.logLine(runID, "", "info", fmt.Sprintf("crawl started: %d source(s), concurrency %d", len(sources), maxTasks))

	var mu sync.Mutex
	var results []sourceResult

	var g errgroup.Group
	for _, src := range sources {
		src := src
		g.Go(func() error {
			if err := sem.Acquire(ctx, 1); err != nil {
				// stop or deadline hit while queued; the task never ran
				o.logLine(runID, src, "warn", "task skipped: run ended before it started")
				return nil
			}
			defer sem.Release(1)

			res := o.runSource(ctx, rec, cfg, runID, src, strategies[src])

			// the run context may already be canceled; the audit row still
			// has to land
			wctx, wcancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer wcancel()
			if err := store.AppendRunLog(wctx, o.db.Pool, res.entry); err != nil {
				o.log.Error("run log write failed", zap.String("source", string(src)), zap.Error(err))
			}

			mu.Lock()
			results = append(results, res)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	summary := events.Summary{}
	allFailed := len(results) > 0
	for _, r := range results {
		summary.TotalFound += r.entry.Found
		summary.TotalNew += r.entry.New
		summary.TotalUpdated += r.entry.Updated
		summary.TotalErrors += r.entry.Errors
		summary.Entries = append(summary.Entries, r.entry)
		if r.entry.Status != domain.RunFailure {
			allFailed = false
		}
	}

	o.mu.Lock()
	switch {
	case o.stopRequested || ctx.Err() != nil:
		o.state = StateStopped
	case allFailed:
		// a run where not a single source produced anything is a failure,
		// not a completion
		o.state = StateFailed
	default:
		o.state = StateCompleted
	}
	summary.State = string(o.state)
	o.lastSummary = &summary
	finalState := o.state
	o.mu.Unlock()

	o.metrics.IncRun(string(finalState))
	o.hub.PublishEvent(runID, events.TypeRunFinished, summary)
	o.log.Info("crawl finished",
		zap.String("run_id", runID),
		zap.String("state", string(finalState)),
		zap.Int("found", summary.TotalFound),
		zap.Int("new", summary.TotalNew),
		zap.Int("updated", summary.TotalUpdated),
		zap.Int("errors", summary.TotalErrors),
	)
	close(o.done)
}

func (o *Orchestrator) runSource(ctx context.Context, rec *Reconciler, cfg config.Config, runID string, src domain.Source, strat types.Strategy) sourceResult {
	start := time.Now()
	q := types.SearchQuery{Keyword: cfg.Crawl.Keyword, Location: cfg.Crawl.Location}
	entry := domain.RunLogEntry{
		RunID:      runID,
		ScrapeType: "search",
		Source:     src,
		Target:     strings.TrimSpace(q.Keyword + " " + q.Location),
		Status:     domain.RunSuccess,
	}
	duplicates := 0

	tracker := NewTracker(cfg.Crawl.DedupThreshold, cfg.Crawl.DedupEnabled)
	it := strat.Extract(ctx, q)

	progressEvery := time.Duration(cfg.Crawl.ProgressIntervalMs) * time.Millisecond
	var lastProgress time.Time

	o.logLine(runID, src, "info", "task started")

	emitProgress := func(force bool) {
		if !force && progressEvery > 0 && time.Since(lastProgress) < progressEvery {
			return
		}
		lastProgress = time.Now()
		o.hub.PublishEvent(runID, events.TypeProgress, events.Progress{
			Source:     src,
			Current:    entry.Found,
			New:        entry.New,
			Updated:    entry.Updated,
			Duplicates: duplicates,
			Errors:     entry.Errors,
			ElapsedMs:  time.Since(start).Milliseconds(),
		})
		o.updateAggregate(entry, duplicates)
	}

loop:
	for {
		if ctx.Err() != nil {
			entry.Status = domain.RunPartial
			entry.ErrorMsg = "stopped before exhaustion"
			break
		}

		raw, err := it.Next(ctx)
		switch {
		case errors.Is(err, types.ErrEnd):
			break loop
		case err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)):
			entry.Status = domain.RunPartial
			entry.ErrorMsg = "stopped before exhaustion"
			break loop
		case err != nil:
			entry.Status = domain.RunFailure
			entry.ErrorMsg = err.Error()
			entry.Errors++
			o.metrics.IncError("extraction")
			var xe *types.ExtractionError
			if errors.As(err, &xe) && xe.Kind == types.KindBlocked {
				o.logLine(runID, src, "error", "site appears to be blocking us; aborting this source")
			} else {
				o.logLine(runID, src, "error", "extraction failed: "+err.Error())
			}
			break loop
		}

		entry.Found++
		o.metrics.IncLead(string(src))

		outcome, rerr := o.reconcileWithRetry(ctx, rec, raw)
		if rerr != nil {
			// one bad record must not abort an otherwise-healthy crawl
			entry.Errors++
			o.metrics.IncError("reconcile")
			o.logLine(runID, src, "warn", fmt.Sprintf("record %s skipped: %v", raw.Identity.RecordID, rerr))
			continue
		}
		o.metrics.IncOutcome(outcome.String())

		switch outcome {
		case Inserted:
			entry.New++
			o.hub.PublishEvent(runID, events.TypeLeadInserted, map[string]string{
				"source": string(src), "record_id": raw.Identity.RecordID, "title": raw.Title,
			})
		case Updated:
			entry.Updated++
		case Touched:
			duplicates++
		}

		emitProgress(false)

		if tracker.Observe(outcome.NewOrChanged()) {
			o.logLine(runID, src, "info",
				fmt.Sprintf("smart-stop: %d consecutive known leads, ending task", tracker.Streak()))
			break
		}
	}

	if entry.Status == domain.RunSuccess && entry.Errors > 0 {
		entry.Status = domain.RunPartial
	}
	entry.DurationMs = time.Since(start).Milliseconds()
	entry.CreatedAt = time.Now().UTC()

	emitProgress(true)
	o.logLine(runID, src, "info", fmt.Sprintf(
		"task finished: status=%s found=%d new=%d updated=%d dup=%d errors=%d in %s",
		entry.Status, entry.Found, entry.New, entry.Updated, duplicates, entry.Errors,
		time.Since(start).Round(time.Millisecond),
	))

	return sourceResult{entry: entry, duplicates: duplicates}
}

// reconcileWithRetry stores one record, giving a failed write one more chance
// after a short backoff. The write runs detached from the run context: a stop
// landing mid-record must not abort a transaction already underway, so the
// record in flight is always finished before the task winds down.
func (o *Orchestrator) reconcileWithRetry(ctx context.Context, rec *Reconciler, raw domain.RawLead) (Outcome, error) {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()

	out, err := rec.Reconcile(wctx, raw)
	if err == nil {
		return out, nil
	}
	select {
	case <-wctx.Done():
		return out, err
	case <-time.After(250 * time.Millisecond):
	}
	return rec.Reconcile(wctx, raw)
}

func (o *Orchestrator) updateAggregate(entry domain.RunLogEntry, duplicates int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.perSource[entry.Source] = Status{
		Found:      entry.Found,
		New:        entry.New,
		Updated:    entry.Updated,
		Duplicates: duplicates,
		Errors:     entry.Errors,
	}
}

func (o *Orchestrator) logLine(runID string, src domain.Source, level, line string) {
	fields := []zap.Field{zap.String("run_id", runID)}
	if src != "" {
		fields = append(fields, zap.String("source", string(src)))
	}
	switch level {
	case "error":
		o.log.Error(line, fields...)
	case "warn":
		o.log.Warn(line, fields...)
	default:
		o.log.Info(line, fields...)
	}
	o.hub.PublishEvent(runID, events.TypeLog, events.Log{Source: src, Level: level, Line: line})
}
