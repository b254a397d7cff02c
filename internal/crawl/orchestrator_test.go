package crawl

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/crawl/types"
	"leadscout-engine/internal/domain"
	"leadscout-engine/internal/events"
	"leadscout-engine/internal/store"
)

// fakeStrategy replays a fixed lead sequence, then either ends cleanly or
// fails with finalErr.
type fakeStrategy struct {
	src         domain.Source
	leads       []domain.RawLead
	finalErr    error
	blockCtx    bool          // never end; wait for cancellation instead
	beforeYield func(pos int) // runs just before record pos is handed out
}

func (f *fakeStrategy) Source() domain.Source { return f.src }

func (f *fakeStrategy) Extract(ctx context.Context, q types.SearchQuery) types.Iterator {
	return &fakeIterator{s: f}
}

type fakeIterator struct {
	s   *fakeStrategy
	pos int
}

func (it *fakeIterator) Next(ctx context.Context) (domain.RawLead, error) {
	if it.pos < len(it.s.leads) {
		if it.s.beforeYield != nil {
			it.s.beforeYield(it.pos)
		}
		rec := it.s.leads[it.pos]
		it.pos++
		return rec, nil
	}
	if it.s.blockCtx {
		<-ctx.Done()
		return domain.RawLead{}, ctx.Err()
	}
	if it.s.finalErr != nil {
		return domain.RawLead{}, it.s.finalErr
	}
	return domain.RawLead{}, types.ErrEnd
}

func fakeLeads(src domain.Source, n int) []domain.RawLead {
	out := make([]domain.RawLead, n)
	for i := range out {
		out[i] = domain.RawLead{
			Identity: domain.Identity{Source: src, RecordID: fmt.Sprintf("%s-%d", src, i)},
			Title:    fmt.Sprintf("求人 %d", i),
			IsActive: true,
		}
	}
	return out
}

func testConfig(sources ...domain.Source) config.Config {
	var cfg config.Config
	cfg.App.Port = 38501
	cfg.Crawl.DedupEnabled = true
	cfg.Crawl.DedupThreshold = 50
	cfg.Sites = map[string]config.SiteConfig{}
	for _, s := range sources {
		cfg.Sites[string(s)] = config.SiteConfig{Enabled: true, RequestInterval: 0.001, MaxInFlight: 1}
	}
	return cfg
}

func factoryFor(strats ...*fakeStrategy) StrategyFactory {
	return func(cfg config.Config, g types.Gate) map[domain.Source]types.Strategy {
		out := map[domain.Source]types.Strategy{}
		for _, s := range strats {
			out[s.src] = s
		}
		return out
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *store.DB) {
	t.Helper()
	db := testDB(t)
	return NewOrchestrator(db, events.NewHub(), zap.NewNop(), nil), db
}

func waitDone(t *testing.T, o *Orchestrator) {
	t.Helper()
	select {
	case <-o.Done():
	case <-time.After(10 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestRunCompletes(t *testing.T) {
	o, db := newTestOrchestrator(t)

	a := &fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 5)}
	b := &fakeStrategy{src: domain.SourceMynavi, leads: fakeLeads(domain.SourceMynavi, 3)}

	runID, err := o.Start(testConfig(domain.SourceRikunabi, domain.SourceMynavi), factoryFor(a, b))
	require.NoError(t, err)
	require.NotEmpty(t, runID)
	waitDone(t, o)

	st := o.Status()
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 8, st.Found)
	assert.Equal(t, 8, st.New)
	assert.Equal(t, 0, st.Errors)

	summary := o.LastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, string(StateCompleted), summary.State)
	assert.Equal(t, 8, summary.TotalNew)
	assert.Len(t, summary.Entries, 2)

	entries, err := store.ListRunLogs(context.Background(), db.Pool, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, runID, e.RunID)
		assert.Equal(t, domain.RunSuccess, e.Status)
	}

	leads, err := store.ListLeads(context.Background(), db.Pool, store.ListLeadsOpts{Window: "all"})
	require.NoError(t, err)
	assert.Len(t, leads, 8)
}

func TestRunSecondCrawlTouchesKnownLeads(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	cfg := testConfig(domain.SourceRikunabi)
	cfg.Crawl.DedupEnabled = false

	s := &fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 4)}
	_, err := o.Start(cfg, factoryFor(s))
	require.NoError(t, err)
	waitDone(t, o)

	_, err = o.Start(cfg, factoryFor(&fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 4)}))
	require.NoError(t, err)
	waitDone(t, o)

	st := o.Status()
	assert.Equal(t, StateCompleted, st.State)
	assert.Equal(t, 4, st.Found)
	assert.Equal(t, 0, st.New)
	assert.Equal(t, 4, st.Duplicates)
}

func TestStopLandsInStopped(t *testing.T) {
	o, db := newTestOrchestrator(t)

	s := &fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 2), blockCtx: true}
	_, err := o.Start(testConfig(domain.SourceRikunabi), factoryFor(s))
	require.NoError(t, err)

	// let the task drain its records and park on the blocked iterator
	deadline := time.Now().Add(5 * time.Second)
	for o.Status().Found < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	assert.True(t, o.Stop())
	waitDone(t, o)

	assert.Equal(t, StateStopped, o.Status().State)

	entries, err := store.ListRunLogs(context.Background(), db.Pool, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, domain.RunPartial, entries[0].Status)
	assert.Equal(t, 2, entries[0].Found, "records reconciled before the stop stand")
}

func TestStopFinishesRecordInFlight(t *testing.T) {
	o, db := newTestOrchestrator(t)

	// the stop lands after record 1 has been pulled but before it is stored
	s := &fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 2)}
	s.beforeYield = func(pos int) {
		if pos == 1 {
			o.Stop()
		}
	}

	_, err := o.Start(testConfig(domain.SourceRikunabi), factoryFor(s))
	require.NoError(t, err)
	waitDone(t, o)

	st := o.Status()
	assert.Equal(t, StateStopped, st.State)
	assert.Equal(t, 2, st.Found)
	assert.Equal(t, 0, st.Errors, "a stop is not a record error")

	got, err := store.GetLeadByIdentity(context.Background(), db.Pool,
		domain.Identity{Source: domain.SourceRikunabi, RecordID: "rikunabi-1"})
	require.NoError(t, err)
	require.NotNil(t, got, "record in flight when the stop landed must still be stored")
}

func TestStopWhenIdle(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	assert.False(t, o.Stop())
}

func TestSmartStopEndsTaskEarly(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	cfg := testConfig(domain.SourceRikunabi)
	cfg.Crawl.DedupThreshold = 3

	leads := fakeLeads(domain.SourceRikunabi, 10)

	// first pass stores everything
	_, err := o.Start(cfg, factoryFor(&fakeStrategy{src: domain.SourceRikunabi, leads: leads}))
	require.NoError(t, err)
	waitDone(t, o)

	// second pass re-sees known leads and must bail after the streak,
	// never reaching the blocking tail
	s := &fakeStrategy{src: domain.SourceRikunabi, leads: leads, blockCtx: true}
	_, err = o.Start(cfg, factoryFor(s))
	require.NoError(t, err)
	waitDone(t, o)

	st := o.Status()
	assert.Equal(t, StateCompleted, st.State, "smart-stop is a normal completion")
	assert.Equal(t, 3, st.Found)
	assert.Equal(t, 3, st.Duplicates)
}

func TestFailedSourceDoesNotSinkTheRun(t *testing.T) {
	o, db := newTestOrchestrator(t)

	bad := &fakeStrategy{
		src:      domain.SourceRikunabi,
		leads:    fakeLeads(domain.SourceRikunabi, 2),
		finalErr: types.Extractionf(types.KindBlocked, domain.SourceRikunabi, 3, "403 and cloudflare markers"),
	}
	good := &fakeStrategy{src: domain.SourceMynavi, leads: fakeLeads(domain.SourceMynavi, 3)}

	_, err := o.Start(testConfig(domain.SourceRikunabi, domain.SourceMynavi), factoryFor(bad, good))
	require.NoError(t, err)
	waitDone(t, o)

	assert.Equal(t, StateCompleted, o.Status().State)

	entries, err := store.ListRunLogs(context.Background(), db.Pool, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	bySource := map[domain.Source]domain.RunLogEntry{}
	for _, e := range entries {
		bySource[e.Source] = e
	}
	assert.Equal(t, domain.RunFailure, bySource[domain.SourceRikunabi].Status)
	assert.Equal(t, 2, bySource[domain.SourceRikunabi].Found, "leads before the failure stand")
	assert.Equal(t, 1, bySource[domain.SourceRikunabi].Errors)
	assert.Equal(t, domain.RunSuccess, bySource[domain.SourceMynavi].Status)

	summary := o.LastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, 1, summary.TotalErrors)
}

func TestEverySourceFailingFailsTheRun(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	a := &fakeStrategy{
		src:      domain.SourceRikunabi,
		finalErr: types.Extractionf(types.KindBlocked, domain.SourceRikunabi, 1, "403"),
	}
	b := &fakeStrategy{
		src:      domain.SourceMynavi,
		finalErr: types.Extractionf(types.KindNavigation, domain.SourceMynavi, 1, "connection refused"),
	}

	_, err := o.Start(testConfig(domain.SourceRikunabi, domain.SourceMynavi), factoryFor(a, b))
	require.NoError(t, err)
	waitDone(t, o)

	assert.Equal(t, StateFailed, o.Status().State)

	summary := o.LastSummary()
	require.NotNil(t, summary)
	assert.Equal(t, string(StateFailed), summary.State)
	assert.Equal(t, 2, summary.TotalErrors)
}

func TestStartToleratesUnsetPort(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	cfg := testConfig(domain.SourceRikunabi)
	cfg.App.Port = 0 // daemon-level setting, not the crawl's concern

	_, err := o.Start(cfg, factoryFor(&fakeStrategy{src: domain.SourceRikunabi, leads: fakeLeads(domain.SourceRikunabi, 1)}))
	require.NoError(t, err)
	waitDone(t, o)
	assert.Equal(t, StateCompleted, o.Status().State)
}

func TestStartRejectsEmptySources(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Start(testConfig(), factoryFor())
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "no sources")
	assert.Equal(t, StateIdle, o.Status().State)
}

func TestStartRejectsInvalidConfig(t *testing.T) {
	o, _ := newTestOrchestrator(t)
	cfg := testConfig(domain.SourceRikunabi)
	cfg.Crawl.MaxConcurrency = -1

	_, err := o.Start(cfg, factoryFor(&fakeStrategy{src: domain.SourceRikunabi}))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
}

func TestStartRejectsMissingStrategy(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	_, err := o.Start(testConfig(domain.SourceRikunabi, domain.SourceDoda),
		factoryFor(&fakeStrategy{src: domain.SourceRikunabi}))
	var cerr *ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Contains(t, cerr.Reason, "doda")
}

func TestStartWhileRunning(t *testing.T) {
	o, _ := newTestOrchestrator(t)

	s := &fakeStrategy{src: domain.SourceRikunabi, blockCtx: true}
	_, err := o.Start(testConfig(domain.SourceRikunabi), factoryFor(s))
	require.NoError(t, err)

	_, err = o.Start(testConfig(domain.SourceRikunabi), factoryFor(s))
	assert.ErrorIs(t, err, ErrAlreadyRunning)

	o.Stop()
	waitDone(t, o)
}
