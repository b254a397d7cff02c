package httpapi

import (
	"sync/atomic"

	"go.uber.org/zap"

	"leadscout-engine/internal/config"
	"leadscout-engine/internal/crawl"
	"leadscout-engine/internal/events"
	"leadscout-engine/internal/store"
)

type Deps struct {
	DB  *store.DB
	Hub *events.Hub
	Log *zap.Logger

	Orch *crawl.Orchestrator

	// CfgVal stores config.Config; handlers always read the latest snapshot.
	CfgVal *atomic.Value

	// Config persistence
	UserCfgPath string
	LoadCfg     func() (config.Config, error)

	// Strategies builds the per-run strategy set (inject for testability).
	Strategies crawl.StrategyFactory
}
