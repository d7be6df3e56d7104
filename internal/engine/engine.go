package engine

import (
	"time"

	"github.com/sigepol/risk-engine/internal/logger"
	"github.com/sigepol/risk-engine/internal/store"
)

// Engine owns the obligation lifecycle, the alert rule set and the risk
// classifier. All dependencies are explicit; there is no process-wide state.
type Engine struct {
	storage   *store.Storage
	appLogger *logger.Logger
	clock     Clock
}

func New(storage *store.Storage, appLogger *logger.Logger, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock()
	}
	return &Engine{
		storage:   storage,
		appLogger: appLogger,
		clock:     clock,
	}
}

// Now exposes the engine's clock so callers share its notion of "now".
func (e *Engine) Now() time.Time {
	return e.clock.Now()
}
