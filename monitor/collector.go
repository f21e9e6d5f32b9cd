package monitor

import (
	"time"

	"github.com/hubenschmidt/go-docsrag/core"
)

// Collector records pipeline measurements.
type Collector interface {
	ObserveStage(stage core.Stage, d time.Duration)
	ObserveRequest(status string)
	ObserveRetrieved(n int)
}

// Request outcomes used as the status label.
const (
	StatusOK      = "ok"
	StatusError   = "error"
	StatusTimeout = "timeout"
	StatusInvalid = "invalid"
)

type NoOpCollector struct{}

func NewNoOpCollector() *NoOpCollector {
	return &NoOpCollector{}
}

func (c *NoOpCollector) ObserveStage(core.Stage, time.Duration) {}

func (c *NoOpCollector) ObserveRequest(string) {}

func (c *NoOpCollector) ObserveRetrieved(int) {}
