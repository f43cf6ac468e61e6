package booking

import (
	"context"

	"github.com/medcore/hospital-ops/pkg/logger"
	"github.com/medcore/hospital-ops/pkg/monitoring"
)

// compensator collects named undo actions as forward steps complete. On
// failure the completed steps are unwound in reverse order. An undo that
// itself fails is logged and counted; the walk continues so later steps are
// still released.
type compensator struct {
	steps   []compensationStep
	metrics *monitoring.MetricsCollector
	logger  *logger.Logger
}

type compensationStep struct {
	name string
	undo func(ctx context.Context) error
}

func newCompensator(metrics *monitoring.MetricsCollector, log *logger.Logger) *compensator {
	return &compensator{
		metrics: metrics,
		logger:  log,
	}
}

// add registers the undo action for a completed forward step
func (c *compensator) add(name string, undo func(ctx context.Context) error) {
	c.steps = append(c.steps, compensationStep{name: name, undo: undo})
}

// rollback walks completed steps in reverse order
func (c *compensator) rollback(ctx context.Context) {
	for i := len(c.steps) - 1; i >= 0; i-- {
		step := c.steps[i]

		c.metrics.RecordCompensation(step.name)
		c.logger.Warnf("Compensating step %q", step.name)

		if err := step.undo(ctx); err != nil {
			c.logger.Errorf("Compensation for step %q failed: %v", step.name, err)
		}
	}

	c.steps = nil
}
