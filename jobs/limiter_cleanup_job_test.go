package jobs

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"court-booking-server/logging"
)

type countingCleaner struct {
	calls   atomic.Int32
	maxIdle atomic.Int64
}

func (c *countingCleaner) Cleanup(maxIdle time.Duration) int {
	c.calls.Add(1)
	c.maxIdle.Store(int64(maxIdle))
	return 2
}

func TestLimiterCleanupJob_Sweeps(t *testing.T) {
	target := &countingCleaner{}
	job := NewLimiterCleanupJob(target, 5*time.Millisecond, time.Hour, logging.Discard())

	job.Start()
	assert.Eventually(t, func() bool { return target.calls.Load() >= 2 }, time.Second, time.Millisecond)
	job.Stop()

	assert.Equal(t, int64(time.Hour), target.maxIdle.Load())
	assert.Equal(t, 2, job.RunOnce())
}
