package jobs

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Cleaner forgets state idle for longer than maxIdle.
type Cleaner interface {
	Cleanup(maxIdle time.Duration) int
}

// LimiterCleanupJob periodically evicts idle rate limiter buckets.
type LimiterCleanupJob struct {
	target   Cleaner
	interval time.Duration
	maxIdle  time.Duration
	log      *logrus.Logger
	stopChan chan struct{}
	done     chan struct{}
}

func NewLimiterCleanupJob(target Cleaner, interval, maxIdle time.Duration, log *logrus.Logger) *LimiterCleanupJob {
	return &LimiterCleanupJob{
		target:   target,
		interval: interval,
		maxIdle:  maxIdle,
		log:      log,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop
func (j *LimiterCleanupJob) Start() {
	go j.run()
	j.log.WithField("interval", j.interval.String()).Info("🚀 Limiter cleanup job started")
}

// Stop ends the loop and waits for it to exit.
func (j *LimiterCleanupJob) Stop() {
	close(j.stopChan)
	<-j.done
	j.log.Info("🛑 Limiter cleanup job stopped")
}

func (j *LimiterCleanupJob) run() {
	defer close(j.done)
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.RunOnce()
		case <-j.stopChan:
			return
		}
	}
}

// RunOnce performs a single sweep.
func (j *LimiterCleanupJob) RunOnce() int {
	n := j.target.Cleanup(j.maxIdle)
	if n > 0 {
		j.log.WithField("removed", n).Debug("🧹 Idle rate limiters evicted")
	}
	return n
}
