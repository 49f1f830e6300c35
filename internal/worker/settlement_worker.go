package worker

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Settler settles expired trades as of the given time
type Settler interface {
	SettleExpired(now time.Time) (int, error)
}

// SettlementWorker drives the expiry sweep on a fixed interval. The sweep
// is non-reentrant: a tick that fires while the previous run is still in
// flight is skipped rather than queued, so slow storage can never pile up
// overlapping sweeps.
type SettlementWorker struct {
	tradeService Settler
	interval     time.Duration
	stopChan     chan struct{}
	running      atomic.Bool
}

// NewSettlementWorker creates a settlement sweep worker
func NewSettlementWorker(tradeService Settler, interval time.Duration) *SettlementWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SettlementWorker{
		tradeService: tradeService,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the sweep loop; blocks until Stop is called
func (w *SettlementWorker) Start() {
	logrus.Infof("[SettlementWorker] started with interval %v", w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.Sweep()
		case <-w.stopChan:
			logrus.Infof("[SettlementWorker] stopped")
			return
		}
	}
}

// Stop stops the sweep loop
func (w *SettlementWorker) Stop() {
	close(w.stopChan)
}

// Sweep runs one settlement pass unless the previous one is still in
// flight. Returns true if a pass ran.
func (w *SettlementWorker) Sweep() bool {
	if !w.running.CompareAndSwap(false, true) {
		logrus.Warnf("[SettlementWorker] previous sweep still running, skipping tick")
		return false
	}
	defer w.running.Store(false)

	settled, err := w.tradeService.SettleExpired(time.Now())
	if err != nil {
		logrus.Errorf("[SettlementWorker] sweep failed: %v", err)
		return true
	}
	if settled > 0 {
		logrus.Infof("[SettlementWorker] settled %d trades", settled)
	}
	return true
}
