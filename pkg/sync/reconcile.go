package sync

import (
	"sync"
	"time"
)

// Reconciler periodically re-evaluates every active subscription and pulls
// its deltas, independent of the event-driven and auto-open-file paths.
// Shaped like a ticker-driven background loop: one goroutine, a stop
// channel, no preemption mid-cycle.
type Reconciler struct {
	engine   *Engine
	interval time.Duration
	userIDs  func() []string

	mu     sync.Mutex
	stopCh chan struct{}
}

// NewReconciler builds a Reconciler that polls every interval. userIDs
// returns the set of users whose subscriptions should be checked each
// cycle (typically "every connected session's user").
func NewReconciler(engine *Engine, interval time.Duration, userIDs func() []string) *Reconciler {
	return &Reconciler{
		engine:   engine,
		interval: interval,
		userIDs:  userIDs,
	}
}

// Start begins the reconciliation loop in a background goroutine.
func (r *Reconciler) Start() {
	r.mu.Lock()
	r.stopCh = make(chan struct{})
	stopCh := r.stopCh
	r.mu.Unlock()
	go r.run(stopCh)
}

// Stop ends the reconciliation loop.
func (r *Reconciler) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopCh != nil {
		close(r.stopCh)
		r.stopCh = nil
	}
}

func (r *Reconciler) run(stopCh chan struct{}) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.engine.logger.Info().Dur("interval", r.interval).Msg("sync reconciler started")

	for {
		select {
		case <-ticker.C:
			r.cycle()
		case <-stopCh:
			r.engine.logger.Info().Msg("sync reconciler stopped")
			return
		}
	}
}

func (r *Reconciler) cycle() {
	for _, userID := range r.userIDs() {
		subs, err := r.engine.ListSubscriptions(userID)
		if err != nil {
			r.engine.logger.Error().Err(err).Str("user_id", userID).Msg("failed to list subscriptions for reconcile")
			continue
		}
		for _, sub := range subs {
			if _, err := r.engine.Delta(sub.SubscriptionID); err != nil {
				r.engine.logger.Error().
					Err(err).
					Str("subscription_id", sub.SubscriptionID).
					Str("item_type", string(sub.ItemType)).
					Msg("reconcile delta pull failed")
			}
		}
	}
}
