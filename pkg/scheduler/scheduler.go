package scheduler

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/events"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/metrics"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/rs/zerolog"
)

// Yield reports progress from inside a WorkFunc and returns a non-nil
// error the moment the Operation has been cancelled; callers check it at
// the suspension points between batches (spec target: every ~500 units
// of work) and abort cleanly when it fires. There is no preemption.
type Yield func(progress int, stepText string) error

// WorkFunc is the body of a scheduled Operation.
type WorkFunc func(ctx context.Context, yield Yield) error

// Config controls pool sizing, per-class budgets and retry policy.
type Config struct {
	PoolSize        int
	PerClassMax     map[types.OperationClass]int
	PerClassTimeout map[types.OperationClass]time.Duration
	// RetryAttempts is how many times a Transient failure is retried
	// before the Operation fails for good; deterministic failures are
	// never retried.
	RetryAttempts int
	RetryBackoff  time.Duration
	Retention     time.Duration
	SweepInterval time.Duration
}

// DefaultConfig sizes the pool at 2x cores, applies a conservative
// per-class cap so one TM's reindex can't starve every other indexing
// job, budgets each class so a stuck op fails instead of holding a slot
// forever, and retains completed Operations for 7 days.
func DefaultConfig() Config {
	return Config{
		PoolSize: runtime.NumCPU() * 2,
		PerClassMax: map[types.OperationClass]int{
			types.ClassIndexing:       2,
			types.ClassPretranslation: 4,
			types.ClassUpload:         4,
			types.ClassBulkEdit:       4,
		},
		PerClassTimeout: map[types.OperationClass]time.Duration{
			types.ClassIndexing:       1 * time.Hour,
			types.ClassPretranslation: 2 * time.Hour,
			types.ClassUpload:         1 * time.Hour,
			types.ClassBulkEdit:       30 * time.Minute,
		},
		RetryAttempts: 3,
		RetryBackoff:  2 * time.Second,
		Retention:     7 * 24 * time.Hour,
		SweepInterval: 1 * time.Hour,
	}
}

// ConfigFromSettings builds a scheduler Config from the resolved server
// configuration, so cmd/ldmd doesn't duplicate the class-map wiring.
func ConfigFromSettings(sc config.SchedulerConfig, retention time.Duration) Config {
	cfg := DefaultConfig()
	if sc.PoolSize > 0 {
		cfg.PoolSize = sc.PoolSize
	}
	if sc.PerClassMax.Indexing > 0 {
		cfg.PerClassMax[types.ClassIndexing] = sc.PerClassMax.Indexing
	}
	if sc.PerClassMax.Pretranslation > 0 {
		cfg.PerClassMax[types.ClassPretranslation] = sc.PerClassMax.Pretranslation
	}
	if sc.PerClassMax.Upload > 0 {
		cfg.PerClassMax[types.ClassUpload] = sc.PerClassMax.Upload
	}
	if sc.PerClassMax.BulkEdit > 0 {
		cfg.PerClassMax[types.ClassBulkEdit] = sc.PerClassMax.BulkEdit
	}
	if retention > 0 {
		cfg.Retention = retention
	}
	return cfg
}

// Scheduler runs Operations on a fixed-size worker pool with per-class
// concurrency caps, publishing progress to the event bus and persisting
// Operation records for ops.list/ops.get.
type Scheduler struct {
	store  storage.Store
	broker *events.Broker
	logger zerolog.Logger
	cfg    Config

	poolSem  chan struct{}
	classSem map[types.OperationClass]chan struct{}

	mu      sync.Mutex
	cancels map[string]context.CancelFunc

	stopCh chan struct{}
}

// New creates a Scheduler. The caller owns starting/stopping broker
// separately; Scheduler only publishes to it.
func New(store storage.Store, broker *events.Broker, cfg Config) *Scheduler {
	classSem := make(map[types.OperationClass]chan struct{}, len(cfg.PerClassMax))
	for class, max := range cfg.PerClassMax {
		if max <= 0 {
			max = 1
		}
		classSem[class] = make(chan struct{}, max)
	}

	return &Scheduler{
		store:    store,
		broker:   broker,
		logger:   log.WithComponent("scheduler"),
		cfg:      cfg,
		poolSem:  make(chan struct{}, cfg.PoolSize),
		classSem: classSem,
		cancels:  make(map[string]context.CancelFunc),
		stopCh:   make(chan struct{}),
	}
}

// Start begins the retention sweep loop.
func (s *Scheduler) Start() {
	go s.sweepLoop()
}

// Stop stops the retention sweep loop. In-flight Operations are not
// interrupted; call Cancel on each if a clean shutdown requires it.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

// Submit registers op as pending and dispatches it onto the pool once a
// global and a per-class slot are both free. Submit returns immediately;
// the Operation's lifecycle is observed via Get or the event bus.
func (s *Scheduler) Submit(op *types.Operation, work WorkFunc) error {
	sem, ok := s.classSem[op.Class]
	if !ok {
		return errs.New(errs.InvalidArgument, fmt.Sprintf("unknown operation class %q", op.Class))
	}

	op.State = types.OperationPending
	op.StartedAt = time.Now()
	if err := s.store.SaveOperation(op); err != nil {
		return errs.Wrap(errs.Internal, op.OpID, "failed to persist operation", err)
	}
	s.broker.Publish(events.EventOperationCreated, op)
	metrics.OperationsScheduled.WithLabelValues(string(op.Class)).Inc()

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancels[op.OpID] = cancel
	s.mu.Unlock()

	go s.run(ctx, cancel, sem, op, work)

	return nil
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, classSem chan struct{}, op *types.Operation, work WorkFunc) {
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, op.OpID)
		s.mu.Unlock()
	}()

	select {
	case s.poolSem <- struct{}{}:
	case <-ctx.Done():
		s.finish(op, types.OperationCancelled, "")
		return
	}
	defer func() { <-s.poolSem }()

	select {
	case classSem <- struct{}{}:
	case <-ctx.Done():
		s.finish(op, types.OperationCancelled, "")
		return
	}
	defer func() { <-classSem }()

	op.State = types.OperationRunning
	if err := s.store.SaveOperation(op); err != nil {
		s.logger.Error().Err(err).Str("op_id", op.OpID).Msg("failed to persist operation start")
	}
	s.broker.Publish(events.EventOperationUpdated, op)

	// Each class gets a hard budget: when it elapses, yield starts
	// returning DeadlineExceeded and the op fails with a timeout reason
	// instead of holding its pool slot forever.
	runCtx := ctx
	if budget := s.cfg.PerClassTimeout[op.Class]; budget > 0 {
		var cancelBudget context.CancelFunc
		runCtx, cancelBudget = context.WithTimeout(ctx, budget)
		defer cancelBudget()
	}

	timer := metrics.NewTimer()

	yield := func(progress int, stepText string) error {
		if runCtx.Err() != nil {
			return runCtx.Err()
		}
		if progress > op.Progress {
			op.Progress = progress
		}
		op.StepText = stepText
		if err := s.store.SaveOperation(op); err != nil {
			s.logger.Error().Err(err).Str("op_id", op.OpID).Msg("failed to persist operation progress")
		}
		s.broker.Publish(events.EventOperationUpdated, op)
		return runCtx.Err()
	}

	var err error
	for attempt := 0; ; attempt++ {
		err = work(runCtx, yield)
		if err == nil || runCtx.Err() != nil || !errs.Is(err, errs.Transient) || attempt >= s.cfg.RetryAttempts {
			break
		}
		backoff := s.cfg.RetryBackoff * time.Duration(attempt+1)
		s.logger.Warn().Err(err).
			Str("op_id", op.OpID).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("transient failure, retrying")
		select {
		case <-time.After(backoff):
		case <-runCtx.Done():
		}
	}

	timer.ObserveDurationVec(metrics.OperationDuration, string(op.Class))

	switch {
	case err == nil:
		op.Progress = 100
		s.finish(op, types.OperationCompleted, "")
	case errors.Is(err, context.DeadlineExceeded):
		timeoutErr := errs.New(errs.Timeout, fmt.Sprintf("operation exceeded the %s class budget", op.Class))
		metrics.OperationsFailed.WithLabelValues(string(op.Class), string(errs.Timeout)).Inc()
		s.finish(op, types.OperationFailed, timeoutErr.Error())
	case errors.Is(err, context.Canceled):
		s.finish(op, types.OperationCancelled, "")
	default:
		metrics.OperationsFailed.WithLabelValues(string(op.Class), string(errs.KindOf(err))).Inc()
		s.finish(op, types.OperationFailed, err.Error())
	}
}

func (s *Scheduler) finish(op *types.Operation, state types.OperationState, errMsg string) {
	op.State = state
	op.CompletedAt = time.Now()
	op.Error = errMsg
	if err := s.store.SaveOperation(op); err != nil {
		s.logger.Error().Err(err).Str("op_id", op.OpID).Msg("failed to persist operation completion")
	}

	evtType := events.EventOperationCompleted
	switch state {
	case types.OperationFailed:
		evtType = events.EventOperationFailed
	case types.OperationCancelled:
		evtType = events.EventOperationCancelled
	}
	s.broker.Publish(evtType, op)
}

// Cancel requests cancellation of a running or pending Operation. The
// work function observes this the next time it calls yield; repository
// operations within a single transaction are never interrupted mid-flight.
func (s *Scheduler) Cancel(opID string) error {
	s.mu.Lock()
	cancel, ok := s.cancels[opID]
	s.mu.Unlock()
	if !ok {
		return errs.New(errs.NotFound, fmt.Sprintf("operation %s is not active", opID))
	}
	cancel()
	return nil
}

// Get returns an Operation by ID, including terminal ones still within
// retention.
func (s *Scheduler) Get(opID string) (*types.Operation, error) {
	op, err := s.store.GetOperation(opID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, opID, "operation not found", err)
	}
	return op, nil
}

// ListByUser returns every Operation owned by userID, pending through
// completed-within-retention.
func (s *Scheduler) ListByUser(userID string) ([]*types.Operation, error) {
	return s.store.ListOperationsByUser(userID)
}

// Subscribe registers a progress-bus subscriber; see pkg/events.
func (s *Scheduler) Subscribe(filter events.Filter) (*events.Subscriber, uint64) {
	return s.broker.Subscribe(filter)
}

// Unsubscribe removes a progress-bus subscriber.
func (s *Scheduler) Unsubscribe(sub *events.Subscriber) {
	s.broker.Unsubscribe(sub)
}

// ReplaySince recovers events missed during a disconnect; see pkg/events.
func (s *Scheduler) ReplaySince(lastSeq uint64, filter events.Filter) ([]*events.Event, bool) {
	return s.broker.ReplaySince(lastSeq, filter)
}

func (s *Scheduler) sweepLoop() {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweepRetention()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) sweepRetention() {
	cutoff := time.Now().Add(-s.cfg.Retention)
	expired, err := s.store.ListOperationsCompletedBefore(cutoff)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list expired operations")
		return
	}
	for _, op := range expired {
		if err := s.store.DeleteOperation(op.OpID); err != nil {
			s.logger.Error().Err(err).Str("op_id", op.OpID).Msg("failed to delete expired operation")
		}
	}
}
