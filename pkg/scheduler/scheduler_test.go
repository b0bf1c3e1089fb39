package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ldmsys/ldm/pkg/config"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/events"
	"github.com/ldmsys/ldm/pkg/storage"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigFromSettingsAppliesOverrides(t *testing.T) {
	sc := config.SchedulerConfig{
		PoolSize: 16,
		PerClassMax: config.PerClassMax{
			Indexing:       3,
			Pretranslation: 5,
			Upload:         5,
			BulkEdit:       5,
		},
	}

	cfg := ConfigFromSettings(sc, 48*time.Hour)
	assert.Equal(t, 16, cfg.PoolSize)
	assert.Equal(t, 3, cfg.PerClassMax[types.ClassIndexing])
	assert.Equal(t, 48*time.Hour, cfg.Retention)
}

func TestConfigFromSettingsFallsBackToDefaults(t *testing.T) {
	cfg := ConfigFromSettings(config.SchedulerConfig{}, 0)
	def := DefaultConfig()
	assert.Equal(t, def.PoolSize, cfg.PoolSize)
	assert.Equal(t, def.Retention, cfg.Retention)
}

func newTestScheduler(t *testing.T) (*Scheduler, *events.Broker, storage.Store) {
	t.Helper()
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := DefaultConfig()
	cfg.PoolSize = 4
	cfg.PerClassMax = map[types.OperationClass]int{
		types.ClassIndexing:       1,
		types.ClassPretranslation: 2,
		types.ClassUpload:         2,
		types.ClassBulkEdit:       2,
	}

	sched := New(store, broker, cfg)
	sched.Start()
	t.Cleanup(sched.Stop)

	return sched, broker, store
}

func waitForTerminal(t *testing.T, sched *Scheduler, opID string) *types.Operation {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		op, err := sched.Get(opID)
		require.NoError(t, err)
		switch op.State {
		case types.OperationCompleted, types.OperationFailed, types.OperationCancelled:
			return op
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("operation %s never reached a terminal state", opID)
	return nil
}

func TestTransientErrorsAreRetried(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := DefaultConfig()
	cfg.RetryAttempts = 3
	cfg.RetryBackoff = time.Millisecond
	sched := New(store, broker, cfg)
	sched.Start()
	t.Cleanup(sched.Stop)

	attempts := 0
	op := &types.Operation{OpID: "op-retry", UserID: "user-1", Class: types.ClassUpload}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		attempts++
		if attempts < 3 {
			return errs.New(errs.Transient, "temporary lock")
		}
		return nil
	}))

	got := waitForTerminal(t, sched, op.OpID)
	assert.Equal(t, types.OperationCompleted, got.State)
	assert.Equal(t, 3, attempts)
}

func TestDeterministicErrorsAreNotRetried(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	attempts := 0
	op := &types.Operation{OpID: "op-noretry", UserID: "user-1", Class: types.ClassUpload}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		attempts++
		return errs.New(errs.InvalidArgument, "bad input")
	}))

	got := waitForTerminal(t, sched, op.OpID)
	assert.Equal(t, types.OperationFailed, got.State)
	assert.Equal(t, 1, attempts)
}

func TestClassTimeoutFailsStuckOperation(t *testing.T) {
	store, err := storage.NewBoltStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	broker := events.NewBroker()
	broker.Start()
	t.Cleanup(broker.Stop)

	cfg := DefaultConfig()
	cfg.PerClassTimeout[types.ClassUpload] = 20 * time.Millisecond
	sched := New(store, broker, cfg)
	sched.Start()
	t.Cleanup(sched.Stop)

	op := &types.Operation{OpID: "op-stuck", UserID: "user-1", Class: types.ClassUpload}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		<-ctx.Done() // a stuck worker that only notices the budget expiring
		return ctx.Err()
	}))

	got := waitForTerminal(t, sched, op.OpID)
	assert.Equal(t, types.OperationFailed, got.State)
	assert.Contains(t, got.Error, string(errs.Timeout))
}

func TestSubmitRunsToCompletion(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	op := &types.Operation{OpID: "op-1", UserID: "user-1", Class: types.ClassIndexing}
	ran := make(chan struct{})
	err := sched.Submit(op, func(ctx context.Context, yield Yield) error {
		close(ran)
		return nil
	})
	require.NoError(t, err)

	<-ran
	final := waitForTerminal(t, sched, "op-1")
	assert.Equal(t, types.OperationCompleted, final.State)
	assert.Equal(t, 100, final.Progress)
}

func TestSubmitPropagatesWorkError(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	op := &types.Operation{OpID: "op-2", UserID: "user-1", Class: types.ClassUpload}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		return errors.New("boom")
	}))

	final := waitForTerminal(t, sched, "op-2")
	assert.Equal(t, types.OperationFailed, final.State)
	assert.Equal(t, "boom", final.Error)
}

func TestSubmitUnknownClassRejected(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	op := &types.Operation{OpID: "op-3", UserID: "user-1", Class: types.OperationClass("nonsense")}
	err := sched.Submit(op, func(ctx context.Context, yield Yield) error { return nil })
	assert.Error(t, err)
}

func TestCancelStopsOperationAtNextYield(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	started := make(chan struct{})
	op := &types.Operation{OpID: "op-4", UserID: "user-1", Class: types.ClassBulkEdit}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		close(started)
		for i := 0; i < 100; i++ {
			if err := yield(i, "working"); err != nil {
				return err
			}
			time.Sleep(10 * time.Millisecond)
		}
		return nil
	}))

	<-started
	require.NoError(t, sched.Cancel("op-4"))

	final := waitForTerminal(t, sched, "op-4")
	assert.Equal(t, types.OperationCancelled, final.State)
}

func TestCancelUnknownOperation(t *testing.T) {
	sched, _, _ := newTestScheduler(t)
	err := sched.Cancel("does-not-exist")
	assert.Error(t, err)
}

func TestPerClassCapSerializesWork(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	var running int32
	var maxObserved int32
	release := make(chan struct{})

	track := func(ctx context.Context, yield Yield) error {
		running++
		if running > maxObserved {
			maxObserved = running
		}
		<-release
		running--
		return nil
	}

	op1 := &types.Operation{OpID: "op-5", UserID: "u", Class: types.ClassIndexing}
	op2 := &types.Operation{OpID: "op-6", UserID: "u", Class: types.ClassIndexing}
	require.NoError(t, sched.Submit(op1, track))
	require.NoError(t, sched.Submit(op2, track))

	time.Sleep(50 * time.Millisecond)
	close(release)

	waitForTerminal(t, sched, "op-5")
	waitForTerminal(t, sched, "op-6")

	assert.LessOrEqual(t, maxObserved, int32(1), "ClassIndexing cap of 1 must serialize concurrent operations")
}

func TestEventsPublishedForLifecycle(t *testing.T) {
	sched, broker, _ := newTestScheduler(t)

	sub, _ := broker.Subscribe(events.Filter{UserID: "user-1"})
	defer broker.Unsubscribe(sub)

	op := &types.Operation{OpID: "op-7", UserID: "user-1", Class: types.ClassPretranslation}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error {
		return yield(50, "halfway")
	}))

	seenTypes := map[events.EventType]bool{}
	deadline := time.After(2 * time.Second)
	for len(seenTypes) < 2 {
		select {
		case evt := <-sub.Chan():
			seenTypes[evt.Type] = true
		case <-deadline:
			t.Fatal("timed out waiting for lifecycle events")
		}
	}

	assert.True(t, seenTypes[events.EventOperationCreated])
}

func TestListByUserReturnsOperation(t *testing.T) {
	sched, _, _ := newTestScheduler(t)

	op := &types.Operation{OpID: "op-8", UserID: "user-2", Class: types.ClassUpload}
	require.NoError(t, sched.Submit(op, func(ctx context.Context, yield Yield) error { return nil }))
	waitForTerminal(t, sched, "op-8")

	ops, err := sched.ListByUser("user-2")
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "op-8", ops[0].OpID)
}
