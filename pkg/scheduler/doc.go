/*
Package scheduler runs Operations (long-lived, cancellable, progress-
reported background jobs: TM indexing, pretranslation, bulk edits,
uploads) on a bounded worker pool.

# Architecture

	Submit(op, work) ──► pool semaphore ──► per-class semaphore ──► work(ctx, yield)
	                                                                      │
	                                                   SaveOperation + Broker.Publish

A Submit call persists the Operation as pending and returns immediately;
the Operation only starts running once both a global pool slot and a
slot in its class's semaphore are free. This bounds total concurrency
(scheduler.pool_size, default 2x CPU cores) while also preventing one
class of work — say a TM reindex — from starving every other class
(scheduler.per_class_max.*).

# Usage

	sched := scheduler.New(store, broker, scheduler.DefaultConfig())
	sched.Start()
	defer sched.Stop()

	op := &types.Operation{OpID: id, UserID: uid, Class: types.ClassIndexing}
	err := sched.Submit(op, func(ctx context.Context, yield scheduler.Yield) error {
		for i, entry := range entries {
			if i%500 == 0 {
				if err := yield(i*100/len(entries), "indexing"); err != nil {
					return err
				}
			}
			index(entry)
		}
		return nil
	})

# Cancellation

Cancel flips the Operation's context; the work function only observes
it the next time it calls yield, so cancellation is cooperative rather
than preemptive. A WorkFunc that never yields cannot be interrupted —
callers writing long loops should yield roughly every 500 units of work,
per the Operation's Class.

# Failure Classes

Transient failures (errs.Transient: I/O, temporary locks) are retried
up to Config.RetryAttempts with linear backoff; any other error kind
fails the Operation on the first attempt. Each class also carries a
timeout budget (Config.PerClassTimeout) — a worker still running when
it expires sees its context cancelled at the next yield and the
Operation fails with an errs.Timeout reason.

# Fast Operations

Not every operation belongs on the pool. A rename or a single-row edit
completes synchronously on the request path; only work worth tracking
and cancelling is ever Submit-ed here.

# Retention

A background sweep deletes completed/failed/cancelled Operations older
than scheduler.Config.Retention (default 7 days) so bbolt doesn't
accumulate history forever.

# See Also

  - pkg/events for the progress bus Operations publish to
  - pkg/storage for Operation persistence
  - pkg/repository and pkg/tm for WorkFunc implementations
*/
package scheduler
