package sync

import (
	"time"

	"github.com/google/uuid"
	"github.com/ldmsys/ldm/pkg/errs"
	"github.com/ldmsys/ldm/pkg/log"
	"github.com/ldmsys/ldm/pkg/types"
	"github.com/rs/zerolog"
)

// Engine drives pull (central -> local) and push (local -> central) flows
// for one node's pair of backends. central is typically a *manager.Manager,
// local a *repository.LocalBackend, but Engine only ever sees Store.
type Engine struct {
	central Store
	local   Store
	logger  zerolog.Logger
}

// New creates an Engine over a central/local backend pair.
func New(central, local Store) *Engine {
	return &Engine{
		central: central,
		local:   local,
		logger:  log.WithComponent("sync"),
	}
}

// Subscribe pins (itemType, itemID) for userID and immediately performs the
// initial full snapshot transfer for it.
func (e *Engine) Subscribe(userID string, itemType types.SyncItemType, itemID string) (*types.SyncSubscription, error) {
	sub := &types.SyncSubscription{
		SubscriptionID: uuid.NewString(),
		UserID:         userID,
		ItemType:       itemType,
		ItemID:         itemID,
		SubscribedAt:   time.Now(),
	}
	if err := e.central.CreateSyncSubscription(sub); err != nil {
		return nil, errs.Wrap(errs.Internal, sub.SubscriptionID, "create sync subscription", err)
	}
	if err := e.Snapshot(sub); err != nil {
		return sub, err
	}
	sub.LastSyncedAt = time.Now()
	if err := e.central.UpdateSyncSubscription(sub); err != nil {
		return sub, errs.Wrap(errs.Internal, sub.SubscriptionID, "mark subscription synced", err)
	}
	return sub, nil
}

// Unsubscribe removes a subscription. It does not touch anything already
// mirrored to the local store; that stays until the user deletes it.
func (e *Engine) Unsubscribe(subscriptionID string) error {
	if err := e.central.DeleteSyncSubscription(subscriptionID); err != nil {
		return errs.Wrap(errs.Internal, subscriptionID, "delete sync subscription", err)
	}
	return nil
}

// ListSubscriptions returns userID's active subscriptions.
func (e *Engine) ListSubscriptions(userID string) ([]*types.SyncSubscription, error) {
	subs, err := e.central.ListSyncSubscriptionsByUser(userID)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, userID, "list sync subscriptions", err)
	}
	return subs, nil
}

func (e *Engine) subscription(subscriptionID string) (*types.SyncSubscription, error) {
	sub, err := e.central.GetSyncSubscription(subscriptionID)
	if err != nil {
		return nil, errs.Wrap(errs.NotFound, subscriptionID, "sync subscription not found", err)
	}
	return sub, nil
}
