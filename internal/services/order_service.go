package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

var (
	// ErrUnknownOrderStatus is returned when a transition names a status
	// outside the canonical lifecycle.
	ErrUnknownOrderStatus = errors.New("order: unknown status")
	// ErrTerminalOrderStatus is returned when a transition targets an order
	// that already reached a terminal status.
	ErrTerminalOrderStatus = errors.New("order: status is terminal")
)

// StatusTransitionCommand describes one requested status change.
type StatusTransitionCommand struct {
	OrderCode string
	NewStatus string
	Note      string
	ChangedBy string
}

// OrderTracker serves unauthenticated magic-link lookups and manager-driven
// status transitions. Reads prefer the primary store and fall back to the
// secondary; status writes land on the store that currently holds the order
// and are mirrored to the other one with outbox capture on failure.
type OrderTracker struct {
	primary   repositories.Store
	secondary repositories.Store

	now        func() time.Time
	logger     func(context.Context, string, map[string]any)
	newEventID func() string

	background *taskSupervisor
}

// OrderTrackerDeps bundles the tracker's dependencies. Secondary is
// optional.
type OrderTrackerDeps struct {
	Primary   repositories.Store
	Secondary repositories.Store

	MirrorTimeout time.Duration
	Now           func() time.Time
	Logger        func(context.Context, string, map[string]any)
	NewEventID    func() string
}

// NewOrderTracker validates dependencies and builds the tracker.
func NewOrderTracker(deps OrderTrackerDeps) (*OrderTracker, error) {
	if deps.Primary == nil {
		return nil, errors.New("order tracker: primary store is required")
	}
	mirrorTimeout := deps.MirrorTimeout
	if mirrorTimeout <= 0 {
		mirrorTimeout = defaultMirrorTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	newEventID := deps.NewEventID
	if newEventID == nil {
		newEventID = func() string { return ulid.Make().String() }
	}
	return &OrderTracker{
		primary:   deps.Primary,
		secondary: deps.Secondary,
		now: func() time.Time {
			return now().UTC()
		},
		logger:     logger,
		newEventID: newEventID,
		background: newTaskSupervisor(mirrorTimeout, logger),
	}, nil
}

// TrackByToken resolves an order through its magic link token. The token is
// the sole credential; no further authentication applies.
func (t *OrderTracker) TrackByToken(ctx context.Context, token string) (Order, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Order{}, repositories.NewStoreError(t.primary.Name(), "orders", repositories.KindNotFound, errors.New("empty token"))
	}

	order, err := t.primary.Orders().FindByMagicToken(ctx, token)
	if err == nil {
		return order, nil
	}
	if t.secondary != nil && repositories.IsUnavailable(err) {
		t.logger(ctx, "order.track_primary_failed", map[string]any{"error": err.Error()})
		return t.secondary.Orders().FindByMagicToken(ctx, token)
	}
	return Order{}, err
}

// TransitionStatus applies a monotonic status change: unknown targets are
// rejected, terminal orders never transition again, and repeating the
// current status is a no-op.
func (t *OrderTracker) TransitionStatus(ctx context.Context, cmd StatusTransitionCommand) (Order, error) {
	target := domain.NormalizeStatus(cmd.NewStatus)
	if target == domain.StatusUnknown {
		return Order{}, fmt.Errorf("%w: %q", ErrUnknownOrderStatus, cmd.NewStatus)
	}

	store, order, err := t.findOrder(ctx, cmd.OrderCode)
	if err != nil {
		return Order{}, err
	}

	current := domain.NormalizeStatus(string(order.Status))
	if domain.IsTerminalStatus(current) {
		return Order{}, fmt.Errorf("%w: %s", ErrTerminalOrderStatus, current)
	}
	if current == target {
		return order, nil
	}

	now := t.now()
	if err := store.Orders().UpdateStatus(ctx, order.ID, target, now); err != nil {
		return Order{}, err
	}

	event := domain.OrderStatusEvent{
		ID:        t.newEventID(),
		OrderID:   order.ID,
		OldStatus: current,
		NewStatus: target,
		Note:      strings.TrimSpace(cmd.Note),
		ChangedBy: strings.TrimSpace(cmd.ChangedBy),
		CreatedAt: now,
	}
	if err := store.StatusEvents().Append(ctx, event); err != nil {
		// The transition itself is durable; a lost history row is logged,
		// not surfaced.
		t.logger(ctx, "order.status_event_failed", map[string]any{
			"order_code": order.OrderCode,
			"error":      err.Error(),
		})
	}

	order.Status = target
	order.UpdatedAt = now

	t.spawnStatusMirror(ctx, store, order, event)
	return order, nil
}

// Wait blocks until all supervised background work has finished.
func (t *OrderTracker) Wait() {
	t.background.Wait()
}

// findOrder locates the order by code, preferring the primary store.
func (t *OrderTracker) findOrder(ctx context.Context, orderCode string) (repositories.Store, domain.Order, error) {
	order, err := t.primary.Orders().FindByCode(ctx, orderCode)
	if err == nil {
		return t.primary, order, nil
	}
	if t.secondary != nil && repositories.IsUnavailable(err) {
		t.logger(ctx, "order.find_primary_failed", map[string]any{
			"order_code": orderCode,
			"error":      err.Error(),
		})
		order, secondaryErr := t.secondary.Orders().FindByCode(ctx, orderCode)
		if secondaryErr != nil {
			return nil, domain.Order{}, secondaryErr
		}
		return t.secondary, order, nil
	}
	return nil, domain.Order{}, err
}

// spawnStatusMirror replays the status change and history row onto the
// other store; failures are captured in the writing store's outbox.
func (t *OrderTracker) spawnStatusMirror(ctx context.Context, source repositories.Store, order domain.Order, event domain.OrderStatusEvent) {
	target := t.mirrorTarget(source)
	if target == nil {
		return
	}
	t.background.Spawn(ctx, "order.status_mirror", func(ctx context.Context) {
		if err := target.Orders().UpdateStatus(ctx, order.ID, order.Status, order.UpdatedAt); err != nil {
			t.logger(ctx, "order.status_mirror_failed", map[string]any{
				"store":      target.Name(),
				"order_code": order.OrderCode,
				"error":      err.Error(),
			})
			t.recordOutbox(ctx, source, "order", order.ID, order, err)
		}
		if err := target.StatusEvents().Append(ctx, event); err != nil {
			t.logger(ctx, "order.event_mirror_failed", map[string]any{
				"store":      target.Name(),
				"order_code": order.OrderCode,
				"error":      err.Error(),
			})
			t.recordOutbox(ctx, source, "order_status_event", event.ID, event, err)
		}
	})
}

func (t *OrderTracker) mirrorTarget(source repositories.Store) repositories.Store {
	if source == t.primary {
		return t.secondary
	}
	return t.primary
}

func (t *OrderTracker) recordOutbox(ctx context.Context, store repositories.Store, entityType, entityID string, payload any, cause error) {
	body, err := json.Marshal(payload)
	if err != nil {
		t.logger(ctx, "order.outbox_marshal_failed", map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
		return
	}
	now := t.now()
	entry := domain.SyncOutboxEntry{
		ID:         t.newEventID(),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  domain.OutboxOperationUpsert,
		Payload:    string(body),
		Status:     domain.OutboxStatusPending,
		LastError:  cause.Error(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.Outbox().Append(ctx, entry); err != nil {
		t.logger(ctx, "order.outbox_append_failed", map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
	}
}
