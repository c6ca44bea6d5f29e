package services

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
)

func fixedNow() time.Time {
	return time.Date(2026, 3, 14, 10, 30, 0, 0, time.UTC)
}

// sequentialIDs hands out deterministic identifiers so repeated bookings
// derive the same rows.
type sequentialIDs struct {
	prefix string
	next   int
}

func (g *sequentialIDs) newID() string {
	g.next++
	return fmt.Sprintf("%s-%d", g.prefix, g.next)
}

func testEngine(t *testing.T, primary, secondary *memStore, mutate func(*BookingEngineDeps)) (*BookingEngine, *capturePublisher) {
	t.Helper()

	guardDeps := QuotaGuardDeps{Primary: primary, Logger: discardLogger}
	if secondary != nil {
		guardDeps.Secondary = secondary
	}
	guard, err := NewQuotaGuard(guardDeps)
	if err != nil {
		t.Fatalf("NewQuotaGuard: %v", err)
	}

	publisher := &capturePublisher{}
	ids := &sequentialIDs{prefix: "id"}
	events := &sequentialIDs{prefix: "ev"}

	deps := BookingEngineDeps{
		Primary:      primary,
		Calculator:   NewPriceCalculator(),
		Normalizer:   NewSnapshotNormalizer(),
		Guard:        guard,
		Rates:        fixedRate(100),
		Publisher:    publisher,
		Now:          fixedNow,
		Logger:       discardLogger,
		NewID:        ids.newID,
		NewEventID:   events.newID,
		NewOrderCode: func() (string, error) { return "ORD-123456", nil },
		NewToken:     func() (string, error) { return "magic-token", nil },
	}
	if secondary != nil {
		deps.Secondary = secondary
	}
	if mutate != nil {
		mutate(&deps)
	}

	engine, err := NewBookingEngine(deps)
	if err != nil {
		t.Fatalf("NewBookingEngine: %v", err)
	}
	return engine, publisher
}

func bookingCommand() CreateBookingCommand {
	return CreateBookingCommand{
		BikeID: "bike-42",
		Customer: CustomerInput{
			FullName:         "Anna Schmidt",
			Email:            "anna@example.com",
			Phone:            "+49151234567",
			PreferredChannel: "email",
		},
		RawSnapshot: map[string]any{
			"title":  "Canyon Ultimate CF SL 8",
			"price":  2400.0,
			"images": []any{"https://cdn.example.com/bike.jpg"},
		},
		DeliveryMethod: "cargo",
	}
}

func TestCreateBookingPrimaryPath(t *testing.T) {
	primary := newMemStore("local_primary")
	secondary := newMemStore("supabase")
	engine, publisher := testEngine(t, primary, secondary, nil)

	result, err := engine.CreateBooking(context.Background(), bookingCommand())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	if result.StorageMode != StorageModeLocalPrimary {
		t.Fatalf("storage mode: got %q", result.StorageMode)
	}
	if result.OrderCode != "ORD-123456" {
		t.Fatalf("order code: got %q", result.OrderCode)
	}
	if result.MagicLinkURL != "/track/magic-token" {
		t.Fatalf("magic link: got %q", result.MagicLinkURL)
	}

	if primary.orderCount() != 1 {
		t.Fatalf("primary orders: got %d", primary.orderCount())
	}
	if len(primary.customers) != 1 || len(primary.leads) != 1 {
		t.Fatalf("primary rows: %d customers, %d leads", len(primary.customers), len(primary.leads))
	}
	if len(primary.statusEvents) != 1 || primary.statusEvents[0].NewStatus != "booked" {
		t.Fatalf("status events: %#v", primary.statusEvents)
	}

	// The mirror replayed the full set onto the secondary store.
	if secondary.orderCount() != 1 || len(secondary.customers) != 1 || len(secondary.leads) != 1 {
		t.Fatalf("mirror rows: %d orders, %d customers, %d leads", secondary.orderCount(), len(secondary.customers), len(secondary.leads))
	}
	if entries := primary.outboxEntries(); len(entries) != 0 {
		t.Fatalf("unexpected outbox entries: %#v", entries)
	}

	messages := publisher.published()
	if len(messages) != 1 || messages[0].OrderCode != "ORD-123456" {
		t.Fatalf("published messages: %#v", messages)
	}

	order := primary.orders["id-3"]
	if order.FinalPriceEur == 0 || order.TotalPriceRub == 0 || order.BookingAmountRub == 0 {
		t.Fatalf("order financials not populated: %#v", order)
	}
	if order.BikeSnapshot.Financials.FinalPriceEur != order.FinalPriceEur {
		t.Fatalf("snapshot financials diverge from order columns")
	}
}

func TestCreateBookingIsIdempotent(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, func(deps *BookingEngineDeps) {
		deps.NewID = func() string { return "same-id" }
		deps.NewEventID = func() string { return "same-event" }
	})

	ctx := context.Background()
	if _, err := engine.CreateBooking(ctx, bookingCommand()); err != nil {
		t.Fatalf("first booking: %v", err)
	}
	if _, err := engine.CreateBooking(ctx, bookingCommand()); err != nil {
		t.Fatalf("second booking: %v", err)
	}
	engine.Wait()

	if primary.orderCount() != 1 {
		t.Fatalf("replayed booking duplicated orders: %d", primary.orderCount())
	}
	if len(primary.customers) != 1 {
		t.Fatalf("replayed booking duplicated customers: %d", len(primary.customers))
	}
}

func TestCreateBookingFallsBackToSecondary(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.failOrderUpsert = errors.New("primary down")
	secondary := newMemStore("supabase")
	engine, _ := testEngine(t, primary, secondary, nil)

	result, err := engine.CreateBooking(context.Background(), bookingCommand())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	if result.StorageMode != StorageModeSupabaseFallback {
		t.Fatalf("storage mode: got %q", result.StorageMode)
	}
	if secondary.orderCount() != 1 || len(secondary.customers) != 1 || len(secondary.leads) != 1 {
		t.Fatalf("secondary rows: %d orders, %d customers, %d leads", secondary.orderCount(), len(secondary.customers), len(secondary.leads))
	}
	// The mirror back to the failing primary captured the order in the
	// secondary store's outbox.
	entries := secondary.outboxEntries()
	found := false
	for _, entry := range entries {
		if entry.EntityType == "order" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected order outbox entry on secondary, got %#v", entries)
	}
}

func TestCreateBookingFailsWhenBothStoresDown(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.failOrderUpsert = errors.New("primary down")
	secondary := newMemStore("supabase")
	secondary.failOrderUpsert = errors.New("secondary down")
	engine, _ := testEngine(t, primary, secondary, nil)

	_, err := engine.CreateBooking(context.Background(), bookingCommand())
	if !errors.Is(err, ErrBookingStoresUnavailable) {
		t.Fatalf("expected ErrBookingStoresUnavailable, got %v", err)
	}
	engine.Wait()

	if primary.orderCount() != 0 || secondary.orderCount() != 0 {
		t.Fatalf("partial order rows: primary %d, secondary %d", primary.orderCount(), secondary.orderCount())
	}
}

func TestCreateBookingWithoutSecondaryFailsOnPrimaryError(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.failOrderUpsert = errors.New("primary down")
	engine, _ := testEngine(t, primary, nil, nil)

	if _, err := engine.CreateBooking(context.Background(), bookingCommand()); !errors.Is(err, ErrBookingStoresUnavailable) {
		t.Fatalf("expected ErrBookingStoresUnavailable, got %v", err)
	}
}

func TestCreateBookingMirrorFailureRecordsOutbox(t *testing.T) {
	primary := newMemStore("local_primary")
	secondary := newMemStore("supabase")
	secondary.failOrderUpsert = errors.New("mirror down")
	engine, _ := testEngine(t, primary, secondary, nil)

	result, err := engine.CreateBooking(context.Background(), bookingCommand())
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	if result.StorageMode != StorageModeLocalPrimary {
		t.Fatalf("storage mode: got %q", result.StorageMode)
	}

	entries := primary.outboxEntries()
	if len(entries) != 1 {
		t.Fatalf("expected exactly one outbox entry, got %#v", entries)
	}
	entry := entries[0]
	if entry.EntityType != "order" || entry.EntityID != result.OrderID {
		t.Fatalf("outbox entry: %#v", entry)
	}
	if entry.Operation != domain.OutboxOperationUpsert || entry.Status != domain.OutboxStatusPending {
		t.Fatalf("outbox entry flags: %#v", entry)
	}
	if entry.LastError == "" || entry.Payload == "" {
		t.Fatalf("outbox entry diagnostics missing: %#v", entry)
	}
}

func TestCreateBookingRejectsMissingDeliveryMethod(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, nil)

	cmd := bookingCommand()
	cmd.DeliveryMethod = ""
	if _, err := engine.CreateBooking(context.Background(), cmd); !errors.Is(err, ErrBookingMissingDeliveryMethod) {
		t.Fatalf("expected ErrBookingMissingDeliveryMethod, got %v", err)
	}
	if primary.orderCount() != 0 || len(primary.customers) != 0 {
		t.Fatal("validation failure must not write")
	}
}

func TestCreateBookingDerivesDeliveryMethodFromParser(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, func(deps *BookingEngineDeps) {
		deps.Parser = &stubListingParser{hint: ListingHint{ShippingOption: "ems"}}
	})

	cmd := bookingCommand()
	cmd.DeliveryMethod = ""
	result, err := engine.CreateBooking(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	order := primary.orders[result.OrderID]
	if order.DeliveryMethod != "ems" {
		t.Fatalf("delivery method: got %q", order.DeliveryMethod)
	}
	if order.BikeSnapshot.Financials.ShippingCostEur != 220 {
		t.Fatalf("ems shipping cost: got %.2f", order.BikeSnapshot.Financials.ShippingCostEur)
	}
}

func TestCreateBookingNormalizesHintEnrichedSnapshot(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, func(deps *BookingEngineDeps) {
		deps.Parser = &stubListingParser{hint: ListingHint{
			ShippingOption:  "cargo",
			Title:           "  Trek Emonda SL 6  ",
			ListingPriceEur: 2100,
		}}
	})

	cmd := bookingCommand()
	cmd.RawSnapshot = map[string]any{
		"images": []any{"https://cdn.example.com/trek.jpg", " https://cdn.example.com/trek.jpg "},
	}
	result, err := engine.CreateBooking(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	snapshot := primary.orders[result.OrderID].BikeSnapshot
	if snapshot.Title != "Trek Emonda SL 6" {
		t.Fatalf("hint title not normalized: %q", snapshot.Title)
	}
	if len(snapshot.Images) != 1 {
		t.Fatalf("images not deduplicated: %#v", snapshot.Images)
	}
	if snapshot.MainPhotoURL != snapshot.Images[0] {
		t.Fatalf("main photo %q not the first image %q", snapshot.MainPhotoURL, snapshot.Images[0])
	}
	if snapshot.Price != 2100 {
		t.Fatalf("hint price not adopted: %.2f", snapshot.Price)
	}
}

func TestCreateBookingSwallowsParserErrors(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, func(deps *BookingEngineDeps) {
		deps.Parser = &stubListingParser{hintErr: errors.New("parser exploded")}
	})

	if _, err := engine.CreateBooking(context.Background(), bookingCommand()); err != nil {
		t.Fatalf("parser failure must not fail an explicit booking: %v", err)
	}
	engine.Wait()
}

func TestCreateBookingRejectsOutOfCompliancePrice(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, nil)

	cmd := bookingCommand()
	cmd.RawSnapshot["price"] = 6000.0
	if _, err := engine.CreateBooking(context.Background(), cmd); !errors.Is(err, ErrCompliancePrice) {
		t.Fatalf("expected ErrCompliancePrice, got %v", err)
	}
	if primary.orderCount() != 0 {
		t.Fatal("compliance failure must not write")
	}
}

func TestCreateBookingRejectsLateDiscoveredBadPrice(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, func(deps *BookingEngineDeps) {
		deps.Parser = &stubListingParser{hint: ListingHint{ShippingOption: "cargo", ListingPriceEur: 7500}}
	})

	cmd := bookingCommand()
	delete(cmd.RawSnapshot, "price")
	if _, err := engine.CreateBooking(context.Background(), cmd); !errors.Is(err, ErrCompliancePrice) {
		t.Fatalf("expected ErrCompliancePrice on re-parsed price, got %v", err)
	}
}

func TestCreateBookingRejectsUnpricedSnapshot(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, nil)

	cmd := bookingCommand()
	delete(cmd.RawSnapshot, "price")
	if _, err := engine.CreateBooking(context.Background(), cmd); !errors.Is(err, ErrBookingInvalidPrice) {
		t.Fatalf("expected ErrBookingInvalidPrice, got %v", err)
	}
}

func TestCreateBookingRejectsMissingContact(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, nil)

	cmd := bookingCommand()
	cmd.Customer = CustomerInput{FullName: "Anonymous"}
	if _, err := engine.CreateBooking(context.Background(), cmd); !errors.Is(err, ErrBookingMissingContact) {
		t.Fatalf("expected ErrBookingMissingContact, got %v", err)
	}
}

func TestCreateBookingEnforcesQuota(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, _ := testEngine(t, primary, nil, nil)

	ctx := context.Background()
	if _, err := engine.CreateBooking(ctx, bookingCommand()); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	// Seed two more active orders for the same customer directly.
	seedOrders(primary, "id-1", domain.StatusSellerCheckInProgress, domain.StatusFullPaymentPending)

	if _, err := engine.CreateBooking(ctx, bookingCommand()); !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	engine.Wait()
}

func TestCreateBookingDeduplicatesCustomerByEmail(t *testing.T) {
	primary := newMemStore("local_primary")
	primary.customers["cust-existing"] = domain.Customer{
		ID:        "cust-existing",
		FullName:  "Anna Schmidt",
		Email:     "anna@example.com",
		Phone:     "+49000000000",
		City:      "Berlin",
		CreatedAt: fixedNow().Add(-24 * time.Hour),
	}
	engine, _ := testEngine(t, primary, nil, nil)

	cmd := bookingCommand()
	cmd.Customer.Phone = "" // incoming blank must not erase the stored phone
	result, err := engine.CreateBooking(context.Background(), cmd)
	if err != nil {
		t.Fatalf("CreateBooking: %v", err)
	}
	engine.Wait()

	if len(primary.customers) != 1 {
		t.Fatalf("expected the existing customer to be reused, got %d rows", len(primary.customers))
	}
	merged := primary.customers["cust-existing"]
	if merged.Phone != "+49000000000" || merged.City != "Berlin" {
		t.Fatalf("merge erased fields: %#v", merged)
	}
	if order := primary.orders[result.OrderID]; order.CustomerID != "cust-existing" {
		t.Fatalf("order bound to wrong customer: %q", order.CustomerID)
	}
}

func TestCreateBookingPublisherFailureDoesNotFailBooking(t *testing.T) {
	primary := newMemStore("local_primary")
	engine, publisher := testEngine(t, primary, nil, nil)
	publisher.err = errors.New("broker down")

	if _, err := engine.CreateBooking(context.Background(), bookingCommand()); err != nil {
		t.Fatalf("notification failure must not fail the booking: %v", err)
	}
	engine.Wait()
}
