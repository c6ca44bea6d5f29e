package services

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	domain "github.com/g1nlyf/BikeWerk-sub001/internal/domain"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
)

var (
	// ErrBookingMissingContact signals that neither email, phone nor a
	// contact value was supplied for the buyer.
	ErrBookingMissingContact = errors.New("booking: customer contact is required")
	// ErrBookingMissingDeliveryMethod signals that no delivery method was
	// supplied and none could be derived from the listing.
	ErrBookingMissingDeliveryMethod = errors.New("booking: delivery method is required")
	// ErrBookingInvalidPrice signals that no positive bike price could be
	// resolved from the request or the listing.
	ErrBookingInvalidPrice = errors.New("booking: bike price is required")
	// ErrBookingStoresUnavailable signals that neither store accepted the
	// booking writes.
	ErrBookingStoresUnavailable = errors.New("booking: no store available")
)

// Storage modes reported to the caller for observability.
const (
	StorageModeLocalPrimary     = "local_primary"
	StorageModeSupabaseFallback = "supabase_fallback"
)

const (
	bookingLeadSource    = "website_booking"
	bookingLeadStatus    = "new"
	magicLinkPathPrefix  = "/track/"
	defaultMirrorTimeout = 30 * time.Second
)

// CustomerInput carries buyer identity fields from the booking request.
type CustomerInput struct {
	FullName         string
	Email            string
	Phone            string
	PreferredChannel string
	ContactValue     string
	City             string
}

// CreateBookingCommand is the full booking request.
type CreateBookingCommand struct {
	BikeID            string
	BikeURL           string
	Customer          CustomerInput
	RawSnapshot       map[string]any
	DeliveryMethod    string
	ShippingTier      string
	InsuranceIncluded bool
	Source            string
	BookingMeta       map[string]any
}

// BookingResult is returned to the caller on an accepted booking.
type BookingResult struct {
	OrderID      string
	OrderCode    string
	Status       string
	StorageMode  string
	MagicLinkURL string
}

// BookingEngine persists a booking as Customer, Lead and Order rows. Writes
// go to the primary store synchronously and are mirrored to the secondary
// store asynchronously; when the primary store is down the engine writes the
// secondary store directly and mirrors back. Mirror failures never fail the
// booking: they are captured in the sync outbox of the store that accepted
// the write.
type BookingEngine struct {
	primary   repositories.Store
	secondary repositories.Store

	calculator *PriceCalculator
	normalizer *SnapshotNormalizer
	guard      *QuotaGuard
	rates      ExchangeRateSource
	parser     ListingParser
	images     ImageCache
	publisher  OrderEventPublisher

	now    func() time.Time
	logger func(context.Context, string, map[string]any)

	newID        func() string
	newEventID   func() string
	newOrderCode func() (string, error)
	newToken     func() (string, error)

	background *taskSupervisor
}

// BookingEngineDeps bundles the engine's collaborators. Secondary, Parser,
// Images and Publisher are optional.
type BookingEngineDeps struct {
	Primary   repositories.Store
	Secondary repositories.Store

	Calculator *PriceCalculator
	Normalizer *SnapshotNormalizer
	Guard      *QuotaGuard
	Rates      ExchangeRateSource
	Parser     ListingParser
	Images     ImageCache
	Publisher  OrderEventPublisher

	MirrorTimeout time.Duration
	Now           func() time.Time
	Logger        func(context.Context, string, map[string]any)

	NewID        func() string
	NewEventID   func() string
	NewOrderCode func() (string, error)
	NewToken     func() (string, error)
}

// NewBookingEngine validates required dependencies and builds the engine.
func NewBookingEngine(deps BookingEngineDeps) (*BookingEngine, error) {
	if deps.Primary == nil {
		return nil, errors.New("booking engine: primary store is required")
	}
	if deps.Calculator == nil {
		return nil, errors.New("booking engine: price calculator is required")
	}
	if deps.Normalizer == nil {
		return nil, errors.New("booking engine: snapshot normalizer is required")
	}
	if deps.Guard == nil {
		return nil, errors.New("booking engine: quota guard is required")
	}
	if deps.Rates == nil {
		return nil, errors.New("booking engine: exchange rate source is required")
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
	newID := deps.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	newEventID := deps.NewEventID
	if newEventID == nil {
		newEventID = func() string { return ulid.Make().String() }
	}
	newOrderCode := deps.NewOrderCode
	if newOrderCode == nil {
		newOrderCode = randomOrderCode
	}
	newToken := deps.NewToken
	if newToken == nil {
		newToken = randomToken
	}

	return &BookingEngine{
		primary:    deps.Primary,
		secondary:  deps.Secondary,
		calculator: deps.Calculator,
		normalizer: deps.Normalizer,
		guard:      deps.Guard,
		rates:      deps.Rates,
		parser:     deps.Parser,
		images:     deps.Images,
		publisher:  deps.Publisher,
		now: func() time.Time {
			return now().UTC()
		},
		logger:       logger,
		newID:        newID,
		newEventID:   newEventID,
		newOrderCode: newOrderCode,
		newToken:     newToken,
		background:   newTaskSupervisor(mirrorTimeout, logger),
	}, nil
}

// bookingRecords is the Customer/Lead/Order triple plus the initial status
// event, written sequentially in that order to every store.
type bookingRecords struct {
	customer domain.Customer
	lead     domain.Lead
	order    domain.Order
	event    domain.OrderStatusEvent
}

// CreateBooking runs the full intake flow. Validation and policy failures
// abort with zero writes; only infrastructure failures trigger the fallback
// path.
func (e *BookingEngine) CreateBooking(ctx context.Context, cmd CreateBookingCommand) (BookingResult, error) {
	if !hasContact(cmd.Customer) {
		return BookingResult{}, ErrBookingMissingContact
	}

	snapshot := e.normalizer.Normalize(cmd.RawSnapshot, cmd.BikeID, cmd.BikeURL)
	if err := e.guard.AssertPriceWithinCompliance(snapshot.Price); err != nil {
		return BookingResult{}, err
	}

	hint := e.listingHint(ctx, cmd.RawSnapshot)

	deliveryMethod := strings.TrimSpace(cmd.DeliveryMethod)
	if deliveryMethod == "" {
		deliveryMethod = strings.TrimSpace(hint.ShippingOption)
	}
	if deliveryMethod == "" {
		return BookingResult{}, ErrBookingMissingDeliveryMethod
	}

	if snapshot.BikeURL == "" && e.parser != nil {
		if url, err := e.parser.FindListingURL(ctx, cmd.RawSnapshot); err == nil {
			snapshot.BikeURL = strings.TrimSpace(url)
		}
	}
	if snapshot.Price == 0 && hint.ListingPriceEur > 0 {
		snapshot.Price = hint.ListingPriceEur
		if snapshot.ListingPriceEur == 0 {
			snapshot.ListingPriceEur = hint.ListingPriceEur
		}
	}
	if snapshot.Title == fallbackSnapshotTitle && strings.TrimSpace(hint.Title) != "" {
		snapshot.Title = hint.Title
	}

	// Hint enrichment mutates the snapshot, so it goes through the fixed
	// point once more before anything is persisted.
	snapshot = e.normalizer.NormalizeSnapshot(snapshot)

	// Prices can be discovered late, so the band is enforced again against
	// the finally-resolved price.
	if snapshot.Price <= 0 {
		return BookingResult{}, ErrBookingInvalidPrice
	}
	if err := e.guard.AssertPriceWithinCompliance(snapshot.Price); err != nil {
		return BookingResult{}, err
	}

	shippingTier := strings.TrimSpace(cmd.ShippingTier)
	if shippingTier == "" {
		shippingTier = deliveryMethod
	}

	records, err := e.buildRecords(ctx, cmd, snapshot, deliveryMethod, shippingTier)
	if err != nil {
		return BookingResult{}, err
	}

	// Primary path.
	primaryErr := e.writeBooking(ctx, e.primary, &records)
	if primaryErr == nil {
		e.spawnMirror(ctx, e.secondary, e.primary, records)
		e.spawnSideEffects(ctx, records, StorageModeLocalPrimary)
		return e.result(records, StorageModeLocalPrimary), nil
	}
	if isPolicyError(primaryErr) {
		return BookingResult{}, primaryErr
	}
	if e.secondary == nil {
		return BookingResult{}, fmt.Errorf("%w: %v", ErrBookingStoresUnavailable, primaryErr)
	}

	e.logger(ctx, "booking.primary_path_failed", map[string]any{
		"order_code": records.order.OrderCode,
		"error":      primaryErr.Error(),
	})

	// Fallback path: the secondary store takes the booking directly.
	if fallbackErr := e.writeBooking(ctx, e.secondary, &records); fallbackErr != nil {
		if isPolicyError(fallbackErr) {
			return BookingResult{}, fallbackErr
		}
		return BookingResult{}, fmt.Errorf("%w: primary: %v; secondary: %v", ErrBookingStoresUnavailable, primaryErr, fallbackErr)
	}

	e.spawnMirror(ctx, e.primary, e.secondary, records)
	e.spawnSideEffects(ctx, records, StorageModeSupabaseFallback)
	return e.result(records, StorageModeSupabaseFallback), nil
}

// Wait blocks until all supervised background work has finished. Used by
// tests and by graceful shutdown.
func (e *BookingEngine) Wait() {
	e.background.Wait()
}

func (e *BookingEngine) result(records bookingRecords, storageMode string) BookingResult {
	return BookingResult{
		OrderID:      records.order.ID,
		OrderCode:    records.order.OrderCode,
		Status:       "accepted",
		StorageMode:  storageMode,
		MagicLinkURL: magicLinkPathPrefix + records.order.MagicLinkToken,
	}
}

func (e *BookingEngine) listingHint(ctx context.Context, raw map[string]any) ListingHint {
	if e.parser == nil {
		return ListingHint{}
	}
	hint, err := e.parser.ParseShippingHint(ctx, raw)
	if err != nil {
		e.logger(ctx, "booking.listing_hint_failed", map[string]any{"error": err.Error()})
		return ListingHint{}
	}
	return hint
}

// buildRecords generates stable ids and assembles the full record set once,
// so the primary, fallback and mirror paths all write identical rows.
func (e *BookingEngine) buildRecords(ctx context.Context, cmd CreateBookingCommand, snapshot ItemSnapshot, deliveryMethod, shippingTier string) (bookingRecords, error) {
	now := e.now()

	orderCode, err := e.newOrderCode()
	if err != nil {
		return bookingRecords{}, fmt.Errorf("generate order code: %w", err)
	}
	token, err := e.newToken()
	if err != nil {
		return bookingRecords{}, fmt.Errorf("generate magic link token: %w", err)
	}

	if e.images != nil && len(snapshot.Images) > 0 {
		snapshot.CachedImages = e.images.CacheImages(ctx, orderCode, snapshot.Images)
	}

	channel := domain.NormalizePreferredChannel(cmd.Customer.PreferredChannel)
	customer := domain.Customer{
		ID:               e.newID(),
		FullName:         strings.TrimSpace(cmd.Customer.FullName),
		Email:            strings.TrimSpace(cmd.Customer.Email),
		Phone:            strings.TrimSpace(cmd.Customer.Phone),
		PreferredChannel: channel,
		ContactValue:     strings.TrimSpace(cmd.Customer.ContactValue),
		City:             strings.TrimSpace(cmd.Customer.City),
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	source := strings.TrimSpace(cmd.Source)
	if source == "" {
		source = bookingLeadSource
	}
	lead := domain.Lead{
		ID:            e.newID(),
		Source:        source,
		BikeURL:       snapshot.BikeURL,
		BikeSnapshot:  snapshot,
		Status:        bookingLeadStatus,
		ContactMethod: string(channel),
		ContactValue:  firstNonEmpty(customer.ContactValue, customer.Email, customer.Phone),
		CreatedAt:     now,
	}

	breakdown := e.calculator.Calculate(snapshot.Price, shippingTier, cmd.InsuranceIncluded, e.rates.CurrentRate())
	order := domain.Order{
		ID:        e.newID(),
		OrderCode: orderCode,
		BikeID:    snapshot.BikeID,
		BikeSnapshot: domain.OrderSnapshot{
			ItemSnapshot: snapshot,
			Financials:   breakdown,
			BookingMeta:  cmd.BookingMeta,
		},
		Status:           domain.StatusBooked,
		MagicLinkToken:   token,
		FinalPriceEur:    breakdown.FinalPriceEur,
		TotalPriceRub:    breakdown.TotalPriceRub,
		BookingAmountRub: breakdown.BookingAmountRub,
		ExchangeRate:     breakdown.ExchangeRate,
		DeliveryMethod:   deliveryMethod,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	event := domain.OrderStatusEvent{
		ID:        e.newEventID(),
		OldStatus: "",
		NewStatus: domain.StatusBooked,
		Note:      "booking accepted",
		ChangedBy: "system",
		CreatedAt: now,
	}

	return bookingRecords{customer: customer, lead: lead, order: order, event: event}, nil
}

// writeBooking runs the strict Customer -> Lead -> Order sequence against
// one store. Customer identity is deduplicated against that same store, so
// the records' ids may be rewritten to an existing customer's id.
func (e *BookingEngine) writeBooking(ctx context.Context, store repositories.Store, records *bookingRecords) error {
	resolved, err := e.resolveCustomer(ctx, store, records.customer)
	if err != nil {
		return err
	}
	records.customer = resolved
	records.lead.CustomerID = resolved.ID
	records.order.CustomerID = resolved.ID
	records.order.LeadID = records.lead.ID
	records.event.OrderID = records.order.ID

	if err := e.guard.AssertFreeBookingQuota(ctx, resolved.ID); err != nil {
		return err
	}

	if err := store.Customers().Upsert(ctx, records.customer); err != nil {
		return err
	}
	if err := store.Leads().Upsert(ctx, records.lead); err != nil {
		return err
	}
	if err := store.Orders().Upsert(ctx, records.order); err != nil {
		return err
	}
	if err := store.StatusEvents().Append(ctx, records.event); err != nil {
		return err
	}
	return nil
}

// resolveCustomer dedupes by email first, then phone. Matched rows keep
// their id and creation time; incoming fields refresh the row but an empty
// incoming field never erases an existing value.
func (e *BookingEngine) resolveCustomer(ctx context.Context, store repositories.Store, incoming domain.Customer) (domain.Customer, error) {
	existing, err := e.findExistingCustomer(ctx, store, incoming)
	if err != nil {
		return domain.Customer{}, err
	}
	if existing == nil {
		return incoming, nil
	}

	merged := *existing
	merged.FullName = firstNonEmpty(incoming.FullName, existing.FullName)
	merged.Email = firstNonEmpty(incoming.Email, existing.Email)
	merged.Phone = firstNonEmpty(incoming.Phone, existing.Phone)
	merged.ContactValue = firstNonEmpty(incoming.ContactValue, existing.ContactValue)
	merged.City = firstNonEmpty(incoming.City, existing.City)
	if incoming.PreferredChannel != "" {
		merged.PreferredChannel = incoming.PreferredChannel
	}
	merged.UpdatedAt = e.now()
	return merged, nil
}

func (e *BookingEngine) findExistingCustomer(ctx context.Context, store repositories.Store, incoming domain.Customer) (*domain.Customer, error) {
	if incoming.Email != "" {
		customer, err := store.Customers().FindByEmail(ctx, incoming.Email)
		if err == nil {
			return &customer, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, err
		}
	}
	if incoming.Phone != "" {
		customer, err := store.Customers().FindByPhone(ctx, incoming.Phone)
		if err == nil {
			return &customer, nil
		}
		if !repositories.IsNotFound(err) {
			return nil, err
		}
	}
	return nil, nil
}

// spawnMirror replays the booking records against the other store in a
// supervised background task. Each entity is attempted independently;
// failures become outbox rows on the store that accepted the booking.
func (e *BookingEngine) spawnMirror(ctx context.Context, target, outboxStore repositories.Store, records bookingRecords) {
	if target == nil {
		return
	}
	e.background.Spawn(ctx, "booking.mirror", func(ctx context.Context) {
		e.mirrorRecords(ctx, target, outboxStore, records)
	})
}

func (e *BookingEngine) mirrorRecords(ctx context.Context, target, outboxStore repositories.Store, records bookingRecords) {
	type mirrorOp struct {
		entityType string
		entityID   string
		payload    any
		write      func(context.Context) error
	}

	ops := []mirrorOp{
		{"customer", records.customer.ID, records.customer, func(ctx context.Context) error {
			return target.Customers().Upsert(ctx, records.customer)
		}},
		{"lead", records.lead.ID, records.lead, func(ctx context.Context) error {
			return target.Leads().Upsert(ctx, records.lead)
		}},
		{"order", records.order.ID, records.order, func(ctx context.Context) error {
			return target.Orders().Upsert(ctx, records.order)
		}},
		{"order_status_event", records.event.ID, records.event, func(ctx context.Context) error {
			return target.StatusEvents().Append(ctx, records.event)
		}},
	}

	for _, op := range ops {
		err := op.write(ctx)
		if err == nil {
			continue
		}
		e.logger(ctx, "booking.mirror_failed", map[string]any{
			"store":       target.Name(),
			"entity_type": op.entityType,
			"entity_id":   op.entityID,
			"error":       err.Error(),
		})
		e.recordOutbox(ctx, outboxStore, op.entityType, op.entityID, op.payload, err)
	}
}

// recordOutbox captures a failed mirror write for the external drain worker.
// An outbox write failure is terminal for this attempt and can only be
// logged.
func (e *BookingEngine) recordOutbox(ctx context.Context, store repositories.Store, entityType, entityID string, payload any, cause error) {
	body, err := json.Marshal(payload)
	if err != nil {
		e.logger(ctx, "booking.outbox_marshal_failed", map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
		return
	}

	now := e.now()
	entry := domain.SyncOutboxEntry{
		ID:         e.newEventID(),
		EntityType: entityType,
		EntityID:   entityID,
		Operation:  domain.OutboxOperationUpsert,
		Payload:    string(body),
		Status:     domain.OutboxStatusPending,
		RetryCount: 0,
		LastError:  cause.Error(),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := store.Outbox().Append(ctx, entry); err != nil {
		e.logger(ctx, "booking.outbox_append_failed", map[string]any{
			"entity_type": entityType,
			"entity_id":   entityID,
			"error":       err.Error(),
		})
	}
}

// spawnSideEffects dispatches best-effort downstream notifications.
func (e *BookingEngine) spawnSideEffects(ctx context.Context, records bookingRecords, storageMode string) {
	if e.publisher == nil {
		return
	}
	e.background.Spawn(ctx, "booking.notify", func(ctx context.Context) {
		message := OrderEventMessage{
			OrderCode:        records.order.OrderCode,
			OrderID:          records.order.ID,
			CustomerID:       records.customer.ID,
			CustomerName:     records.customer.FullName,
			Status:           string(records.order.Status),
			StorageMode:      storageMode,
			BikeTitle:        records.order.BikeSnapshot.Title,
			FinalPriceEur:    records.order.FinalPriceEur,
			BookingAmountRub: records.order.BookingAmountRub,
			DeliveryMethod:   records.order.DeliveryMethod,
			CreatedAt:        records.order.CreatedAt,
		}
		if _, err := e.publisher.PublishOrderEvent(ctx, message); err != nil {
			e.logger(ctx, "booking.notify_failed", map[string]any{
				"order_code": records.order.OrderCode,
				"error":      err.Error(),
			})
		}
	})
}

func isPolicyError(err error) bool {
	return errors.Is(err, ErrCompliancePrice) || errors.Is(err, ErrQuotaExceeded)
}

func hasContact(input CustomerInput) bool {
	return strings.TrimSpace(input.Email) != "" ||
		strings.TrimSpace(input.Phone) != "" ||
		strings.TrimSpace(input.ContactValue) != ""
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// randomOrderCode yields the caller-facing ORD-###### identifier.
func randomOrderCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("ORD-%06d", n.Int64()+100000), nil
}

// randomToken yields the unguessable magic link credential.
func randomToken() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
