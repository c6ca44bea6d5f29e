package di

import (
	"context"
	"errors"
	"fmt"

	"cloud.google.com/go/pubsub"
	gcs "cloud.google.com/go/storage"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/config"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/exchange"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/jobs"
	"github.com/g1nlyf/BikeWerk-sub001/internal/platform/listing"
	platformstorage "github.com/g1nlyf/BikeWerk-sub001/internal/platform/storage"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories/postgres"
	"github.com/g1nlyf/BikeWerk-sub001/internal/repositories/supabase"
	"github.com/g1nlyf/BikeWerk-sub001/internal/services"
)

// Container wires stores, services and background infrastructure for
// runtime use. The primary store is Postgres; the Supabase mirror and the
// listing, image and notification collaborators are attached only when
// configured.
type Container struct {
	Config config.Config

	Primary   repositories.Store
	Secondary repositories.Store

	Rates    *exchange.Refresher
	Bookings *services.BookingEngine
	Orders   *services.OrderTracker

	pubsubClient  *pubsub.Client
	storageClient *gcs.Client
}

// ContainerDeps bundles the inputs NewContainer needs. Logger is optional.
type ContainerDeps struct {
	Config config.Config
	Pool   *pgxpool.Pool
	Logger func(context.Context, string, map[string]any)
}

// NewContainer constructs the runtime dependencies from configuration.
func NewContainer(ctx context.Context, deps ContainerDeps) (*Container, error) {
	if deps.Pool == nil {
		return nil, errors.New("container: postgres pool is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	cfg := deps.Config

	primary, err := postgres.NewStore(deps.Pool, cfg.Database.StoreTimeout)
	if err != nil {
		return nil, fmt.Errorf("build primary store: %w", err)
	}

	c := &Container{Config: cfg, Primary: primary}

	if cfg.Supabase.Enabled() {
		secondary, err := supabase.NewStore(cfg.Supabase)
		if err != nil {
			return nil, fmt.Errorf("build secondary store: %w", err)
		}
		c.Secondary = secondary
	}

	rates, err := exchange.NewRefresher(exchange.RefresherDeps{
		Config: cfg.Exchange,
		Logger: logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build exchange refresher: %w", err)
	}
	c.Rates = rates

	var parser services.ListingParser
	if cfg.Listing.Endpoint != "" {
		client, err := listing.NewClient(cfg.Listing)
		if err != nil {
			return nil, fmt.Errorf("build listing client: %w", err)
		}
		parser = client
	}

	var images services.ImageCache
	if cfg.Features.EnableImageCache && cfg.Storage.ImagesBucket != "" {
		storageClient, err := gcs.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("build storage client: %w", err)
		}
		c.storageClient = storageClient
		cache, err := platformstorage.NewImageCache(platformstorage.ImageCacheDeps{
			Client:        storageClient,
			Bucket:        cfg.Storage.ImagesBucket,
			PublicBaseURL: cfg.Storage.PublicBaseURL,
			Logger:        logger,
		})
		if err != nil {
			return nil, fmt.Errorf("build image cache: %w", err)
		}
		images = cache
	}

	var publisher services.OrderEventPublisher
	if cfg.Features.EnableNotifications && cfg.Notifications.ProjectID != "" && cfg.Notifications.OrderTopic != "" {
		pubsubClient, err := pubsub.NewClient(ctx, cfg.Notifications.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("build pubsub client: %w", err)
		}
		c.pubsubClient = pubsubClient
		notifier, err := jobs.NewPubSubOrderNotifier(pubsubClient.Topic(cfg.Notifications.OrderTopic))
		if err != nil {
			return nil, fmt.Errorf("build order notifier: %w", err)
		}
		publisher = notifier
	}

	guard, err := services.NewQuotaGuard(services.QuotaGuardDeps{
		Primary:   primary,
		Secondary: c.Secondary,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build quota guard: %w", err)
	}

	engine, err := services.NewBookingEngine(services.BookingEngineDeps{
		Primary:    primary,
		Secondary:  c.Secondary,
		Calculator: services.NewPriceCalculator(),
		Normalizer: services.NewSnapshotNormalizer(),
		Guard:      guard,
		Rates:      rates,
		Parser:     parser,
		Images:     images,
		Publisher:  publisher,
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build booking engine: %w", err)
	}
	c.Bookings = engine

	tracker, err := services.NewOrderTracker(services.OrderTrackerDeps{
		Primary:   primary,
		Secondary: c.Secondary,
		Logger:    logger,
	})
	if err != nil {
		return nil, fmt.Errorf("build order tracker: %w", err)
	}
	c.Orders = tracker

	return c, nil
}

// Close drains background mirror work and releases store and client
// resources. Safe to call once during shutdown.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.Bookings != nil {
		c.Bookings.Wait()
	}
	if c.Orders != nil {
		c.Orders.Wait()
	}

	var errs []error
	if c.pubsubClient != nil {
		if err := c.pubsubClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close pubsub client: %w", err))
		}
	}
	if c.storageClient != nil {
		if err := c.storageClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close storage client: %w", err))
		}
	}
	if c.Secondary != nil {
		if err := c.Secondary.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close secondary store: %w", err))
		}
	}
	if c.Primary != nil {
		if err := c.Primary.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close primary store: %w", err))
		}
	}
	return errors.Join(errs...)
}
