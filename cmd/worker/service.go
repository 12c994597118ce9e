package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ivanberrios/storefront-backend/internal/cart"
	"github.com/ivanberrios/storefront-backend/internal/notifications"
	"github.com/ivanberrios/storefront-backend/pkg/config"
	"github.com/ivanberrios/storefront-backend/pkg/db"
	"github.com/ivanberrios/storefront-backend/pkg/logger"
	"github.com/ivanberrios/storefront-backend/pkg/metrics"
	"github.com/ivanberrios/storefront-backend/pkg/pubsub"
	"github.com/ivanberrios/storefront-backend/pkg/redis"
)

const abandonJobName = "cart-abandon-sweep"

type ServiceParams struct {
	Config               *config.Config
	Logger               *logger.Logger
	DB                   *db.Client
	Redis                *redis.Client
	PubSub               *pubsub.Client
	Carts                cart.Service
	NotificationConsumer *notifications.Consumer
	Jobs                 *metrics.CronJobMetrics
}

type Service struct {
	cfg                  *config.Config
	logg                 *logger.Logger
	db                   *db.Client
	redis                *redis.Client
	pubsub               *pubsub.Client
	carts                cart.Service
	notificationConsumer *notifications.Consumer
	jobs                 *metrics.CronJobMetrics
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Carts == nil {
		return nil, errors.New("cart service is required")
	}
	if params.NotificationConsumer == nil {
		return nil, errors.New("notification consumer is required")
	}

	return &Service{
		cfg:                  params.Config,
		logg:                 params.Logger,
		db:                   params.DB,
		redis:                params.Redis,
		pubsub:               params.PubSub,
		carts:                params.Carts,
		notificationConsumer: params.NotificationConsumer,
		jobs:                 params.Jobs,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.sweepInterval())
	defer ticker.Stop()
	errCh := make(chan error, 1)
	go func() {
		errCh <- s.notificationConsumer.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "consumer stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
			s.sweepAbandonedCarts(ctx)
		}
	}
}

func (s *Service) sweepInterval() time.Duration {
	if s.cfg.Cart.AbandonSweepInterval > 0 {
		return s.cfg.Cart.AbandonSweepInterval
	}
	return 15 * time.Minute
}

// sweepAbandonedCarts retires active carts whose session went quiet. Errors
// are logged, not fatal; the next tick retries.
func (s *Service) sweepAbandonedCarts(ctx context.Context) {
	started := time.Now()
	swept, err := s.carts.AbandonStale(ctx, s.cfg.Cart.AbandonAfter)
	if err != nil {
		s.logg.Error(ctx, "cart abandon sweep failed", err)
		s.jobs.IncFailure(abandonJobName)
		return
	}
	s.jobs.ObserveDuration(abandonJobName, time.Since(started))
	s.jobs.IncSuccess(abandonJobName)
	if swept > 0 {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"swept": swept,
		}), "abandoned stale carts")
	}
}
