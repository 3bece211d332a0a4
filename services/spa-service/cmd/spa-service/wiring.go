package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/md-rashed-zaman/spabook/libs/httpx"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/booking"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/catalog"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/notify"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/schedule"
	"github.com/md-rashed-zaman/spabook/services/spa-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// The domain packages each declare the narrow Tx they need; *storage.Tx satisfies all of them.
type bookingUnit struct{ store *storage.Store }

func (u bookingUnit) InTx(ctx context.Context, fn func(booking.Tx) error) error {
	return u.store.InTx(ctx, func(tx *storage.Tx) error { return fn(tx) })
}

type scheduleUnit struct{ store *storage.Store }

func (u scheduleUnit) InTx(ctx context.Context, fn func(schedule.Tx) error) error {
	return u.store.InTx(ctx, func(tx *storage.Tx) error { return fn(tx) })
}

type catalogUnit struct{ store *storage.Store }

func (u catalogUnit) InTx(ctx context.Context, fn func(catalog.Tx) error) error {
	return u.store.InTx(ctx, func(tx *storage.Tx) error { return fn(tx) })
}

func newNotifier(cfg Config, logger *slog.Logger) notify.Notifier {
	var email notify.EmailSender
	if cfg.SMTPHost != "" {
		email = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPFrom)
	}
	var sms notify.SMSSender = notify.NoopSMSSender{}
	if cfg.SMSWebhookURL != "" {
		sms = notify.NewWebhookSender(cfg.SMSWebhookURL, cfg.SMSWebhookToken)
	}
	if email == nil && cfg.SMSWebhookURL == "" {
		logger.Warn("no notification channel configured; confirmations and cancellations are not sent")
		return notify.Noop{}
	}
	return notify.NewDispatcher(email, sms, logger, notify.DispatcherConfig{
		PerSecond: cfg.NotifyPerSecond,
		Burst:     cfg.NotifyBurst,
		Location:  cfg.Location(),
	})
}

// newRateLimiter prefers Redis so every replica shares one budget. The returned closer
// releases the Redis client.
func newRateLimiter(ctx context.Context, cfg Config, logger *slog.Logger) (*httpx.RateLimiter, func()) {
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := rdb.Ping(pingCtx).Err(); err != nil {
			logger.Warn("redis unreachable at startup; rate limiter will fail open until it recovers", "err", err, "addr", cfg.RedisAddr)
		}
		store := httpx.NewRedisWindowStore(rdb)
		return httpx.NewRateLimiter(store, cfg.RateLimitBooking, cfg.RateLimitWindow, "spa:rl"), func() { _ = rdb.Close() }
	}
	store := httpx.NewMemoryWindowStore()
	go store.RunSweeper(ctx, cfg.RateLimitWindow)
	return httpx.NewRateLimiter(store, cfg.RateLimitBooking, cfg.RateLimitWindow, "spa:rl"), func() {}
}
