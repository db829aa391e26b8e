package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/tajirhq/tajir-ai-platform/internal/shops"
	"github.com/tajirhq/tajir-ai-platform/pkg/logging"
)

// suspender is the slice of the shops store the sweeper needs.
type suspender interface {
	SuspendExpired(ctx context.Context, cutoff time.Time) ([]shops.Shop, error)
}

// noticeSender emails the owner when their shop gets suspended.
type noticeSender interface {
	SendSuspensionNotice(ctx context.Context, shop *shops.Shop) error
}

// dedupPurger trims old webhook dedup markers. The sweep tick is a handy
// place for housekeeping that needs no precision.
type dedupPurger interface {
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// dedupRetention keeps markers well past any provider's retry horizon.
const dedupRetention = 30 * 24 * time.Hour

// Sweeper periodically suspends shops whose subscription has lapsed. Once a
// shop is suspended the webhook paths ack-and-drop its inbound messages, so
// a lapsed shop stops spending AI tokens within one sweep interval.
type Sweeper struct {
	shops    suspender
	notices  noticeSender
	dedup    dedupPurger
	logger   *logging.Logger
	interval time.Duration
}

// NewSweeper builds a sweeper with the default hourly interval. The notice
// sender is optional.
func NewSweeper(shopStore suspender, notices noticeSender, logger *logging.Logger) *Sweeper {
	if shopStore == nil {
		panic("billing: shop store is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Sweeper{
		shops:    shopStore,
		notices:  notices,
		logger:   logger.Component("billing"),
		interval: time.Hour,
	}
}

// WithInterval overrides how often the sweep runs.
func (s *Sweeper) WithInterval(interval time.Duration) *Sweeper {
	if interval > 0 {
		s.interval = interval
	}
	return s
}

// WithDedupPurge makes each sweep also trim webhook dedup markers older
// than the retention window.
func (s *Sweeper) WithDedupPurge(p dedupPurger) *Sweeper {
	s.dedup = p
	return s
}

// Start runs the sweep loop until ctx is cancelled. The first sweep happens
// immediately rather than one interval in.
func (s *Sweeper) Start(ctx context.Context) {
	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context) {
	n, err := s.SweepOnce(ctx)
	if err != nil {
		s.logger.Error("billing sweep failed", "error", err)
	} else if n > 0 {
		s.logger.Info("suspended expired subscriptions", "count", n)
	}

	if s.dedup != nil {
		purged, err := s.dedup.PurgeOlderThan(ctx, time.Now().UTC().Add(-dedupRetention))
		if err != nil {
			s.logger.Warn("dedup purge failed", "error", err)
		} else if purged > 0 {
			s.logger.Info("purged webhook dedup markers", "count", purged)
		}
	}
}

// SweepOnce suspends every shop whose subscription expired before now and
// sends each owner a suspension notice. Returns how many shops were
// suspended. Notice failures are logged, not returned: the suspension
// already happened and the next renewal reactivates regardless.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	suspended, err := s.shops.SuspendExpired(ctx, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("billing: suspend expired: %w", err)
	}

	for i := range suspended {
		shop := &suspended[i]
		s.logger.Info("subscription suspended", "shop_id", shop.ID, "plan_id", shop.PlanID)
		if s.notices == nil {
			continue
		}
		if err := s.notices.SendSuspensionNotice(ctx, shop); err != nil {
			s.logger.Warn("suspension notice failed", "error", err, "shop_id", shop.ID)
		}
	}
	return len(suspended), nil
}
