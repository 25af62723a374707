package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/iworkcore/internal/identity/store"
)

// HousekeepingService periodically removes expired sessions, clears
// expired reset and verification tokens and expires stale invitations.
type HousekeepingService struct {
	Store    store.Store
	Logger   *slog.Logger
	Interval time.Duration

	// Internal channels for lifecycle management
	stopCh chan struct{}
	doneCh chan struct{}
}

// CleanupReport counts the rows touched by one cleanup pass.
type CleanupReport struct {
	RefreshTokens int64
	PendingTokens int64
	Invitations   int64
}

// NewHousekeepingService creates a new housekeeping service with the given interval.
// If interval is 0 or negative, defaults to 1 hour.
func NewHousekeepingService(store store.Store, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}

	return &HousekeepingService{
		Store:    store,
		Logger:   logger,
		Interval: interval,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start begins the background worker. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until an in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	// Run cleanup immediately on startup
	s.cleanup(context.Background(), time.Now())

	for {
		select {
		case <-ticker.C:
			s.cleanup(context.Background(), time.Now())
		case <-s.stopCh:
			return
		}
	}
}

// cleanup runs each step independently; a failure in one does not stop
// the others.
func (s *HousekeepingService) cleanup(ctx context.Context, now time.Time) CleanupReport {
	s.Logger.Debug("starting housekeeping cleanup")

	var report CleanupReport
	var err error

	// Expired refresh tokens
	if report.RefreshTokens, err = s.Store.RefreshTokens().DeleteExpiredRefreshTokens(ctx, now); err != nil {
		s.Logger.Error("failed to delete expired refresh tokens", "error", err)
	}

	// Expired password reset and email verification tokens
	if report.PendingTokens, err = s.Store.Users().ClearExpiredTokens(ctx, now); err != nil {
		s.Logger.Error("failed to clear expired user tokens", "error", err)
	}

	// Stale invitations
	if report.Invitations, err = s.Store.Invitations().ExpireInvitations(ctx, now); err != nil {
		s.Logger.Error("failed to expire invitations", "error", err)
	}

	s.Logger.Info("housekeeping cleanup completed",
		"refresh_tokens", report.RefreshTokens,
		"pending_tokens", report.PendingTokens,
		"invitations", report.Invitations,
	)
	return report
}
