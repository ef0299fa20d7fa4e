package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/starterkit/internal/auth/store"
)

// HousekeepingService periodically deletes expired sessions, challenges and
// trusted devices so the tables do not grow without bound.
type HousekeepingService struct {
	Store      store.Store
	Challenges store.Challenges
	Logger     *slog.Logger
	Interval   time.Duration

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewHousekeepingService creates a housekeeping worker. challenges may be nil
// when they live in st. An interval of 0 or less defaults to 1 hour.
func NewHousekeepingService(st store.Store, challenges store.Challenges, logger *slog.Logger, interval time.Duration) *HousekeepingService {
	if interval <= 0 {
		interval = 1 * time.Hour
	}
	if challenges == nil {
		challenges = st.Challenges()
	}

	return &HousekeepingService{
		Store:      st,
		Challenges: challenges,
		Logger:     logger,
		Interval:   interval,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the worker in the background. Call Stop to shut it down.
func (s *HousekeepingService) Start() {
	go s.run()
	s.Logger.Info("housekeeping service started", "interval", s.Interval)
}

// Stop blocks until any in-progress cleanup has finished.
func (s *HousekeepingService) Stop() {
	close(s.stopCh)
	<-s.doneCh
	s.Logger.Info("housekeeping service stopped")
}

func (s *HousekeepingService) run() {
	defer close(s.doneCh)

	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	s.Cleanup(context.Background(), time.Now().UTC())

	for {
		select {
		case <-ticker.C:
			s.Cleanup(context.Background(), time.Now().UTC())
		case <-s.stopCh:
			return
		}
	}
}

// Cleanup deletes everything that expired before now. Each step is
// independent; a failure in one does not stop the others.
func (s *HousekeepingService) Cleanup(ctx context.Context, now time.Time) {
	steps := []struct {
		name string
		fn   func(context.Context, time.Time) (int64, error)
	}{
		{"sessions", s.Store.Sessions().DeleteExpiredSessions},
		{"challenges", s.Challenges.DeleteExpiredChallenges},
		{"trusted_devices", s.Store.TrustedDevices().DeleteExpiredTrustedDevices},
	}

	var total int64
	for _, step := range steps {
		n, err := step.fn(ctx, now)
		if err != nil {
			s.Logger.Error("housekeeping step failed", "step", step.name, "error", err)
			continue
		}
		total += n
		if n > 0 {
			s.Logger.Debug("housekeeping step completed", "step", step.name, "deleted", n)
		}
	}

	s.Logger.Info("housekeeping cleanup completed", "deleted", total)
}
