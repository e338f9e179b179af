package provision

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/wincLei/customer-service-sub000/internal/config"
)

// Sweeper periodically re-runs provisioning for recently active visitors.
// Agent assignment changes between a visitor's creation and their next
// message; the sweep folds newly assigned agents into existing channels
// without waiting for another lifecycle event.
type Sweeper struct {
	provisioner *Service
	store       Store
	cfg         config.ProvisionConfig
	logger      *slog.Logger
	cron        *cron.Cron
}

func NewSweeper(log *slog.Logger, provisioner *Service, st Store, cfg config.ProvisionConfig) *Sweeper {
	if log == nil {
		log = slog.Default()
	}
	return &Sweeper{
		provisioner: provisioner,
		store:       st,
		cfg:         cfg,
		logger:      log.With(slog.String("service", "provision_sweep")),
	}
}

// Start schedules the sweep. An empty spec disables it.
func (s *Sweeper) Start() error {
	if s.cfg.SweepSpec == "" {
		s.logger.Info("subscription sweep disabled")
		return nil
	}
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.cfg.SweepSpec, func() {
		s.Sweep(context.Background())
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", s.cfg.SweepSpec, err)
	}
	s.cron.Start()
	s.logger.Info("subscription sweep scheduled", slog.String("spec", s.cfg.SweepSpec))
	return nil
}

// Sweep re-provisions every visitor active inside the configured window.
func (s *Sweeper) Sweep(ctx context.Context) {
	window := time.Duration(s.cfg.SweepWindowMinutes) * time.Minute
	if window <= 0 {
		window = 30 * time.Minute
	}
	users, err := s.store.ListActiveUsersSince(ctx, time.Now().Add(-window))
	if err != nil {
		s.logger.Error("list active visitors failed", slog.Any("error", err))
		return
	}
	for _, u := range users {
		s.provisioner.Provision(ctx, u.ProjectID, u.ID)
	}
	if len(users) > 0 {
		s.logger.Info("subscription sweep completed", slog.Int("visitors", len(users)))
	}
}

// Stop halts the scheduler and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}
