package history

import (
	"context"
	"fmt"
	"sync"
	"time"

	"flashback/internal/history/interfaces"
	"flashback/internal/providers"
	"flashback/internal/services"
	"flashback/internal/structures"

	"github.com/robfig/cron/v3"
)

const pruneSpec = "@every 1m"

type Scheduler struct {
	config      *structures.Config
	logger      providers.Logger
	history     services.HistoryServiceInterface
	rateGauge   services.RateGaugeInterface
	fileManager *FileManager
	migrator    *Migrator
	metrics     providers.MetricsProviderInterface
	cron        *cron.Cron
	opsMu       sync.Mutex
}

func (s *Scheduler) Init() error {
	s.cron = cron.New()

	interval := s.config.Persistence.SaveInterval
	if _, err := s.cron.AddFunc(fmt.Sprintf("@every %s", interval), func() {
		_ = s.persist(false)
	}); err != nil {
		return fmt.Errorf("failed to schedule persistence: %w", err)
	}

	if _, err := s.cron.AddFunc(pruneSpec, func() {
		if n := s.rateGauge.Prune(); n > 0 {
			s.logger.Debugf(providers.TypeApp, "Pruned %d expired rate log entries", n)
		}
	}); err != nil {
		return fmt.Errorf("failed to schedule rate log pruning: %w", err)
	}

	s.cron.Start()
	return nil
}

func (s *Scheduler) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
	}
}

// Restore loads the snapshot, imports the legacy log and closes out results
// that were pending when the previous process stopped.
func (s *Scheduler) Restore() error {
	if err := s.fileManager.LoadFromFile(s.config.Persistence.FilePath); err != nil {
		return err
	}

	ctx := context.Background()
	if _, err := s.migrator.Migrate(ctx, s.config.Persistence.LegacyPath); err != nil {
		// the legacy file stays in place and is retried on the next start
		s.logger.Errorf(providers.TypeApp, "Legacy history migration failed: %s", err)
	}

	recovered, err := s.history.RecoverInterrupted(ctx)
	if err != nil {
		return err
	}
	if recovered > 0 {
		s.logger.Warnf(providers.TypeApp, "Marked %d interrupted generations as failed", recovered)
	}
	s.rateGauge.Prune()
	return nil
}

func (s *Scheduler) Persist() error {
	return s.persist(true)
}

func (s *Scheduler) persist(shutdown bool) error {
	s.opsMu.Lock()
	defer s.opsMu.Unlock()

	if shutdown {
		s.logger.Infof(providers.TypeApp, "Persisting history to file...")
	}
	start := time.Now()
	err := s.fileManager.SaveToFile(s.config.Persistence.FilePath)
	s.metrics.ObservePersistenceDuration(time.Since(start))
	if err != nil {
		s.logger.Errorf(providers.TypeApp, "Error while persisting data: %s", err)
		return err
	}
	s.logger.Debugf(providers.TypeApp, "Persisted data to file %s", s.config.Persistence.FilePath)
	return nil
}

func NewScheduler(config *structures.Config, logger providers.Logger, history services.HistoryServiceInterface, rateGauge services.RateGaugeInterface, fileManager *FileManager, migrator *Migrator, metrics providers.MetricsProviderInterface) interfaces.SchedulerInterface {
	return &Scheduler{
		config:      config,
		logger:      logger,
		history:     history,
		rateGauge:   rateGauge,
		fileManager: fileManager,
		migrator:    migrator,
		metrics:     metrics,
	}
}
