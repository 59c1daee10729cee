package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"flashback/internal/models"
	"flashback/internal/providers"
	"flashback/internal/structures"

	"golang.org/x/sync/semaphore"
)

var ErrOrchestratorStopped = errors.New("generation service is shutting down")

const cancelledMessage = "generation cancelled"

// ImageGeneratorInterface is the external image model.
type ImageGeneratorInterface interface {
	Generate(ctx context.Context, req *models.GenerationRequest) (*models.Image, error)
}

type OrchestratorInterface interface {
	Start(ctx context.Context, sessionID string, decades []string) (*models.Session, error)
	Regenerate(ctx context.Context, sessionID, decade string) (*models.Session, error)
	Wait()
	Stop(ctx context.Context) error
	InflightCount() int
}

// Orchestrator runs one attempt per decade in its own goroutine. Attempt i of a
// batch waits stagger*i before calling the generator, and a positive
// maxConcurrency bounds how many calls run at once.
type Orchestrator struct {
	history   HistoryServiceInterface
	generator ImageGeneratorInterface
	rateGauge RateGaugeInterface
	logger    providers.Logger
	metrics   providers.MetricsProviderInterface

	template string
	stagger  time.Duration
	sem      *semaphore.Weighted

	mu       sync.Mutex
	inflight map[string]struct{}
	stopped  bool
	wg       sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
	now    func() time.Time
}

func NewOrchestrator(conf *structures.Config, history HistoryServiceInterface, generator ImageGeneratorInterface, rateGauge RateGaugeInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) OrchestratorInterface {
	return newOrchestrator(conf, history, generator, rateGauge, logger, metrics)
}

func newOrchestrator(conf *structures.Config, history HistoryServiceInterface, generator ImageGeneratorInterface, rateGauge RateGaugeInterface, logger providers.Logger, metrics providers.MetricsProviderInterface) *Orchestrator {
	ctx, cancel := context.WithCancel(context.Background())
	o := &Orchestrator{
		history:   history,
		generator: generator,
		rateGauge: rateGauge,
		logger:    logger,
		metrics:   metrics,
		template:  conf.Generator.PromptTemplate,
		stagger:   conf.Generator.StaggerInterval,
		inflight:  make(map[string]struct{}),
		ctx:       ctx,
		cancel:    cancel,
		now:       time.Now,
	}
	if conf.Generator.MaxConcurrency > 0 {
		o.sem = semaphore.NewWeighted(int64(conf.Generator.MaxConcurrency))
	}
	return o
}

type attempt struct {
	sessionID   string
	decade      string
	delay       time.Duration
	source      models.Image
	aspectRatio float64
}

func inflightKey(sessionID, decade string) string {
	return sessionID + "/" + decade
}

// Start replaces the session's selection, resets every selected decade to
// pending and launches the batch. It fails with models.ErrGenerationPending
// when any requested decade still has an attempt running.
func (o *Orchestrator) Start(ctx context.Context, sessionID string, decades []string) (*models.Session, error) {
	if err := models.ValidateDecades(decades); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrOrchestratorStopped
	}
	for _, d := range decades {
		if _, busy := o.inflight[inflightKey(sessionID, d)]; busy {
			return nil, models.ErrGenerationPending
		}
	}

	now := o.now().UTC()
	session, err := o.history.Update(ctx, sessionID, func(s *models.Session) error {
		s.Results = make(map[string]*models.GenerationResult, len(decades))
		s.Decades = append([]string(nil), decades...)
		for _, d := range decades {
			s.SetResult(d, models.PendingResult(now))
		}
		s.Stage = models.StageGenerating
		return nil
	})
	if err != nil {
		return nil, err
	}

	for i, d := range decades {
		o.launchLocked(attempt{
			sessionID:   sessionID,
			decade:      d,
			delay:       o.stagger * time.Duration(i),
			source:      session.Original,
			aspectRatio: session.AspectRatio,
		})
	}
	o.logger.Infof(providers.TypeGeneration, "Session %s: started %d decades", sessionID, len(decades))
	return session, nil
}

// Regenerate re-runs one decade of the current selection immediately.
func (o *Orchestrator) Regenerate(ctx context.Context, sessionID, decade string) (*models.Session, error) {
	if !models.IsKnownDecade(decade) {
		return nil, models.ErrUnknownDecade
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.stopped {
		return nil, ErrOrchestratorStopped
	}
	if _, busy := o.inflight[inflightKey(sessionID, decade)]; busy {
		return nil, models.ErrGenerationPending
	}

	now := o.now().UTC()
	session, err := o.history.Update(ctx, sessionID, func(s *models.Session) error {
		if !s.HasDecade(decade) {
			return models.ErrDecadeNotSelected
		}
		s.SetResult(decade, models.PendingResult(now))
		return nil
	})
	if err != nil {
		return nil, err
	}

	o.launchLocked(attempt{
		sessionID:   sessionID,
		decade:      decade,
		source:      session.Original,
		aspectRatio: session.AspectRatio,
	})
	o.logger.Infof(providers.TypeGeneration, "Session %s: regenerating %s", sessionID, decade)
	return session, nil
}

// launchLocked must be called with o.mu held.
func (o *Orchestrator) launchLocked(a attempt) {
	o.inflight[inflightKey(a.sessionID, a.decade)] = struct{}{}
	o.wg.Add(1)
	go o.run(a)
}

func (o *Orchestrator) run(a attempt) {
	defer o.wg.Done()
	defer o.release(a.sessionID, a.decade)

	result := o.attempt(a)
	o.finish(a, result)
}

func (o *Orchestrator) attempt(a attempt) *models.GenerationResult {
	if a.delay > 0 {
		timer := time.NewTimer(a.delay)
		select {
		case <-timer.C:
		case <-o.ctx.Done():
			timer.Stop()
			return models.ErrorResult(cancelledMessage, o.now().UTC())
		}
	}

	if o.sem != nil {
		if err := o.sem.Acquire(o.ctx, 1); err != nil {
			return models.ErrorResult(cancelledMessage, o.now().UTC())
		}
		defer o.sem.Release(1)
	}
	if o.ctx.Err() != nil {
		return models.ErrorResult(cancelledMessage, o.now().UTC())
	}

	req := &models.GenerationRequest{
		Decade:      a.decade,
		Prompt:      BuildPrompt(o.template, a.decade),
		Source:      a.source,
		AspectRatio: a.aspectRatio,
	}

	o.metrics.IncInflight()
	start := time.Now()
	img, err := o.call(req)
	o.metrics.DecInflight()
	o.metrics.ObserveGenerationDuration(time.Since(start))
	o.rateGauge.Record(1)

	now := o.now().UTC()
	if err != nil {
		o.metrics.IncGenerations(string(models.StatusError))
		o.logger.Warnf(providers.TypeGeneration, "Session %s: %s failed: %s", a.sessionID, a.decade, err)
		if o.ctx.Err() != nil {
			return models.ErrorResult(cancelledMessage, now)
		}
		return models.ErrorResult(err.Error(), now)
	}
	o.metrics.IncGenerations(string(models.StatusDone))
	o.logger.Debugf(providers.TypeGeneration, "Session %s: %s done in %s", a.sessionID, a.decade, time.Since(start))
	return models.DoneResult(img, now)
}

// call shields the batch from a misbehaving generator.
func (o *Orchestrator) call(req *models.GenerationRequest) (img *models.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img = nil
			err = fmt.Errorf("generator panic: %v", r)
		}
	}()
	img, err = o.generator.Generate(o.ctx, req)
	if err == nil && img == nil {
		err = models.ErrGeneratorNoImage
	}
	return img, err
}

func (o *Orchestrator) finish(a attempt, result *models.GenerationResult) {
	// results are written even after Stop so nothing stays pending
	ctx := context.WithoutCancel(o.ctx)
	_, err := o.history.Update(ctx, a.sessionID, func(s *models.Session) error {
		if !s.HasDecade(a.decade) {
			// the selection was replaced while this attempt ran
			delete(s.Results, a.decade)
			return nil
		}
		s.SetResult(a.decade, result)
		if s.AllTerminal() {
			s.Stage = models.StageShown
		}
		return nil
	})
	if errors.Is(err, models.ErrSessionNotFound) {
		o.logger.Debugf(providers.TypeGeneration, "Session %s deleted before %s finished", a.sessionID, a.decade)
		return
	}
	if err != nil {
		o.logger.Errorf(providers.TypeGeneration, "Session %s: failed to store %s result: %s", a.sessionID, a.decade, err)
	}
}

func (o *Orchestrator) release(sessionID, decade string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, inflightKey(sessionID, decade))
}

// Wait blocks until every launched attempt has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Stop refuses new work, cancels running attempts and waits for their results
// to be written, or for ctx to expire.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) InflightCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight)
}
