package monitor

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/use-agent/slotwatch/config"
	"github.com/use-agent/slotwatch/history"
	"github.com/use-agent/slotwatch/models"
)

// Runner executes one pass under the given run ID.
type Runner interface {
	RunWithID(ctx context.Context, id string) *models.RunResult
}

// Finisher persists a finished run and returns its exit code.
type Finisher interface {
	Finalize(ctx context.Context, r *models.RunResult) int
}

// Service runs passes on a schedule or on demand, one at a time, and keeps
// a bounded history of results.
type Service struct {
	runner   Runner
	finisher Finisher
	history  *history.Store
	interval time.Duration
	cronSpec string

	running   atomic.Bool
	completed atomic.Int64

	mu        sync.Mutex
	currentID string
	nextRunAt time.Time
	baseCtx   context.Context

	wg sync.WaitGroup
}

// NewService creates a Service. A cron spec in sched wins over the
// interval; with neither, passes run only on demand.
func NewService(runner Runner, finisher Finisher, store *history.Store, sched config.ScheduleConfig) *Service {
	return &Service{
		runner:   runner,
		finisher: finisher,
		history:  store,
		interval: sched.Interval,
		cronSpec: sched.Cron,
		baseCtx:  context.Background(),
	}
}

// History exposes the stored runs.
func (s *Service) History() *history.Store { return s.history }

// errRunInFlight is returned when a run is already executing.
func errRunInFlight(id string) *models.MonitorError {
	return models.NewMonitorError(models.ErrCodeRunInFlight, "a run is already in progress: "+id, nil)
}

// RunNow executes a pass synchronously. It fails with RUN_IN_FLIGHT when
// another pass holds the browser.
func (s *Service) RunNow(ctx context.Context) (*models.RunResult, error) {
	id := uuid.NewString()
	if !s.acquire(id) {
		return nil, errRunInFlight(s.CurrentID())
	}
	return s.execute(ctx, id), nil
}

// Trigger starts a pass in the background and returns its ID. The pass
// runs under the service's context, not the caller's.
func (s *Service) Trigger() (string, error) {
	id := uuid.NewString()
	if !s.acquire(id) {
		return "", errRunInFlight(s.CurrentID())
	}
	s.mu.Lock()
	ctx := s.baseCtx
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.execute(ctx, id)
	}()
	return id, nil
}

// Start runs the schedule until ctx is done. When runOnStart is set the
// first pass begins immediately.
func (s *Service) Start(ctx context.Context, runOnStart bool) {
	s.mu.Lock()
	s.baseCtx = ctx
	s.mu.Unlock()

	if runOnStart {
		s.tryScheduled(ctx)
	}
	switch {
	case s.cronSpec != "":
		s.runCron(ctx)
	case s.interval > 0:
		s.runTicker(ctx)
	default:
		slog.Info("schedule disabled, waiting for triggers")
		<-ctx.Done()
	}
}

func (s *Service) runTicker(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.setNext(time.Now().Add(s.interval))
	slog.Info("scheduler started", "interval", s.interval)

	for {
		select {
		case <-ctx.Done():
			slog.Info("scheduler stopped")
			return
		case t := <-ticker.C:
			s.setNext(t.Add(s.interval))
			s.tryScheduled(ctx)
		}
	}
}

func (s *Service) runCron(ctx context.Context) {
	sched, err := cron.ParseStandard(s.cronSpec)
	if err != nil {
		slog.Error("invalid cron spec, schedule disabled", "spec", s.cronSpec, "error", err)
		<-ctx.Done()
		return
	}

	logger := cronLogger{}
	c := cron.New(
		cron.WithLocation(models.KST),
		cron.WithLogger(logger),
		cron.WithChain(cron.SkipIfStillRunning(logger)),
	)
	c.Schedule(sched, cron.FuncJob(func() {
		s.tryScheduled(ctx)
		s.setNext(sched.Next(time.Now().In(models.KST)))
	}))
	s.setNext(sched.Next(time.Now().In(models.KST)))
	c.Start()
	slog.Info("scheduler started", "cron", s.cronSpec)

	<-ctx.Done()
	<-c.Stop().Done()
	slog.Info("scheduler stopped")
}

// Wait blocks until background passes have finished.
func (s *Service) Wait() { s.wg.Wait() }

// CurrentID returns the ID of the pass in flight, or "".
func (s *Service) CurrentID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentID
}

// Stats reports scheduler state for the health endpoint.
func (s *Service) Stats() models.RunStats {
	st := models.RunStats{
		Running:       s.running.Load(),
		CompletedRuns: s.completed.Load(),
	}
	if last, ok := s.history.Latest(); ok {
		st.LastStatus = last.Status
		st.LastRunAt = last.Timestamp
	}
	s.mu.Lock()
	if !s.nextRunAt.IsZero() {
		st.NextRunAt = s.nextRunAt.In(models.KST).Format(time.RFC3339)
	}
	s.mu.Unlock()
	return st
}

func (s *Service) tryScheduled(ctx context.Context) {
	if _, err := s.RunNow(ctx); err != nil {
		slog.Warn("scheduled run skipped", "error", err)
	}
}

func (s *Service) acquire(id string) bool {
	if !s.running.CompareAndSwap(false, true) {
		return false
	}
	s.mu.Lock()
	s.currentID = id
	s.mu.Unlock()
	return true
}

func (s *Service) execute(ctx context.Context, id string) *models.RunResult {
	defer func() {
		s.mu.Lock()
		s.currentID = ""
		s.mu.Unlock()
		s.running.Store(false)
	}()

	r := s.runner.RunWithID(ctx, id)
	// Persist even if the service is shutting down.
	code := s.finisher.Finalize(context.WithoutCancel(ctx), r)
	s.history.Add(r)
	s.completed.Add(1)
	slog.Info("run recorded", "id", r.ID, "status", r.Status, "exit_code", code)
	return r
}

func (s *Service) setNext(t time.Time) {
	s.mu.Lock()
	s.nextRunAt = t
	s.mu.Unlock()
}

// cronLogger routes cron's logging to slog.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
