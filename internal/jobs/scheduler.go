package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const taskTimeout = 10 * time.Minute

// Scheduler runs named tasks on cron schedules.
type Scheduler struct {
	mu     sync.Mutex
	cron   *cron.Cron
	tasks  map[string]func(context.Context) error
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger
}

func NewScheduler(timezone string, logger *zap.Logger) (*Scheduler, error) {
	loc := time.Local
	if timezone != "" {
		var err error
		if loc, err = time.LoadLocation(timezone); err != nil {
			return nil, fmt.Errorf("load timezone: %w", err)
		}
	}
	logger = logger.Named("scheduler")
	cronLogger := cron.PrintfLogger(zap.NewStdLog(logger))

	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		tasks:  make(map[string]func(context.Context) error),
		ctx:    ctx,
		cancel: cancel,
		logger: logger,
	}, nil
}

// Register schedules task under name with a standard five-field cron spec.
func (s *Scheduler) Register(name, spec string, task func(context.Context) error) error {
	if task == nil {
		return errors.New("task must not be nil")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return fmt.Errorf("task %q already registered", name)
	}
	if _, err := s.cron.AddFunc(spec, func() { _ = s.run(s.ctx, name, task) }); err != nil {
		return fmt.Errorf("add cron %q for %s: %w", spec, name, err)
	}
	s.tasks[name] = task
	s.logger.Info("Task scheduled", zap.String("task", name), zap.String("spec", spec))
	return nil
}

func (s *Scheduler) run(ctx context.Context, name string, task func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(ctx, taskTimeout)
	defer cancel()

	start := time.Now()
	err := task(ctx)
	if err != nil {
		s.logger.Error("Task failed", zap.String("task", name), zap.Duration("took", time.Since(start)), zap.Error(err))
		return err
	}
	s.logger.Info("Task finished", zap.String("task", name), zap.Duration("took", time.Since(start)))
	return nil
}

// RunNow runs a registered task immediately.
func (s *Scheduler) RunNow(ctx context.Context, name string) error {
	s.mu.Lock()
	task, ok := s.tasks[name]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("unknown task %q", name)
	}
	return s.run(ctx, name, task)
}

// Names lists the registered tasks.
func (s *Scheduler) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.tasks))
	for name := range s.tasks {
		names = append(names, name)
	}
	return names
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling, cancels running tasks and waits for them to return.
func (s *Scheduler) Stop() {
	done := s.cron.Stop()
	s.cancel()
	<-done.Done()
}
