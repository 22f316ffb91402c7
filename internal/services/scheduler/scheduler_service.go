package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
)

var (
	ErrJobNotFound = errors.New("job not found")
	ErrJobRunning  = errors.New("job is already running")
)

// JobHandler runs one scheduled tick
type JobHandler func(ctx context.Context) error

// JobStatus is the externally visible state of a job
type JobStatus struct {
	Name        string     `json:"name"`
	Schedule    string     `json:"schedule"`
	Description string     `json:"description"`
	IsRunning   bool       `json:"is_running"`
	LastRun     *time.Time `json:"last_run,omitempty"`
	NextRun     *time.Time `json:"next_run,omitempty"`
	LastError   string     `json:"last_error,omitempty"`
	Runs        int        `json:"runs"`
}

type job struct {
	JobStatus
	handler   JobHandler
	autoStart bool
	cronID    cron.EntryID
}

// Service runs periodic jobs on a cron. A tick is skipped while the
// previous run of the same job is still going.
type Service struct {
	cron   *cron.Cron
	logger arbor.ILogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	jobs    map[string]*job
	running bool
}

func NewService(logger arbor.ILogger) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		cron:   cron.New(),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// RegisterJob adds a job. Schedules use the standard five-field cron
// syntax or an @every descriptor.
func (s *Service) RegisterJob(name, schedule, description string, autoStart bool, handler JobHandler) error {
	if _, err := cron.ParseStandard(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already registered", name)
	}

	id, err := s.cron.AddFunc(schedule, func() { s.run(name) })
	if err != nil {
		return fmt.Errorf("failed to add job to cron: %w", err)
	}

	s.jobs[name] = &job{
		JobStatus: JobStatus{Name: name, Schedule: schedule, Description: description},
		handler:   handler,
		autoStart: autoStart,
		cronID:    id,
	}

	s.logger.Info().Str("job_name", name).Str("schedule", schedule).Msg("Job registered")
	return nil
}

// Start begins the cron and fires auto-start jobs once, in name order
func (s *Service) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true

	var initial []string
	for name, j := range s.jobs {
		if j.autoStart {
			initial = append(initial, name)
		}
	}
	count := len(s.jobs)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info().Int("jobs", count).Msg("Scheduler started")

	sort.Strings(initial)
	for _, name := range initial {
		s.spawn(name)
	}
	return nil
}

// Stop halts the cron, cancels in-flight jobs and waits up to timeout
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	s.mu.Unlock()

	cronDone := s.cron.Stop()
	s.cancel()

	done := make(chan struct{})
	go func() {
		<-cronDone.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("Scheduler stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("scheduler did not stop within %s", timeout)
	}
}

func (s *Service) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// TriggerJob runs a job now, outside its schedule
func (s *Service) TriggerJob(name string) error {
	s.mu.Lock()
	j, exists := s.jobs[name]
	var err error
	switch {
	case !exists:
		err = fmt.Errorf("%w: %s", ErrJobNotFound, name)
	case j.IsRunning:
		err = fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.logger.Info().Str("job_name", name).Msg("Manually triggering job execution")
	s.spawn(name)
	return nil
}

func (s *Service) GetJobStatus(name string) (*JobStatus, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[name]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, name)
	}
	return s.snapshot(j), nil
}

func (s *Service) GetAllJobStatuses() map[string]*JobStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	statuses := make(map[string]*JobStatus, len(s.jobs))
	for name, j := range s.jobs {
		statuses[name] = s.snapshot(j)
	}
	return statuses
}

// snapshot copies the status; callers hold mu
func (s *Service) snapshot(j *job) *JobStatus {
	status := j.JobStatus
	if j.LastRun != nil {
		lastRun := *j.LastRun
		status.LastRun = &lastRun
	}
	if next := s.cron.Entry(j.cronID).Next; !next.IsZero() {
		status.NextRun = &next
	}
	return &status
}

func (s *Service) spawn(name string) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run(name)
	}()
}

// claim marks the job running; false when it is unknown or busy
func (s *Service) claim(name string) (JobHandler, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[name]
	if !exists || j.IsRunning {
		return nil, false
	}
	j.IsRunning = true
	return j.handler, true
}

func (s *Service) finish(name string, err error) {
	completed := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	j := s.jobs[name]
	j.IsRunning = false
	j.LastRun = &completed
	j.Runs++
	j.LastError = ""
	if err != nil {
		j.LastError = err.Error()
	}
}

func (s *Service) run(name string) {
	handler, ok := s.claim(name)
	if !ok {
		s.logger.Debug().Str("job_name", name).Msg("Job busy or unknown, skipping tick")
		return
	}

	start := time.Now()
	err := s.invoke(name, handler)
	s.finish(name, err)

	if err != nil {
		s.logger.Warn().
			Str("job_name", name).
			Err(err).
			Dur("duration", time.Since(start)).
			Msg("Job execution failed")
		return
	}
	s.logger.Debug().
		Str("job_name", name).
		Dur("duration", time.Since(start)).
		Msg("Job execution completed")
}

// invoke runs handler, converting a panic into an error
func (s *Service) invoke(name string, handler JobHandler) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Str("job_name", name).
				Str("panic", fmt.Sprintf("%v", r)).
				Msg("Panic recovered in job")
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(s.ctx)
}
