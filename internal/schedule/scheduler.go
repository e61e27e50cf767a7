package schedule

import (
	"context"
	"errors"
	"sync"

	"github.com/go-logr/logr"
	"github.com/robfig/cron/v3"

	"snapshot-stitcher/internal/archive"
	"snapshot-stitcher/internal/callback"
	"snapshot-stitcher/internal/capture"
)

// Runner captures and archives one job. Captures run one at a time because each
// one drives a full browser.
type Runner struct {
	Capturer capture.Capturer
	Archiver *archive.Archiver
	Log      logr.Logger

	mu sync.Mutex
}

func (r *Runner) Run(ctx context.Context, job *Job) (*archive.Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	log := r.Log.WithValues("job", job.Name, "url", job.request.URL)

	result, err := r.Capturer.Capture(ctx, job.request)
	if err != nil {
		return nil, err
	}
	entry, err := r.Archiver.Save(ctx, result)
	if err != nil {
		return nil, err
	}
	log.Info("saved", "imageURL", entry.ImageURL, "mode", result.Mode)

	if job.CallbackURL != "" {
		if err := callback.NewNotifier(job.CallbackURL, callback.Options{RetryOn: job.retryOn, Log: log}).Notify(ctx, entry); err != nil {
			log.Error(err, "failed to notify callback", "callbackURL", job.CallbackURL)
		}
	}
	return entry, nil
}

type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	log    logr.Logger
	// ctx is canceled when Start returns so in-flight captures stop.
	ctx context.Context
}

func New(config *Config, runner *Runner, log logr.Logger) (*Scheduler, error) {
	c := cron.New(
		cron.WithParser(parser),
		cron.WithLogger(log),
		cron.WithChain(cron.Recover(log), cron.SkipIfStillRunning(log)),
	)
	s := &Scheduler{cron: c, runner: runner, log: log, ctx: context.Background()}

	for _, job := range config.Jobs {
		if _, err := c.AddJob(job.Schedule, s.job(job)); err != nil {
			return nil, err
		}
		log.Info("scheduled", "job", job.Name, "schedule", job.Schedule)
	}
	return s, nil
}

type jobFunc func()

func (f jobFunc) Run() { f() }

func (s *Scheduler) job(job *Job) cron.Job {
	return jobFunc(func() {
		if _, err := s.runner.Run(s.ctx, job); err != nil {
			s.log.Error(err, "scheduled capture failed", "job", job.Name)
		}
	})
}

// Start runs the schedule until ctx is done, then waits for running captures.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
	<-ctx.Done()
	<-s.cron.Stop().Done()
}

// RunAll runs every job once in order, ignoring schedules.
func (s *Scheduler) RunAll(ctx context.Context, config *Config) error {
	var errs []error
	for _, job := range config.Jobs {
		if _, err := s.runner.Run(ctx, job); err != nil {
			s.log.Error(err, "capture failed", "job", job.Name)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
