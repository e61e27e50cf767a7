package schedule

import (
	"fmt"
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"snapshot-stitcher/internal/capture"
	"snapshot-stitcher/internal/render"
	"snapshot-stitcher/internal/retry"
	"snapshot-stitcher/internal/target"
)

var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Job is one scheduled archival target.
type Job struct {
	Name        string `yaml:"name"`
	URL         string `yaml:"url"`
	Schedule    string `yaml:"schedule"`
	Strategy    string `yaml:"strategy"`
	WaitUntil   string `yaml:"waitUntil"`
	WaitFor     string `yaml:"waitFor"`
	CallbackURL string `yaml:"callbackURL"`
	// CallbackRetryOn lists callback failures worth retrying, e.g. "gateway-error,429".
	CallbackRetryOn string `yaml:"callbackRetryOn"`

	schedule cron.Schedule
	request  capture.Request
	retryOn  *retry.On
}

type Config struct {
	Jobs []*Job `yaml:"jobs"`
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schedule file: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates a schedule file. Every job must have a unique name,
// a five field cron expression and a valid capture request.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to parse schedule file: %w", err)
	}
	if len(c.Jobs) == 0 {
		return nil, fmt.Errorf("schedule file has no jobs")
	}

	names := map[string]struct{}{}
	for i, job := range c.Jobs {
		if job == nil {
			return nil, fmt.Errorf("job %d is empty", i)
		}
		if job.Name == "" {
			job.Name = job.URL
		}
		if _, ok := names[job.Name]; ok {
			return nil, fmt.Errorf("duplicate job name %q", job.Name)
		}
		names[job.Name] = struct{}{}

		if err := job.compile(); err != nil {
			return nil, fmt.Errorf("job %q: %w", job.Name, err)
		}
	}
	return &c, nil
}

func (j *Job) compile() error {
	schedule, err := parser.Parse(j.Schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", j.Schedule, err)
	}
	url, _, err := target.Normalize(j.URL)
	if err != nil {
		return err
	}
	strategy, err := capture.ParseStrategy(j.Strategy)
	if err != nil {
		return err
	}
	waitUntil, err := render.ParseWaitCondition(j.WaitUntil)
	if err != nil {
		return err
	}
	retryOn, err := retry.ParseOn(j.CallbackRetryOn)
	if err != nil {
		return fmt.Errorf("invalid callbackRetryOn: %w", err)
	}

	j.schedule = schedule
	j.retryOn = retryOn
	j.request = capture.Request{
		URL:       url,
		Strategy:  strategy,
		WaitUntil: waitUntil,
		WaitFor:   j.WaitFor,
	}
	return nil
}

// Request is the capture the job runs.
func (j *Job) Request() capture.Request {
	return j.request
}

// Next returns the first n activation times after from.
func (j *Job) Next(from time.Time, n int) []time.Time {
	times := make([]time.Time, 0, n)
	for range n {
		from = j.schedule.Next(from)
		times = append(times, from)
	}
	return times
}
