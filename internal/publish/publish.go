package publish

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"wikical/internal/config"
	"wikical/internal/feed"
	"wikical/internal/ics"
	appLog "wikical/internal/log"
)

// Builder renders the calendar.
type Builder interface {
	Build(ctx context.Context) (feed.Result, error)
}

// Publisher periodically renders the calendar to a file, for setups where a
// static web server hands out calendar.ics.
type Publisher struct {
	builder  Builder
	path     string
	schedule string
}

// New validates the cron schedule and returns a Publisher writing to path.
func New(builder Builder, path, schedule string) (*Publisher, error) {
	if path == "" {
		return nil, errors.New("publish: output path is empty")
	}
	if _, err := cron.ParseStandard(schedule); err != nil {
		return nil, fmt.Errorf("publish: invalid schedule %q: %w", schedule, err)
	}
	return &Publisher{builder: builder, path: path, schedule: schedule}, nil
}

// PublishOnce builds the calendar and replaces the output file. The file is
// only replaced when the new document parses back as a calendar, so a bad
// run leaves the previous feed in place.
func (p *Publisher) PublishOnce(ctx context.Context) error {
	res, err := p.builder.Build(ctx)
	if err != nil {
		return err
	}
	if _, err := ics.Decode(res.Document); err != nil {
		return fmt.Errorf("publish: rendered calendar does not parse: %w", err)
	}
	if err := config.WriteFileAtomic(p.path, []byte(res.Document), 0o644); err != nil {
		return fmt.Errorf("publish: write %s: %w", p.path, err)
	}

	appLog.Info("calendar published", "path", p.path, "events", res.Extracted, "vevents", res.Rendered)
	return nil
}

// Run publishes immediately and then on every tick of the schedule until
// ctx is canceled. Failed runs are logged and retried on the next tick.
func (p *Publisher) Run(ctx context.Context) error {
	logger := cronLogger{}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(
		cron.Recover(logger),
		cron.SkipIfStillRunning(logger),
	))

	job := func() {
		if err := p.PublishOnce(ctx); err != nil {
			appLog.Error("scheduled publish failed", err, "path", p.path)
		}
	}
	if _, err := c.AddFunc(p.schedule, job); err != nil {
		return err
	}

	job()
	c.Start()
	appLog.Info("publisher started", "schedule", p.schedule, "path", p.path)

	<-ctx.Done()
	<-c.Stop().Done()
	appLog.Info("publisher stopped")
	return nil
}

// cronLogger routes cron's own messages through the application logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
