package main

import (
	"context"
	"strings"

	gcmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-command/cron"
	"github.com/sirupsen/logrus"

	"github.com/goliatone/go-tableview/command"
)

// startSessionSweep registers the command handlers on a go-command registry
// backed by a cron scheduler, so ExpireSessions runs on the configured
// schedule. The returned func stops the scheduler and releases the handlers.
func startSessionSweep(ctx context.Context, app *App) (func(), error) {
	schedule := strings.TrimSpace(app.Config.Session.SweepSchedule)
	if schedule == "" {
		return func() {}, nil
	}

	log := app.Log.WithField("component", "sweep")
	scheduler := cron.NewScheduler(
		cron.WithLogger(cronLogger{log}),
		cron.WithLogLevel(cron.LogLevelError),
		cron.WithErrorHandler(func(err error) {
			log.Errorf("session sweep: %v", err)
		}),
	)

	reg := gcmd.NewRegistry().SetCronRegister(func(opts gcmd.HandlerConfig, handler any) error {
		_, err := scheduler.ScheduleCron(opts, handler)
		return err
	})
	subs, err := command.RegisterHandlers(reg, app.Sessions, command.WithExpireSchedule(schedule))
	release := func() {
		for _, sub := range subs {
			sub.Unsubscribe()
		}
	}
	if err != nil {
		release()
		return nil, err
	}
	if err := reg.Initialize(); err != nil {
		release()
		return nil, err
	}

	if err := scheduler.Start(ctx); err != nil {
		release()
		return nil, err
	}
	log.Debugf("sweeping idle sessions on %q", schedule)

	return func() {
		_ = scheduler.Stop(context.Background())
		release()
	}, nil
}

type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, args ...any) {
	l.entry.WithField("args", args).Debug(msg)
}

func (l cronLogger) Error(msg string, args ...any) {
	l.entry.WithField("args", args).Error(msg)
}
