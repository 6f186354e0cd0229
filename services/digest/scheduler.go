// Copyright (C) 2025 TheMove (dev@usethemove.com)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// defaultSchedule fires the digest at 9am local time daily.
const defaultSchedule = "0 9 * * *"

// runTimeout bounds one digest run.
const runTimeout = 10 * time.Minute

// Scheduler drives the Runner on a cron schedule.
//
// Thread Safety: Start and Stop must be called from the same goroutine
// (main's lifecycle management); the scheduled runs themselves are
// independent.
type Scheduler struct {
	cron   *cron.Cron
	runner *Runner
	logger *slog.Logger
}

// NewScheduler creates a Scheduler. An empty spec uses the default 9am
// daily schedule.
func NewScheduler(runner *Runner, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if spec == "" {
		spec = defaultSchedule
	}

	c := cron.New()
	s := &Scheduler{cron: c, runner: runner, logger: logger}

	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
		defer cancel()
		if err := runner.Run(ctx); err != nil {
			logger.Error("scheduled digest run failed", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("digest: invalid cron spec %q: %w", spec, err)
	}

	logger.Info("digest scheduler configured", slog.String("spec", spec))
	return s, nil
}

// Start begins scheduling. Returns immediately.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for any in-flight run to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
