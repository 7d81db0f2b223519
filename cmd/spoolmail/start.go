// Copyright (C) 2020  Lukas Dietrich <lukas@lukasdietrich.com>
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/spoolmail/internal/delivery"
	"github.com/lukasdietrich/spoolmail/internal/log"
)

func init() {
	viper.SetDefault("queue.interval", "1m")
	viper.SetDefault("queue.cleanup.interval", "1h")
}

type startCommand struct {
	Processor *delivery.Processor
	Cleaner   *delivery.Cleaner
}

// run executes processing cycles on a fixed interval until the process
// receives an interrupt or termination signal. Cleanup sweeps run on their
// own, much longer interval.
func (c *startCommand) run() error {
	ctx := log.WithOrigin(context.Background(), "scheduler")

	var (
		cycleInterval   = viper.GetDuration("queue.interval")
		cleanupInterval = viper.GetDuration("queue.cleanup.interval")
	)

	cycle := time.NewTicker(cycleInterval)
	defer cycle.Stop()

	cleanup := time.NewTicker(cleanupInterval)
	defer cleanup.Stop()

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)

	log.InfoContext(ctx).
		Dur("cycleInterval", cycleInterval).
		Dur("cleanupInterval", cleanupInterval).
		Msg("starting queue scheduler")

	for {
		select {
		case <-cycle.C:
			if _, err := c.Processor.Cycle(ctx); err != nil {
				log.ErrorContext(ctx).Err(err).Msg("processing cycle failed")
			}

		case <-cleanup.C:
			if _, err := c.Cleaner.Clean(ctx); err != nil {
				log.ErrorContext(ctx).Err(err).Msg("cleanup sweep failed")
			}

		case sig := <-signals:
			log.InfoContext(ctx).Stringer("signal", sig).Msg("shutting down")
			return nil
		}
	}
}
