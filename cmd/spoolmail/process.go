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

	"github.com/lukasdietrich/spoolmail/internal/delivery"
	"github.com/lukasdietrich/spoolmail/internal/log"
)

type processCommand struct {
	Processor *delivery.Processor
}

// run executes a single processing cycle and exits. It is intended for
// setups that drive the queue with an external scheduler like cron.
func (c *processCommand) run() error {
	ctx := log.WithOrigin(context.Background(), "process")

	report, err := c.Processor.Cycle(ctx)
	if err != nil {
		return err
	}

	log.InfoContext(ctx).
		Int("claimed", report.Claimed).
		Int("sent", report.Sent).
		Int("retried", report.Retried).
		Int("failed", report.Failed).
		Msg("cycle completed")

	return nil
}
