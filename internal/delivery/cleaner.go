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

package delivery

import (
	"context"
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/log"
)

func init() {
	viper.SetDefault("queue.retention.days", 30)
	viper.SetDefault("queue.stuck.minutes", 60)
}

// CleanReport summarizes a maintenance sweep.
type CleanReport struct {
	ResetStuck        int64
	DeletedMails      int64
	DeletedLogEntries int64
}

// Cleaner is the maintenance sweep over the queue. It unsticks mails left
// in processing by a crashed cycle, applies the retention policy to
// terminal mails and reaps log entries without a mail.
type Cleaner struct {
	conn        database.Conn
	queueDao    database.QueueDao
	queueLogDao database.QueueLogDao
}

// NewCleaner creates a new Cleaner.
//
// `queue.retention.days` is how long terminal mails and their log entries
// are kept.
// `queue.stuck.minutes` is how long a mail may sit in processing before it
// is considered abandoned.
func NewCleaner(
	conn database.Conn,
	queueDao database.QueueDao,
	queueLogDao database.QueueLogDao,
) *Cleaner {
	return &Cleaner{
		conn:        conn,
		queueDao:    queueDao,
		queueLogDao: queueLogDao,
	}
}

// Clean runs one maintenance sweep in a single transaction.
func (c *Cleaner) Clean(ctx context.Context) (*CleanReport, error) {
	var (
		now             = time.Now()
		stuckCutoff     = now.Add(-time.Duration(viper.GetInt("queue.stuck.minutes")) * time.Minute)
		retentionCutoff = now.AddDate(0, 0, -viper.GetInt("queue.retention.days"))
	)

	tx, err := c.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback() // nolint:errcheck

	var report CleanReport

	if report.ResetStuck, err = c.queueDao.ResetStuckProcessing(ctx, tx, stuckCutoff.Unix()); err != nil {
		return nil, err
	}

	if report.DeletedMails, err = c.queueDao.DeleteTerminalBefore(ctx, tx, retentionCutoff.Unix()); err != nil {
		return nil, err
	}

	expired, err := c.queueLogDao.DeleteBefore(ctx, tx, retentionCutoff.Unix())
	if err != nil {
		return nil, err
	}

	orphaned, err := c.queueLogDao.DeleteOrphaned(ctx, tx)
	if err != nil {
		return nil, err
	}

	report.DeletedLogEntries = expired + orphaned

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	log.InfoContext(ctx).
		Int64("resetStuck", report.ResetStuck).
		Int64("deletedMails", report.DeletedMails).
		Int64("deletedLogEntries", report.DeletedLogEntries).
		Msg("queue maintenance completed")

	return &report, nil
}
