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

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/log"
	"github.com/lukasdietrich/spoolmail/internal/models"
)

// Operator bundles the manual queue interventions. Every action is
// restricted to specific source states, ids in other states are silently
// skipped and reported back through the returned count.
type Operator struct {
	conn        database.Conn
	queueDao    database.QueueDao
	queueLogDao database.QueueLogDao
}

// NewOperator creates a new Operator.
func NewOperator(
	conn database.Conn,
	queueDao database.QueueDao,
	queueLogDao database.QueueLogDao,
) *Operator {
	return &Operator{
		conn:        conn,
		queueDao:    queueDao,
		queueLogDao: queueLogDao,
	}
}

// Cancel withdraws pending or failed mails. Cancelled mails are never
// reconsidered by the automatic path.
func (o *Operator) Cancel(ctx context.Context, ids []string) (int, error) {
	tx, err := o.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer tx.Rollback() // nolint:errcheck

	affected, err := o.queueDao.UpdateStatusAll(ctx, tx, ids,
		[]models.QueueStatus{models.StatusPending, models.StatusFailed},
		models.StatusCancelled)

	if err != nil {
		return 0, err
	}

	if err := o.logAll(ctx, tx, affected, models.ActionBulkCancelled, "cancelled by operator"); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.InfoContext(ctx).
		Int("requested", len(ids)).
		Int("affected", len(affected)).
		Msg("mails cancelled")

	return len(affected), nil
}

// Retry puts failed mails back to pending with a fresh retry budget.
func (o *Operator) Retry(ctx context.Context, ids []string) (int, error) {
	tx, err := o.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer tx.Rollback() // nolint:errcheck

	affected, err := o.queueDao.ResetForRetry(ctx, tx, ids)
	if err != nil {
		return 0, err
	}

	if err := o.logAll(ctx, tx, affected, models.ActionBulkRetried, "reset for retry by operator"); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.InfoContext(ctx).
		Int("requested", len(ids)).
		Int("affected", len(affected)).
		Msg("mails reset for retry")

	return len(affected), nil
}

// Delete removes cancelled or failed mails for good. Their log entries
// become orphans and are reaped by the cleaner.
func (o *Operator) Delete(ctx context.Context, ids []string) (int64, error) {
	tx, err := o.conn.Begin(ctx)
	if err != nil {
		return 0, err
	}

	defer tx.Rollback() // nolint:errcheck

	deleted, err := o.queueDao.DeleteAll(ctx, tx, ids)
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}

	log.InfoContext(ctx).
		Int("requested", len(ids)).
		Int64("deleted", deleted).
		Msg("mails deleted")

	return deleted, nil
}

// Search returns mails matching the filter.
func (o *Operator) Search(ctx context.Context, filter database.QueueFilter) ([]models.QueuedMailEntity, error) {
	return o.queueDao.Search(ctx, o.conn, filter)
}

// Stats counts mails per status created within the timeframe.
func (o *Operator) Stats(ctx context.Context, timeframe time.Duration) ([]database.StatusCount, error) {
	since := int64(0)
	if timeframe > 0 {
		since = time.Now().Add(-timeframe).Unix()
	}

	return o.queueDao.CountByStatus(ctx, o.conn, since)
}

func (o *Operator) logAll(
	ctx context.Context,
	tx database.Tx,
	ids []string,
	action, message string,
) error {
	now := time.Now().Unix()

	for _, id := range ids {
		entry := models.QueueLogEntity{
			QueueID:   id,
			Action:    action,
			Message:   message,
			CreatedAt: now,
		}

		if err := o.queueLogDao.Insert(ctx, tx, &entry); err != nil {
			return err
		}
	}

	return nil
}
