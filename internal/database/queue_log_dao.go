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

package database

import (
	"context"

	"github.com/lukasdietrich/spoolmail/internal/models"
)

// QueueLogDao is a data access object for the append-only queue log.
type QueueLogDao interface {
	// Insert appends a new log entry.
	Insert(context.Context, Queryer, *models.QueueLogEntity) error
	// FindByQueue returns all entries of one mail, newest first.
	FindByQueue(context.Context, Queryer, string) ([]models.QueueLogEntity, error)
	// DeleteOrphaned removes entries whose mail no longer exists.
	DeleteOrphaned(context.Context, Queryer) (int64, error)
	// DeleteBefore removes entries created before the cutoff.
	DeleteBefore(context.Context, Queryer, int64) (int64, error)
}

// queueLogDao is the sqlite implementation of QueueLogDao.
type queueLogDao struct{}

// NewQueueLogDao creates a new QueueLogDao.
func NewQueueLogDao() QueueLogDao {
	return queueLogDao{}
}

func (queueLogDao) Insert(ctx context.Context, q Queryer, entry *models.QueueLogEntity) error {
	const query = `
		insert into "email_queue_log" (
			"queue_id" ,
			"action" ,
			"message" ,
			"created_at"
		) values (
			:queue_id ,
			:action ,
			:message ,
			:created_at
		) ;
	`

	result, err := execNamed(ctx, q, query, entry)
	if err != nil {
		return err
	}

	if err := ensureRowsAffected(result); err != nil {
		return err
	}

	entry.ID, err = result.LastInsertId()
	return err
}

func (queueLogDao) FindByQueue(ctx context.Context, q Queryer, queueID string) ([]models.QueueLogEntity, error) {
	const query = `
		select *
		from "email_queue_log"
		where "queue_id" = $1
		order by "created_at" desc , "id" desc ;
	`

	var entrySlice []models.QueueLogEntity

	if err := selectSlice(ctx, q, &entrySlice, query, queueID); err != nil {
		return nil, err
	}

	return entrySlice, nil
}

func (queueLogDao) DeleteOrphaned(ctx context.Context, q Queryer) (int64, error) {
	const query = `
		delete from "email_queue_log"
		where "queue_id" not in ( select "id" from "email_queue" ) ;
	`

	result, err := execPositional(ctx, q, query)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (queueLogDao) DeleteBefore(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	const query = `
		delete from "email_queue_log"
		where "created_at" < $1 ;
	`

	result, err := execPositional(ctx, q, query, cutoff)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}
