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

// QueueFilter narrows down a queue search. Zero values are ignored.
type QueueFilter struct {
	Status    models.QueueStatus
	Recipient string
	Limit     int
	Offset    int
}

// StatusCount is one row of a queue statistic.
type StatusCount struct {
	Status models.QueueStatus `db:"status"`
	Count  int                `db:"count"`
}

// QueueDao is a data access object for all queued mail related queries.
type QueueDao interface {
	// Insert inserts a new queued mail.
	Insert(context.Context, Queryer, *models.QueuedMailEntity) error
	// Update updates an existing queued mail.
	Update(context.Context, Queryer, *models.QueuedMailEntity) error
	// FindByID returns the queued mail with the given id.
	FindByID(context.Context, Queryer, string) (*models.QueuedMailEntity, error)
	// FindDue returns up to limit pending mails whose scheduled time is unset
	// or in the past, ordered by priority and then creation time.
	FindDue(context.Context, Queryer, int, int64) ([]models.QueuedMailEntity, error)
	// MarkProcessing flips pending mails to processing. Mails claimed by
	// another cycle in the meantime are skipped. It returns the ids
	// actually claimed.
	MarkProcessing(context.Context, Queryer, []string) ([]string, error)
	// Search returns mails matching the filter, newest first.
	Search(context.Context, Queryer, QueueFilter) ([]models.QueuedMailEntity, error)
	// UpdateStatusAll transitions every mail of the id list whose current
	// status is one of from into to. It returns the ids actually affected.
	UpdateStatusAll(ctx context.Context, q Queryer, ids []string, from []models.QueueStatus, to models.QueueStatus) ([]string, error)
	// ResetForRetry puts failed mails of the id list back to pending with a
	// cleared retry counter, error message and schedule. It returns the ids
	// actually affected.
	ResetForRetry(context.Context, Queryer, []string) ([]string, error)
	// DeleteAll removes mails of the id list, restricted to terminal states.
	DeleteAll(context.Context, Queryer, []string) (int64, error)
	// CountByStatus counts mails per status created at or after since.
	CountByStatus(context.Context, Queryer, int64) ([]StatusCount, error)
	// ResetStuckProcessing puts processing mails last touched before the
	// cutoff back to pending.
	ResetStuckProcessing(context.Context, Queryer, int64) (int64, error)
	// DeleteTerminalBefore removes cancelled and failed mails created before
	// the cutoff.
	DeleteTerminalBefore(context.Context, Queryer, int64) (int64, error)
}

// queueDao is the sqlite implementation of QueueDao.
type queueDao struct{}

// NewQueueDao creates a new QueueDao.
func NewQueueDao() QueueDao {
	return queueDao{}
}

func (queueDao) Insert(ctx context.Context, q Queryer, mail *models.QueuedMailEntity) error {
	const query = `
		insert into "email_queue" (
			"id" ,
			"to_email" ,
			"from_email" ,
			"reply_to" ,
			"cc" ,
			"bcc" ,
			"subject" ,
			"body_html" ,
			"body_text" ,
			"headers" ,
			"created_at" ,
			"scheduled_at" ,
			"sent_at" ,
			"status" ,
			"priority" ,
			"retry_count" ,
			"max_retries" ,
			"error_message"
		) values (
			:id ,
			:to_email ,
			:from_email ,
			:reply_to ,
			:cc ,
			:bcc ,
			:subject ,
			:body_html ,
			:body_text ,
			:headers ,
			:created_at ,
			:scheduled_at ,
			:sent_at ,
			:status ,
			:priority ,
			:retry_count ,
			:max_retries ,
			:error_message
		) ;
	`

	result, err := execNamed(ctx, q, query, mail)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (queueDao) Update(ctx context.Context, q Queryer, mail *models.QueuedMailEntity) error {
	const query = `
		update "email_queue"
		set "to_email"      = :to_email ,
			"from_email"    = :from_email ,
			"reply_to"      = :reply_to ,
			"cc"            = :cc ,
			"bcc"           = :bcc ,
			"subject"       = :subject ,
			"body_html"     = :body_html ,
			"body_text"     = :body_text ,
			"headers"       = :headers ,
			"created_at"    = :created_at ,
			"scheduled_at"  = :scheduled_at ,
			"sent_at"       = :sent_at ,
			"status"        = :status ,
			"priority"      = :priority ,
			"retry_count"   = :retry_count ,
			"max_retries"   = :max_retries ,
			"error_message" = :error_message
		where "id" = :id ;
	`

	result, err := execNamed(ctx, q, query, mail)
	if err != nil {
		return err
	}

	return ensureRowsAffected(result)
}

func (queueDao) FindByID(ctx context.Context, q Queryer, id string) (*models.QueuedMailEntity, error) {
	const query = `
		select *
		from "email_queue"
		where "id" = $1 ;
	`

	var mail models.QueuedMailEntity

	if err := selectOne(ctx, q, &mail, query, id); err != nil {
		return nil, err
	}

	return &mail, nil
}

func (queueDao) FindDue(ctx context.Context, q Queryer, limit int, now int64) ([]models.QueuedMailEntity, error) {
	const query = `
		select *
		from "email_queue"
		where "status" = $1
		  and ( "scheduled_at" is null or "scheduled_at" <= $2 )
		order by "priority" asc ,
		         "created_at" asc
		limit $3 ;
	`

	var mailSlice []models.QueuedMailEntity

	err := selectSlice(ctx, q, &mailSlice, query, models.StatusPending, now, limit)
	if err != nil {
		return nil, err
	}

	return mailSlice, nil
}

func (d queueDao) MarkProcessing(ctx context.Context, q Queryer, ids []string) ([]string, error) {
	return d.UpdateStatusAll(ctx, q, ids,
		[]models.QueueStatus{models.StatusPending},
		models.StatusProcessing)
}

func (queueDao) Search(ctx context.Context, q Queryer, filter QueueFilter) ([]models.QueuedMailEntity, error) {
	query := `
		select *
		from "email_queue"
		where 1 = 1
	`

	var args []any

	if filter.Status != "" {
		query += ` and "status" = ? `
		args = append(args, filter.Status)
	}

	if filter.Recipient != "" {
		query += ` and "to_email" like ? `
		args = append(args, "%"+filter.Recipient+"%")
	}

	query += ` order by "created_at" desc `

	if filter.Limit > 0 {
		query += ` limit ? `
		args = append(args, filter.Limit)

		if filter.Offset > 0 {
			query += ` offset ? `
			args = append(args, filter.Offset)
		}
	}

	var mailSlice []models.QueuedMailEntity

	err := selectSlice(ctx, q, &mailSlice, q.Rebind(query+";"), args...)
	if err != nil {
		return nil, err
	}

	return mailSlice, nil
}

func (d queueDao) UpdateStatusAll(
	ctx context.Context,
	q Queryer,
	ids []string,
	from []models.QueueStatus,
	to models.QueueStatus,
) ([]string, error) {
	affected, err := d.findMatching(ctx, q, ids, from)
	if err != nil {
		return nil, err
	}

	if len(affected) == 0 {
		return nil, nil
	}

	const query = `
		update "email_queue"
		set "status" = ?
		where "id" in (?) ;
	`

	expanded, args, err := expandIn(q, query, to, affected)
	if err != nil {
		return nil, err
	}

	if _, err := execPositional(ctx, q, expanded, args...); err != nil {
		return nil, err
	}

	return affected, nil
}

func (d queueDao) ResetForRetry(ctx context.Context, q Queryer, ids []string) ([]string, error) {
	affected, err := d.findMatching(ctx, q, ids, []models.QueueStatus{models.StatusFailed})
	if err != nil {
		return nil, err
	}

	if len(affected) == 0 {
		return nil, nil
	}

	const query = `
		update "email_queue"
		set "status"        = ? ,
			"retry_count"   = 0 ,
			"scheduled_at"  = null ,
			"error_message" = null
		where "id" in (?) ;
	`

	expanded, args, err := expandIn(q, query, models.StatusPending, affected)
	if err != nil {
		return nil, err
	}

	if _, err := execPositional(ctx, q, expanded, args...); err != nil {
		return nil, err
	}

	return affected, nil
}

func (queueDao) DeleteAll(ctx context.Context, q Queryer, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	const query = `
		delete from "email_queue"
		where "id" in (?)
		  and "status" in (?) ;
	`

	terminal := []models.QueueStatus{models.StatusCancelled, models.StatusFailed}

	expanded, args, err := expandIn(q, query, ids, terminal)
	if err != nil {
		return 0, err
	}

	result, err := execPositional(ctx, q, expanded, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (queueDao) CountByStatus(ctx context.Context, q Queryer, since int64) ([]StatusCount, error) {
	const query = `
		select "status" , count(*) as "count"
		from "email_queue"
		where "created_at" >= $1
		group by "status"
		order by "status" asc ;
	`

	var countSlice []StatusCount

	if err := selectSlice(ctx, q, &countSlice, query, since); err != nil {
		return nil, err
	}

	return countSlice, nil
}

func (queueDao) ResetStuckProcessing(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	const query = `
		update "email_queue"
		set "status" = $1
		where "status" = $2
		  and coalesce("scheduled_at", "created_at") < $3 ;
	`

	result, err := execPositional(ctx, q, query,
		models.StatusPending,
		models.StatusProcessing,
		cutoff)

	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

func (queueDao) DeleteTerminalBefore(ctx context.Context, q Queryer, cutoff int64) (int64, error) {
	const query = `
		delete from "email_queue"
		where "status" in (?)
		  and "created_at" < ? ;
	`

	terminal := []models.QueueStatus{models.StatusCancelled, models.StatusFailed}

	expanded, args, err := expandIn(q, query, terminal, cutoff)
	if err != nil {
		return 0, err
	}

	result, err := execPositional(ctx, q, expanded, args...)
	if err != nil {
		return 0, err
	}

	return result.RowsAffected()
}

// findMatching returns the subset of ids whose current status is one of from.
func (queueDao) findMatching(
	ctx context.Context,
	q Queryer,
	ids []string,
	from []models.QueueStatus,
) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	const query = `
		select "id"
		from "email_queue"
		where "id" in (?)
		  and "status" in (?) ;
	`

	expanded, args, err := expandIn(q, query, ids, from)
	if err != nil {
		return nil, err
	}

	var matching []string

	if err := selectSlice(ctx, q, &matching, expanded, args...); err != nil {
		return nil, err
	}

	return matching, nil
}
