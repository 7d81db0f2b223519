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

package models

import (
	"database/sql"
)

// QueueStatus is the lifecycle state of a queued mail.
type QueueStatus string

const (
	// StatusPending is a mail waiting for its next delivery attempt.
	StatusPending = QueueStatus("pending")
	// StatusProcessing is a mail claimed by a running delivery cycle.
	StatusProcessing = QueueStatus("processing")
	// StatusSent is a mail handed to the transport successfully. Terminal.
	StatusSent = QueueStatus("sent")
	// StatusFailed is a mail that exhausted its retries. Terminal for the
	// automatic path, an operator may reset it to pending.
	StatusFailed = QueueStatus("failed")
	// StatusCancelled is a mail withdrawn by an operator. Terminal.
	StatusCancelled = QueueStatus("cancelled")
)

// Priority bounds. Lower numbers are served first.
const (
	PriorityUrgent = 1
	PriorityHigh   = 2
	PriorityNormal = 3
	PriorityLow    = 4
	PriorityBulk   = 5
)

// QueuedMailEntity is the entity for the "email_queue" table.
type QueuedMailEntity struct {
	ID           string         `db:"id"`
	ToAddress    string         `db:"to_email"`
	FromAddress  sql.NullString `db:"from_email"`
	ReplyTo      sql.NullString `db:"reply_to"`
	Cc           sql.NullString `db:"cc"`
	Bcc          sql.NullString `db:"bcc"`
	Subject      string         `db:"subject"`
	BodyHTML     string         `db:"body_html"`
	BodyText     string         `db:"body_text"`
	Headers      HeaderMap      `db:"headers"`
	CreatedAt    int64          `db:"created_at"`
	ScheduledAt  sql.NullInt64  `db:"scheduled_at"`
	SentAt       sql.NullInt64  `db:"sent_at"`
	Status       QueueStatus    `db:"status"`
	Priority     int            `db:"priority"`
	RetryCount   int            `db:"retry_count"`
	MaxRetries   int            `db:"max_retries"`
	ErrorMessage sql.NullString `db:"error_message"`
}

// QueueLogEntity is the entity for the "email_queue_log" table. Entries are
// append-only and reference their mail weakly. Deleting a mail orphans its
// entries until the cleaner reaps them.
type QueueLogEntity struct {
	ID        int64  `db:"id"`
	QueueID   string `db:"queue_id"`
	Action    string `db:"action"`
	Message   string `db:"message"`
	CreatedAt int64  `db:"created_at"`
}

// Log action vocabulary.
const (
	ActionQueued         = "queued"
	ActionSent           = "sent"
	ActionFailed         = "failed"
	ActionRetryScheduled = "retry_scheduled"
	ActionCancelled      = "cancelled"
	ActionBulkCancelled  = "bulk_cancelled"
	ActionBulkRetried    = "bulk_retried"
	ActionError          = "error"
)
