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
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/log"
	"github.com/lukasdietrich/spoolmail/internal/models"
	"github.com/lukasdietrich/spoolmail/internal/priority"
)

func init() {
	viper.SetDefault("queue.maxretries", 3)
	viper.SetDefault("queue.validation.strict", true)
}

// Submission is a request to queue an outbound mail.
type Submission struct {
	To       string
	From     string
	ReplyTo  string
	Cc       string
	Bcc      string
	Subject  string
	BodyHTML string
	BodyText string
	Headers  models.HeaderMap
	// Priority is optional. If zero, it is inferred from the content.
	// Explicit values must lie within [1, 5].
	Priority int
	// MaxRetries is optional. If zero, the configured default applies.
	// Negative values are rejected.
	MaxRetries int
	// ScheduledAt optionally defers the first delivery attempt.
	ScheduledAt time.Time
}

// Enqueuer validates submissions and puts them into the queue.
type Enqueuer struct {
	conn        database.Conn
	queueDao    database.QueueDao
	queueLogDao database.QueueLogDao
	detector    priority.Detector
}

// NewEnqueuer creates a new Enqueuer.
//
// `queue.maxretries` is the retry budget assigned to new mails.
// `queue.validation.strict` toggles address validation of all recipient
// fields. When false, implausible addresses are queued anyway and the
// failure is recorded as a warning and an error entry in the queue log.
func NewEnqueuer(
	conn database.Conn,
	queueDao database.QueueDao,
	queueLogDao database.QueueLogDao,
	detector priority.Detector,
) *Enqueuer {
	return &Enqueuer{
		conn:        conn,
		queueDao:    queueDao,
		queueLogDao: queueLogDao,
		detector:    detector,
	}
}

// Enqueue stores a mail with status pending and returns its assigned id.
// The insert and the initial log entries share a transaction.
func (e *Enqueuer) Enqueue(ctx context.Context, submission Submission) (string, error) {
	validationNote, err := e.validate(ctx, &submission)
	if err != nil {
		return "", err
	}

	mail := newQueuedMail(&submission, e.detectPriority(&submission))
	ctx = log.WithMail(ctx, mail.ID)

	tx, err := e.conn.Begin(ctx)
	if err != nil {
		return "", err
	}

	defer tx.RollbackWith(e.logNotQueued(ctx)) // nolint:errcheck

	if err := e.queueDao.Insert(ctx, tx, mail); err != nil {
		return "", err
	}

	entry := models.QueueLogEntity{
		QueueID:   mail.ID,
		Action:    models.ActionQueued,
		Message:   fmt.Sprintf("queued with priority %d", mail.Priority),
		CreatedAt: mail.CreatedAt,
	}

	if err := e.queueLogDao.Insert(ctx, tx, &entry); err != nil {
		return "", err
	}

	if validationNote != "" {
		note := models.QueueLogEntity{
			QueueID:   mail.ID,
			Action:    models.ActionError,
			Message:   validationNote,
			CreatedAt: mail.CreatedAt,
		}

		if err := e.queueLogDao.Insert(ctx, tx, &note); err != nil {
			return "", err
		}
	}

	if err := tx.Commit(); err != nil {
		return "", err
	}

	log.InfoContext(ctx).
		Str("to", mail.ToAddress).
		Int("priority", mail.Priority).
		Msg("mail queued")

	return mail.ID, nil
}

// logNotQueued is the rollback callback of Enqueue. It only fires when the
// transaction was actually rolled back.
func (e *Enqueuer) logNotQueued(ctx context.Context) func() {
	return func() {
		log.WarnContext(ctx).Msg("mail not queued")
	}
}

func (e *Enqueuer) detectPriority(submission *Submission) int {
	if submission.Priority != 0 {
		return submission.Priority
	}

	return e.detector.Detect(priority.Email{
		Subject:     submission.Subject,
		Headers:     submission.Headers,
		FromAddress: submission.From,
		ToAddress:   submission.To,
		TextBody:    submission.BodyText,
		HTMLBody:    submission.BodyHTML,
	})
}

// validate rejects malformed submissions. In lenient mode an address
// validation failure does not reject, but is returned as a note to be
// recorded alongside the queued mail.
func (e *Enqueuer) validate(ctx context.Context, submission *Submission) (string, error) {
	if submission.To == "" {
		return "", fmt.Errorf("submission without a recipient")
	}

	if submission.Priority < 0 || submission.Priority > models.PriorityBulk {
		return "", fmt.Errorf("priority %d outside of [%d, %d]",
			submission.Priority, models.PriorityUrgent, models.PriorityBulk)
	}

	if submission.MaxRetries < 0 {
		return "", fmt.Errorf("negative retry budget %d", submission.MaxRetries)
	}

	err := validateAddressFields(submission)
	if err == nil {
		return "", nil
	}

	if viper.GetBool("queue.validation.strict") {
		return "", err
	}

	log.WarnContext(ctx).
		Str("to", submission.To).
		Err(err).
		Msg("queueing mail despite validation failure")

	return fmt.Sprintf("queued despite validation failure: %v", err), nil
}

func newQueuedMail(submission *Submission, mailPriority int) *models.QueuedMailEntity {
	headers := submission.Headers
	if headers == nil {
		headers = models.HeaderMap{}
	}

	maxRetries := submission.MaxRetries
	if maxRetries == 0 {
		maxRetries = viper.GetInt("queue.maxretries")
	}

	var scheduledAt sql.NullInt64
	if !submission.ScheduledAt.IsZero() {
		scheduledAt = sql.NullInt64{Int64: submission.ScheduledAt.Unix(), Valid: true}
	}

	return &models.QueuedMailEntity{
		ID:          uuid.New().String(),
		ToAddress:   submission.To,
		FromAddress: nullString(submission.From),
		ReplyTo:     nullString(submission.ReplyTo),
		Cc:          nullString(submission.Cc),
		Bcc:         nullString(submission.Bcc),
		Subject:     submission.Subject,
		BodyHTML:    submission.BodyHTML,
		BodyText:    submission.BodyText,
		Headers:     headers,
		CreatedAt:   time.Now().Unix(),
		ScheduledAt: scheduledAt,
		Status:      models.StatusPending,
		Priority:    mailPriority,
		MaxRetries:  maxRetries,
	}
}

func validateAddressFields(submission *Submission) error {
	for _, field := range []struct {
		name string
		list bool
		raw  string
	}{
		{"to", false, submission.To},
		{"from", false, submission.From},
		{"reply-to", false, submission.ReplyTo},
		{"cc", true, submission.Cc},
		{"bcc", true, submission.Bcc},
	} {
		if field.raw == "" {
			continue
		}

		if err := validateAddressField(field.list, field.raw); err != nil {
			return fmt.Errorf("invalid %s address: %w", field.name, err)
		}
	}

	return nil
}

func validateAddressField(list bool, raw string) error {
	if !list {
		_, err := models.ParseUnicode(raw)
		return err
	}

	for _, part := range strings.Split(raw, ",") {
		if _, err := models.ParseUnicode(strings.TrimSpace(part)); err != nil {
			return err
		}
	}

	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
