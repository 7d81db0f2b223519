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
	"time"

	"github.com/spf13/viper"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/log"
	"github.com/lukasdietrich/spoolmail/internal/models"
)

func init() {
	viper.SetDefault("queue.batchsize", 25)
}

// ProcessReport summarizes a single processing cycle.
type ProcessReport struct {
	Claimed  int
	Sent     int
	Retried  int
	Failed   int
	Messages []string
}

func (r *ProcessReport) appendMessage(format string, args ...interface{}) {
	r.Messages = append(r.Messages, fmt.Sprintf(format, args...))
}

// Processor drives queued mails through their lifecycle. One cycle claims a
// batch of due mails and attempts delivery one mail at a time.
type Processor struct {
	conn        database.Conn
	queueDao    database.QueueDao
	queueLogDao database.QueueLogDao
	mailer      Mailer
}

// NewProcessor creates a new Processor.
//
// `queue.batchsize` limits the number of mails claimed per cycle.
func NewProcessor(
	conn database.Conn,
	queueDao database.QueueDao,
	queueLogDao database.QueueLogDao,
	mailer Mailer,
) *Processor {
	return &Processor{
		conn:        conn,
		queueDao:    queueDao,
		queueLogDao: queueLogDao,
		mailer:      mailer,
	}
}

// Cycle runs one processing cycle. Transport failures are settled per mail
// through the retry policy and never abort the batch. An error is only
// returned when the queue store itself fails, in which case already claimed
// mails may be left in processing until the cleaner resets them.
func (p *Processor) Cycle(ctx context.Context) (*ProcessReport, error) {
	now := time.Now()

	mails, err := p.claim(ctx, now.Unix())
	if err != nil {
		return nil, err
	}

	report := ProcessReport{Claimed: len(mails)}

	for i := range mails {
		mail := &mails[i]

		mailCtx := log.WithMail(ctx, mail.ID)
		mailCtx = log.WithAttempt(mailCtx, mail.RetryCount+1)

		if err := p.processOne(mailCtx, mail, now, &report); err != nil {
			return &report, err
		}
	}

	log.InfoContext(ctx).
		Int("claimed", report.Claimed).
		Int("sent", report.Sent).
		Int("retried", report.Retried).
		Int("failed", report.Failed).
		Msg("processing cycle completed")

	return &report, nil
}

// claim selects due mails and flips them to processing in one transaction,
// so overlapping cycles cannot grab the same rows.
func (p *Processor) claim(ctx context.Context, now int64) ([]models.QueuedMailEntity, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, err
	}

	defer tx.Rollback() // nolint:errcheck

	mails, err := p.queueDao.FindDue(ctx, tx, viper.GetInt("queue.batchsize"), now)
	if err != nil {
		return nil, err
	}

	if len(mails) == 0 {
		return nil, tx.Commit()
	}

	ids := make([]string, len(mails))
	for i, mail := range mails {
		ids[i] = mail.ID
	}

	claimed, err := p.queueDao.MarkProcessing(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	claimedSet := make(map[string]bool, len(claimed))
	for _, id := range claimed {
		claimedSet[id] = true
	}

	claimedMails := mails[:0]
	for i := range mails {
		if claimedSet[mails[i].ID] {
			mails[i].Status = models.StatusProcessing
			claimedMails = append(claimedMails, mails[i])
		}
	}

	return claimedMails, nil
}

func (p *Processor) processOne(
	ctx context.Context,
	mail *models.QueuedMailEntity,
	now time.Time,
	report *ProcessReport,
) error {
	log.DebugContext(ctx).
		Str("to", mail.ToAddress).
		Msg("attempting delivery")

	ok, err := p.mailer.Send(ctx, mail.ToAddress, mergeHeaders(mail), Body{
		Text: mail.BodyText,
		HTML: mail.BodyHTML,
	})

	if ok && err == nil {
		report.Sent++
		return p.settleSent(ctx, mail, now)
	}

	cause := "transport rejected the mail"
	if err != nil {
		cause = err.Error()
	}

	return p.settleFailure(ctx, mail, now, cause, report)
}

func (p *Processor) settleSent(ctx context.Context, mail *models.QueuedMailEntity, now time.Time) error {
	mail.Status = models.StatusSent
	mail.SentAt = sql.NullInt64{Int64: now.Unix(), Valid: true}
	mail.ErrorMessage = sql.NullString{}

	log.InfoContext(ctx).Msg("mail sent")

	return p.settle(ctx, mail, models.QueueLogEntity{
		QueueID:   mail.ID,
		Action:    models.ActionSent,
		Message:   "delivered to transport",
		CreatedAt: now.Unix(),
	})
}

func (p *Processor) settleFailure(
	ctx context.Context,
	mail *models.QueuedMailEntity,
	now time.Time,
	cause string,
	report *ProcessReport,
) error {
	decision := nextRetry(mail.RetryCount, mail.MaxRetries)

	mail.RetryCount = decision.RetryCount
	mail.ErrorMessage = sql.NullString{String: cause, Valid: true}

	entry := models.QueueLogEntity{
		QueueID:   mail.ID,
		CreatedAt: now.Unix(),
	}

	if decision.Terminal {
		mail.Status = models.StatusFailed

		entry.Action = models.ActionFailed
		entry.Message = fmt.Sprintf("permanently failed after %d attempts: %s",
			decision.RetryCount, cause)

		report.Failed++
		report.appendMessage("%s failed: %s", mail.ID, cause)

		log.WarnContext(ctx).
			Str("cause", cause).
			Msg("mail failed permanently")
	} else {
		mail.Status = models.StatusPending
		mail.ScheduledAt = sql.NullInt64{Int64: now.Add(decision.Delay).Unix(), Valid: true}

		entry.Action = models.ActionRetryScheduled
		entry.Message = fmt.Sprintf("retry %d scheduled in %s", decision.RetryCount, decision.Delay)

		report.Retried++
		report.appendMessage("%s retried in %s: %s", mail.ID, decision.Delay, cause)

		log.InfoContext(ctx).
			Str("cause", cause).
			Dur("delay", decision.Delay).
			Msg("retry scheduled")
	}

	return p.settle(ctx, mail, entry)
}

// settle writes the outcome of one delivery attempt. Mail update and log
// entry share a transaction.
func (p *Processor) settle(
	ctx context.Context,
	mail *models.QueuedMailEntity,
	entry models.QueueLogEntity,
) error {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer tx.Rollback() // nolint:errcheck

	if err := p.queueDao.Update(ctx, tx, mail); err != nil {
		return err
	}

	if err := p.queueLogDao.Insert(ctx, tx, &entry); err != nil {
		return err
	}

	return tx.Commit()
}

// mergeHeaders combines the stored custom headers with those derived from
// the envelope columns. Envelope columns win.
func mergeHeaders(mail *models.QueuedMailEntity) map[string]string {
	headers := make(map[string]string, len(mail.Headers)+5)

	for name, value := range mail.Headers {
		headers[name] = value
	}

	headers["subject"] = mail.Subject

	for name, value := range map[string]sql.NullString{
		"from":     mail.FromAddress,
		"reply-to": mail.ReplyTo,
		"cc":       mail.Cc,
		"bcc":      mail.Bcc,
	} {
		if value.Valid {
			headers[name] = value.String
		}
	}

	return headers
}
