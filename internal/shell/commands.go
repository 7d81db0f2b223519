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

package shell

import (
	"errors"
	"strconv"
	"time"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/delivery"
	"github.com/lukasdietrich/spoolmail/internal/models"
)

const listLimit = 50

func (s *Shell) queueList(ctx *shellContext) error {
	if !ctx.checkArgs(0, 1) {
		return errors.New("Usage: queue list [STATUS]")
	}

	filter := database.QueueFilter{Limit: listLimit}
	if ctx.checkArgs(1, 1) {
		filter.Status = models.QueueStatus(ctx.arg(0))
	}

	mails, err := s.operator.Search(ctx, filter)
	if err != nil {
		return err
	}

	ctx.printf("\n(%d) Mails:\n", len(mails))
	for _, mail := range mails {
		ctx.printf("\t%s  p%d  %-10s  %s  %q\n",
			mail.ID, mail.Priority, mail.Status, mail.ToAddress, mail.Subject)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) queueShow(ctx *shellContext) error {
	if !ctx.checkArgs(1, 1) {
		return errors.New("Usage: queue show [ID]")
	}

	preview, err := s.previewer.Preview(ctx, ctx.arg(0))
	if err != nil {
		return err
	}

	mail := preview.Mail

	ctx.printf("\nID:       %s\n", mail.ID)
	ctx.printf("To:       %s\n", mail.ToAddress)
	ctx.printf("Subject:  %q\n", mail.Subject)
	ctx.printf("Status:   %s\n", mail.Status)
	ctx.printf("Priority: %d\n", mail.Priority)
	ctx.printf("Retries:  %d/%d\n", mail.RetryCount, mail.MaxRetries)

	if mail.ErrorMessage.Valid {
		ctx.printf("Error:    %s\n", mail.ErrorMessage.String)
	}

	ctx.printf("\n(%d) Log entries:\n", len(preview.Log))
	for _, entry := range preview.Log {
		ctx.printf("\t%s  %-15s  %s\n",
			time.Unix(entry.CreatedAt, 0).Format(time.RFC3339),
			entry.Action,
			entry.Message)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) queuePreview(ctx *shellContext) error {
	if !ctx.checkArgs(1, 1) {
		return errors.New("Usage: queue preview [ID]")
	}

	preview, err := s.previewer.Preview(ctx, ctx.arg(0))
	if err != nil {
		return err
	}

	ctx.printf("\nText:\n%s\n", preview.TextBody)
	ctx.printf("\nHTML:\n%s\n", preview.HTMLBody)

	ctx.printf("\n(%d) Attachments:\n", len(preview.Attachments))
	for _, attachment := range preview.Attachments {
		ctx.printf("\t%s  %s  (%d bytes)\n",
			attachment.Filename, attachment.MimeType, attachment.Size)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) queueExport(ctx *shellContext) error {
	if !ctx.checkArgs(1, 1) {
		return errors.New("Usage: queue export [ID]")
	}

	filenames, err := s.previewer.ExportAttachments(ctx, ctx.arg(0))
	if err != nil {
		return err
	}

	ctx.printf("\n(%d) Exported files:\n", len(filenames))
	for _, filename := range filenames {
		ctx.printf("\t%s\n", filename)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) queueAdd(ctx *shellContext) error {
	if !ctx.checkArgs(1, 1) {
		return errors.New("Usage: queue add [TO]")
	}

	subject, err := ctx.ask("Subject")
	if err != nil {
		return err
	}

	body, err := ctx.ask("Text body")
	if err != nil {
		return err
	}

	id, err := s.enqueuer.Enqueue(ctx, delivery.Submission{
		To:       ctx.arg(0),
		Subject:  subject,
		BodyText: body,
	})

	if err != nil {
		return err
	}

	ctx.printf("\n\tMail %q queued.\n\n", id)
	return nil
}

func (s *Shell) bulkCancel(ctx *shellContext) error {
	if !ctx.checkArgs(1, -1) {
		return errors.New("Usage: bulk cancel [ID...]")
	}

	affected, err := s.operator.Cancel(ctx, ctx.args())
	if err != nil {
		return err
	}

	ctx.printf("\n\t%d of %d mails cancelled.\n\n", affected, len(ctx.args()))
	return nil
}

func (s *Shell) bulkRetry(ctx *shellContext) error {
	if !ctx.checkArgs(1, -1) {
		return errors.New("Usage: bulk retry [ID...]")
	}

	affected, err := s.operator.Retry(ctx, ctx.args())
	if err != nil {
		return err
	}

	ctx.printf("\n\t%d of %d mails reset for retry.\n\n", affected, len(ctx.args()))
	return nil
}

func (s *Shell) bulkDelete(ctx *shellContext) error {
	if !ctx.checkArgs(1, -1) {
		return errors.New("Usage: bulk delete [ID...]")
	}

	deleted, err := s.operator.Delete(ctx, ctx.args())
	if err != nil {
		return err
	}

	ctx.printf("\n\t%d of %d mails deleted.\n\n", deleted, len(ctx.args()))
	return nil
}

func (s *Shell) stats(ctx *shellContext) error {
	if !ctx.checkArgs(0, 1) {
		return errors.New("Usage: stats [HOURS]")
	}

	var timeframe time.Duration

	if ctx.checkArgs(1, 1) {
		hours, err := strconv.Atoi(ctx.arg(0))
		if err != nil {
			return err
		}

		timeframe = time.Duration(hours) * time.Hour
	}

	counts, err := s.operator.Stats(ctx, timeframe)
	if err != nil {
		return err
	}

	ctx.printf("\nMails by status:\n")
	for _, count := range counts {
		ctx.printf("\t%-10s  %d\n", count.Status, count.Count)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) process(ctx *shellContext) error {
	report, err := s.processor.Cycle(ctx)
	if err != nil {
		return err
	}

	ctx.printf("\nClaimed: %d, sent: %d, retried: %d, failed: %d\n",
		report.Claimed, report.Sent, report.Retried, report.Failed)

	for _, message := range report.Messages {
		ctx.printf("\t%s\n", message)
	}
	ctx.printf("\n")

	return nil
}

func (s *Shell) clean(ctx *shellContext) error {
	report, err := s.cleaner.Clean(ctx)
	if err != nil {
		return err
	}

	ctx.printf("\nReset stuck: %d, deleted mails: %d, deleted log entries: %d\n\n",
		report.ResetStuck, report.DeletedMails, report.DeletedLogEntries)

	return nil
}
