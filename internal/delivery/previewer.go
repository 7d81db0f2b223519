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

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/log"
	"github.com/lukasdietrich/spoolmail/internal/mime"
	"github.com/lukasdietrich/spoolmail/internal/models"
	"github.com/lukasdietrich/spoolmail/internal/storage"
)

// Preview is the decoded view of a queued mail.
type Preview struct {
	Mail models.QueuedMailEntity
	// TextBody and HTMLBody are the first text and html parts discovered in
	// the stored html body. Empty when the parser found none.
	TextBody    string
	HTMLBody    string
	Attachments []mime.Part
	Log         []models.QueueLogEntity
}

// Previewer loads a queued mail together with its log history and runs the
// stored html body through the mime parser. Queued content is often a full
// raw mime message rather than a pre-split html string, in which case the
// parser takes it apart.
type Previewer struct {
	conn        database.Conn
	queueDao    database.QueueDao
	queueLogDao database.QueueLogDao
	exports     *storage.Exports
}

// NewPreviewer creates a new Previewer.
func NewPreviewer(
	conn database.Conn,
	queueDao database.QueueDao,
	queueLogDao database.QueueLogDao,
	exports *storage.Exports,
) *Previewer {
	return &Previewer{
		conn:        conn,
		queueDao:    queueDao,
		queueLogDao: queueLogDao,
		exports:     exports,
	}
}

// Preview returns the decoded view of the mail with the given id.
func (p *Previewer) Preview(ctx context.Context, id string) (*Preview, error) {
	mail, entries, err := p.load(ctx, id)
	if err != nil {
		return nil, err
	}

	tree := mime.Parse(mail.BodyHTML)

	log.DebugContext(log.WithMail(ctx, id)).
		Int("boundaries", len(tree.Boundaries)).
		Int("attachments", len(tree.Attachments)).
		Msg("parsed mail body")

	return &Preview{
		Mail:        *mail,
		TextBody:    tree.FirstText(),
		HTMLBody:    tree.FirstHTML(),
		Attachments: tree.Attachments,
		Log:         entries,
	}, nil
}

// ExportAttachments decodes the mail and writes every discovered attachment
// into the export store. It returns the written filenames.
func (p *Previewer) ExportAttachments(ctx context.Context, id string) ([]string, error) {
	preview, err := p.Preview(ctx, id)
	if err != nil {
		return nil, err
	}

	filenames := make([]string, 0, len(preview.Attachments))

	for _, attachment := range preview.Attachments {
		filename, err := p.exports.Write(id, attachment.Filename, []byte(attachment.Content))
		if err != nil {
			return filenames, err
		}

		filenames = append(filenames, filename)
	}

	return filenames, nil
}

func (p *Previewer) load(
	ctx context.Context,
	id string,
) (*models.QueuedMailEntity, []models.QueueLogEntity, error) {
	tx, err := p.conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}

	defer tx.Rollback() // nolint:errcheck

	mail, err := p.queueDao.FindByID(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	entries, err := p.queueLogDao.FindByQueue(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}

	return mail, entries, tx.Commit()
}
