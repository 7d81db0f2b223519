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
	"database/sql"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/spoolmail/internal/models"
)

func TestQueueDaoTestSuite(t *testing.T) {
	suite.Run(t, new(QueueDaoTestSuite))
}

type QueueDaoTestSuite struct {
	baseDatabaseTestSuite

	queueDao QueueDao
}

func (s *QueueDaoTestSuite) SetupSuite() {
	s.queueDao = NewQueueDao()
}

func (s *QueueDaoTestSuite) TestInsert() {
	mail := models.QueuedMailEntity{
		ID:          "super-random-id",
		ToAddress:   "someone@example.com",
		FromAddress: sql.NullString{String: "sender@example.com", Valid: true},
		Subject:     "hello",
		BodyText:    "plain",
		Headers:     models.HeaderMap{"x-test": "1"},
		CreatedAt:   42,
		Status:      models.StatusPending,
		Priority:    3,
		MaxRetries:  3,
	}

	s.Require().NoError(s.queueDao.Insert(s.ctx, s.conn, &mail))
	s.assertQuery(
		`
			select
				"id" ,
				"to_email" ,
				"from_email" ,
				"subject" ,
				"body_text" ,
				"headers" ,
				"created_at" ,
				"status" ,
				"priority" ,
				"retry_count"
			from "email_queue" ;
		`,
		[]string{
			"super-random-id", "someone@example.com", "sender@example.com",
			"hello", "plain", `{"x-test":"1"}`, "42", "pending", "3", "0",
		})
}

func (s *QueueDaoTestSuite) TestInsertDuplicate() {
	s.Require().NoError(s.queueDao.Insert(s.ctx, s.conn, fakeMail("twice")))

	err := s.queueDao.Insert(s.ctx, s.conn, fakeMail("twice"))
	s.Assert().True(IsErrUnique(err))
}

func (s *QueueDaoTestSuite) TestUpdate() {
	s.Require().NoError(s.queueDao.Insert(s.ctx, s.conn, fakeMail("real-mail")))

	mail, err := s.queueDao.FindByID(s.ctx, s.conn, "real-mail")
	s.Require().NoError(err)

	mail.Status = models.StatusSent
	mail.SentAt = sql.NullInt64{Int64: 99, Valid: true}

	s.Assert().NoError(s.queueDao.Update(s.ctx, s.conn, mail))
	s.assertQuery(
		`select "status" , "sent_at" from "email_queue" ;`,
		[]string{"sent", "99"})
}

func (s *QueueDaoTestSuite) TestFindByIDMissing() {
	mail, err := s.queueDao.FindByID(s.ctx, s.conn, "nope")
	s.Assert().True(IsErrNoRows(err))
	s.Assert().Nil(mail)
}

func (s *QueueDaoTestSuite) TestFindDueOrdering() {
	s.insertForClaim("low", models.StatusPending, 4, 1, nil)
	s.insertForClaim("urgent", models.StatusPending, 1, 2, nil)
	s.insertForClaim("high", models.StatusPending, 2, 3, nil)

	mails, err := s.queueDao.FindDue(s.ctx, s.conn, 10, 100)
	s.Require().NoError(err)
	s.Require().Len(mails, 3)

	s.Assert().Equal("urgent", mails[0].ID)
	s.Assert().Equal("high", mails[1].ID)
	s.Assert().Equal("low", mails[2].ID)
}

func (s *QueueDaoTestSuite) TestFindDueSkipsScheduledAndClaimed() {
	future := int64(500)

	s.insertForClaim("due-now", models.StatusPending, 3, 1, nil)
	s.insertForClaim("due-later", models.StatusPending, 1, 2, &future)
	s.insertForClaim("claimed", models.StatusProcessing, 1, 3, nil)

	mails, err := s.queueDao.FindDue(s.ctx, s.conn, 10, 100)
	s.Require().NoError(err)
	s.Require().Len(mails, 1)
	s.Assert().Equal("due-now", mails[0].ID)
}

func (s *QueueDaoTestSuite) TestFindDueLimit() {
	s.insertForClaim("a", models.StatusPending, 3, 1, nil)
	s.insertForClaim("b", models.StatusPending, 3, 2, nil)

	mails, err := s.queueDao.FindDue(s.ctx, s.conn, 1, 100)
	s.Require().NoError(err)
	s.Require().Len(mails, 1)
	s.Assert().Equal("a", mails[0].ID)
}

func (s *QueueDaoTestSuite) TestMarkProcessing() {
	s.insertForClaim("claim-me", models.StatusPending, 3, 1, nil)
	s.insertForClaim("already-sent", models.StatusSent, 3, 2, nil)

	affected, err := s.queueDao.MarkProcessing(s.ctx, s.conn, []string{"claim-me", "already-sent"})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"claim-me"}, affected)

	s.assertQuery(
		`select "id" , "status" from "email_queue" order by "created_at" ;`,
		[]string{"claim-me", "processing", "already-sent", "sent"})
}

func (s *QueueDaoTestSuite) TestSearch() {
	s.insertForClaim("one", models.StatusPending, 3, 1, nil)
	s.insertForClaim("two", models.StatusFailed, 3, 2, nil)

	mails, err := s.queueDao.Search(s.ctx, s.conn, QueueFilter{Status: models.StatusFailed})
	s.Require().NoError(err)
	s.Require().Len(mails, 1)
	s.Assert().Equal("two", mails[0].ID)

	mails, err = s.queueDao.Search(s.ctx, s.conn, QueueFilter{Recipient: "someone"})
	s.Require().NoError(err)
	s.Assert().Len(mails, 2)

	mails, err = s.queueDao.Search(s.ctx, s.conn, QueueFilter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(mails, 1)
	s.Assert().Equal("two", mails[0].ID)
}

func (s *QueueDaoTestSuite) TestUpdateStatusAll() {
	s.insertForClaim("cancel-1", models.StatusPending, 3, 1, nil)
	s.insertForClaim("cancel-2", models.StatusFailed, 3, 2, nil)
	s.insertForClaim("keep", models.StatusSent, 3, 3, nil)

	affected, err := s.queueDao.UpdateStatusAll(s.ctx, s.conn,
		[]string{"cancel-1", "cancel-2", "keep"},
		[]models.QueueStatus{models.StatusPending, models.StatusFailed},
		models.StatusCancelled)

	s.Require().NoError(err)
	s.Assert().ElementsMatch([]string{"cancel-1", "cancel-2"}, affected)

	s.assertQuery(
		`select "id" , "status" from "email_queue" order by "created_at" ;`,
		[]string{
			"cancel-1", "cancelled",
			"cancel-2", "cancelled",
			"keep", "sent",
		})
}

func (s *QueueDaoTestSuite) TestResetForRetry() {
	s.requireExec(
		`
			insert into "email_queue" (
				"id" , "to_email" , "created_at" ,
				"status" , "retry_count" , "scheduled_at" , "error_message"
			) values
				( 'broken' , 'a@example.com' , 1 , 'failed' , 3 , 400 , 'boom' ) ,
				( 'fresh' , 'b@example.com' , 2 , 'pending' , 0 , null , null ) ;
		`)

	affected, err := s.queueDao.ResetForRetry(s.ctx, s.conn, []string{"broken", "fresh"})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"broken"}, affected)

	s.assertQuery(
		`
			select "status" , "retry_count" , "scheduled_at" , "error_message"
			from "email_queue"
			where "id" = 'broken' ;
		`,
		[]string{"pending", "0", "<null>", "<null>"})
}

func (s *QueueDaoTestSuite) TestDeleteAllOnlyTerminal() {
	s.insertForClaim("gone-1", models.StatusCancelled, 3, 1, nil)
	s.insertForClaim("gone-2", models.StatusFailed, 3, 2, nil)
	s.insertForClaim("stays", models.StatusPending, 3, 3, nil)

	deleted, err := s.queueDao.DeleteAll(s.ctx, s.conn,
		[]string{"gone-1", "gone-2", "stays"})

	s.Require().NoError(err)
	s.Assert().Equal(int64(2), deleted)

	s.assertQuery(`select "id" from "email_queue" ;`, []string{"stays"})
}

func (s *QueueDaoTestSuite) TestCountByStatus() {
	s.insertForClaim("p1", models.StatusPending, 3, 10, nil)
	s.insertForClaim("p2", models.StatusPending, 3, 11, nil)
	s.insertForClaim("s1", models.StatusSent, 3, 12, nil)
	s.insertForClaim("old", models.StatusFailed, 3, 1, nil)

	counts, err := s.queueDao.CountByStatus(s.ctx, s.conn, 10)
	s.Require().NoError(err)

	s.Assert().Equal([]StatusCount{
		{Status: models.StatusPending, Count: 2},
		{Status: models.StatusSent, Count: 1},
	}, counts)
}

func (s *QueueDaoTestSuite) TestResetStuckProcessing() {
	s.insertForClaim("stuck", models.StatusProcessing, 3, 1, nil)
	s.insertForClaim("active", models.StatusProcessing, 3, 90, nil)

	affected, err := s.queueDao.ResetStuckProcessing(s.ctx, s.conn, 50)
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), affected)

	s.assertQuery(
		`select "id" , "status" from "email_queue" order by "created_at" ;`,
		[]string{"stuck", "pending", "active", "processing"})
}

func (s *QueueDaoTestSuite) TestDeleteTerminalBefore() {
	s.insertForClaim("old-failed", models.StatusFailed, 3, 1, nil)
	s.insertForClaim("old-pending", models.StatusPending, 3, 2, nil)
	s.insertForClaim("new-failed", models.StatusFailed, 3, 90, nil)

	deleted, err := s.queueDao.DeleteTerminalBefore(s.ctx, s.conn, 50)
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), deleted)

	s.assertQuery(
		`select "id" from "email_queue" order by "created_at" ;`,
		[]string{"old-pending", "new-failed"})
}

func (s *QueueDaoTestSuite) insertForClaim(
	id string,
	status models.QueueStatus,
	priority int,
	createdAt int64,
	scheduledAt *int64,
) {
	mail := fakeMail(id)
	mail.Status = status
	mail.Priority = priority
	mail.CreatedAt = createdAt

	if scheduledAt != nil {
		mail.ScheduledAt = sql.NullInt64{Int64: *scheduledAt, Valid: true}
	}

	s.Require().NoError(s.queueDao.Insert(s.ctx, s.conn, mail))
}
