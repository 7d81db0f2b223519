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

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/spoolmail/internal/database"
	"github.com/lukasdietrich/spoolmail/internal/models"
)

// baseDeliveryTestSuite provides mocked database collaborators for the
// service tests of this package.
type baseDeliveryTestSuite struct {
	suite.Suite

	ctx         context.Context
	conn        *database.MockConn
	tx          *database.MockTx
	queueDao    *database.MockQueueDao
	queueLogDao *database.MockQueueLogDao
}

func (s *baseDeliveryTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.conn = new(database.MockConn)
	s.tx = new(database.MockTx)
	s.queueDao = new(database.MockQueueDao)
	s.queueLogDao = new(database.MockQueueLogDao)
}

// expectTx wires the happy path of a transaction. The deferred rollback
// after a commit reports sql.ErrTxDone, which services ignore.
func (s *baseDeliveryTestSuite) expectTx() {
	s.conn.On("Begin", mock.Anything).Return(s.tx, nil)
	s.tx.On("Commit").Return(nil)
	s.tx.On("Rollback").Return(sql.ErrTxDone)
	s.tx.On("RollbackWith", mock.Anything).Return(sql.ErrTxDone)
}

func (s *baseDeliveryTestSuite) fakeQueued(id string) *models.QueuedMailEntity {
	return &models.QueuedMailEntity{
		ID:         id,
		ToAddress:  "someone@example.com",
		Subject:    "subject",
		BodyText:   "plain",
		Headers:    models.HeaderMap{},
		CreatedAt:  1,
		Status:     models.StatusProcessing,
		Priority:   models.PriorityNormal,
		MaxRetries: 3,
	}
}
