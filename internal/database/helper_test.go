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
	"database/sql"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/suite"
)

type baseDatabaseTestSuite struct {
	suite.Suite

	ctx  context.Context
	conn Conn
}

func (s *baseDatabaseTestSuite) SetupTest() {
	viper.Set("storage.database.filename", ":memory:")
	viper.Set("storage.database.journalmode", "memory")

	conn, err := OpenConnection()
	s.Require().NoError(err)
	s.Require().NotNil(conn)

	s.ctx = context.Background()
	s.conn = conn
}

func (s *baseDatabaseTestSuite) TearDownTest() {
	s.Require().NoError(s.conn.Close())
}

func (s *baseDatabaseTestSuite) requireExec(query string, args ...any) {
	_, err := s.conn.ExecContext(s.ctx, query, args...)
	s.Require().NoError(err)
}

// assertQuery compares the flattened string values of all result rows with
// the expected slice. Null columns flatten to "<null>".
func (s *baseDatabaseTestSuite) assertQuery(query string, expected []string) {
	rows, err := s.conn.QueryContext(s.ctx, query)
	s.Require().NoError(err)

	defer rows.Close()

	columns, err := rows.Columns()
	s.Require().NoError(err)

	var actual []string

	for rows.Next() {
		values := make([]sql.NullString, len(columns))
		pointers := make([]any, len(columns))

		for i := range values {
			pointers[i] = &values[i]
		}

		s.Require().NoError(rows.Scan(pointers...))

		for _, value := range values {
			if value.Valid {
				actual = append(actual, value.String)
			} else {
				actual = append(actual, "<null>")
			}
		}
	}

	s.Require().NoError(rows.Err())
	s.Assert().Equal(expected, actual)
}
