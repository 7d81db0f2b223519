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

package log

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
)

func TestLogContextTestSuite(t *testing.T) {
	suite.Run(t, new(LogContextTestSuite))
}

type LogContextTestSuite struct {
	baseLogTestSuite
}

func (s *LogContextTestSuite) TestWithOrigin() {
	ctx := WithOrigin(context.TODO(), "origin1")
	InfoContext(ctx).Msg("TestWithOrigin")

	s.assertMsg("{\"level\":\"info\",\"origin\":\"origin1\",\"message\":\"TestWithOrigin\"}\n")
}

func (s *LogContextTestSuite) TestWithMail() {
	ctx := WithMail(context.TODO(), "mail1")
	InfoContext(ctx).Msg("TestWithMail")

	s.assertMsg("{\"level\":\"info\",\"mail\":\"mail1\",\"message\":\"TestWithMail\"}\n")
}

func (s *LogContextTestSuite) TestWithAttempt() {
	ctx := WithAttempt(context.TODO(), 123)
	InfoContext(ctx).Msg("TestWithAttempt")

	s.assertMsg("{\"level\":\"info\",\"attempt\":123,\"message\":\"TestWithAttempt\"}\n")
}

func (s *LogContextTestSuite) TestWithAll() {
	ctx := context.TODO()
	ctx = WithOrigin(ctx, "origin2")
	ctx = WithMail(ctx, "mail3")
	ctx = WithAttempt(ctx, 456)
	InfoContext(ctx).Msg("TestWithAll")

	s.assertMsg("{\"level\":\"info\",\"origin\":\"origin2\",\"mail\":\"mail3\",\"attempt\":456,\"message\":\"TestWithAll\"}\n")
}
