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

	"github.com/stretchr/testify/mock"
)

// MockMailer is a testify mock for the Mailer interface.
type MockMailer struct {
	mock.Mock
}

func (m *MockMailer) Send(
	ctx context.Context,
	recipient string,
	headers map[string]string,
	body Body,
) (bool, error) {
	args := m.Called(ctx, recipient, headers, body)
	return args.Bool(0), args.Error(1)
}
