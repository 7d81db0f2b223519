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
	"time"
)

const backoffUnit = 5 * time.Minute

// retryDecision is the outcome of a failed delivery attempt.
type retryDecision struct {
	// Terminal means the mail exhausted its retries and must be failed.
	Terminal bool
	// RetryCount is the incremented attempt counter.
	RetryCount int
	// Delay is the backoff until the next attempt. Zero if Terminal.
	Delay time.Duration
}

// nextRetry increments the attempt counter and either gives up or schedules
// the next attempt with exponential backoff. The delay doubles with every
// attempt, starting at twice the backoff unit.
func nextRetry(retryCount, maxRetries int) retryDecision {
	decision := retryDecision{
		RetryCount: retryCount + 1,
	}

	if decision.RetryCount >= maxRetries {
		decision.Terminal = true
		return decision
	}

	decision.Delay = backoffUnit * time.Duration(1<<decision.RetryCount)
	return decision
}
