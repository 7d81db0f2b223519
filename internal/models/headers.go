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

package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// HeaderMap holds custom header names and values of a queued mail. It is
// stored as a JSON text column. Keys are case-normalized on read, so lookups
// should use lower-case names.
type HeaderMap map[string]string

// Get returns the value for a header name, ignoring case.
func (h HeaderMap) Get(name string) string {
	return h[strings.ToLower(name)]
}

// Scan implements the sql.Scanner interface. A malformed column yields an
// empty map instead of an error, because a broken header blob must not make
// a row unreadable.
func (h *HeaderMap) Scan(src interface{}) error {
	s, err := driver.String.ConvertValue(src)
	if err != nil {
		return err
	}

	raw, ok := s.(string)
	if !ok || raw == "" {
		*h = HeaderMap{}
		return nil
	}

	var decoded map[string]string
	if err := json.Unmarshal([]byte(raw), &decoded); err != nil {
		*h = HeaderMap{}
		return nil
	}

	normalized := make(HeaderMap, len(decoded))
	for name, value := range decoded {
		normalized[strings.ToLower(name)] = value
	}

	*h = normalized
	return nil
}

// Value implements the sql/driver.Valuer interface.
func (h HeaderMap) Value() (driver.Value, error) {
	if h == nil {
		return "{}", nil
	}

	raw, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("could not encode headers: %w", err)
	}

	return string(raw), nil
}
