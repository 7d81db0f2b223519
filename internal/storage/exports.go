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

package storage

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"github.com/spf13/viper"

	"github.com/lukasdietrich/spoolmail/internal/log"
)

func init() {
	viper.SetDefault("storage.exports.foldername", "data/exports")
}

// Exports is a folder for decoded attachments written during mail previews.
// Files are grouped per mail and never read back by the application.
type Exports struct {
	fs afero.Fs
}

// NewExports creates a new export store using configuration from viper.
//
// `storage.exports.foldername` is the foldername for exported files.
func NewExports() (*Exports, error) {
	folderName := viper.GetString("storage.exports.foldername")

	if err := os.MkdirAll(folderName, 0700); err != nil {
		return nil, err
	}

	return newExports(afero.NewBasePathFs(afero.NewOsFs(), folderName)), nil
}

func newExports(fs afero.Fs) *Exports {
	return &Exports{fs: fs}
}

// Write stores content under a folder named after the mail. The filename is
// sanitized and prefixed with a random id to avoid collisions between
// attachments claiming the same name. It returns the path relative to the
// export folder.
func (e *Exports) Write(mailID, filename string, content []byte) (string, error) {
	if err := e.fs.MkdirAll(mailID, 0700); err != nil {
		return "", err
	}

	name := path.Join(mailID, fmt.Sprintf("%s-%s", uuid.New(), sanitizeFilename(filename)))

	log.Debug().
		Str("mail", mailID).
		Str("filename", name).
		Int("size", len(content)).
		Msg("writing export file")

	if err := afero.WriteFile(e.fs, name, content, 0600); err != nil {
		return "", err
	}

	return name, nil
}

// Remove deletes all exported files of a mail.
func (e *Exports) Remove(mailID string) error {
	return e.fs.RemoveAll(mailID)
}

// sanitizeFilename strips path separators and control characters, so an
// attachment name cannot escape the export folder.
func sanitizeFilename(filename string) string {
	filename = path.Base(strings.ReplaceAll(filename, "\\", "/"))

	filename = strings.Map(func(r rune) rune {
		if r < ' ' || r == os.PathSeparator {
			return '_'
		}

		return r
	}, filename)

	if filename == "" || filename == "." || filename == ".." {
		return "unnamed"
	}

	return filename
}
