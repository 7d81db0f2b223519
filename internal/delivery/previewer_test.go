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
	"database/sql"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/lukasdietrich/spoolmail/internal/models"
	"github.com/lukasdietrich/spoolmail/internal/storage"
)

func TestPreviewerTestSuite(t *testing.T) {
	suite.Run(t, new(PreviewerTestSuite))
}

type PreviewerTestSuite struct {
	baseDeliveryTestSuite

	exportFolder string
	previewer    *Previewer
}

func (s *PreviewerTestSuite) SetupTest() {
	s.baseDeliveryTestSuite.SetupTest()

	s.exportFolder = s.T().TempDir()
	viper.Set("storage.exports.foldername", s.exportFolder)

	exports, err := storage.NewExports()
	s.Require().NoError(err)

	s.previewer = NewPreviewer(s.conn, s.queueDao, s.queueLogDao, exports)
}

func (s *PreviewerTestSuite) TestPreviewMultipartBody() {
	mail := s.fakeQueued("mail-1")
	mail.BodyHTML = strings.Join([]string{
		"--preview-boundary",
		"Content-Type: text/plain",
		"",
		"plain part",
		"--preview-boundary",
		"Content-Type: text/html",
		"",
		"<b>html part</b>",
		"--preview-boundary--",
	}, "\n")

	s.expectLoad(mail, []models.QueueLogEntity{
		{QueueID: "mail-1", Action: models.ActionQueued},
	})

	preview, err := s.previewer.Preview(s.ctx, "mail-1")

	s.Require().NoError(err)
	s.Assert().Equal("plain part\n", preview.TextBody)
	s.Assert().Equal("<b>html part</b>\n", preview.HTMLBody)
	s.Assert().Empty(preview.Attachments)

	s.Require().Len(preview.Log, 1)
	s.Assert().Equal(models.ActionQueued, preview.Log[0].Action)
}

func (s *PreviewerTestSuite) TestPreviewPlainBody() {
	mail := s.fakeQueued("mail-1")
	mail.BodyHTML = "just a plain string"

	s.expectLoad(mail, nil)

	preview, err := s.previewer.Preview(s.ctx, "mail-1")

	s.Require().NoError(err)
	s.Assert().Equal("just a plain string", preview.TextBody)
	s.Assert().Empty(preview.HTMLBody)
}

func (s *PreviewerTestSuite) TestPreviewMissingMail() {
	s.conn.On("Begin", mock.Anything).Return(s.tx, nil)
	s.tx.On("Rollback").Return(nil)

	s.queueDao.
		On("FindByID", mock.Anything, s.tx, "nope").
		Return(nil, sql.ErrNoRows)

	preview, err := s.previewer.Preview(s.ctx, "nope")

	s.Assert().Error(err)
	s.Assert().Nil(preview)
}

func (s *PreviewerTestSuite) TestExportAttachments() {
	mail := s.fakeQueued("mail-1")
	mail.BodyHTML = strings.Join([]string{
		"--export-boundary",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="data.bin"`,
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8gd29ybGQ=",
		"--export-boundary--",
	}, "\n")

	s.expectLoad(mail, nil)

	filenames, err := s.previewer.ExportAttachments(s.ctx, "mail-1")

	s.Require().NoError(err)
	s.Require().Len(filenames, 1)
	s.Assert().True(strings.HasSuffix(filenames[0], "-data.bin"))

	content, err := afero.ReadFile(afero.NewOsFs(), filepath.Join(s.exportFolder, filenames[0]))
	s.Require().NoError(err)
	s.Assert().Equal("hello world", string(content))
}

func (s *PreviewerTestSuite) expectLoad(mail *models.QueuedMailEntity, entries []models.QueueLogEntity) {
	s.expectTx()

	s.queueDao.
		On("FindByID", mock.Anything, s.tx, mail.ID).
		Return(mail, nil)

	s.queueLogDao.
		On("FindByQueue", mock.Anything, s.tx, mail.ID).
		Return(entries, nil)
}
