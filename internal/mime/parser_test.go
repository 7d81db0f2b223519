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

package mime

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSimpleBody(t *testing.T) {
	const raw = "Hello"

	tree := Parse(raw)
	require.NotNil(t, tree)

	assert.Empty(t, tree.Boundaries)
	assert.Empty(t, tree.HTMLs)
	assert.Empty(t, tree.Attachments)

	require.Len(t, tree.Texts, 1)
	leaf := tree.Texts[0]

	assert.Equal(t, raw, leaf.Content)
	assert.Equal(t, len(raw), leaf.Size)
	assert.Equal(t, "utf-8", leaf.Charset)
	assert.Empty(t, leaf.Headers)
	assert.Empty(t, leaf.Encoding)

	assert.Equal(t, []TraceEntry{
		{Depth: 0, Kind: KindText, ContentType: "", Size: len(raw)},
	}, tree.Trace)
}

func TestParseDeclaredButUnusedBoundary(t *testing.T) {
	raw := strings.Join([]string{
		`Content-Type: multipart/mixed; boundary="ghost"`,
		"",
		"no delimiter lines in here",
	}, "\n")

	tree := Parse(raw)

	assert.Empty(t, tree.Boundaries)
	require.Len(t, tree.Texts, 1)
	assert.Equal(t, raw, tree.Texts[0].Content)
}

func TestParseNestedMultipart(t *testing.T) {
	raw := strings.Join([]string{
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner-alternative-boundary"`,
		"",
		"--inner-alternative-boundary",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"hello plain",
		"--inner-alternative-boundary",
		"Content-Type: text/html",
		"",
		"<p>hello html</p>",
		"--inner-alternative-boundary--",
		"--outer",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="report.pdf"`,
		"",
		"PDFDATA",
		"--outer",
		`Content-Type: image/png; name="logo.png"`,
		"Content-Disposition: attachment",
		"",
		"PNGDATA",
		"--outer--",
		"",
	}, "\n")

	tree := Parse(raw)

	assert.Equal(t, []string{"inner-alternative-boundary", "outer"}, tree.Boundaries)

	require.Len(t, tree.Texts, 1)
	assert.Equal(t, "hello plain\n", tree.Texts[0].Content)
	assert.Equal(t, 1, tree.Texts[0].Depth)

	require.Len(t, tree.HTMLs, 1)
	assert.Equal(t, "<p>hello html</p>\n", tree.HTMLs[0].Content)
	assert.Equal(t, 1, tree.HTMLs[0].Depth)

	require.Len(t, tree.Attachments, 2)

	assert.Equal(t, "report.pdf", tree.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", tree.Attachments[0].MimeType)
	assert.Equal(t, 0, tree.Attachments[0].Depth)

	assert.Equal(t, "logo.png", tree.Attachments[1].Filename)
	assert.Equal(t, "image/png", tree.Attachments[1].MimeType)
	assert.Equal(t, 0, tree.Attachments[1].Depth)

	require.Len(t, tree.Trace, 4)
	assert.Equal(t, KindText, tree.Trace[0].Kind)
	assert.Equal(t, KindHTML, tree.Trace[1].Kind)
	assert.Equal(t, KindAttachment, tree.Trace[2].Kind)
	assert.Equal(t, KindAttachment, tree.Trace[3].Kind)
}

func TestParseBase64Attachment(t *testing.T) {
	raw := strings.Join([]string{
		"--att-boundary",
		"Content-Type: text/plain",
		"",
		"body text",
		"--att-boundary",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="data.bin"`,
		"Content-Transfer-Encoding: base64",
		"",
		"aGVsbG8gd29ybGQ=",
		"--att-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Attachments, 1)
	attachment := tree.Attachments[0]

	assert.Equal(t, "hello world", attachment.Content)
	assert.Equal(t, len("hello world"), attachment.Size)
	assert.Equal(t, "base64", attachment.Encoding)
	assert.Equal(t, "data.bin", attachment.Filename)
}

func TestParseQuotedPrintable(t *testing.T) {
	raw := strings.Join([]string{
		"--qp-boundary",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Hello=20World",
		"--qp-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Texts, 1)
	assert.Equal(t, "Hello World\n", tree.Texts[0].Content)
	assert.Equal(t, "iso-8859-1", tree.Texts[0].Charset)
}

func TestParseUnknownTypeBecomesAttachment(t *testing.T) {
	raw := strings.Join([]string{
		"--some-boundary",
		"Content-Type: application/x-foo",
		"",
		"BINARY",
		"--some-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Attachments, 1)
	assert.Equal(t, "unknown_attachment", tree.Attachments[0].Filename)
	assert.Equal(t, "application/x-foo", tree.Attachments[0].MimeType)
}

func TestParseSegmentWithoutHeaders(t *testing.T) {
	raw := strings.Join([]string{
		"--bare-boundary",
		"just content, no header block",
		"--bare-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Texts, 1)
	assert.Equal(t, "just content, no header block\n", tree.Texts[0].Content)
	assert.Empty(t, tree.Texts[0].Headers)
}

func TestParseHeaderContinuation(t *testing.T) {
	raw := strings.Join([]string{
		"--cont-boundary",
		"Content-Type: application/pdf;",
		`	name="split.pdf"`,
		"Content-Disposition: attachment;",
		`	filename="split.pdf"`,
		"",
		"DATA",
		"--cont-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Attachments, 1)
	assert.Equal(t, "split.pdf", tree.Attachments[0].Filename)
}

func TestParseInvalidBase64PassesThrough(t *testing.T) {
	raw := strings.Join([]string{
		"--b64-boundary",
		"Content-Type: text/plain",
		"Content-Transfer-Encoding: base64",
		"",
		"!!! not base64 !!!",
		"--b64-boundary--",
	}, "\n")

	tree := Parse(raw)

	require.Len(t, tree.Texts, 1)
	assert.Equal(t, "!!! not base64 !!!\n", tree.Texts[0].Content)
}

func TestParseDepthCap(t *testing.T) {
	const levels = 30

	var builder strings.Builder

	for i := 0; i < levels; i++ {
		fmt.Fprintf(&builder, "--b%02d\n", i)
		fmt.Fprintf(&builder, "Content-Type: multipart/mixed; boundary=\"b%02d\"\n\n", i+1)
	}

	fmt.Fprintf(&builder, "--b%02d\nContent-Type: text/plain\n\ndeep\n--b%02d--\n", levels, levels)

	for i := levels - 1; i >= 0; i-- {
		fmt.Fprintf(&builder, "--b%02d--\n", i)
	}

	tree := Parse(builder.String())
	require.NotNil(t, tree)

	// must terminate and still produce leaves below the cap
	assert.NotEmpty(t, tree.Trace)
}

func TestDiscoverBoundariesLongestFirst(t *testing.T) {
	raw := strings.Join([]string{
		`boundary="aa"`,
		`boundary="ccc"`,
		`boundary="b"`,
		"--aa",
		"--ccc",
		"--b",
	}, "\n")

	assert.Equal(t, []string{"ccc", "aa", "b"}, discoverBoundaries(raw))
}

func TestPrimaryBoundary(t *testing.T) {
	assert.Equal(t, "dddd", primaryBoundary([]string{"dddd", "ccc", "bb", "a"}))
	assert.Equal(t, "bb", primaryBoundary([]string{"ccc", "bb"}))
	assert.Equal(t, "only", primaryBoundary([]string{"only"}))
}

func TestFirstTextAndHTML(t *testing.T) {
	tree := Parse("plain only")

	assert.Equal(t, "plain only", tree.FirstText())
	assert.Empty(t, tree.FirstHTML())
}
