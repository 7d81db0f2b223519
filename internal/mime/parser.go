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

// Package mime decomposes raw email bodies into text, html and attachment
// parts. It is a recovery scanner for real-world, frequently malformed mail
// rather than a general MIME implementation: boundaries are discovered by
// scanning the whole blob, declared-but-unused boundaries are ignored and
// any anomaly degrades to a plain text part instead of an error.
package mime

import (
	"encoding/base64"
	"io/ioutil"
	"mime/quotedprintable"
	"regexp"
	"sort"
	"strings"
)

// maxDepth caps the nesting recursion to guard against adversarial input.
const maxDepth = 20

// PartKind classifies a content leaf.
type PartKind string

const (
	KindText       = PartKind("text")
	KindHTML       = PartKind("html")
	KindAttachment = PartKind("attachment")
)

// Part is one terminal (non-multipart) piece of a parsed body.
type Part struct {
	// Headers holds the part headers with lower-cased names.
	Headers map[string]string
	// Content is the transfer-decoded content.
	Content string
	// Encoding is the content-transfer-encoding that was applied, if any.
	Encoding string
	// Charset is the declared charset, utf-8 if absent.
	Charset string
	// Size is the decoded content length in bytes.
	Size int
	// Depth is the nesting depth the part was found at, root being 0.
	Depth int
	// Filename is set for attachments only.
	Filename string
	// MimeType is the declared content-type without parameters, set for
	// attachments only.
	MimeType string
}

// TraceEntry records one classified part in discovery order.
type TraceEntry struct {
	Depth       int
	Kind        PartKind
	ContentType string
	Size        int
}

// Tree is the result of parsing one raw body. It is ephemeral and never
// persisted, only the extracted text and html strings are written back.
type Tree struct {
	// Boundaries are the boundary tokens that survived filtering, longest
	// first. Kept for diagnostics.
	Boundaries []string
	// Texts, HTMLs and Attachments are the classified leaves.
	Texts       []Part
	HTMLs       []Part
	Attachments []Part
	// Trace is a flat pre-order record of every classified leaf.
	Trace []TraceEntry
}

// FirstText returns the content of the first text leaf or an empty string.
func (t *Tree) FirstText() string {
	if len(t.Texts) == 0 {
		return ""
	}

	return t.Texts[0].Content
}

// FirstHTML returns the content of the first html leaf or an empty string.
func (t *Tree) FirstHTML() string {
	if len(t.HTMLs) == 0 {
		return ""
	}

	return t.HTMLs[0].Content
}

var (
	// declaredBoundaryPattern finds boundary parameters in content-type
	// header text anywhere in the blob.
	declaredBoundaryPattern = regexp.MustCompile(`(?i)boundary\s*=\s*"?([^"\s;,]+)"?`)

	// usedBoundaryPattern finds lines that look like mime delimiters.
	usedBoundaryPattern = regexp.MustCompile(`(?m)^--([0-9A-Za-z'()+_,\-./:=? ]*[0-9A-Za-z'()+_,\-./:=?])`)

	charsetPattern  = regexp.MustCompile(`(?i)charset\s*=\s*"?([^";\s]+)"?`)
	filenamePattern = regexp.MustCompile(`(?i)filename\*?\s*=\s*"?([^";\r\n]+)"?`)
	namePattern     = regexp.MustCompile(`(?i)\bname\s*=\s*"?([^";\r\n]+)"?`)
)

const fallbackFilename = "unknown_attachment"

// Parse decomposes a raw body into a Tree. It never fails. A body without
// any usable boundary collapses to a single text leaf containing the whole
// input.
func Parse(raw string) *Tree {
	tree := &Tree{
		Boundaries: discoverBoundaries(raw),
	}

	if len(tree.Boundaries) == 0 {
		tree.classify(rawPart{
			headers: map[string]string{},
			content: raw,
			decoded: raw,
		}, 0)

		return tree
	}

	tree.split(raw, primaryBoundary(tree.Boundaries), 0)
	return tree
}

// discoverBoundaries scans the blob with both patterns and keeps only tokens
// that also appear literally as a "--token" delimiter somewhere. The result
// is deduplicated and ordered longest first, because a short token may be a
// textual prefix of a longer one and splitting must prefer the most specific
// match.
func discoverBoundaries(raw string) []string {
	seen := make(map[string]bool)

	for _, match := range declaredBoundaryPattern.FindAllStringSubmatch(raw, -1) {
		seen[match[1]] = true
	}

	for _, match := range usedBoundaryPattern.FindAllStringSubmatch(raw, -1) {
		token := strings.TrimSuffix(match[1], "--")
		if token != "" {
			seen[token] = true
		}
	}

	var tokens []string

	for token := range seen {
		if strings.Contains(raw, "--"+token) {
			tokens = append(tokens, token)
		}
	}

	sort.Slice(tokens, func(i, j int) bool {
		if len(tokens[i]) != len(tokens[j]) {
			return len(tokens[i]) > len(tokens[j])
		}

		return tokens[i] < tokens[j]
	})

	return tokens
}

// primaryBoundary picks the token to split the top level on. With four or
// more candidates the longest wins. Below that, the longest candidate tends
// to be the outermost content-type boundary picked up twice, so the second
// one is used instead. This is preserved source behavior, not a general
// rule, and can mis-split unusual nestings.
func primaryBoundary(tokens []string) string {
	if len(tokens) >= 4 || len(tokens) == 1 {
		return tokens[0]
	}

	return tokens[1]
}

// split cuts content on a boundary token and classifies each segment,
// descending into nested multiparts.
func (t *Tree) split(content, boundary string, depth int) {
	for _, segment := range strings.Split(content, "--"+boundary) {
		trimmed := strings.TrimSpace(segment)
		if trimmed == "" || trimmed == "--" {
			continue
		}

		part := parseRawPart(segment)

		if nested, ok := t.nestedBoundary(part, boundary); ok && depth < maxDepth {
			t.split(part.content, nested, depth+1)
			continue
		}

		t.classify(part, depth)
	}
}

// nestedBoundary reports the embedded boundary of a multipart part, provided
// it is one of the globally discovered tokens and not the one currently
// being split on.
func (t *Tree) nestedBoundary(part rawPart, current string) (string, bool) {
	if !strings.Contains(part.contentType, "multipart/") {
		return "", false
	}

	match := declaredBoundaryPattern.FindStringSubmatch(part.contentType)
	if match == nil {
		return "", false
	}

	nested := match[1]
	if nested == current {
		return "", false
	}

	for _, token := range t.Boundaries {
		if token == nested {
			return nested, true
		}
	}

	return "", false
}

// rawPart is one segment after header splitting, before classification.
type rawPart struct {
	headers     map[string]string
	contentType string
	disposition string
	encoding    string
	content     string
	decoded     string
}

// parseRawPart splits a segment into a header block and a content block at
// the first blank line and transfer-decodes the content. A segment without
// a blank line separator is all content.
func parseRawPart(segment string) rawPart {
	headerBlock, contentBlock := splitHeaderBlock(segment)

	part := rawPart{
		headers: parseHeaderBlock(headerBlock),
		content: contentBlock,
	}

	part.contentType = part.headers["content-type"]
	part.disposition = part.headers["content-disposition"]
	part.encoding = strings.ToLower(strings.TrimSpace(part.headers["content-transfer-encoding"]))
	part.decoded = decodeContent(part.content, part.encoding)

	return part
}

func splitHeaderBlock(segment string) (string, string) {
	segment = strings.TrimLeft(segment, "\r\n")

	separator := strings.Index(segment, "\r\n\r\n")
	width := 4

	if lf := strings.Index(segment, "\n\n"); lf >= 0 && (separator < 0 || lf < separator) {
		separator = lf
		width = 2
	}

	if separator < 0 {
		return "", segment
	}

	if !looksLikeHeaderBlock(segment[:separator]) {
		return "", segment
	}

	return segment[:separator], segment[separator+width:]
}

// looksLikeHeaderBlock guards against eating content that merely contains an
// early blank line. The first line of a header block must contain a colon.
func looksLikeHeaderBlock(block string) bool {
	line := block
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}

	return strings.Contains(line, ":")
}

func parseHeaderBlock(block string) map[string]string {
	headers := make(map[string]string)

	var lastName string

	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimRight(line, "\r")
		if line == "" {
			continue
		}

		// continuation lines extend the previous header value
		if line[0] == ' ' || line[0] == '\t' {
			if lastName != "" {
				headers[lastName] += " " + strings.TrimSpace(line)
			}

			continue
		}

		colon := strings.IndexByte(line, ':')
		if colon < 0 {
			continue
		}

		lastName = strings.ToLower(strings.TrimSpace(line[:colon]))
		headers[lastName] = strings.TrimSpace(line[colon+1:])
	}

	return headers
}

// decodeContent applies the content-transfer-encoding. Anything that cannot
// be decoded passes through unchanged.
func decodeContent(content, encoding string) string {
	switch encoding {
	case "base64":
		stripped := strings.Map(dropSpace, content)

		decoded, err := base64.StdEncoding.DecodeString(stripped)
		if err != nil {
			if decoded, err = base64.RawStdEncoding.DecodeString(stripped); err != nil {
				return content
			}
		}

		return string(decoded)

	case "quoted-printable":
		decoded, err := ioutil.ReadAll(quotedprintable.NewReader(strings.NewReader(content)))
		if err != nil {
			return content
		}

		return string(decoded)

	default:
		return content
	}
}

func dropSpace(r rune) rune {
	if r == ' ' || r == '\t' || r == '\r' || r == '\n' {
		return -1
	}

	return r
}

// classify turns a raw part into a leaf and records it. The decision order
// is disposition, then declared content-type, with unknown non-text types
// treated as nameless attachments and everything else as text.
func (t *Tree) classify(part rawPart, depth int) {
	leaf := Part{
		Headers:  part.headers,
		Content:  part.decoded,
		Encoding: part.encoding,
		Charset:  extractCharset(part.contentType),
		Size:     len(part.decoded),
		Depth:    depth,
	}

	switch {
	case strings.Contains(strings.ToLower(part.disposition), "attachment"):
		leaf.Filename = extractFilename(part.disposition, part.contentType)
		leaf.MimeType = stripParameters(part.contentType)
		t.appendLeaf(leaf, KindAttachment, part.contentType)

	case strings.Contains(part.contentType, "text/html"):
		t.appendLeaf(leaf, KindHTML, part.contentType)

	case strings.Contains(part.contentType, "text/plain"):
		t.appendLeaf(leaf, KindText, part.contentType)

	case part.contentType != "" && !strings.Contains(part.contentType, "multipart/"):
		// unknown binary types without an explicit disposition
		leaf.Filename = fallbackFilename
		leaf.MimeType = stripParameters(part.contentType)
		t.appendLeaf(leaf, KindAttachment, part.contentType)

	default:
		t.appendLeaf(leaf, KindText, part.contentType)
	}
}

func (t *Tree) appendLeaf(leaf Part, kind PartKind, contentType string) {
	switch kind {
	case KindAttachment:
		t.Attachments = append(t.Attachments, leaf)
	case KindHTML:
		t.HTMLs = append(t.HTMLs, leaf)
	default:
		t.Texts = append(t.Texts, leaf)
	}

	t.Trace = append(t.Trace, TraceEntry{
		Depth:       leaf.Depth,
		Kind:        kind,
		ContentType: contentType,
		Size:        leaf.Size,
	})
}

func extractCharset(contentType string) string {
	if match := charsetPattern.FindStringSubmatch(contentType); match != nil {
		return strings.Trim(match[1], `"'`)
	}

	return "utf-8"
}

func extractFilename(disposition, contentType string) string {
	if match := filenamePattern.FindStringSubmatch(disposition); match != nil {
		return strings.Trim(match[1], `"'`)
	}

	if match := namePattern.FindStringSubmatch(contentType); match != nil {
		return strings.Trim(match[1], `"'`)
	}

	return fallbackFilename
}

func stripParameters(contentType string) string {
	if semicolon := strings.IndexByte(contentType, ';'); semicolon >= 0 {
		contentType = contentType[:semicolon]
	}

	return strings.TrimSpace(contentType)
}
