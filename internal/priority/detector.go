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

// Package priority infers a delivery priority for queued mails that were
// submitted without an explicit one.
//
// Signals are ranked. Marker and standard headers are authoritative and
// decide the priority outright. Subject, address and body rules only apply
// when they are more urgent than anything determined before.
package priority

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/lukasdietrich/spoolmail/internal/models"
)

// Email is the subset of a submission relevant for priority detection.
type Email struct {
	Subject     string
	Headers     map[string]string
	FromAddress string
	ToAddress   string
	TextBody    string
	HTMLBody    string
}

// Detector assigns a priority between models.PriorityUrgent and
// models.PriorityBulk to a mail. It never fails. A mail without any
// recognisable signal is models.PriorityNormal.
type Detector interface {
	Detect(email Email) int
}

// NewDetector creates a rule based Detector.
func NewDetector() Detector {
	return &detector{}
}

type headerRule struct {
	name     *regexp.Regexp
	priority int
}

type patternRule struct {
	pattern  *regexp.Regexp
	priority int
}

var markerHeaderRules = []headerRule{
	{regexp.MustCompile(`^x-.+-bounce$`), models.PriorityBulk},
	{regexp.MustCompile(`^x-.+-system$`), models.PriorityUrgent},
	{regexp.MustCompile(`^x-.+-scheduler$`), models.PriorityHigh},
	{regexp.MustCompile(`^x-.+-transactional$`), models.PriorityHigh},
	{regexp.MustCompile(`^x-.+-(newsletter|mass)$`), models.PriorityLow},
	{regexp.MustCompile(`^(list-id|mailing-list|x-mailing-id)$`), models.PriorityLow},
	{regexp.MustCompile(`^(x-.+-auto|auto-submitted)$`), models.PriorityBulk},
}

var subjectRules = []patternRule{
	{
		regexp.MustCompile(`(?i)urgent|emergency|critical|asap` +
			`|bounce|undeliverab|mailer-daemon` +
			`|system (down|error)` +
			`|account (suspended|compromised)` +
			`|security alert`),
		models.PriorityUrgent,
	},
	{
		regexp.MustCompile(`(?i)important|priority|time-sensitive` +
			`|confirmation|receipt|invoice|payment` +
			`|activation|verification|password reset` +
			`|registration|welcome|reminder|deadline` +
			`|alert|notification`),
		models.PriorityHigh,
	},
	{
		regexp.MustCompile(`(?i)newsletter|digest` +
			`|marketing|promotion|sale` +
			`|announcement|survey|feedback|social`),
		models.PriorityLow,
	},
	{
		regexp.MustCompile(`(?i)unsubscribe|bulk|mass|broadcast` +
			`|automated|noreply|mailing list`),
		models.PriorityBulk,
	},
}

var addressRules = []patternRule{
	{regexp.MustCompile(`daemon|postmaster|bounce|no-?reply`), models.PriorityUrgent},
	{regexp.MustCompile(`security|admin|support`), models.PriorityHigh},
	{regexp.MustCompile(`marketing|newsletter|promo`), models.PriorityLow},
	{regexp.MustCompile(`auto|bot|robot`), models.PriorityBulk},
}

var bodyRules = []patternRule{
	{
		regexp.MustCompile(`(?i)account (is )?suspended` +
			`|payment (has )?failed` +
			`|security breach` +
			`|system outage`),
		models.PriorityUrgent,
	},
	{
		regexp.MustCompile(`(?i)order confirm` +
			`|payment received` +
			`|account activated`),
		models.PriorityHigh,
	},
}

type detector struct{}

func (d *detector) Detect(email Email) int {
	if priority, ok := d.detectMarkerHeaders(email); ok {
		return clamp(priority)
	}

	if priority, ok := d.detectStandardHeaders(email); ok {
		return clamp(priority)
	}

	var (
		priority = models.PriorityNormal
		matched  = false
	)

	escalate := func(candidate int, ok bool) {
		if ok && (!matched || candidate < priority) {
			priority = candidate
			matched = true
		}
	}

	escalate(d.detectSubject(email))
	escalate(d.detectAddresses(email))
	escalate(d.detectBody(email))

	return clamp(priority)
}

func (d *detector) detectMarkerHeaders(email Email) (int, bool) {
	for _, rule := range markerHeaderRules {
		for name := range email.Headers {
			if rule.name.MatchString(strings.ToLower(name)) {
				return rule.priority, true
			}
		}
	}

	return 0, false
}

func (d *detector) detectStandardHeaders(email Email) (int, bool) {
	if value, ok := lookupHeader(email.Headers, "x-priority"); ok {
		if priority, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			if priority >= models.PriorityUrgent && priority <= models.PriorityBulk {
				return priority, true
			}
		}
	}

	if value, ok := lookupHeader(email.Headers, "importance"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "high":
			return models.PriorityHigh, true
		case "low":
			return models.PriorityLow, true
		default:
			return models.PriorityNormal, true
		}
	}

	if value, ok := lookupHeader(email.Headers, "priority"); ok {
		switch strings.ToLower(strings.TrimSpace(value)) {
		case "urgent":
			return models.PriorityUrgent, true
		case "high":
			return models.PriorityHigh, true
		case "low":
			return models.PriorityLow, true
		default:
			return models.PriorityNormal, true
		}
	}

	if value, ok := lookupHeader(email.Headers, "message-id"); ok {
		value = strings.ToLower(value)
		if strings.Contains(value, "bounce") || strings.Contains(value, "error") {
			return models.PriorityUrgent, true
		}
	}

	return 0, false
}

func (d *detector) detectSubject(email Email) (int, bool) {
	for _, rule := range subjectRules {
		if rule.pattern.MatchString(email.Subject) {
			return rule.priority, true
		}
	}

	return 0, false
}

func (d *detector) detectAddresses(email Email) (int, bool) {
	var locals []string

	for _, address := range []string{email.FromAddress, email.ToAddress} {
		if local := localPart(address); local != "" {
			locals = append(locals, local)
		}
	}

	for _, rule := range addressRules {
		for _, local := range locals {
			if rule.pattern.MatchString(local) {
				return rule.priority, true
			}
		}
	}

	return 0, false
}

func (d *detector) detectBody(email Email) (int, bool) {
	body := email.TextBody + "\n" + email.HTMLBody

	for _, rule := range bodyRules {
		if rule.pattern.MatchString(body) {
			return rule.priority, true
		}
	}

	return 0, false
}

func lookupHeader(headers map[string]string, name string) (string, bool) {
	for key, value := range headers {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}

	return "", false
}

func localPart(address string) string {
	at := strings.IndexByte(address, '@')
	if at < 0 {
		return ""
	}

	return strings.ToLower(address[:at])
}

func clamp(priority int) int {
	switch {
	case priority < models.PriorityUrgent:
		return models.PriorityUrgent
	case priority > models.PriorityBulk:
		return models.PriorityBulk
	default:
		return priority
	}
}
