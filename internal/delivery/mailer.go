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
	"crypto/tls"
	"net/textproto"

	"github.com/spf13/viper"
	gomail "gopkg.in/gomail.v2"

	"github.com/lukasdietrich/spoolmail/internal/log"
)

func init() {
	viper.SetDefault("mailer.host", "localhost")
	viper.SetDefault("mailer.port", 25)
	viper.SetDefault("mailer.username", "")
	viper.SetDefault("mailer.password", "")
	viper.SetDefault("mailer.from", "spoolmail@localhost")
	viper.SetDefault("mailer.timeout", "30s")
}

// Body is the content of an outbound mail. Either part may be empty.
type Body struct {
	Text string
	HTML string
}

// Mailer hands a mail over to the smtp transport. A failure is signaled
// either by a false result or a non-nil error, both are equivalent.
type Mailer interface {
	Send(ctx context.Context, recipient string, headers map[string]string, body Body) (bool, error)
}

type smtpMailer struct {
	dialer *gomail.Dialer
}

// NewMailer creates a Mailer backed by an smtp relay using the configuration from viper.
//
// `mailer.host` and `mailer.port` locate the relay.
// `mailer.username` and `mailer.password` are optional credentials.
// `mailer.from` is the sender used when a mail carries no from header.
// `mailer.timeout` bounds a single delivery attempt.
func NewMailer() Mailer {
	host := viper.GetString("mailer.host")

	dialer := gomail.NewDialer(
		host,
		viper.GetInt("mailer.port"),
		viper.GetString("mailer.username"),
		viper.GetString("mailer.password"))

	dialer.TLSConfig = &tls.Config{
		ServerName: host,
	}

	return &smtpMailer{dialer: dialer}
}

func (m *smtpMailer) Send(
	ctx context.Context,
	recipient string,
	headers map[string]string,
	body Body,
) (bool, error) {
	message := newMessage(recipient, headers, body)

	ctx, cancel := context.WithTimeout(ctx, viper.GetDuration("mailer.timeout"))
	defer cancel()

	errc := make(chan error, 1)

	go func() {
		errc <- m.dialer.DialAndSend(message)
	}()

	select {
	case <-ctx.Done():
		log.WarnContext(ctx).
			Err(ctx.Err()).
			Msg("delivery attempt timed out")

		return false, ctx.Err()

	case err := <-errc:
		if err != nil {
			return false, err
		}

		return true, nil
	}
}

// newMessage assembles the wire message. Header names are stored lowercase
// and canonicalized here, because the relay may be picky about casing.
func newMessage(recipient string, headers map[string]string, body Body) *gomail.Message {
	message := gomail.NewMessage()
	message.SetHeader("To", recipient)

	var hasFrom bool

	for name, value := range headers {
		if value == "" {
			continue
		}

		name = textproto.CanonicalMIMEHeaderKey(name)
		if name == "From" {
			hasFrom = true
		}

		message.SetHeader(name, value)
	}

	if !hasFrom {
		message.SetHeader("From", viper.GetString("mailer.from"))
	}

	switch {
	case body.Text != "" && body.HTML != "":
		message.SetBody("text/plain", body.Text)
		message.AddAlternative("text/html", body.HTML)

	case body.HTML != "":
		message.SetBody("text/html", body.HTML)

	default:
		message.SetBody("text/plain", body.Text)
	}

	return message
}
