// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

// Package notify delivers security notification mails. Delivery is best
// effort: a failed mail is logged and never blocks the login it reports on.
package notify

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/croessner/secenh/server/config"
	"gopkg.in/gomail.v2"
)

// Message is one notification mail ready for delivery. An empty To falls
// back to the configured recipients.
type Message struct {
	To      []string
	Subject string
	Body    string
}

// Sender delivers notification messages.
type Sender interface {
	Send(ctx context.Context, message *Message) error
}

// Policy inspects a message before delivery. Returning nil vetoes the
// delivery; returning a modified message replaces it.
type Policy func(message *Message) *Message

// SMTPSender delivers messages over SMTP using the configured relay.
type SMTPSender struct {
	cfg *config.SMTPSection
}

var _ Sender = (*SMTPSender)(nil)

// NewSMTPSender returns a Sender using the given SMTP configuration.
func NewSMTPSender(cfg *config.SMTPSection) *SMTPSender {
	return &SMTPSender{cfg: cfg}
}

// Send composes and delivers one message. Implicit TLS is selected on port
// 465, STARTTLS is negotiated opportunistically otherwise.
func (s *SMTPSender) Send(ctx context.Context, message *Message) error {
	dialer := gomail.NewDialer(s.cfg.GetServer(), s.cfg.GetPort(), s.cfg.Username, s.cfg.Password)
	dialer.LocalName = s.cfg.HeloName
	dialer.SSL = s.cfg.GetPort() == 465

	msg := gomail.NewMessage()

	msg.SetHeader("Date", msg.FormatDate(time.Now()))
	msg.SetHeader("Message-ID", "<"+strconv.FormatInt(time.Now().UnixNano(), 10)+"@"+messageIDDomain(s.cfg.GetFrom())+">")
	msg.SetHeader("From", s.cfg.GetFrom())

	recipients := message.To
	if len(recipients) == 0 {
		recipients = s.cfg.GetTo()
	}

	msg.SetHeader("To", recipients...)
	msg.SetHeader("Subject", message.Subject)
	msg.SetBody("text/plain", message.Body)

	done := make(chan error, 1)

	go func() {
		done <- dialer.DialAndSend(msg)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// messageIDDomain derives the Message-ID domain from the From address.
func messageIDDomain(from string) string {
	if _, domain, found := strings.Cut(from, "@"); found {
		return strings.Trim(domain, ">")
	}

	return "localhost"
}

// NewDeviceMessage builds the mail sent when a user logs in from a device
// that was never seen before.
func NewDeviceMessage(site, username, ip, userAgent string, geoLines []string, when time.Time) *Message {
	var body strings.Builder

	fmt.Fprintf(&body, "The account %q on %s was just used to sign in from a device we have not seen before.\r\n\r\n", username, site)
	fmt.Fprintf(&body, "Time: %s\r\n", when.Format(time.RFC1123Z))
	fmt.Fprintf(&body, "IP address: %s\r\n", ip)
	fmt.Fprintf(&body, "User-Agent: %s\r\n", userAgent)

	appendGeoLines(&body, geoLines)

	body.WriteString("\r\nIf this was you, no action is needed. If not, change the password immediately.\r\n")

	return &Message{
		Subject: fmt.Sprintf("Sign-in from a new device: %s", username),
		Body:    body.String(),
	}
}

// NewLocationMessage builds the mail sent when a user logs in from a
// location that does not match any known one.
func NewLocationMessage(site, username, ip string, geoLines []string, when time.Time) *Message {
	var body strings.Builder

	fmt.Fprintf(&body, "The account %q on %s was just used to sign in from a new location.\r\n\r\n", username, site)
	fmt.Fprintf(&body, "Time: %s\r\n", when.Format(time.RFC1123Z))
	fmt.Fprintf(&body, "IP address: %s\r\n", ip)

	appendGeoLines(&body, geoLines)

	body.WriteString("\r\nIf this was you, no action is needed. If not, change the password immediately.\r\n")

	return &Message{
		Subject: fmt.Sprintf("Sign-in from a new location: %s", username),
		Body:    body.String(),
	}
}

func appendGeoLines(body *strings.Builder, geoLines []string) {
	if len(geoLines) == 0 {
		return
	}

	body.WriteString("\r\nLocation details:\r\n")

	for _, line := range geoLines {
		body.WriteString("  " + line + "\r\n")
	}
}
