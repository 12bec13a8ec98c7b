// Package mail sends the password reset message over SMTP.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"github.com/dmitrijs2005/drivelink/internal/logging"
)

// Sender delivers account emails.
type Sender interface {
	SendPasswordReset(ctx context.Context, to, username, resetLink string) error
}

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// sendMail is a seam for tests.
var sendMail = smtp.SendMail

// Client sends mail through an SMTP relay using STARTTLS when offered.
type Client struct {
	config Config
	logger logging.Logger
}

func NewClient(config Config, logger logging.Logger) *Client {
	return &Client{config: config, logger: logger}
}

var resetTemplate = template.Must(template.New("password_reset").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Hello, {{.Username}}!</p>
<p>We received a request to reset the password of your account. If it was not you, ignore this message.</p>
<p><a href="{{.ResetLink}}">Reset password</a></p>
<p>The link is valid for one hour.</p>
</body>
</html>
`))

func (c *Client) message(to, subject, body string) []byte {
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", c.config.From)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	fmt.Fprintf(&msg, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	msg.WriteString("\r\n")
	msg.WriteString(body)
	return msg.Bytes()
}

// Send delivers an HTML message to a single recipient.
func (c *Client) Send(ctx context.Context, to, subject, body string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context error: %w", err)
	}

	var auth smtp.Auth
	if c.config.Username != "" {
		auth = smtp.PlainAuth("", c.config.Username, c.config.Password, c.config.Host)
	}

	addr := net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
	if err := sendMail(addr, auth, c.config.From, []string{to}, c.message(to, subject, body)); err != nil {
		return fmt.Errorf("failed to send mail: %w", err)
	}

	c.logger.Info(ctx, "email sent", "to", to, "subject", subject)
	return nil
}

func (c *Client) SendPasswordReset(ctx context.Context, to, username, resetLink string) error {
	var body bytes.Buffer
	data := struct {
		Username  string
		ResetLink string
	}{username, resetLink}
	if err := resetTemplate.Execute(&body, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return c.Send(ctx, to, "Password reset", body.String())
}

// LogSender only logs the reset link. It is used when no SMTP host is configured.
type LogSender struct {
	Logger logging.Logger
}

func (s LogSender) SendPasswordReset(ctx context.Context, to, username, resetLink string) error {
	s.Logger.Warn(ctx, "smtp not configured, reset link not mailed", "to", to, "username", username)
	s.Logger.Debug(ctx, "reset link", "link", resetLink)
	return nil
}
