// Package mailer renders and dispatches transactional email through SendGrid.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"time"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

const resetSubject = "Reset Your Password – Bamina Online Shopping Store"

// Config holds the SendGrid sender settings.
type Config struct {
	APIKey     string
	Sender     string
	SenderName string
}

type Client struct {
	sg         *sendgrid.Client
	sender     string
	senderName string
	resetTmpl  *template.Template
}

func New(cfg *Config) (*Client, error) {
	tmpl, err := template.New("password_reset").Parse(passwordResetTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse reset email template: %w", err)
	}

	return &Client{
		sg:         sendgrid.NewSendClient(cfg.APIKey),
		sender:     cfg.Sender,
		senderName: cfg.SenderName,
		resetTmpl:  tmpl,
	}, nil
}

// resetEmailContext is the data the reset template renders with.
type resetEmailContext struct {
	UserName    string
	ResetLink   string
	CurrentYear int
}

// SendPasswordReset renders the reset email and dispatches it. The plaintext
// part carries the bare link for clients that strip HTML.
func (c *Client) SendPasswordReset(ctx context.Context, toEmail, userName, resetLink string) error {
	htmlContent, err := c.renderReset(resetEmailContext{
		UserName:    userName,
		ResetLink:   resetLink,
		CurrentYear: time.Now().Year(),
	})
	if err != nil {
		return fmt.Errorf("failed to render reset email: %w", err)
	}

	from := mail.NewEmail(c.senderName, c.sender)
	to := mail.NewEmail(userName, toEmail)
	plainText := fmt.Sprintf("Click the link to reset your password: %s", resetLink)

	message := mail.NewSingleEmail(from, resetSubject, to, plainText, htmlContent)

	resp, err := c.sg.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("failed to send reset email: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("sendgrid rejected reset email: status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) renderReset(data resetEmailContext) (string, error) {
	var buf bytes.Buffer
	if err := c.resetTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const passwordResetTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>Reset your password</title>
</head>
<body style="margin:0;padding:0;background-color:#f4f4f5;font-family:Arial,Helvetica,sans-serif;">
  <table role="presentation" width="100%" cellpadding="0" cellspacing="0">
    <tr>
      <td align="center" style="padding:32px 16px;">
        <table role="presentation" width="480" cellpadding="0" cellspacing="0" style="background-color:#ffffff;border-radius:8px;padding:32px;">
          <tr>
            <td style="font-size:20px;font-weight:bold;color:#18181b;padding-bottom:16px;">
              Bamina
            </td>
          </tr>
          <tr>
            <td style="font-size:15px;color:#3f3f46;padding-bottom:12px;">
              Hi {{.UserName}},
            </td>
          </tr>
          <tr>
            <td style="font-size:15px;color:#3f3f46;padding-bottom:24px;">
              We received a request to reset the password for your account.
              Click the button below to choose a new one. If you didn't make
              this request you can safely ignore this email.
            </td>
          </tr>
          <tr>
            <td align="center" style="padding-bottom:24px;">
              <a href="{{.ResetLink}}" style="display:inline-block;background-color:#2563eb;color:#ffffff;text-decoration:none;font-size:15px;padding:12px 28px;border-radius:6px;">
                Reset password
              </a>
            </td>
          </tr>
          <tr>
            <td style="font-size:12px;color:#a1a1aa;">
              &copy; {{.CurrentYear}} Bamina Online Shopping Store. All rights reserved.
            </td>
          </tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`
