package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net"
	"net/smtp"
	"strings"

	"questions/internal/config"
)

// Notification is one rendered event for one recipient
type Notification struct {
	RecipientName string
	EventName     string
	QuestionTitle string
	QuestionPath  string
	// Affected is true for coauthors, false for followers
	Affected bool
	Extra    map[string]any
}

// EmailTemplate represents an email template
type EmailTemplate struct {
	Subject string
	Body    *template.Template
}

const layout = `
<!DOCTYPE html>
<html>
<head>
    <meta charset="UTF-8">
    <title>{{.Subject}}</title>
</head>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
    <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
        <h2 style="color: #4a90e2;">{{.Subject}}</h2>
        <p>Hello {{.RecipientName}},</p>
        {{template "content" .}}
        <div style="text-align: center; margin: 30px 0;">
            <a href="{{.URL}}" style="background-color: #4a90e2; color: white; padding: 12px 30px; text-decoration: none; border-radius: 5px; display: inline-block;">Open question</a>
        </div>
        <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
        <p style="color: #999; font-size: 12px;">You receive this email because you {{if .Affected}}are an author of{{else}}follow{{end}} this question. This is an automated email. Please do not reply.</p>
    </div>
</body>
</html>
`

var templates = map[string]struct {
	subject string
	content string
}{
	"questions.question_accepted": {
		subject: "A question has been accepted",
		content: `<p>The question <strong>{{.QuestionTitle}}</strong> has been accepted.</p>`,
	},
	"questions.question_rejected": {
		subject: "A question has been rejected",
		content: `<p>The question <strong>{{.QuestionTitle}}</strong> has been rejected.</p>`,
	},
	"questions.question_evaluating": {
		subject: "A question is being evaluated",
		content: `<p>The question <strong>{{.QuestionTitle}}</strong> is being evaluated.</p>`,
	},
	"questions.question_update_scope": {
		subject: "The scope of your question has changed",
		content: `<p>An admin changed the scope of <strong>{{.QuestionTitle}}</strong>{{with index .Extra "scope_name"}} to <strong>{{.}}</strong>{{end}}.</p>`,
	},
	"questions.question_update_category": {
		subject: "The category of your question has changed",
		content: `<p>An admin changed the category of <strong>{{.QuestionTitle}}</strong>{{with index .Extra "category_name"}} to <strong>{{.}}</strong>{{end}}.</p>`,
	},
	"questions.admin.question_note_created": {
		subject: "A private note has been added",
		content: `<p>Someone left a private note on <strong>{{.QuestionTitle}}</strong>.</p>`,
	},
	"questions.question_published": {
		subject: "New question published",
		content: `<p>The question <strong>{{.QuestionTitle}}</strong> has been published.</p>`,
	},
}

var parsed = func() map[string]EmailTemplate {
	result := make(map[string]EmailTemplate, len(templates))
	for name, t := range templates {
		body := template.Must(template.New(name).Parse(layout))
		template.Must(body.New("content").Parse(t.content))
		result[name] = EmailTemplate{Subject: t.subject, Body: body}
	}
	return result
}()

// Render builds the subject and HTML body of a notification
func Render(baseURL string, n Notification) (string, string, error) {
	tmpl, ok := parsed[n.EventName]
	if !ok {
		return "", "", fmt.Errorf("no email template for event %s", n.EventName)
	}

	data := struct {
		Notification
		Subject string
		URL     string
	}{
		Notification: n,
		Subject:      tmpl.Subject,
		URL:          strings.TrimRight(baseURL, "/") + n.QuestionPath,
	}

	var body bytes.Buffer
	if err := tmpl.Body.Execute(&body, data); err != nil {
		return "", "", fmt.Errorf("failed to render %s: %w", n.EventName, err)
	}

	return tmpl.Subject, body.String(), nil
}

// Service handles email operations
type Service struct {
	config *config.EmailConfig
}

// NewService creates a new email service
func NewService(cfg *config.EmailConfig) *Service {
	return &Service{
		config: cfg,
	}
}

// SendNotification renders and sends one event notification
func (s *Service) SendNotification(ctx context.Context, to string, n Notification) error {
	subject, body, err := Render(s.config.BaseURL, n)
	if err != nil {
		return err
	}
	return s.sendEmail(ctx, to, subject, body)
}

// sendEmail sends an email using SMTP
func (s *Service) sendEmail(ctx context.Context, to, subject, body string) error {
	// Create the email message
	headers := [][2]string{
		{"From", s.config.SMTPFrom},
		{"To", to},
		{"Subject", subject},
		{"MIME-Version", "1.0"},
		{"Content-Type", "text/html; charset=UTF-8"},
	}

	// Build the message
	var message bytes.Buffer
	for _, h := range headers {
		fmt.Fprintf(&message, "%s: %s\r\n", h[0], h[1])
	}
	message.WriteString("\r\n")
	message.WriteString(body)

	// Connect to SMTP server
	addr := net.JoinHostPort(s.config.SMTPHost, s.config.SMTPPort)
	slog.Debug("Attempting to connect to SMTP server",
		"address", addr,
		"host", s.config.SMTPHost,
		"port", s.config.SMTPPort,
	)

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		slog.Error("Failed to connect to SMTP server",
			"address", addr,
			"error", err,
		)
		return fmt.Errorf("failed to connect to SMTP server: %w", err)
	}
	defer func(conn net.Conn) {
		err := conn.Close()
		if err != nil {
			slog.Debug("Failed to close SMTP connection", "error", err)
		}
	}(conn)

	// Create SMTP client
	client, err := smtp.NewClient(conn, s.config.SMTPHost)
	if err != nil {
		slog.Error("Failed to create SMTP client", "error", err)
		return fmt.Errorf("failed to create SMTP client: %w", err)
	}
	defer func(client *smtp.Client) {
		err := client.Close()
		if err != nil {
			slog.Debug("Failed to close SMTP client", "error", err)
		}
	}(client)

	// For development (e.g., Mailpit), no authentication is needed
	if s.config.SMTPUsername != "" && s.config.SMTPPassword != "" {
		auth := smtp.PlainAuth("", s.config.SMTPUsername, s.config.SMTPPassword, s.config.SMTPHost)
		_ = client.Auth(auth)
	}

	if err := client.Mail(s.config.SMTPFrom); err != nil {
		return fmt.Errorf("failed to set sender: %w", err)
	}

	if err := client.Rcpt(to); err != nil {
		return fmt.Errorf("failed to set recipient: %w", err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("failed to initiate data transfer: %w", err)
	}

	if _, err := wc.Write(message.Bytes()); err != nil {
		_ = wc.Close()
		return fmt.Errorf("failed to write message: %w", err)
	}

	if err := closeData(wc); err != nil {
		return err
	}

	slog.Debug("Email sent", "to", to, "subject", subject)

	return nil
}

func closeData(wc io.WriteCloser) error {
	if err := wc.Close(); err != nil {
		return fmt.Errorf("failed to finish message: %w", err)
	}
	return nil
}
