// Package email renders and delivers outbound mail.
package email

import (
	"context"
	"fmt"
	"net"
	"time"

	"quote_pipeline_backend/internal/pdf"
	"quote_pipeline_backend/platform/config"

	gomail "github.com/wneessen/go-mail"
)

// QuoteSentEmail is what the client receives once a quote went out.
type QuoteSentEmail struct {
	ClientName  string
	QuoteNumber string
	TotalCents  int64
	ExpiresAt   *time.Time
}

// Sender delivers transactional mail.
type Sender interface {
	SendQuoteSentEmail(ctx context.Context, toEmail string, data QuoteSentEmail) error
}

// NoopSender drops every message. Used when SMTP is not configured.
type NoopSender struct{}

func (NoopSender) SendQuoteSentEmail(context.Context, string, QuoteSentEmail) error { return nil }

// NewSender returns an SMTP sender when configured, otherwise a NoopSender.
func NewSender(cfg config.SMTPConfig) Sender {
	if !cfg.IsSMTPEnabled() {
		return NoopSender{}
	}
	return NewSMTPSender(cfg.GetSMTPHost(), cfg.GetSMTPPort(), cfg.GetSMTPUsername(), cfg.GetSMTPPassword(), cfg.GetEmailFromAddress(), cfg.GetEmailFromName())
}

// SMTPSender implements the Sender interface using a direct SMTP connection via go-mail.
type SMTPSender struct {
	host      string
	port      int
	username  string
	password  string
	fromName  string
	fromEmail string
}

// NewSMTPSender creates a new SMTPSender with the given SMTP credentials.
func NewSMTPSender(host string, port int, username, password, fromEmail, fromName string) *SMTPSender {
	return &SMTPSender{
		host:      host,
		port:      port,
		username:  username,
		password:  password,
		fromName:  fromName,
		fromEmail: fromEmail,
	}
}

func (s *SMTPSender) SendQuoteSentEmail(ctx context.Context, toEmail string, data QuoteSentEmail) error {
	msg, err := s.quoteSentMessage(toEmail, data)
	if err != nil {
		return err
	}
	return s.deliver(ctx, msg)
}

func (s *SMTPSender) quoteSentMessage(toEmail string, data QuoteSentEmail) (*gomail.Msg, error) {
	validUntil := ""
	if data.ExpiresAt != nil {
		validUntil = data.ExpiresAt.Format("02-01-2006")
	}
	content, err := renderEmailTemplate("quote_sent.html", quoteSentEmailData{
		baseEmailData: baseEmailData{
			Title:   "Offerte " + data.QuoteNumber,
			Heading: "Uw offerte",
		},
		ClientName:     data.ClientName,
		CompanyName:    s.fromName,
		QuoteNumber:    data.QuoteNumber,
		TotalFormatted: pdf.FormatEuro(data.TotalCents),
		ValidUntil:     validUntil,
	})
	if err != nil {
		return nil, err
	}
	return s.message(toEmail, fmt.Sprintf(subjectQuoteSentFmt, data.QuoteNumber, s.fromName), content)
}

func (s *SMTPSender) message(toEmail, subject, htmlContent string) (*gomail.Msg, error) {
	msg := gomail.NewMsg()
	if err := msg.FromFormat(s.fromName, s.fromEmail); err != nil {
		return nil, fmt.Errorf("smtp from: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return nil, fmt.Errorf("smtp to: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(gomail.TypeTextHTML, htmlContent)
	return msg, nil
}

func (s *SMTPSender) deliver(ctx context.Context, msg *gomail.Msg) error {
	opts := []gomail.Option{
		gomail.WithPort(s.port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
		gomail.WithTimeout(15 * time.Second),
		gomail.WithDialContextFunc(func(dctx context.Context, _ string, addr string) (net.Conn, error) {
			return (&net.Dialer{}).DialContext(dctx, "tcp4", addr)
		}),
	}
	if s.username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(s.username),
			gomail.WithPassword(s.password),
		)
	}

	client, err := gomail.NewClient(s.host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	return nil
}
