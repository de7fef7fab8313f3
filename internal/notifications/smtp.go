package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/wneessen/go-mail"
)

const defaultSMTPPort = 587

var (
	ErrMissingSMTPHost   = errors.New("notifications: smtp host is required")
	ErrMissingSMTPSender = errors.New("notifications: smtp from address is required")
)

// SMTPConfig captures SMTP relay settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// SMTPSender delivers messages through an SMTP relay.
type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(configuration SMTPConfig) (*SMTPSender, error) {
	host := strings.TrimSpace(configuration.Host)
	if host == "" {
		return nil, ErrMissingSMTPHost
	}
	from := strings.TrimSpace(configuration.From)
	if from == "" {
		from = strings.TrimSpace(configuration.Username)
	}
	if from == "" {
		return nil, ErrMissingSMTPSender
	}
	port := configuration.Port
	if port <= 0 {
		port = defaultSMTPPort
	}

	options := []mail.Option{
		mail.WithPort(port),
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if username := strings.TrimSpace(configuration.Username); username != "" {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(username),
			mail.WithPassword(configuration.Password),
		)
	}

	client, err := mail.NewClient(host, options...)
	if err != nil {
		return nil, fmt.Errorf("notifications: smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: from}, nil
}

func (sender *SMTPSender) Send(ctx context.Context, message Message) error {
	envelope := mail.NewMsg()
	if err := envelope.From(sender.from); err != nil {
		return fmt.Errorf("notifications: from: %w", err)
	}
	if err := envelope.To(message.To); err != nil {
		return fmt.Errorf("notifications: to: %w", err)
	}
	envelope.Subject(message.Subject)
	envelope.SetBodyString(mail.TypeTextHTML, message.HTML)
	if message.Text != "" {
		envelope.AddAlternativeString(mail.TypeTextPlain, message.Text)
	}
	if err := sender.client.DialAndSendWithContext(ctx, envelope); err != nil {
		return fmt.Errorf("notifications: send: %w", err)
	}
	return nil
}
