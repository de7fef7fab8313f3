package notifications

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zimbuild/sitebackend/internal/model"
)

const (
	// DefaultCompanyName signs every outgoing email.
	DefaultCompanyName = "ZimBuild Construction"
	// DefaultSendTimeout bounds a single delivery attempt.
	DefaultSendTimeout = 10 * time.Second

	logEventEmailLogged = "email_logged"
)

// ErrMissingRecipient rejects messages without a recipient.
var ErrMissingRecipient = errors.New("notifications: recipient is required")

// Message is a rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Sender delivers rendered messages.
type Sender interface {
	Send(ctx context.Context, message Message) error
}

// Config wires a Notifier.
type Config struct {
	Sender      Sender
	CompanyName string
	SendTimeout time.Duration
	Clock       func() time.Time
}

// Notifier renders confirmation emails for contact submissions and hands them to a Sender.
type Notifier struct {
	sender      Sender
	companyName string
	sendTimeout time.Duration
	clock       func() time.Time
}

func NewNotifier(configuration Config) *Notifier {
	companyName := strings.TrimSpace(configuration.CompanyName)
	if companyName == "" {
		companyName = DefaultCompanyName
	}
	sendTimeout := configuration.SendTimeout
	if sendTimeout <= 0 {
		sendTimeout = DefaultSendTimeout
	}
	clock := configuration.Clock
	if clock == nil {
		clock = time.Now
	}
	return &Notifier{
		sender:      configuration.Sender,
		companyName: companyName,
		sendTimeout: sendTimeout,
		clock:       clock,
	}
}

// NotifyInquiry confirms a general inquiry to its sender.
func (notifier *Notifier) NotifyInquiry(ctx context.Context, contact model.Contact) error {
	html, err := renderEmail(templateNameContactConfirmation, emailView{
		Company: notifier.companyName,
		Year:    notifier.clock().Year(),
		Name:    contact.Name,
		Subject: contact.Subject,
		Message: contact.Message,
	})
	if err != nil {
		return err
	}
	return notifier.send(ctx, Message{
		To:      contact.Email,
		Subject: fmt.Sprintf(subjectContactConfirmation, notifier.companyName),
		HTML:    html,
		Text:    fmt.Sprintf("Thank you for your inquiry, %s. We will get back to you within 24 hours.", contact.Name),
	})
}

// NotifyApplication confirms a career application to the applicant.
func (notifier *Notifier) NotifyApplication(ctx context.Context, contact model.Contact) error {
	html, err := renderEmail(templateNameCareerApplication, emailView{
		Company:  notifier.companyName,
		Year:     notifier.clock().Year(),
		Name:     contact.Name,
		Position: contact.Position,
	})
	if err != nil {
		return err
	}
	return notifier.send(ctx, Message{
		To:      contact.Email,
		Subject: fmt.Sprintf(subjectCareerApplication, notifier.companyName),
		HTML:    html,
		Text:    fmt.Sprintf("Application received, %s. Position applied: %s.", contact.Name, contact.Position),
	})
}

func (notifier *Notifier) send(ctx context.Context, message Message) error {
	if strings.TrimSpace(message.To) == "" {
		return ErrMissingRecipient
	}
	if notifier.sender == nil {
		return nil
	}
	sendCtx, cancel := context.WithTimeout(ctx, notifier.sendTimeout)
	defer cancel()
	return notifier.sender.Send(sendCtx, message)
}

// LogSender writes messages to the log instead of delivering them. Used when SMTP is not configured.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSender{logger: logger}
}

func (sender *LogSender) Send(_ context.Context, message Message) error {
	sender.logger.Info(logEventEmailLogged,
		zap.String("to", message.To),
		zap.String("subject", message.Subject),
		zap.Int("html_bytes", len(message.HTML)),
	)
	return nil
}
