// Package notify sends scan reports to an operator by email.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/wneessen/go-mail"
)

// Message is a plain-text notification. An empty To or Subject falls back
// to the notifier's defaults.
type Message struct {
	To      string
	Subject string
	Body    string
}

// Notifier delivers messages.
type Notifier interface {
	Notify(ctx context.Context, m Message) error
}

// SMTPConfig holds relay settings.
type SMTPConfig struct {
	Host      string
	Port      int
	Username  string
	Password  string
	From      string
	Recipient string
	Subject   string
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// Mailer delivers messages through an SMTP relay using STARTTLS.
type Mailer struct {
	cfg    SMTPConfig
	client sender
	logger *slog.Logger
}

// NewMailer creates a Mailer. Authentication is only configured when a
// username is set.
func NewMailer(cfg SMTPConfig, logger *slog.Logger) (*Mailer, error) {
	if cfg.Host == "" {
		return nil, errors.New("notify: SMTP host is required")
	}
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSMandatory),
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	c, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("notify: creating SMTP client: %w", err)
	}
	return &Mailer{
		cfg:    cfg,
		client: c,
		logger: logger.With(slog.String("component", "mailer")),
	}, nil
}

// Notify sends m.
func (ml *Mailer) Notify(ctx context.Context, m Message) error {
	msg, err := ml.compose(m)
	if err != nil {
		return err
	}
	if err := ml.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("notify: sending to %s: %w", ml.recipient(m), err)
	}
	ml.logger.Info("email sent", slog.String("to", ml.recipient(m)), slog.String("subject", ml.subject(m)))
	return nil
}

func (ml *Mailer) recipient(m Message) string {
	if m.To != "" {
		return m.To
	}
	return ml.cfg.Recipient
}

func (ml *Mailer) subject(m Message) string {
	switch {
	case m.Subject != "":
		return m.Subject
	case ml.cfg.Subject != "":
		return ml.cfg.Subject
	default:
		return ReportSubject
	}
}

func (ml *Mailer) compose(m Message) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(ml.cfg.From); err != nil {
		return nil, fmt.Errorf("notify: sender address %q: %w", ml.cfg.From, err)
	}
	to := ml.recipient(m)
	if err := msg.To(to); err != nil {
		return nil, fmt.Errorf("notify: recipient address %q: %w", to, err)
	}
	msg.Subject(ml.subject(m))
	msg.SetDate()
	msg.SetBodyString(mail.TypeTextPlain, m.Body)
	return msg, nil
}
