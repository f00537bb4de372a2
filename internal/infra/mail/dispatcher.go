package mail

import (
	"context"
	"fmt"

	gomail "github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/solentra/account-service/internal/core/port"
	"github.com/solentra/account-service/internal/infra/config"
	"github.com/solentra/account-service/internal/infra/logger"
)

// SMTPDispatcher delivers messages through an SMTP relay.
type SMTPDispatcher struct {
	client *gomail.Client
	from   string
	log    *zap.Logger
}

// NewSMTPDispatcher connects a dispatcher to the configured relay.
func NewSMTPDispatcher(cfg config.SMTPSettings, log *zap.Logger) (*SMTPDispatcher, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTimeout(cfg.SendTimeout),
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}

	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("smtp client: %w", err)
	}

	return &SMTPDispatcher{client: client, from: cfg.From, log: log}, nil
}

// Send delivers one message. The caller controls the deadline via ctx.
func (d *SMTPDispatcher) Send(ctx context.Context, msg port.MailMessage) error {
	m := gomail.NewMsg()
	if err := m.From(d.from); err != nil {
		return fmt.Errorf("smtp from: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("smtp to: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(gomail.TypeTextHTML, msg.HTML)

	if err := d.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("smtp send: %w", err)
	}

	d.log.Info("mail dispatched",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	return nil
}

var _ port.MailDispatcher = (*SMTPDispatcher)(nil)

// LoggingDispatcher logs messages instead of sending them. Used in
// development where no relay is available.
type LoggingDispatcher struct {
	log *zap.Logger
}

// NewLoggingDispatcher builds a log-only dispatcher.
func NewLoggingDispatcher(log *zap.Logger) *LoggingDispatcher {
	return &LoggingDispatcher{log: log}
}

// Send logs the message and reports success.
func (d *LoggingDispatcher) Send(_ context.Context, msg port.MailMessage) error {
	d.log.Info("mail dispatch skipped, logging only",
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
		zap.Int("body_bytes", len(msg.HTML)),
	)
	return nil
}

var _ port.MailDispatcher = (*LoggingDispatcher)(nil)
