package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"orquidea/config"
)

// Mailer delivers notifications over SMTP. Built once at startup.
type Mailer struct {
	client   *mail.Client
	from     string
	fromName string
	logger   *zap.Logger
	mu       sync.Mutex
}

// NewMailer validates the SMTP settings and creates the client.
func NewMailer(cfg *config.Config, logger *zap.Logger) (*Mailer, error) {
	if cfg.SMTPUser == "" || cfg.SMTPPassword == "" {
		return nil, fmt.Errorf("%w: SMTP_USER and SMTP_PASSWORD are required for the email channel", ErrConfiguration)
	}
	from := cfg.MailFrom
	if from == "" {
		from = cfg.SMTPUser
	}

	client, err := mail.NewClient(cfg.SMTPHost,
		mail.WithPort(cfg.SMTPPort),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.SMTPUser),
		mail.WithPassword(cfg.SMTPPassword),
		mail.WithTLSPortPolicy(mail.TLSMandatory),
		mail.WithTimeout(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfiguration, err)
	}
	return &Mailer{client: client, from: from, fromName: cfg.MailFromName, logger: logger}, nil
}

// Send delivers msg to one recipient.
func (m *Mailer) Send(ctx context.Context, to string, msg Message) error {
	body, err := msg.HTML()
	if err != nil {
		return fmt.Errorf("render email: %w", err)
	}

	mm := mail.NewMsg()
	if err := mm.FromFormat(m.fromName, m.from); err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}
	if err := mm.To(to); err != nil {
		return fmt.Errorf("invalid recipient: %w", err)
	}
	mm.Subject(msg.Subject())
	mm.SetBodyString(mail.TypeTextHTML, body)
	mm.AddAlternativeString(mail.TypeTextPlain, msg.Text())

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.client.DialAndSendWithContext(ctx, mm); err != nil {
		return err
	}
	m.logger.Debug("Notification email sent", zap.String("to", to))
	return nil
}
