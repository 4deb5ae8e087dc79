package mail

import (
	"bytes"
	"context"
	"fmt"
	htmlTemplate "html/template"
	textTemplate "text/template"
	"time"

	"github.com/Zaramlt59/TMS-sub001/config"
	"github.com/Zaramlt59/TMS-sub001/services/logging"
	"github.com/wneessen/go-mail"
	"go.uber.org/zap"
)

// Client is the part of *mail.Client the service sends through.
type Client interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

type Service struct {
	config *config.MailConfig
	appCfg *config.AppConfig
	expiry time.Duration
	client Client
	logger *logging.Service
}

type resetData struct {
	AppName string
	Name    string
	Link    string
	Expiry  string
}

var resetText = textTemplate.Must(textTemplate.New("password_reset.txt").Parse(
	`Hello {{.Name}},

A password reset was requested for your {{.AppName}} account.
Use the link below within {{.Expiry}} to choose a new password:

{{.Link}}

If you did not request this, you can ignore this message.
`))

var resetHTML = htmlTemplate.Must(htmlTemplate.New("password_reset.html").Parse(
	`<p>Hello {{.Name}},</p>
<p>A password reset was requested for your {{.AppName}} account.
Use the link below within {{.Expiry}} to choose a new password:</p>
<p><a href="{{.Link}}">Reset your password</a></p>
<p>If you did not request this, you can ignore this message.</p>
`))

func NewService(cfg *config.Config, logger *logging.Service) (*Service, error) {
	mailCfg := &cfg.Mail

	if logger != nil {
		logger.Info("initializing mail service",
			zap.Bool("enabled", mailCfg.Enabled),
			zap.String("host", mailCfg.Host),
			zap.Int("port", mailCfg.Port),
			zap.String("encryption", mailCfg.Encryption),
			zap.String("from_address", mailCfg.FromAddress))
	}

	if !mailCfg.Enabled {
		return &Service{config: mailCfg, appCfg: &cfg.App, expiry: cfg.Auth.PasswordResetExpiry, logger: logger}, nil
	}

	client, err := newClient(mailCfg)
	if err != nil {
		if logger != nil {
			logger.Error("failed to create mail client",
				zap.Error(err),
				zap.String("host", mailCfg.Host),
				zap.Int("port", mailCfg.Port))
		}
		return nil, err
	}
	return NewServiceWithClient(cfg, logger, client)
}

func NewServiceWithClient(cfg *config.Config, logger *logging.Service, client Client) (*Service, error) {
	if cfg.Mail.FromAddress == "" {
		if logger != nil {
			logger.Error("mail service initialization failed: FROM_ADDRESS is required")
		}
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	return &Service{
		config: &cfg.Mail,
		appCfg: &cfg.App,
		expiry: cfg.Auth.PasswordResetExpiry,
		client: client,
		logger: logger,
	}, nil
}

func newClient(cfg *config.MailConfig) (*mail.Client, error) {
	if cfg.FromAddress == "" {
		return nil, fmt.Errorf("MAIL_FROM_ADDRESS is required")
	}

	opts := []mail.Option{
		mail.WithPort(cfg.Port),
	}

	switch cfg.Encryption {
	case "ssl":
		opts = append(opts, mail.WithSSL())
	case "none":
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	default:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	}

	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create mail client: %w", err)
	}
	return client, nil
}

func (s *Service) Enabled() bool {
	return s.client != nil
}

func (s *Service) newMessage(to, subject string) (*mail.Msg, error) {
	message := mail.NewMsg()

	if err := message.FromFormat(s.config.FromName, s.config.FromAddress); err != nil {
		return nil, fmt.Errorf("failed to set FROM address: %w", err)
	}
	if err := message.To(to); err != nil {
		return nil, fmt.Errorf("failed to set TO address: %w", err)
	}
	message.Subject(subject)
	return message, nil
}

// SendPasswordReset mails a reset link. With mail disabled the link is only
// logged at debug level.
func (s *Service) SendPasswordReset(ctx context.Context, to, name, link string) error {
	if !s.Enabled() {
		if s.logger != nil {
			s.logger.Debug("mail disabled, skipping password reset email", zap.String("recipient", to))
		}
		return nil
	}

	message, err := s.newMessage(to, fmt.Sprintf("%s password reset", s.appCfg.Name))
	if err != nil {
		return err
	}

	data := resetData{
		AppName: s.appCfg.Name,
		Name:    name,
		Link:    link,
		Expiry:  fmt.Sprintf("%d minutes", int(s.expiry.Minutes())),
	}

	var htmlBuf, textBuf bytes.Buffer
	if err := resetHTML.Execute(&htmlBuf, data); err != nil {
		return fmt.Errorf("failed to execute html template: %w", err)
	}
	if err := resetText.Execute(&textBuf, data); err != nil {
		return fmt.Errorf("failed to execute text template: %w", err)
	}
	message.SetBodyString(mail.TypeTextPlain, textBuf.String())
	message.AddAlternativeString(mail.TypeTextHTML, htmlBuf.String())

	return s.send(ctx, message, to)
}

func (s *Service) send(ctx context.Context, message *mail.Msg, to string) error {
	start := time.Now()
	err := s.client.DialAndSendWithContext(ctx, message)
	duration := time.Since(start)

	if err != nil {
		if s.logger != nil {
			s.logger.Error("failed to send email",
				zap.Error(err),
				zap.String("recipient", to),
				zap.Duration("attempt_duration", duration))
		}
		return fmt.Errorf("failed to send email: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("email sent successfully",
			zap.String("recipient", to),
			zap.Duration("send_duration", duration))
	}
	return nil
}
