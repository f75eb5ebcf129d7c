package smtp

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"

	"github.com/bakkerme/salewatch/internal/notify"
	mail "github.com/wneessen/go-mail"
)

// Config describes the SMTP relay and the envelope for sale notifications.
type Config struct {
	Host               string
	Port               int
	Username           string
	Password           string
	TLSMode            string
	InsecureSkipVerify bool
	From               string
	To                 string
}

// Sender emails each sale notification. The message title becomes the subject.
type Sender struct {
	cfg Config
}

func NewSender(cfg Config) (*Sender, error) {
	if err := ValidateConfig(cfg); err != nil {
		return nil, err
	}
	if _, err := parseTLSMode(cfg.TLSMode); err != nil {
		return nil, err
	}
	return &Sender{cfg: cfg}, nil
}

// TLSMode determines how the SMTP client should negotiate TLS.
type TLSMode string

const (
	// TLSModeAuto uses port-based defaults (implicit TLS on 465, STARTTLS otherwise).
	TLSModeAuto TLSMode = "auto"
	// TLSModeDisabled forces cleartext SMTP.
	TLSModeDisabled TLSMode = "disabled"
	// TLSModeStartTLS requires STARTTLS on the SMTP connection.
	TLSModeStartTLS TLSMode = "starttls"
	// TLSModeImplicit uses implicit TLS (SMTPS), typically on port 465.
	TLSModeImplicit TLSMode = "implicit"
)

func (s *Sender) Name() string {
	return "email"
}

func (s *Sender) Send(ctx context.Context, message notify.Message) error {
	from := s.cfg.From
	if from == "" {
		from = s.cfg.Username
	}

	m := mail.NewMsg()
	if err := m.From(from); err != nil {
		return fmt.Errorf("invalid from address %q: %w", from, err)
	}
	if err := m.ToFromString(s.cfg.To); err != nil {
		return fmt.Errorf("invalid to address(es) %q: %w", s.cfg.To, err)
	}
	m.Subject(message.Title)
	m.SetBodyString(mail.TypeTextPlain, message.Body)

	send := func(enableAuth bool) error {
		client, err := s.newClient(enableAuth)
		if err != nil {
			return err
		}
		if err := client.DialAndSendWithContext(ctx, m); err != nil {
			return fmt.Errorf("failed to send email: %w", err)
		}
		return nil
	}

	err := send(s.cfg.Username != "")
	if err == nil {
		return nil
	}
	// Local sinks such as mailpit refuse AUTH even when credentials are set.
	if s.cfg.Username != "" && isAuthUnsupported(err) && isLocalDevSMTPHost(s.cfg.Host) {
		if retryErr := send(false); retryErr == nil {
			return nil
		}
	}
	return err
}

func (s *Sender) newClient(enableAuth bool) (*mail.Client, error) {
	mode, err := s.resolveTLSMode()
	if err != nil {
		return nil, err
	}
	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSConfig(&tls.Config{
			ServerName:         s.cfg.Host,
			MinVersion:         tls.VersionTLS12,
			InsecureSkipVerify: s.cfg.InsecureSkipVerify,
		}),
	}
	switch mode {
	case TLSModeDisabled:
		opts = append(opts, mail.WithTLSPortPolicy(mail.NoTLS))
	case TLSModeStartTLS:
		opts = append(opts, mail.WithTLSPortPolicy(mail.TLSMandatory))
	case TLSModeImplicit:
		opts = append(opts, mail.WithSSL())
	default:
		return nil, fmt.Errorf("unsupported smtp tls mode %q", mode)
	}
	if enableAuth && s.cfg.Username != "" {
		opts = append(opts,
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
			mail.WithSMTPAuth(mail.SMTPAuthAutoDiscover),
		)
	}
	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return client, nil
}

// resolveTLSMode returns the configured TLS behavior, falling back to port defaults.
func (s *Sender) resolveTLSMode() (TLSMode, error) {
	mode, err := parseTLSMode(s.cfg.TLSMode)
	if err != nil {
		return "", err
	}
	if mode == TLSModeAuto {
		if s.cfg.Port == 465 {
			return TLSModeImplicit, nil
		}
		return TLSModeStartTLS, nil
	}
	return mode, nil
}

func parseTLSMode(mode string) (TLSMode, error) {
	switch strings.TrimSpace(strings.ToLower(mode)) {
	case "", "auto":
		return TLSModeAuto, nil
	case "disabled", "off", "none":
		return TLSModeDisabled, nil
	case "starttls", "start_tls":
		return TLSModeStartTLS, nil
	case "implicit", "smtptls", "smtp_tls":
		return TLSModeImplicit, nil
	default:
		return "", fmt.Errorf("invalid smtp tls mode %q (expected: auto, disabled, starttls, implicit)", mode)
	}
}

func ValidateConfig(cfg Config) error {
	if cfg.Host == "" {
		return fmt.Errorf("smtp host is required")
	}
	if cfg.Port <= 0 {
		return fmt.Errorf("smtp port must be positive")
	}
	if strings.TrimSpace(cfg.To) == "" {
		return fmt.Errorf("smtp recipient is required")
	}
	if cfg.From == "" && cfg.Username == "" {
		return fmt.Errorf("smtp from address or username is required")
	}
	return nil
}

func isAuthUnsupported(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "server does not support SMTP AUTH") ||
		strings.Contains(msg, "SMTP Auth autodiscover was not able to detect a supported authentication mechanism")
}

func isLocalDevSMTPHost(host string) bool {
	host = strings.TrimSpace(strings.ToLower(host))
	if host == "" {
		return false
	}
	if host == "localhost" || host == "mailpit" {
		return true
	}
	if ip := net.ParseIP(host); ip != nil && ip.IsLoopback() {
		return true
	}
	return false
}
