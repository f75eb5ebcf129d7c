package config

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/bakkerme/salewatch/internal/history/snapshot"
	"github.com/bakkerme/salewatch/internal/seenset"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const DefaultSchedule = "*/5 * * * *"

// WatchDocument represents the top-level structure of a salewatch.yaml file.
// Every field is optional; blanks are filled from the environment by Resolve.
type WatchDocument struct {
	Market      string           `yaml:"market,omitempty"`
	Schedule    ScheduleConfig   `yaml:"schedule,omitempty"`
	Store       StoreConfig      `yaml:"store,omitempty"`
	Notifiers   []NotifierConfig `yaml:"notifiers,omitempty"`
	Filter      string           `yaml:"filter,omitempty"`
	HTTPTimeout Duration         `yaml:"http_timeout,omitempty"`
	Snapshot    *snapshot.Config `yaml:"snapshot,omitempty"`
}

// ScheduleConfig defines when the cron trigger fires.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone,omitempty"`
}

// StoreConfig selects the seen-set backend.
type StoreConfig struct {
	Backend  string `yaml:"backend"`
	DSN      string `yaml:"dsn,omitempty"`
	Table    string `yaml:"table,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty"`
}

// NotifierConfig wraps the supported transports. Exactly one must be set.
type NotifierConfig struct {
	Webhook *WebhookNotifier `yaml:"webhook,omitempty"`
	Email   *EmailNotifier   `yaml:"email,omitempty"`
	Kafka   *KafkaNotifier   `yaml:"kafka,omitempty"`
	Log     *LogNotifier     `yaml:"log,omitempty"`
}

// WebhookNotifier posts ntfy-style JSON. Token falls back to NOTIFY_WEBHOOK_TOKEN.
type WebhookNotifier struct {
	URL     string   `yaml:"url"`
	Topic   string   `yaml:"topic,omitempty"`
	Token   string   `yaml:"token,omitempty"`
	Timeout Duration `yaml:"timeout,omitempty"`
}

// EmailNotifier sends through the SMTP server configured in the environment.
type EmailNotifier struct {
	To   string `yaml:"to"`
	From string `yaml:"from,omitempty"`
}

type KafkaNotifier struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic,omitempty"`
}

// LogNotifier writes notifications to the process log. Use `log: {}`.
type LogNotifier struct{}

// Kind names the configured transport.
func (n NotifierConfig) Kind() string {
	switch {
	case n.Webhook != nil:
		return "webhook"
	case n.Email != nil:
		return "email"
	case n.Kafka != nil:
		return "kafka"
	case n.Log != nil:
		return "log"
	default:
		return ""
	}
}

func (n NotifierConfig) count() int {
	c := 0
	if n.Webhook != nil {
		c++
	}
	if n.Email != nil {
		c++
	}
	if n.Kafka != nil {
		c++
	}
	if n.Log != nil {
		c++
	}
	return c
}

// LoadDocument reads the watch document at path. A missing file is not an
// error and yields an empty document.
func LoadDocument(path string) (*WatchDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &WatchDocument{}, nil
		}
		return nil, fmt.Errorf("read watch document: %w", err)
	}
	return ParseDocument(data)
}

func ParseDocument(data []byte) (*WatchDocument, error) {
	var doc WatchDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse watch document: %w", err)
	}
	return &doc, nil
}

// Resolve fills blank fields from env. Notifiers are derived from env only
// when the document names none; the log notifier is the last resort.
func (d *WatchDocument) Resolve(env EnvConfig) {
	if strings.TrimSpace(d.Market) == "" {
		d.Market = env.League
	}
	if d.Market == "" {
		d.Market = DefaultLeague
	}
	if d.Schedule.Cron == "" {
		d.Schedule.Cron = DefaultSchedule
	}
	if d.HTTPTimeout <= 0 {
		d.HTTPTimeout = Duration(env.Trade.HTTPTimeout)
	}
	if d.Filter == "" {
		d.Filter = env.FilterExpr
	}

	if d.Store.Backend == "" {
		d.Store.Backend = env.Store.Backend
	}
	if d.Store.Backend == "" {
		d.Store.Backend = seenset.BackendSQLite
	}
	d.Store.Backend = strings.ToLower(d.Store.Backend)
	if d.Store.DSN == "" {
		d.Store.DSN = env.Store.DSN
	}
	if d.Store.DSN == "" {
		switch d.Store.Backend {
		case seenset.BackendSQLite:
			d.Store.DSN = "salewatch.db"
		case seenset.BackendBadger:
			d.Store.DSN = "salewatch-badger"
		}
	}
	if d.Store.Table == "" {
		d.Store.Table = env.Store.Table
	}
	if d.Store.MaxConns <= 0 {
		d.Store.MaxConns = env.Store.MaxConns
	}

	if len(d.Notifiers) == 0 {
		d.Notifiers = notifiersFromEnv(env)
	}
	for i := range d.Notifiers {
		n := &d.Notifiers[i]
		if n.Webhook != nil {
			if n.Webhook.Token == "" {
				n.Webhook.Token = env.Webhook.Token
			}
			if n.Webhook.Timeout <= 0 {
				n.Webhook.Timeout = Duration(env.Webhook.HTTPTimeout)
			}
			if n.Webhook.Topic == "" {
				n.Webhook.Topic = env.NotifyTopic
			}
		}
		if n.Email != nil && n.Email.From == "" {
			n.Email.From = env.SMTP.From
		}
		if n.Kafka != nil && n.Kafka.Topic == "" {
			n.Kafka.Topic = env.Kafka.Topic
		}
	}
}

func notifiersFromEnv(env EnvConfig) []NotifierConfig {
	var out []NotifierConfig
	if env.Webhook.URL != "" {
		out = append(out, NotifierConfig{Webhook: &WebhookNotifier{URL: env.Webhook.URL}})
	}
	if env.SMTP.Host != "" && env.SMTP.To != "" {
		out = append(out, NotifierConfig{Email: &EmailNotifier{To: env.SMTP.To}})
	}
	if len(env.Kafka.Brokers) > 0 {
		out = append(out, NotifierConfig{Kafka: &KafkaNotifier{Brokers: env.Kafka.Brokers}})
	}
	if len(out) == 0 {
		out = append(out, NotifierConfig{Log: &LogNotifier{}})
	}
	return out
}

// Validate checks a resolved document.
func (d *WatchDocument) Validate() error {
	if strings.TrimSpace(d.Market) == "" {
		return fmt.Errorf("market is required")
	}
	if d.Schedule.Cron == "" {
		return fmt.Errorf("schedule: cron expression is required")
	}
	if _, err := cron.ParseStandard(d.Schedule.Cron); err != nil {
		return fmt.Errorf("schedule: invalid cron expression %q: %w", d.Schedule.Cron, err)
	}
	if d.Schedule.Timezone != "" {
		if _, err := time.LoadLocation(d.Schedule.Timezone); err != nil {
			return fmt.Errorf("schedule: invalid timezone: %w", err)
		}
	}

	if err := d.Snapshot.Validate(); err != nil {
		return fmt.Errorf("snapshot: %w", err)
	}

	switch d.Store.Backend {
	case seenset.BackendMemory:
	case seenset.BackendSQLite, seenset.BackendBadger, seenset.BackendPostgres, seenset.BackendRedis:
		if d.Store.DSN == "" {
			return fmt.Errorf("store %s: dsn is required", d.Store.Backend)
		}
	default:
		return fmt.Errorf("store: unsupported backend %q", d.Store.Backend)
	}

	if len(d.Notifiers) == 0 {
		return fmt.Errorf("at least one notifier is required")
	}
	for i, n := range d.Notifiers {
		if n.count() != 1 {
			return fmt.Errorf("notifier %d: exactly one of webhook, email, kafka or log must be set", i)
		}
		switch {
		case n.Webhook != nil:
			u, err := url.Parse(n.Webhook.URL)
			if n.Webhook.URL == "" || err != nil || u.Scheme == "" || u.Host == "" {
				return fmt.Errorf("notifier %d webhook: a valid url is required", i)
			}
		case n.Email != nil:
			if _, err := mail.ParseAddress(n.Email.To); err != nil {
				return fmt.Errorf("notifier %d email: invalid to address", i)
			}
			if n.Email.From != "" { // From is optional, but if provided must be valid
				if _, err := mail.ParseAddress(n.Email.From); err != nil {
					return fmt.Errorf("notifier %d email: invalid from address", i)
				}
			}
		case n.Kafka != nil:
			if len(n.Kafka.Brokers) == 0 {
				return fmt.Errorf("notifier %d kafka: at least one broker is required", i)
			}
		}
	}
	return nil
}

// StoreSettings converts the store section for seenset.Open.
func (d *WatchDocument) StoreSettings() seenset.Config {
	return seenset.Config{
		Backend:  d.Store.Backend,
		DSN:      d.Store.DSN,
		Table:    d.Store.Table,
		MaxConns: d.Store.MaxConns,
	}
}
