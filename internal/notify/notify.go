// Package notify delivers user-facing notifications after destructive
// document operations.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix roots the NATS subjects notifications go to.
const DefaultSubjectPrefix = "docmanager.notifications"

// Notification is a short message for one user.
type Notification struct {
	UserID  string    `json:"user_id"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Kinds of notification.
const (
	KindRemoved = "document_removed"
	KindCleared = "collection_cleared"
)

// Notifier delivers notifications.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a notifier that logs at info level.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify implements Notifier.
func (l *LogNotifier) Notify(_ context.Context, n Notification) error {
	l.logger.Info(n.Message,
		zap.String("user_id", n.UserID),
		zap.String("kind", n.Kind))
	return nil
}

// Config configures the NATS notifier.
type Config struct {
	URL           string `koanf:"url"`
	SubjectPrefix string `koanf:"subject_prefix"`
}

// NATSNotifier publishes notifications as JSON to
// {prefix}.{user_id}.{kind}.
type NATSNotifier struct {
	nc     *nats.Conn
	prefix string
	owned  bool
}

// NewNATSNotifier publishes on an existing connection.
func NewNATSNotifier(nc *nats.Conn, prefix string) (*NATSNotifier, error) {
	if nc == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &NATSNotifier{nc: nc, prefix: prefix}, nil
}

// connectTimeout bounds the initial dial.
const connectTimeout = 2 * time.Second

// Connect dials cfg.URL and returns a notifier that owns the connection.
// An unreachable server is an error; reconnects apply only after the first
// connection succeeds.
func Connect(cfg Config, logger *zap.Logger) (*NATSNotifier, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(cfg.URL,
		nats.Name("docmanager"),
		nats.Timeout(connectTimeout),
		nats.MaxReconnects(5),
		nats.ReconnectWait(time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, err)
	}
	if !nc.IsConnected() {
		nc.Close()
		return nil, fmt.Errorf("connecting to nats at %s: %w", cfg.URL, nats.ErrNoServers)
	}
	n, err := NewNATSNotifier(nc, cfg.SubjectPrefix)
	if err != nil {
		nc.Close()
		return nil, err
	}
	n.owned = true
	return n, nil
}

// Subject returns the subject a notification is published on.
func (n *NATSNotifier) Subject(notification Notification) string {
	user := subjectToken(notification.UserID)
	if user == "" {
		user = "anonymous"
	}
	kind := subjectToken(notification.Kind)
	if kind == "" {
		kind = "info"
	}
	return n.prefix + "." + user + "." + kind
}

// Notify implements Notifier.
func (n *NATSNotifier) Notify(_ context.Context, notification Notification) error {
	if notification.Time.IsZero() {
		notification.Time = time.Now().UTC()
	}
	data, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := n.nc.Publish(n.Subject(notification), data); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}

// Close drains the connection if the notifier opened it.
func (n *NATSNotifier) Close() error {
	if !n.owned {
		return nil
	}
	return n.nc.Drain()
}

// subjectToken makes s safe as one NATS subject token.
func subjectToken(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '.', '*', '>', ' ', '\t', '\n', '\r':
			return '_'
		}
		return r
	}, s)
}

// Multi fans a notification out to several notifiers. Every notifier is
// tried; the errors are joined.
type Multi []Notifier

// Notify implements Notifier.
func (m Multi) Notify(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m {
		if notifier == nil {
			continue
		}
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var (
	_ Notifier = (*LogNotifier)(nil)
	_ Notifier = (*NATSNotifier)(nil)
	_ Notifier = Multi(nil)
)
