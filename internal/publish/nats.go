package publish

import (
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"evalgo.org/playground/internal/event"
)

// DefaultSubject is the subject prefix frames are mirrored under.
const DefaultSubject = "playground.events"

// NATSMirror publishes broadcast frames to <subject>.<kind>.
type NATSMirror struct {
	nc      *nats.Conn
	subject string
	owned   bool
	logger  *zap.Logger
}

// NewNATSMirror wraps an existing connection. Close leaves nc open.
func NewNATSMirror(nc *nats.Conn, subject string, logger *zap.Logger) *NATSMirror {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NATSMirror{nc: nc, subject: subject, logger: logger}
}

// ConnectNATS dials url and returns a mirror that owns the connection.
func ConnectNATS(url, subject string, logger *zap.Logger) (*NATSMirror, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	nc, err := nats.Connect(url,
		nats.Name("envoy-playground"),
		nats.Timeout(5*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", c.ConnectedUrl()))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats at %s: %w", url, err)
	}
	m := NewNATSMirror(nc, subject, logger)
	m.owned = true
	return m, nil
}

// Subject returns the subject frames of kind are published on.
func (m *NATSMirror) Subject(kind event.Kind) string {
	return m.subject + "." + string(kind)
}

func (m *NATSMirror) Mirror(kind event.Kind, frame []byte) error {
	subject := m.Subject(kind)
	if err := m.nc.Publish(subject, frame); err != nil {
		return fmt.Errorf("failed to publish to %s: %w", subject, err)
	}
	m.logger.Debug("mirrored frame", zap.String("subject", subject))
	return nil
}

// Close drains the connection if the mirror opened it.
func (m *NATSMirror) Close() error {
	if !m.owned {
		return nil
	}
	return m.nc.Drain()
}
