package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

//go:generate mockgen -source=nats.go -destination=nats_mock_test.go -package=notify

// Publisher is the subset of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// Compile-time interface satisfaction checks.
var (
	_ Publisher = (*nats.Conn)(nil)
	_ Sink      = (*NATSSink)(nil)
)

var errEmptySubjectPrefix = errors.New("nats subject prefix must not be empty")

// NATSSink publishes each notification on <prefix>.<user>.
type NATSSink struct {
	pub    Publisher
	prefix string
}

// NewNATSSink creates a sink publishing through pub.
func NewNATSSink(pub Publisher, prefix string) (*NATSSink, error) {
	prefix = strings.Trim(strings.TrimSpace(prefix), ".")
	if prefix == "" {
		return nil, errEmptySubjectPrefix
	}
	return &NATSSink{pub: pub, prefix: prefix}, nil
}

// Subject returns the subject a user's notifications are published on.
func (s *NATSSink) Subject(user string) string {
	return s.prefix + "." + SanitizeToken(user)
}

// Deliver implements Sink.
func (s *NATSSink) Deliver(ctx context.Context, n Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	if err := s.pub.Publish(s.Subject(n.User), data); err != nil {
		return fmt.Errorf("publish %s: %w", s.Subject(n.User), err)
	}
	return nil
}

// ConnectNATS dials the server at url.
func ConnectNATS(url string, logger *slog.Logger) (*nats.Conn, error) {
	opts := []nats.Option{
		nats.Name("vendor-qc"),
		nats.MaxReconnects(5),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("disconnected from NATS", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("reconnected to NATS", "url", nc.ConnectedUrl())
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	return nc, nil
}

// SanitizeToken makes s usable as a single NATS subject token.
func SanitizeToken(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return UnassignedUser
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, s)
}
