// Package notify groups failure records by responsible user and delivers them to a sink.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/EmundoT/vendor-qc/internal/types"
)

//go:generate mockgen -source=notify.go -destination=notify_mock_test.go -package=notify

// UnassignedUser receives failures whose Responsible User is empty.
const UnassignedUser = "unassigned"

// Notification is the set of failures addressed to one user.
type Notification struct {
	ID        string                `json:"id"`
	User      string                `json:"user"`
	Count     int                   `json:"count"`
	CreatedAt time.Time             `json:"created_at"`
	Failures  []types.FailureRecord `json:"failures"`
}

// Sink delivers notifications.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Group returns one notification per responsible user, sorted by user.
// Failures keep their input order within a group.
func Group(failures []types.FailureRecord) []Notification {
	byUser := map[string][]types.FailureRecord{}
	for _, f := range failures {
		user := strings.TrimSpace(f.ResponsibleUser)
		if user == "" {
			user = UnassignedUser
		}
		byUser[user] = append(byUser[user], f)
	}

	users := make([]string, 0, len(byUser))
	for u := range byUser {
		users = append(users, u)
	}
	sort.Strings(users)

	now := time.Now().UTC()
	out := make([]Notification, 0, len(users))
	for _, u := range users {
		out = append(out, Notification{
			ID:        uuid.NewString(),
			User:      u,
			Count:     len(byUser[u]),
			CreatedAt: now,
			Failures:  byUser[u],
		})
	}
	return out
}

// Dispatcher groups failures and delivers each group to a sink.
type Dispatcher struct {
	sink   Sink
	logger *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil logger discards log output.
func NewDispatcher(sink Sink, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Dispatcher{sink: sink, logger: logger}
}

// Dispatch delivers one notification per user. A failed delivery does not stop the
// others; all delivery errors are joined. It returns the number delivered.
func (d *Dispatcher) Dispatch(ctx context.Context, failures []types.FailureRecord) (int, error) {
	var (
		errs      []error
		delivered int
	)
	for _, n := range Group(failures) {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := d.sink.Deliver(ctx, n); err != nil {
			d.logger.Warn("notification delivery failed", "user", n.User, "failures", n.Count, "error", err)
			errs = append(errs, fmt.Errorf("notify %s: %w", n.User, err))
			continue
		}
		d.logger.Debug("notification delivered", "user", n.User, "failures", n.Count)
		delivered++
	}
	return delivered, errors.Join(errs...)
}

// Dispatch is NewDispatcher(sink, nil).Dispatch.
func Dispatch(ctx context.Context, sink Sink, failures []types.FailureRecord) (int, error) {
	return NewDispatcher(sink, nil).Dispatch(ctx, failures)
}

// JSONSink writes each notification as one JSON line.
type JSONSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewJSONSink creates a sink writing to w.
func NewJSONSink(w io.Writer) *JSONSink {
	return &JSONSink{w: w}
}

// Deliver implements Sink.
func (s *JSONSink) Deliver(_ context.Context, n Notification) error {
	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.w.Write(append(data, '\n'))
	return err
}

// DiscardSink drops every notification.
type DiscardSink struct{}

// Deliver implements Sink.
func (DiscardSink) Deliver(context.Context, Notification) error { return nil }
