package notify

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/EmundoT/vendor-qc/internal/core"
)

// FromSettings builds the sink selected by notify.sink. The returned close function
// releases any connection and is never nil.
func FromSettings(ctx context.Context, s core.NotifySettings, stdout io.Writer, logger *slog.Logger) (Sink, func() error, error) {
	noop := func() error { return nil }

	switch strings.ToLower(s.Sink) {
	case "", core.NotifySinkStdout:
		return NewJSONSink(stdout), noop, nil

	case core.NotifySinkNone:
		return DiscardSink{}, noop, nil

	case core.NotifySinkNATS:
		nc, err := ConnectNATS(s.NATS.URL, logger)
		if err != nil {
			return nil, noop, err
		}
		sink, err := NewNATSSink(nc, s.NATS.SubjectPrefix)
		if err != nil {
			nc.Close()
			return nil, noop, err
		}
		return sink, func() error { return nc.Drain() }, nil

	case core.NotifySinkRedis:
		client, err := OpenRedis(ctx, s.Redis.URL)
		if err != nil {
			return nil, noop, err
		}
		sink, err := NewRedisSink(client, s.Redis.Stream)
		if err != nil {
			_ = client.Close()
			return nil, noop, err
		}
		return sink, client.Close, nil

	default:
		return nil, noop, fmt.Errorf("unknown notify sink %q", s.Sink)
	}
}
