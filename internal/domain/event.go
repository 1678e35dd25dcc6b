package domain

import (
	"context"
	"log/slog"
	"time"
)

// RawEvent is one undecoded telemetry message and where it came from.
// Commit acknowledges it at the source; it is nil for readings that did not
// arrive through a broker.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// LogValue identifies the message in log lines without dumping its payload.
func (e RawEvent) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("key", string(e.Key)),
		slog.String("topic", e.Topic),
		slog.Int("partition", e.Partition),
		slog.Int64("offset", e.Offset),
	)
}
