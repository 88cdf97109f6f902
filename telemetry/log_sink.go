package telemetry

import (
	"context"

	sts "github.com/goliatone/go-sts"
	"github.com/goliatone/go-sts/activitymap"
)

// LogSink writes every activity event to a logger as a normalized audit
// record.
type LogSink struct {
	logger sts.Logger
	opts   []activitymap.Option
}

var _ sts.ActivitySink = (*LogSink)(nil)

// NewLogSink returns a sink logging through logger.
func NewLogSink(logger sts.Logger, opts ...activitymap.Option) *LogSink {
	if logger == nil {
		logger = sts.DefaultLogger()
	}
	return &LogSink{logger: logger, opts: opts}
}

// Record implements sts.ActivitySink.
func (l *LogSink) Record(_ context.Context, event sts.ActivityEvent) error {
	rec := activitymap.Normalize(event, l.opts...)

	args := []any{
		"actor_id", rec.ActorID,
		"verb", rec.Verb,
		"object_type", rec.ObjectType,
		"object_id", rec.ObjectID,
		"channel", rec.Channel,
		"occurred_at", rec.OccurredAt,
	}
	for _, key := range sortedKeys(rec.Metadata) {
		args = append(args, key, rec.Metadata[key])
	}

	if event.Outcome == sts.OutcomeLockedOut || event.Outcome == sts.OutcomeStampMismatch {
		l.logger.Warn("activity", args...)
		return nil
	}
	l.logger.Info("activity", args...)
	return nil
}
