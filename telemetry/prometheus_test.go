package telemetry

import (
	"context"
	"testing"

	sts "github.com/goliatone/go-sts"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusSinkRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink := NewPrometheusSink(reg)
	ctx := context.Background()

	events := []sts.ActivityEvent{
		{EventType: sts.ActivityEventLocalLogin, Outcome: sts.OutcomeSucceeded},
		{EventType: sts.ActivityEventLocalLogin, Outcome: sts.OutcomeSucceeded},
		{EventType: sts.ActivityEventLocalLogin, Outcome: sts.OutcomeInvalidPassword},
		{EventType: sts.ActivityEventLocalLogin, Outcome: sts.OutcomeLockedOut},
		{EventType: sts.ActivityEventSessionRejected, Outcome: sts.OutcomeLockedOut},
		{EventType: sts.ActivityEventAccountCreated, Outcome: sts.OutcomeAccountCreated, Provider: "google"},
	}
	for _, evt := range events {
		require.NoError(t, sink.Record(ctx, evt))
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(sink.Activity.WithLabelValues(string(sts.ActivityEventLocalLogin), string(sts.OutcomeSucceeded))))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.Activity.WithLabelValues(string(sts.ActivityEventLocalLogin), string(sts.OutcomeInvalidPassword))))
	assert.Equal(t, 2.0, testutil.ToFloat64(sink.Lockouts))
	assert.Equal(t, 1.0, testutil.ToFloat64(sink.AccountsCreated.WithLabelValues("google")))

	count, err := testutil.GatherAndCount(reg, "sts_activity_events_total")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestPrometheusSinkNil(t *testing.T) {
	var sink *PrometheusSink
	assert.NoError(t, sink.Record(context.Background(), sts.ActivityEvent{}))
}

func TestPrometheusSinkDuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewPrometheusSink(reg)
	assert.Panics(t, func() { NewPrometheusSink(reg) })
}
