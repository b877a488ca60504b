package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dairy-market-lab/internal/domain"
)

func testRecord() *domain.NegotiationRecord {
	return &domain.NegotiationRecord{
		NegotiationID:  "01J9ZQ0000000000000000000A",
		SuggestedPrice: 7500,
		MinPrice:       7500,
		Strategy:       domain.StrategyNeutral,
		Mode:           domain.ModeEscalate,
		PriceStep:      2.5,
		Status:         domain.StatusFailed,
		FinalOffer:     7512.5,
		CounterOffer:   9000,
		FailureReason:  domain.FailureReasonMaxStepsReached,
		Steps:          10,
		FinishedAt:     time.Date(2024, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNegotiationFinished(t *testing.T) {
	e, err := NegotiationFinished(testRecord())
	require.NoError(t, err)

	assert.Equal(t, TypeNegotiationFinished, e.Type)
	assert.Equal(t, "01J9ZQ0000000000000000000A", e.Key)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(e.Payload, &payload))
	assert.Equal(t, "failed", payload["status"])
	assert.Equal(t, "max_steps_reached", payload["failure_reason"])
	assert.Equal(t, "escalate", payload["mode"])
	assert.EqualValues(t, 10, payload["steps"])
}

func TestNegotiationFinished_AcceptedOmitsReason(t *testing.T) {
	r := testRecord()
	r.Status = domain.StatusAccepted
	r.FailureReason = ""

	e, err := NegotiationFinished(r)
	require.NoError(t, err)
	assert.NotContains(t, string(e.Payload), "failure_reason")
}

func TestPriceSuggested(t *testing.T) {
	e, err := PriceSuggested(&domain.SuggestionRecord{
		SuggestionID:   "abc",
		ProductID:      2,
		DataSourceID:   52,
		Reference:      domain.ReferencePrices{CurrentPrice: 7600, ForecastValue: 7498.04},
		SuggestedPrice: 7489.31,
		CreatedAt:      time.Now(),
	})
	require.NoError(t, err)
	assert.Equal(t, TypePriceSuggested, e.Type)
	assert.Equal(t, "abc", e.Key)
	assert.Contains(t, string(e.Payload), `"suggested_price":7489.31`)
}

func TestLogPublisher(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	p := NewLogPublisher(logger)

	e, err := NegotiationFinished(testRecord())
	require.NoError(t, err)
	require.NoError(t, p.Publish(context.Background(), e))
	require.NoError(t, p.Close())

	require.Len(t, hook.Entries, 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, TypeNegotiationFinished, entry.Data["event_type"])
	assert.Equal(t, e.Key, entry.Data["key"])
}

func TestBuildMessage(t *testing.T) {
	e, err := NegotiationFinished(testRecord())
	require.NoError(t, err)

	msg, err := buildMessage("negotiations", e)
	require.NoError(t, err)

	require.NotNil(t, msg.TopicPartition.Topic)
	assert.Equal(t, "negotiations", *msg.TopicPartition.Topic)
	assert.Equal(t, []byte(e.Key), msg.Key)
	assert.True(t, e.OccurredAt.Equal(msg.Timestamp))
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)

	var decoded Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, e.Type, decoded.Type)
	assert.JSONEq(t, string(e.Payload), string(decoded.Payload))
}
