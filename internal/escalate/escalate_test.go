package escalate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/graphwright/graphwright/internal/diagnose"
	"github.com/graphwright/graphwright/internal/types"
)

func TestPrepareWithoutTimeoutWaitsForever(t *testing.T) {
	handler := NewHandler()

	esc := handler.Prepare(types.NewID(), "add John Doe", nil, nil)
	assert.Nil(t, esc.Deadline)
	assert.False(t, esc.Expired(time.Now().Add(24*time.Hour)))
	assert.Contains(t, esc.Question, "add John Doe")
}

func TestPrepareWithTimeoutSetsDeadline(t *testing.T) {
	handler := NewHandler(WithTimeout(time.Minute))

	esc := handler.Prepare(types.NewID(), "add John Doe", nil, nil)
	require.NotNil(t, esc.Deadline)
	assert.False(t, esc.Expired(time.Now()))
	assert.True(t, esc.Expired(time.Now().Add(2*time.Minute)))
}

func TestPrepareIncludesDiagnosisAndLastFailure(t *testing.T) {
	failures := []diagnose.Failure{
		{Attempt: 1, Tool: "upsert_edge", ErrorCode: types.NOT_FOUND, Message: "endpoint missing"},
	}
	diagnosis := &diagnose.Diagnosis{
		Class:  diagnose.ClassIdentical,
		Reason: "same call failing repeatedly",
	}

	handler := NewHandler()
	esc := handler.Prepare(types.NewID(), "link John to Apollo", failures, diagnosis)

	assert.Equal(t, "same call failing repeatedly", esc.Reason)
	assert.Contains(t, esc.Question, "upsert_edge")
	assert.Contains(t, esc.Question, "identical")
}

func TestWaitDeliversAnswer(t *testing.T) {
	handler := NewHandler()
	esc := handler.Prepare(types.NewID(), "goal", nil, nil)

	answers := make(chan Answer, 1)
	answers <- Answer{Text: "use john-smith"}

	answer, err := handler.Wait(context.Background(), esc, answers)
	require.NoError(t, err)
	assert.Equal(t, "use john-smith", answer.Text)
	assert.False(t, answer.AnsweredAt.IsZero())
}

func TestWaitTimesOut(t *testing.T) {
	handler := NewHandler(WithTimeout(10 * time.Millisecond))
	esc := handler.Prepare(types.NewID(), "goal", nil, nil)

	_, err := handler.Wait(context.Background(), esc, make(chan Answer))
	require.Error(t, err)
	assert.Equal(t, types.ESCALATION_TIMEOUT, types.CodeOf(err))
}

func TestWaitHonorsContextCancellation(t *testing.T) {
	handler := NewHandler()
	esc := handler.Prepare(types.NewID(), "goal", nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handler.Wait(ctx, esc, make(chan Answer))
	require.Error(t, err)
	assert.Equal(t, types.ESCALATION_TIMEOUT, types.CodeOf(err))
}
