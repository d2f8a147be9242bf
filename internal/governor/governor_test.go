package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type countingAction struct {
	name    string
	succeed bool
	calls   int
}

func (a *countingAction) Name() string { return a.name }
func (a *countingAction) Attempt(ctx context.Context) error {
	a.calls++
	if a.succeed {
		return nil
	}
	return errAttemptFailed
}

var errAttemptFailed = attemptFailedErr{}

type attemptFailedErr struct{}

func (attemptFailedErr) Error() string { return "attempt failed" }

func TestCriticalTriggerBypassesCooldown(t *testing.T) {
	action := &countingAction{name: "test", succeed: true}
	g := New(DefaultConfig(), []RestartAction{action})

	for i := 0; i < 99; i++ {
		g.ReportError(context.Background(), Error429)
	}
	require.Equal(t, 0, action.calls)

	g.ReportError(context.Background(), Error429)
	require.Equal(t, 1, action.calls)
}

func TestNormalTriggerRequiresElapsedAndErrorCount(t *testing.T) {
	action := &countingAction{name: "test", succeed: true}
	g := New(Config{
		SuccessThreshold:  10,
		RedeployThreshold: 1 * time.Millisecond,
		MaxHTTPErrors:     3,
		MinInterval:       0,
	}, []RestartAction{action})

	fixed := time.Now()
	g.now = func() time.Time { return fixed }

	g.ReportError(context.Background(), Error401)
	g.ReportError(context.Background(), Error401)
	require.Equal(t, 0, action.calls)

	fixed = fixed.Add(5 * time.Millisecond)
	g.ReportError(context.Background(), Error401)
	require.Equal(t, 1, action.calls)
}

func TestSuccessStreakResetsCounters(t *testing.T) {
	g := New(DefaultConfig(), nil)
	g.ReportError(context.Background(), Error403)

	for i := 0; i < 10; i++ {
		g.ReportSuccess(context.Background())
	}

	snap := g.Snapshot()
	require.Equal(t, 0, snap.Error403)
}

func TestFallsThroughActionsInOrder(t *testing.T) {
	first := &countingAction{name: "first", succeed: false}
	second := &countingAction{name: "second", succeed: true}
	g := New(Config{SuccessThreshold: 10, RedeployThreshold: time.Millisecond, MaxHTTPErrors: 1, MinInterval: 0}, []RestartAction{first, second})

	for i := 0; i < 100; i++ {
		g.ReportError(context.Background(), Error401)
	}

	require.Equal(t, 1, first.calls)
	require.Equal(t, 1, second.calls)
}
