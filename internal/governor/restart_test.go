package governor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestEmergencyExitGatedByAllowed(t *testing.T) {
	a := &EmergencyExitAction{Allowed: false}
	err := a.Attempt(context.Background())
	require.Error(t, err)
}

func TestEmergencyExitPersistsAndExits(t *testing.T) {
	persisted := false
	exited := make(chan int, 1)

	a := &EmergencyExitAction{
		Allowed: true,
		Delay:   1 * time.Millisecond,
		Persist: func(ctx context.Context, unixTime int64) error {
			persisted = true
			return nil
		},
		Exit: func(code int) { exited <- code },
	}

	err := a.Attempt(context.Background())
	require.NoError(t, err)
	require.True(t, persisted)

	select {
	case code := <-exited:
		require.Equal(t, 1, code)
	case <-time.After(time.Second):
		t.Fatal("exit was never called")
	}
}

func TestCLIActionRequiresConfiguredCommand(t *testing.T) {
	a := &CLIAction{}
	require.Error(t, a.Attempt(context.Background()))
}

func TestWebhookActionRequiresURL(t *testing.T) {
	a := &WebhookAction{}
	require.Error(t, a.Attempt(context.Background()))
}
