package worker_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/killmongerinheret/vinted-watch/internal/worker"
)

func TestRunRespectsCancellationDuringStartDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	done := make(chan struct{})
	go func() {
		w := &worker.Worker{StartDelay: time.Hour}
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-done:
		require.Less(t, time.Since(start), time.Second)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not observe cancellation during start delay")
	}
}
