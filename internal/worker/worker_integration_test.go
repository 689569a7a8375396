// internal/worker/worker_integration_test.go
package worker_test

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/umbra/internal/worker"
)

func TestWorkerIntegration_RequestResponseSequence(t *testing.T) {
	script := `onmessage = function(e) { postMessage(e.data * 2); };`
	w, err := worker.Spawn(context.Background(), "doubler", script, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Terminate()

	replies := make(chan []byte, 1)
	w.OnMessage(func(data []byte) { replies <- data })

	var results []string
	for i := 1; i <= 5; i++ {
		require.NoError(t, w.PostMessage(i))
		results = append(results, string(waitForMessage(t, replies)))
	}

	assert.Equal(t, []string{"2", "4", "6", "8", "10"}, results)
}

func TestWorkerIntegration_StatePersistsAcrossMessages(t *testing.T) {
	script := `
		var total = 0;
		onmessage = function(e) {
			total += e.data;
			postMessage(total);
		};
	`
	w, err := worker.Spawn(context.Background(), "accumulator", script, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Terminate()

	replies := make(chan []byte, 1)
	w.OnMessage(func(data []byte) { replies <- data })

	var totals []string
	for _, n := range []int{1, 2, 3} {
		require.NoError(t, w.PostMessage(n))
		totals = append(totals, string(waitForMessage(t, replies)))
	}

	assert.Equal(t, []string{"1", "3", "6"}, totals)
}

func TestWorkerIntegration_TimersRunOnTheLoop(t *testing.T) {
	script := `
		var count = 0;
		var timer = setInterval(function() {
			count++;
			postMessage("tick " + count);
			if (count === 3) {
				clearInterval(timer);
				postMessage("done");
			}
		}, 5);
	`
	w, err := worker.Spawn(context.Background(), "ticker", script, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Terminate()

	replies := make(chan []byte, 8)
	w.OnMessage(func(data []byte) { replies <- data })

	var got []string
	deadline := time.After(5 * time.Second)
	for {
		select {
		case raw := <-replies:
			got = append(got, string(raw))
		case <-deadline:
			t.Fatalf("timed out waiting for ticks, got %v", got)
		}
		if len(got) > 0 && got[len(got)-1] == `"done"` {
			break
		}
	}

	assert.Equal(t, []string{`"tick 1"`, `"tick 2"`, `"tick 3"`, `"done"`}, got)
}

func TestWorkerIntegration_WorkersAreIsolated(t *testing.T) {
	// Each worker owns its runtime. Globals with the same name never
	// leak between them.
	script := `
		var secret = name + "-secret";
		onmessage = function(e) { postMessage(secret); };
	`
	logger := zaptest.NewLogger(t)

	alpha, err := worker.Spawn(context.Background(), "alpha", script, logger)
	require.NoError(t, err)
	defer alpha.Terminate()

	beta, err := worker.Spawn(context.Background(), "beta", script, logger)
	require.NoError(t, err)
	defer beta.Terminate()

	fromAlpha := make(chan []byte, 1)
	alpha.OnMessage(func(data []byte) { fromAlpha <- data })
	fromBeta := make(chan []byte, 1)
	beta.OnMessage(func(data []byte) { fromBeta <- data })

	require.NoError(t, alpha.PostMessage(nil))
	require.NoError(t, beta.PostMessage(nil))

	assert.Equal(t, `"alpha-secret"`, string(waitForMessage(t, fromAlpha)))
	assert.Equal(t, `"beta-secret"`, string(waitForMessage(t, fromBeta)))
}

func TestWorkerIntegration_ManyMessagesKeepOrder(t *testing.T) {
	script := `onmessage = function(e) { postMessage(e.data); };`
	w, err := worker.Spawn(context.Background(), "relay", script, zaptest.NewLogger(t))
	require.NoError(t, err)
	defer w.Terminate()

	const count = 100
	replies := make(chan []byte, count)
	w.OnMessage(func(data []byte) { replies <- data })

	for i := 0; i < count; i++ {
		require.NoError(t, w.PostMessage(i))
	}

	for i := 0; i < count; i++ {
		assert.Equal(t, strconv.Itoa(i), string(waitForMessage(t, replies)))
	}
}
