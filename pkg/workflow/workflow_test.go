package workflow

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

// recordingDispatcher captures dispatches and answers with a fixed
// availability.
type recordingDispatcher struct {
	mu        sync.Mutex
	available bool
	paths     []string
	payloads  []any
}

func (d *recordingDispatcher) Dispatch(_ context.Context, path string, payload any) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths = append(d.paths, path)
	d.payloads = append(d.payloads, payload)
	return d.available
}

func TestLocalRunner(t *testing.T) {
	runner := NewLocalRunner(testLogger())

	t.Run("should return the step result", func(t *testing.T) {
		result, err := runner.RunStep(context.Background(), "resolve-profile", func(_ context.Context) (any, error) {
			return "profile-1", nil
		})
		require.NoError(t, err)
		assert.Equal(t, "profile-1", result)
	})

	t.Run("should return the step error unchanged", func(t *testing.T) {
		stepErr := errors.New("ledger unavailable")
		result, err := runner.RunStep(context.Background(), "record-interaction", func(_ context.Context) (any, error) {
			return nil, stepErr
		})
		assert.Nil(t, result)
		assert.Equal(t, stepErr, err)
	})

	t.Run("should sleep for the full duration", func(t *testing.T) {
		start := time.Now()
		err := runner.Sleep(context.Background(), 20*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})

	t.Run("should abort sleep on context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(10 * time.Millisecond)
			cancel()
		}()
		start := time.Now()
		err := runner.Sleep(ctx, time.Minute)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Less(t, time.Since(start), time.Second)
	})
}

func TestRemoteRunner(t *testing.T) {
	local := NewLocalRunner(testLogger())

	t.Run("should checkpoint step boundaries when the facility is up", func(t *testing.T) {
		dispatcher := &recordingDispatcher{available: true}
		runner := NewRemoteRunner(dispatcher, local)

		result, err := runner.RunStep(context.Background(), "resolve-profile", func(_ context.Context) (any, error) {
			return 42, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 42, result)

		require.Len(t, dispatcher.paths, 2)
		assert.Equal(t, []string{"/steps", "/steps"}, dispatcher.paths)
		assert.Equal(t, stepCheckpoint{Step: "resolve-profile", Status: "started"}, dispatcher.payloads[0])
		assert.Equal(t, stepCheckpoint{Step: "resolve-profile", Status: "completed"}, dispatcher.payloads[1])
	})

	t.Run("should checkpoint failure and still surface the error", func(t *testing.T) {
		dispatcher := &recordingDispatcher{available: true}
		runner := NewRemoteRunner(dispatcher, local)

		_, err := runner.RunStep(context.Background(), "record-interaction", func(_ context.Context) (any, error) {
			return nil, errors.New("insert failed")
		})
		require.Error(t, err)
		require.Len(t, dispatcher.payloads, 2)
		assert.Equal(t, stepCheckpoint{Step: "record-interaction", Status: "failed"}, dispatcher.payloads[1])
	})

	t.Run("should run the step locally even when dispatch fails", func(t *testing.T) {
		dispatcher := &recordingDispatcher{available: false}
		runner := NewRemoteRunner(dispatcher, local)

		ran := false
		result, err := runner.RunStep(context.Background(), "upsert-mail-thread", func(_ context.Context) (any, error) {
			ran = true
			return "thread-1", nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Equal(t, "thread-1", result)
	})

	t.Run("should delegate sleep to the facility when available", func(t *testing.T) {
		dispatcher := &recordingDispatcher{available: true}
		runner := NewRemoteRunner(dispatcher, local)

		start := time.Now()
		err := runner.Sleep(context.Background(), time.Minute)
		require.NoError(t, err)
		assert.Less(t, time.Since(start), time.Second)
		assert.Equal(t, []string{"/sleep"}, dispatcher.paths)
	})

	t.Run("should fall back to a local sleep when dispatch fails", func(t *testing.T) {
		dispatcher := &recordingDispatcher{available: false}
		runner := NewRemoteRunner(dispatcher, local)

		start := time.Now()
		err := runner.Sleep(context.Background(), 20*time.Millisecond)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
	})
}

func TestHTTPDispatcher(t *testing.T) {
	t.Run("should report available on a 2xx response", func(t *testing.T) {
		var gotPath string
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotPath = r.URL.Path
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			w.WriteHeader(http.StatusAccepted)
		}))
		defer server.Close()

		d := NewHTTPDispatcher(server.URL, time.Second, testLogger())
		assert.True(t, d.Dispatch(context.Background(), "/steps", stepCheckpoint{Step: "x", Status: "started"}))
		assert.Equal(t, "/steps", gotPath)
	})

	t.Run("should report unavailable on a non-2xx response", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		}))
		defer server.Close()

		d := NewHTTPDispatcher(server.URL, time.Second, testLogger())
		assert.False(t, d.Dispatch(context.Background(), "/steps", stepCheckpoint{Step: "x", Status: "started"}))
	})

	t.Run("should report unavailable when the facility is unreachable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {}))
		server.Close()

		d := NewHTTPDispatcher(server.URL, 100*time.Millisecond, testLogger())
		assert.False(t, d.Dispatch(context.Background(), "/sleep", map[string]any{"duration": "5ms"}))
	})
}
