package workflow

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectologger"
)

// Dispatcher sends a payload to a host-managed durable execution
// facility. It reports false when the facility is unavailable or
// rejects the request; it never returns an error because unavailability
// is an expected condition, not a failure.
type Dispatcher interface {
	Dispatch(ctx context.Context, path string, payload any) bool
}

// HTTPDispatcher dispatches over HTTP. A non-2xx response counts as
// unavailable.
type HTTPDispatcher struct {
	baseURL string
	client  *http.Client
	logger  ectologger.Logger
}

// NewHTTPDispatcher creates a dispatcher against the facility at baseURL.
func NewHTTPDispatcher(baseURL string, timeout time.Duration, logger ectologger.Logger) *HTTPDispatcher {
	return &HTTPDispatcher{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, path string, payload any) bool {
	body, err := json.Marshal(payload)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to encode durable dispatch payload")
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.baseURL+path, bytes.NewReader(body))
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Warn("Failed to build durable dispatch request")
		return false
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		d.logger.WithContext(ctx).WithError(err).Debug("Durable execution facility unreachable")
		return false
	}
	defer resp.Body.Close()

	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

// RemoteRunner prefers a durable execution facility and silently falls
// back to local execution whenever dispatch fails. The step body always
// runs in this process; the facility only checkpoints step boundaries
// and owns sleeps.
type RemoteRunner struct {
	dispatcher Dispatcher
	local      *LocalRunner
}

// NewRemoteRunner creates a runner that checkpoints through dispatcher.
func NewRemoteRunner(dispatcher Dispatcher, local *LocalRunner) *RemoteRunner {
	return &RemoteRunner{dispatcher: dispatcher, local: local}
}

type stepCheckpoint struct {
	Step   string `json:"step"`
	Status string `json:"status"`
}

func (r *RemoteRunner) RunStep(ctx context.Context, name string, fn StepFunc) (any, error) {
	r.dispatcher.Dispatch(ctx, "/steps", stepCheckpoint{Step: name, Status: "started"})

	result, err := r.local.RunStep(ctx, name, fn)

	status := "completed"
	if err != nil {
		status = "failed"
	}
	r.dispatcher.Dispatch(ctx, "/steps", stepCheckpoint{Step: name, Status: status})

	return result, err
}

func (r *RemoteRunner) Sleep(ctx context.Context, d time.Duration) error {
	if r.dispatcher.Dispatch(ctx, "/sleep", map[string]any{"duration": fmt.Sprintf("%dms", d.Milliseconds())}) {
		return nil
	}
	return r.local.Sleep(ctx, d)
}
