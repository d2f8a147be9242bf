package governor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/exec"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// retry wraps an attempt in a short bounded exponential backoff, so a
// single flaky network hiccup doesn't immediately fall through to the
// next, more drastic restart action.
func retry(ctx context.Context, op func() error) error {
	b := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 2)
	return backoff.Retry(op, backoff.WithContext(b, ctx))
}

// ControlPlaneAction calls the hosting provider's GraphQL API to trigger
// a redeploy of a known service.
type ControlPlaneAction struct {
	Token     string
	ProjectID string
	ServiceID string
	Endpoint  string
	Client    *http.Client
}

func (a *ControlPlaneAction) Name() string { return "control_plane_api" }

func (a *ControlPlaneAction) Attempt(ctx context.Context) error {
	if a.Token == "" || a.ServiceID == "" {
		return fmt.Errorf("control plane action not configured")
	}
	endpoint := a.Endpoint
	if endpoint == "" {
		endpoint = "https://backboard.railway.app/graphql/v2"
	}

	mutation := map[string]any{
		"query": `mutation ServiceInstanceRedeploy($serviceId: String!, $environmentId: String) {
			serviceInstanceRedeploy(serviceId: $serviceId, environmentId: $environmentId)
		}`,
		"variables": map[string]any{
			"serviceId":     a.ServiceID,
			"environmentId": a.ProjectID,
		},
	}
	body, err := json.Marshal(mutation)
	if err != nil {
		return err
	}

	return retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+a.Token)
		req.Header.Set("Content-Type", "application/json")

		resp, err := a.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return fmt.Errorf("control plane returned %d", resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("control plane returned %d", resp.StatusCode))
		}
		return nil
	})
}

// CLIAction shells out to the hosting provider's CLI redeploy command.
type CLIAction struct {
	Command string
	Args    []string
}

func (a *CLIAction) Name() string { return "cli_redeploy" }

func (a *CLIAction) Attempt(ctx context.Context) error {
	if a.Command == "" {
		return fmt.Errorf("cli action not configured")
	}
	return retry(ctx, func() error {
		cmd := exec.CommandContext(ctx, a.Command, a.Args...)
		out, err := cmd.CombinedOutput()
		if err != nil {
			return fmt.Errorf("%w: %s", err, string(out))
		}
		return nil
	})
}

// WebhookAction triggers a redeploy via an environment-provided HTTP
// webhook URL.
type WebhookAction struct {
	URL    string
	Client *http.Client
}

func (a *WebhookAction) Name() string { return "webhook" }

func (a *WebhookAction) Attempt(ctx context.Context) error {
	if a.URL == "" {
		return fmt.Errorf("webhook not configured")
	}
	return retry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.URL, nil)
		if err != nil {
			return backoff.Permanent(err)
		}
		resp, err := a.Client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned %d", resp.StatusCode)
		}
		return nil
	})
}

// PersistFunc stores last_redeploy_time before an emergency exit.
type PersistFunc func(ctx context.Context, unixTime int64) error

// EmergencyExitAction flushes state and exits the process, relying on
// the host supervisor to restart it. Gated by Allowed, default on.
type EmergencyExitAction struct {
	Allowed bool
	Persist PersistFunc
	Delay   time.Duration
	Exit    func(code int)
}

func (a *EmergencyExitAction) Name() string { return "emergency_exit" }

func (a *EmergencyExitAction) Attempt(ctx context.Context) error {
	if !a.Allowed {
		return fmt.Errorf("emergency exit disabled by ALLOW_EMERGENCY_EXIT=false")
	}
	if a.Persist != nil {
		if err := a.Persist(ctx, time.Now().Unix()); err != nil {
			log.Printf("⚠️ governor: failed to persist last_redeploy_time before exit: %v", err)
		}
	}

	delay := a.Delay
	if delay == 0 {
		delay = 2 * time.Second
	}
	exit := a.Exit
	if exit == nil {
		exit = os.Exit
	}

	go func() {
		time.Sleep(delay)
		exit(1)
	}()
	return nil
}
