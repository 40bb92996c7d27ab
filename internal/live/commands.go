package live

import (
	"context"
	"strings"

	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/monitoring"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

// Commands issues the one-way logging controls. The outcome arrives later as
// a status on the live stream, so responses are only logged.
type Commands struct {
	baseURL string
	client  httputil.HTTPClient
	logf    func(format string, v ...interface{})
}

// NewCommands returns a command dispatcher for the server at baseURL.
func NewCommands(baseURL string, client httputil.HTTPClient) *Commands {
	return &Commands{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		logf:    monitoring.Component("commands"),
	}
}

// StartLogging asks the server to begin recording a session.
func (c *Commands) StartLogging(ctx context.Context) error {
	return c.post(ctx, "/api/start-logging")
}

// StopLogging asks the server to stop recording and save the session.
func (c *Commands) StopLogging(ctx context.Context) error {
	return c.post(ctx, "/api/stop-logging")
}

func (c *Commands) post(ctx context.Context, path string) error {
	body, err := httputil.PostJSON(ctx, c.client, c.baseURL+path, nil)
	if err != nil {
		c.logf("POST %s: %v", path, err)
		return &telemetry.TransportError{Op: "POST " + path, Err: err}
	}
	c.logf("POST %s: %s", path, strings.TrimSpace(string(body)))
	return nil
}
