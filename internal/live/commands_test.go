package live

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/stroke.report/internal/httputil"
	"github.com/banshee-data/stroke.report/internal/telemetry"
)

func TestCommands(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(http.StatusOK, `{"status":"Logging Started"}`)
	client.AddResponse(http.StatusOK, `{"status":"Logging Stopped"}`)

	cmds := NewCommands("http://127.0.0.1:8000/", client)
	require.NoError(t, cmds.StartLogging(context.Background()))
	require.NoError(t, cmds.StopLogging(context.Background()))

	require.Equal(t, 2, client.RequestCount())
	start := client.GetRequest(0)
	assert.Equal(t, http.MethodPost, start.Method)
	assert.Equal(t, "http://127.0.0.1:8000/api/start-logging", start.URL.String())
	assert.Equal(t, "/api/stop-logging", client.GetRequest(1).URL.Path)
}

func TestCommandsTransportError(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddErrorResponse(errors.New("connection refused"))

	err := NewCommands("http://127.0.0.1:8000", client).StartLogging(context.Background())
	var terr *telemetry.TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "POST /api/start-logging", terr.Op)
}
