package live

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/coder/websocket"
)

// ErrStreamClosed marks a read that ended because the peer closed the stream
// with a close frame, as opposed to a transport failure.
var ErrStreamClosed = errors.New("live stream closed")

// Conn is one established live stream connection.
type Conn interface {
	// Read blocks for the next message payload.
	Read(ctx context.Context) ([]byte, error)
	Close() error
}

// Dialer opens live stream connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// WebsocketDialer dials the live stream over a websocket.
type WebsocketDialer struct {
	// ReadLimit caps the size of a single message; zero keeps the library
	// default.
	ReadLimit int64
}

// Dial connects to url.
func (d WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	c, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	if d.ReadLimit > 0 {
		c.SetReadLimit(d.ReadLimit)
	}
	return &wsConn{c: c}, nil
}

type wsConn struct {
	c *websocket.Conn
}

func (w *wsConn) Read(ctx context.Context) ([]byte, error) {
	_, data, err := w.c.Read(ctx)
	if err != nil {
		if websocket.CloseStatus(err) != -1 {
			return nil, fmt.Errorf("%w: %v", ErrStreamClosed, err)
		}
		return nil, err
	}
	return data, nil
}

func (w *wsConn) Close() error {
	return w.c.Close(websocket.StatusNormalClosure, "")
}

// StreamURL derives the /ws/live endpoint from the server base URL.
func StreamURL(serverURL string) (string, error) {
	u, err := url.Parse(serverURL)
	if err != nil {
		return "", fmt.Errorf("invalid server url %q: %w", serverURL, err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported server url scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/ws/live"
	u.RawQuery = ""
	return u.String(), nil
}
