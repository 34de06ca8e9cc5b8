package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"statusboard/internal/feed"
	"statusboard/internal/presence"
)

// FeedPath is the server's change feed endpoint.
const FeedPath = "/ws/workers"

// WSDialer opens change feed subscriptions with gorilla/websocket.
type WSDialer struct {
	baseURL     string
	token       func() string
	readTimeout time.Duration
	dialer      *websocket.Dialer
}

var _ presence.FeedDialer = (*WSDialer)(nil)

// NewWSDialer derives the websocket URL from an http(s) base URL. token is
// read on every dial so a refreshed login is picked up.
func NewWSDialer(baseURL string, token func() string, readTimeout time.Duration) *WSDialer {
	if readTimeout <= 0 {
		readTimeout = 75 * time.Second
	}
	d := *websocket.DefaultDialer
	d.HandshakeTimeout = 10 * time.Second
	return &WSDialer{
		baseURL:     strings.TrimRight(baseURL, "/"),
		token:       token,
		readTimeout: readTimeout,
		dialer:      &d,
	}
}

func (d *WSDialer) Dial(ctx context.Context, channel string) (presence.FeedConn, error) {
	u, err := feedURL(d.baseURL)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("channel", channel)
	if d.token != nil {
		if t := d.token(); t != "" {
			q.Set("token", t)
		}
	}
	u.RawQuery = q.Encode()

	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, &HTTPError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		}
		return nil, err
	}
	c := &wsConn{conn: conn, readTimeout: d.readTimeout}
	_ = conn.SetReadDeadline(time.Now().Add(d.readTimeout))
	conn.SetPingHandler(func(data string) error {
		_ = conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(5*time.Second))
	})
	return c, nil
}

func feedURL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + FeedPath
	return u, nil
}

type wsConn struct {
	conn        *websocket.Conn
	readTimeout time.Duration
}

// ReadFrame skips messages that are not frames.
func (c *wsConn) ReadFrame() (feed.Frame, error) {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return feed.Frame{}, err
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		if f, err := feed.Decode(data); err == nil {
			return f, nil
		}
	}
}

func (c *wsConn) Close() error {
	return c.conn.Close()
}
