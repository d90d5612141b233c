package client

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nfrund/courier/internal/domain"
	"github.com/nfrund/courier/internal/events"
)

const historyTimeout = 10 * time.Second

// Client is one identity's live session: a WebSocket for inbound events, an
// HTTP client for the REST surface, and at most one open ConversationView.
// Presence snapshots overwrite each other; only the latest matters.
type Client struct {
	self    string
	baseURL string
	header  http.Header
	httpc   *http.Client
	ws      *websocket.Conn
	logger  *slog.Logger

	mu     sync.Mutex
	view   *ConversationView
	online []string
	closed bool
}

// Dial connects to the server and starts the read loop. baseURL is the
// HTTP origin (http://host:port); header carries the session cookie and is
// sent on the upgrade and on every REST call.
func Dial(ctx context.Context, self, baseURL string, header http.Header) (*Client, error) {
	wsURL, err := websocketURL(baseURL)
	if err != nil {
		return nil, err
	}

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("websocket dial failed with status %d: %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("websocket dial failed: %w", err)
	}

	c := &Client{
		self:    self,
		baseURL: strings.TrimRight(baseURL, "/"),
		header:  header,
		httpc:   &http.Client{Timeout: historyTimeout},
		ws:      ws,
		logger:  slog.Default().With("service", "client", "identity", self),
	}
	go c.readLoop()
	return c, nil
}

func websocketURL(baseURL string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// readLoop applies every inbound event until the socket dies.
func (c *Client) readLoop() {
	for {
		_, payload, err := c.ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			closed := c.closed
			c.mu.Unlock()
			if !closed {
				c.logger.Debug("Event stream ended", "error", err)
			}
			return
		}
		c.apply(payload)
	}
}

// apply routes one wire event. Unknown event types are logged and skipped
// so the client survives a newer server.
func (c *Client) apply(payload []byte) {
	env, err := events.Decode(payload)
	if err != nil {
		c.logger.Warn("Discarding malformed event", "error", err)
		return
	}

	switch env.Event {
	case events.TypePresence:
		users, err := env.Presence()
		if err != nil {
			c.logger.Warn("Discarding malformed presence event", "error", err)
			return
		}
		c.mu.Lock()
		c.online = users
		c.mu.Unlock()

	case events.TypeMessageCreated:
		msg, err := env.MessageCreated()
		if err != nil {
			c.logger.Warn("Discarding malformed messageCreated event", "error", err)
			return
		}
		if view := c.currentView(); view != nil {
			view.ApplyCreated(msg)
		}

	case events.TypeMessageDeleted:
		id, err := env.MessageDeleted()
		if err != nil {
			c.logger.Warn("Discarding malformed messageDeleted event", "error", err)
			return
		}
		if view := c.currentView(); view != nil {
			view.ApplyDeleted(id)
		}

	default:
		c.logger.Debug("Ignoring unknown event type", "event", env.Event)
	}
}

func (c *Client) currentView() *ConversationView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.view
}

// OpenConversation discards any current view, installs a Loading view for
// peer, and runs the history fetch. Events arriving between the install and
// the fetch result are buffered by the view and replayed, so nothing the
// fetch raced past is lost.
func (c *Client) OpenConversation(ctx context.Context, peer string) (*ConversationView, error) {
	view := NewConversationView(c.self, peer)

	c.mu.Lock()
	c.view = view
	c.mu.Unlock()

	history, err := c.fetchHistory(ctx, peer)
	if err != nil {
		return nil, err
	}
	view.LoadHistory(history)
	return view, nil
}

func (c *Client) fetchHistory(ctx context.Context, peer string) ([]*domain.Message, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/messages/"+url.PathEscape(peer), nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range c.header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("history fetch failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("history fetch returned status %d", resp.StatusCode)
	}

	var history []*domain.Message
	if err := json.NewDecoder(resp.Body).Decode(&history); err != nil {
		return nil, fmt.Errorf("malformed history response: %w", err)
	}
	return history, nil
}

// Online returns the latest presence snapshot.
func (c *Client) Online() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.online...)
}

// Close tears down the socket.
func (c *Client) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return c.ws.Close()
}
