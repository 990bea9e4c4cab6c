package hub

import (
	"sync"

	"github.com/google/uuid"
)

// Client represents a single client connection. Outbound frames are queued on a buffered
// channel that the transport drains in order.
type Client struct {
	ID uuid.UUID

	send chan []byte
	done chan struct{}

	mu       sync.Mutex
	closed   bool
	failOnce sync.Once
	// seats maps session name to the player this connection acts as there.
	seats map[string]string
}

func newClient(buffer int) *Client {
	return &Client{
		ID:    uuid.New(),
		send:  make(chan []byte, buffer),
		done:  make(chan struct{}),
		seats: make(map[string]string),
	}
}

// Send yields queued frames. It is closed when the hub disconnects the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// Done is closed when the client fell too far behind and its transport must be dropped.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Seat returns the player name this connection holds in the session.
func (c *Client) Seat(sessionName string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.seats[sessionName]
	return p, ok
}

// Seats returns a copy of the session -> player bindings.
func (c *Client) Seats() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]string, len(c.seats))
	for s, p := range c.seats {
		out[s] = p
	}
	return out
}

func (c *Client) bind(sessionName, player string) {
	c.mu.Lock()
	c.seats[sessionName] = player
	c.mu.Unlock()
}

func (c *Client) unbind(sessionName string) {
	c.mu.Lock()
	delete(c.seats, sessionName)
	c.mu.Unlock()
}

// enqueue never blocks. It reports false when the frame was dropped.
func (c *Client) enqueue(frame []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- frame:
		return true
	default:
		// A skipped snapshot would leave the client on stale state, so the
		// connection is failed instead and its seats are released.
		c.fail()
		return false
	}
}

func (c *Client) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Client) fail() {
	c.failOnce.Do(func() { close(c.done) })
}

// shutdown stops further sends and closes the send channel. It reports false if already shut.
func (c *Client) shutdown() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.closed = true
	close(c.send)
	return true
}
