package ipc

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/go-json-experiment/json"
)

// Client talks to a Server.
type Client struct {
	nc     net.Conn
	wmu    sync.Mutex
	nextID atomic.Int64

	mu      sync.Mutex
	pending map[int64]chan message
	err     error

	events chan string
	done   chan struct{}
}

// Dial connects to the control socket at path.
func Dial(path string) (*Client, error) {
	nc, err := net.Dial("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", path, err)
	}
	c := &Client{
		nc:      nc,
		pending: make(map[int64]chan message),
		events:  make(chan string, 32),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

// Events returns the events pushed by the server. The channel is closed
// when the connection ends. Events arriving while it is full are dropped.
func (c *Client) Events() <-chan string { return c.events }

// Done is closed when the connection ends.
func (c *Client) Done() <-chan struct{} { return c.done }

// Command runs a command on the server.
func (c *Client) Command(ctx context.Context, args ...string) error {
	_, err := c.call(ctx, args)
	return err
}

// Property reads a property. Numbers decode as float64.
func (c *Client) Property(ctx context.Context, name string) (any, error) {
	return c.call(ctx, []string{"get_property", name})
}

func (c *Client) call(ctx context.Context, args []string) (any, error) {
	id := c.nextID.Add(1)
	ch := make(chan message, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return nil, c.err
	}
	c.pending[id] = ch
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	cmd := make([]any, len(args))
	for i, a := range args {
		cmd[i] = a
	}
	b, err := json.Marshal(Request{Command: cmd, RequestID: id})
	if err != nil {
		return nil, err
	}
	b = append(b, '\n')

	c.wmu.Lock()
	_, err = c.nc.Write(b)
	c.wmu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrClosed, err)
	}

	select {
	case m := <-ch:
		if m.Error != success {
			return nil, fmt.Errorf("%w: %s", ErrCommand, m.Error)
		}
		return m.Data, nil
	case <-c.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (c *Client) readLoop() {
	defer close(c.events)
	defer close(c.done)

	sc := bufio.NewScanner(c.nc)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		var m message
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			continue
		}
		if m.Event != "" {
			select {
			case c.events <- m.Event:
			default:
			}
			continue
		}
		c.mu.Lock()
		ch := c.pending[m.RequestID]
		c.mu.Unlock()
		if ch != nil {
			ch <- m
		}
	}

	c.mu.Lock()
	c.err = ErrClosed
	c.mu.Unlock()
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.nc.Close()
}
