package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
)

// ErrClosed is returned by calls on a client whose connection is gone.
var ErrClosed = errors.New("worker connection closed")

// Client holds one persistent connection to the worker. Calls may be issued
// concurrently; events are published on the bus as they arrive.
type Client struct {
	conn   net.Conn
	addr   string
	bus    *events.EventBus
	logger *logging.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[string]chan *Response
	err     error // set once the connection is gone

	done chan struct{}
}

// Dial connects to the worker at addr. Events received on the connection are
// published on bus.
func Dial(ctx context.Context, addr string, timeout time.Duration, bus *events.EventBus) (*Client, error) {
	if timeout <= 0 {
		timeout = constants.WorkerDialTimeout
	}
	conn, err := dial(ctx, addr, timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to worker at %s: %w", addr, err)
	}
	return NewClient(conn, addr, bus), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, addr string, bus *events.EventBus) *Client {
	c := &Client{
		conn:    conn,
		addr:    addr,
		bus:     bus,
		logger:  logging.NewLogger("ipc"),
		pending: make(map[string]chan *Response),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Addr returns the address the client is connected to.
func (c *Client) Addr() string { return c.addr }

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} { return c.done }

// Close closes the connection. Outstanding calls fail with ErrClosed.
func (c *Client) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}

// Call sends cmd and waits for its response. A response reporting failure is
// returned as a *models.WorkerError. out, if non-nil, receives the response data.
func (c *Client) Call(ctx context.Context, cmd Command, generation uint64, args, out any) error {
	req, err := NewRequest(cmd, generation, args)
	if err != nil {
		return err
	}
	line, err := Encode(req)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	ch := make(chan *Response, 1)
	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return err
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	_, err = c.conn.Write(line)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(req.ID)
		return fmt.Errorf("failed to send %s: %w", cmd, err)
	}

	c.logger.Debug().Str("command", string(cmd)).Str("id", req.ID).Uint64("generation", generation).Msg("Request sent")

	select {
	case resp, ok := <-ch:
		if !ok {
			return c.closedErr()
		}
		if !resp.Success {
			return &models.WorkerError{Command: string(cmd), Message: resp.Error}
		}
		if out != nil {
			if err := resp.DecodeData(out); err != nil {
				return fmt.Errorf("failed to decode %s result: %w", cmd, err)
			}
		}
		return nil
	case <-ctx.Done():
		c.forget(req.ID)
		return ctx.Err()
	}
}

// GetUpdateCheckStatus queries whether the update check has completed.
func (c *Client) GetUpdateCheckStatus(ctx context.Context) (models.UpdateCheckStatus, error) {
	var status models.UpdateCheckStatus
	err := c.Call(ctx, CmdGetUpdateCheckStatus, 0, nil, &status)
	return status, err
}

// Install runs the installation. Progress arrives on install-progress.
func (c *Client) Install(ctx context.Context, generation uint64) error {
	return c.Call(ctx, CmdInstall, generation, nil, nil)
}

// CreatePatch builds a patch from req. Progress arrives on create-patch-progress.
func (c *Client) CreatePatch(ctx context.Context, generation uint64, req models.CreatePatchRequest) (models.CreatePatchResult, error) {
	var res models.CreatePatchResult
	err := c.Call(ctx, CmdCreatePatch, generation, req, &res)
	return res, err
}

func (c *Client) forget(id string) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) closedErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	return ErrClosed
}

// readLoop routes responses to their callers and events to the bus until the
// connection ends, then fails every outstanding call.
func (c *Client) readLoop() {
	defer close(c.done)

	scanner := bufio.NewScanner(c.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.WorkerMaxMessageSize)

	for scanner.Scan() {
		msg, err := Decode(scanner.Bytes())
		if err != nil {
			c.logger.Warn().Err(err).Msg("Failed to decode worker message")
			continue
		}

		switch m := msg.(type) {
		case *Response:
			c.mu.Lock()
			ch, ok := c.pending[m.ID]
			delete(c.pending, m.ID)
			c.mu.Unlock()
			if !ok {
				c.logger.Debug().Str("id", m.ID).Msg("Response for unknown request dropped")
				continue
			}
			ch <- m
		case *Event:
			if c.bus != nil {
				c.bus.PublishWorkerEvent(m.Channel, m.Generation, m.Payload)
			}
		case *Request:
			c.logger.Warn().Str("command", string(m.Command)).Msg("Unexpected request from worker")
		}
	}

	err := ErrClosed
	if serr := scanner.Err(); serr != nil && !errors.Is(serr, net.ErrClosed) {
		c.logger.Warn().Err(serr).Msg("Worker connection failed")
		err = fmt.Errorf("%w: %v", ErrClosed, serr)
	}
	c.conn.Close()

	c.mu.Lock()
	c.err = err
	pending := c.pending
	c.pending = make(map[string]chan *Response)
	c.mu.Unlock()

	for _, ch := range pending {
		close(ch)
	}
}
