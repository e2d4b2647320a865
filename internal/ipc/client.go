package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/chaz8081/hapticlink/internal/eventlog"
)

// Client talks to a running daemon.
type Client struct {
	path string
}

// NewClient returns a client for the socket at path.
func NewClient(path string) *Client {
	return &Client{path: path}
}

func (c *Client) dial() (net.Conn, error) {
	conn, err := net.Dial("unix", c.path)
	if err != nil {
		return nil, fmt.Errorf("connect to daemon: %w (is `hapticlink daemon` running?)", err)
	}
	return conn, nil
}

// Call sends req and returns the daemon's response. A daemon-side error is
// returned as an error along with the response.
func (c *Client) Call(req Request) (Response, error) {
	conn, err := c.dial()
	if err != nil {
		return Response{}, err
	}
	defer conn.Close()

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

// Subscribe streams events to fn until ctx is done or the daemon closes the
// stream. The initial status is returned to onStatus, if non-nil.
func (c *Client) Subscribe(ctx context.Context, onStatus func(Response), fn func(eventlog.Record)) error {
	conn, err := c.dial()
	if err != nil {
		return err
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	if err := json.NewEncoder(conn).Encode(Request{Command: CmdSubscribe}); err != nil {
		return fmt.Errorf("send request: %w", err)
	}

	dec := json.NewDecoder(conn)
	var status Response
	if err := dec.Decode(&status); err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if status.Error != "" {
		return errors.New(status.Error)
	}
	if onStatus != nil {
		onStatus(status)
	}

	for {
		var rec eventlog.Record
		if err := dec.Decode(&rec); err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		fn(rec)
	}
}
