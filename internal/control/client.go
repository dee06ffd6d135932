// ABOUTME: WebSocket client for the control API
// ABOUTME: Handles connection, command round trips and state push routing
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client drives a capture server over its control API. Command round trips
// are serialized; asynchronous state pushes arrive on the StateChanges
// channel.
type Client struct {
	addr string
	conn *websocket.Conn
	mu   sync.Mutex

	// StateChanges receives session state push notifications.
	StateChanges chan StatePayload

	responses chan Response
	connected bool
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewClient creates a control client for the given server address.
func NewClient(addr string) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		addr:         addr,
		StateChanges: make(chan StatePayload, 10),
		responses:    make(chan Response, 1),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Connect establishes the WebSocket connection.
func (c *Client) Connect() error {
	u := url.URL{Scheme: "ws", Host: c.addr, Path: "/control"}
	log.Printf("Connecting to %s", u.String())

	conn, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial failed: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	go c.readMessages()
	return nil
}

// Do sends a command and waits for its response.
func (c *Client) Do(cmd Command) (Response, error) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return Response{}, fmt.Errorf("not connected")
	}
	err := c.conn.WriteJSON(cmd)
	c.mu.Unlock()
	if err != nil {
		return Response{}, fmt.Errorf("send %s: %w", cmd.Type, err)
	}

	select {
	case resp := <-c.responses:
		if resp.Error != "" {
			return resp, fmt.Errorf("%s: %s", cmd.Type, resp.Error)
		}
		return resp, nil
	case <-time.After(10 * time.Second):
		return Response{}, fmt.Errorf("%s: response timeout", cmd.Type)
	case <-c.ctx.Done():
		return Response{}, fmt.Errorf("%s: connection closed", cmd.Type)
	}
}

// Start starts the capture session.
func (c *Client) Start() error {
	_, err := c.Do(Command{Type: CmdStart})
	return err
}

// Stop stops the capture session.
func (c *Client) Stop() error {
	_, err := c.Do(Command{Type: CmdStop})
	return err
}

// Pause pauses the capture session.
func (c *Client) Pause() error {
	_, err := c.Do(Command{Type: CmdPause})
	return err
}

// Resume resumes a paused capture session.
func (c *Client) Resume() error {
	_, err := c.Do(Command{Type: CmdResume})
	return err
}

// Stats fetches a session statistics snapshot.
func (c *Client) Stats() (StatsPayload, error) {
	resp, err := c.Do(Command{Type: CmdStats})
	if err != nil {
		return StatsPayload{}, err
	}
	var stats StatsPayload
	if err := reencode(resp.Payload, &stats); err != nil {
		return StatsPayload{}, fmt.Errorf("parse stats: %w", err)
	}
	return stats, nil
}

// AddOutput adds a sink on the server and returns its descriptor.
func (c *Client) AddOutput(payload AddOutputPayload) (OutputInfo, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return OutputInfo{}, err
	}
	resp, err := c.Do(Command{Type: CmdAddOutput, Payload: raw})
	if err != nil {
		return OutputInfo{}, err
	}
	var info OutputInfo
	if err := reencode(resp.Payload, &info); err != nil {
		return OutputInfo{}, fmt.Errorf("parse output info: %w", err)
	}
	return info, nil
}

// Outputs lists the sinks registered on the server.
func (c *Client) Outputs() ([]OutputInfo, error) {
	resp, err := c.Do(Command{Type: CmdListOutputs})
	if err != nil {
		return nil, err
	}
	var outputs []OutputInfo
	if err := reencode(resp.Payload, &outputs); err != nil {
		return nil, fmt.Errorf("parse outputs: %w", err)
	}
	return outputs, nil
}

// RemoveOutput removes a sink by id.
func (c *Client) RemoveOutput(id string) error {
	raw, err := json.Marshal(RemoveOutputPayload{ID: id})
	if err != nil {
		return err
	}
	_, err = c.Do(Command{Type: CmdRemoveOutput, Payload: raw})
	return err
}

// readMessages routes incoming messages to command responses or pushes.
func (c *Client) readMessages() {
	defer c.Close()

	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		var resp Response
		if err := c.conn.ReadJSON(&resp); err != nil {
			log.Printf("Read error: %v", err)
			return
		}

		if resp.Type == "session/state" {
			var state StatePayload
			if err := reencode(resp.Payload, &state); err != nil {
				log.Printf("Failed to parse state push: %v", err)
				continue
			}
			select {
			case c.StateChanges <- state:
			default:
				// Slow consumer, drop the push.
			}
			continue
		}

		select {
		case c.responses <- resp:
		case <-c.ctx.Done():
			return
		}
	}
}

// Close closes the connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.connected {
		c.connected = false
		c.cancel()
		c.conn.Close()
		log.Printf("Connection closed")
	}
}

// IsConnected returns connection status.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// reencode converts a decoded interface{} payload into a typed struct.
func reencode(payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
