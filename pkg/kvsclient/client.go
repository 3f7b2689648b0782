// Package kvsclient is the client side of the kvs wire protocol
// (spec.md §4.J): one TCP connection per call, one request, one
// response.
package kvsclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/NaokiLH/kvs/internal/protocol"
)

// ErrKeyNotFound is returned by Remove when the server reports the key
// did not exist.
var ErrKeyNotFound = errors.New("kvsclient: key not found")

// Client issues requests against a kvs server at Addr. It holds no
// state between calls; each method opens and closes its own connection.
type Client struct {
	Addr    string
	Timeout time.Duration
}

// New returns a Client targeting addr with a default dial/IO timeout.
func New(addr string) *Client {
	return &Client{Addr: addr, Timeout: 5 * time.Second}
}

// Set stores value under key.
func (c *Client) Set(key, value string) error {
	resp, err := c.roundTrip(protocol.NewSetRequest(key, value))
	if err != nil {
		return err
	}

	if resp.IsErr() {
		return fmt.Errorf("kvsclient: set: %s", *resp.Err)
	}

	return nil
}

// Get returns the value for key and true, or ("", false, nil) on a miss.
func (c *Client) Get(key string) (string, bool, error) {
	resp, err := c.roundTrip(protocol.NewGetRequest(key))
	if err != nil {
		return "", false, err
	}

	if resp.IsErr() {
		return "", false, fmt.Errorf("kvsclient: get: %s", *resp.Err)
	}

	if resp.Ok == nil {
		return "", false, nil
	}

	return *resp.Ok, true, nil
}

// Remove deletes key. It returns [ErrKeyNotFound] if the server reports
// the key did not exist.
func (c *Client) Remove(key string) error {
	resp, err := c.roundTrip(protocol.NewRmRequest(key))
	if err != nil {
		return err
	}

	if resp.IsErr() {
		if strings.Contains(*resp.Err, "key not found") {
			return ErrKeyNotFound
		}

		return fmt.Errorf("kvsclient: remove: %s", *resp.Err)
	}

	return nil
}

// roundTrip dials Addr, writes one request, reads one response, and
// closes the connection.
func (c *Client) roundTrip(req protocol.Request) (protocol.Response, error) {
	conn, err := net.DialTimeout("tcp", c.Addr, c.Timeout)
	if err != nil {
		return protocol.Response{}, fmt.Errorf("kvsclient: dial %s: %w", c.Addr, err)
	}
	defer conn.Close()

	if c.Timeout > 0 {
		_ = conn.SetDeadline(time.Now().Add(c.Timeout))
	}

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return protocol.Response{}, fmt.Errorf("kvsclient: write request: %w", err)
	}

	var resp protocol.Response

	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return protocol.Response{}, fmt.Errorf("kvsclient: read response: %w", err)
	}

	return resp, nil
}
