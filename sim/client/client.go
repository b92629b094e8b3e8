// Package client talks to the control surface of a running simulator.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"clint/sim/api"
)

// Client is an HTTP client for the simulator.
type Client struct {
	base string
	hc   *http.Client
}

// New returns a client for the simulator listening at base, for example
// "http://127.0.0.1:4000". If hc is nil, http.DefaultClient is used.
func New(base string, hc *http.Client) *Client {
	if hc == nil {
		hc = http.DefaultClient
	}

	return &Client{base: strings.TrimRight(base, "/"), hc: hc}
}

// Raise raises a software interrupt on line.
func (c *Client) Raise(ctx context.Context, line int) (api.RaiseResponse, error) {
	var res api.RaiseResponse
	err := c.do(ctx, http.MethodPost, "/irq/"+strconv.Itoa(line), http.StatusAccepted, &res)
	return res, err
}

// Handlers returns the status of every configured interrupt source.
func (c *Client) Handlers(ctx context.Context) ([]api.LineStatus, error) {
	var res []api.LineStatus
	err := c.do(ctx, http.MethodGet, "/handlers", http.StatusOK, &res)
	return res, err
}

func (c *Client) do(ctx context.Context, method, path string, want int, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, nil)
	if err != nil {
		return err
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()

	if res.StatusCode != want {
		var e api.ErrorResponse
		if json.NewDecoder(res.Body).Decode(&e) == nil && e.Error != "" {
			return fmt.Errorf("%s %s: %s: %s", method, path, res.Status, e.Error)
		}
		return fmt.Errorf("%s %s: %s", method, path, res.Status)
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}

	return nil
}
