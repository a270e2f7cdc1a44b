package provider

import (
	"context"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/pkg/errors"
	"github/chapool/go-ledger-wallet/internal/util"
)

// failoverClient spreads a provider over several JSON-RPC endpoints. Calls go
// to the current endpoint; when a call fails the next endpoint in order is
// tried with the same call and becomes current if it succeeds.
type failoverClient struct {
	mu      sync.Mutex
	urls    []string
	clients []*ethclient.Client
	current int
}

// do runs call against the current endpoint, failing over on error. With a
// single endpoint the error of the call is returned as is.
func (c *failoverClient) do(ctx context.Context, call func(client *ethclient.Client) error) error {
	if len(c.clients) == 1 {
		return call(c.clients[0])
	}

	c.mu.Lock()
	start := c.current
	c.mu.Unlock()

	var lastErr error
	for i := range c.clients {
		idx := (start + i) % len(c.clients)

		err := call(c.clients[idx])
		if err == nil {
			if idx != start {
				c.mu.Lock()
				c.current = idx
				c.mu.Unlock()
			}
			return nil
		}

		// the caller gave up, other endpoints would fail the same way
		if ctx.Err() != nil {
			return err
		}

		util.LogFromContext(ctx).Warn().
			Str("url", redactURL(c.urls[idx])).
			Err(err).
			Msg("RPC endpoint call failed, trying next")
		lastErr = err
	}

	return errors.Wrap(lastErr, "all RPC endpoints are unavailable")
}

func (c *failoverClient) close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, client := range c.clients {
		client.Close()
	}
}

// parseEndpoints splits a comma separated endpoint list, dropping blanks.
func parseEndpoints(raw string) []string {
	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))

	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}

	return result
}
