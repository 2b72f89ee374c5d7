// Package transport carries channel payloads from the hub to the guard
// agents running next to the downstream servers.
package transport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	maxRetries     = 3
	retryDelay     = 300 * time.Millisecond
	requestTimeout = 5 * time.Second
)

// Resolver maps a destination identifier to the base URL of its agent. An
// empty result means the destination is unknown.
type Resolver func(destination string) string

// Client delivers channel payloads to agents over HTTP. It implements the
// replication transport.
type Client struct {
	key     string
	resolve Resolver

	client  *http.Client
	limiter *rate.Limiter
	log     *slog.Logger
}

// NewClient ...
func NewClient(log *slog.Logger, key string, resolve Resolver) *Client {
	return &Client{
		key:     key,
		resolve: resolve,
		client: &http.Client{
			Timeout: requestTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(50), 100),
		log:     log,
	}
}

// Send posts the payload to the destination's agent on the given channel.
// It retries temporary errors a few times before giving up.
func (c *Client) Send(destination, channel string, payload []byte) error {
	base := c.resolve(destination)
	if base == "" {
		return fmt.Errorf("no agent known for destination %s", destination)
	}
	url := base + "/channel/" + channel

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			time.Sleep(retryDelay)
		}

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		if err := c.limiter.Wait(ctx); err != nil {
			cancel()
			return fmt.Errorf("request rate limited: %w", err)
		}
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(payload))
		if err != nil {
			cancel()
			return fmt.Errorf("failed to create request: %w", err)
		}
		httpReq.Header.Set("authorization", c.key)
		httpReq.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(httpReq)
		cancel()
		if err != nil {
			lastErr = fmt.Errorf("request failed: %w", err)
			if isTemporaryError(err) {
				continue
			}
			return lastErr
		}

		if resp.StatusCode == http.StatusNoContent {
			resp.Body.Close()
			c.log.Debug("delivered channel payload", "destination", destination, "channel", channel)
			return nil
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			lastErr = fmt.Errorf("rate limited by agent")
			time.Sleep(time.Duration(attempt+1) * retryDelay)
			continue
		}

		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return fmt.Errorf("agent rejected payload: %s", string(body))
	}
	return lastErr
}

// isTemporaryError ...
func isTemporaryError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return errors.Is(err, context.DeadlineExceeded)
}
