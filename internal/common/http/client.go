// internal/common/http/client.go

// Package http provides the outbound HTTP client shared by the embedding and
// TMDB integrations. Both upstreams throttle, so the client retries 429 and
// 5xx responses a bounded number of times, honoring Retry-After when present.
package http

import (
	"io"
	"net/http"
	"strconv"
	"time"
)

const maxRetries = 2

type Client struct {
	httpClient *http.Client
}

func NewClient(timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Do executes the request, transparently retrying throttled and transient
// upstream failures. Requests whose body cannot be rewound are not retried.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		if attempt >= maxRetries || !retryableStatus(resp.StatusCode) {
			return resp, nil
		}
		if req.Body != nil && req.GetBody == nil {
			return resp, nil
		}

		delay := retryDelay(resp, attempt)
		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		select {
		case <-time.After(delay):
		case <-req.Context().Done():
			return nil, req.Context().Err()
		}

		if req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, err
			}
			req.Body = body
		}
	}
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func retryDelay(resp *http.Response, attempt int) time.Duration {
	if after := resp.Header.Get("Retry-After"); after != "" {
		if seconds, err := strconv.Atoi(after); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return 500 * time.Millisecond * time.Duration(1<<attempt)
}
