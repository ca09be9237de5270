package distance

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// orsError is a non-2xx answer from OpenRouteService.
type orsError struct {
	Status int
	Body   string
}

func (e *orsError) Error() string {
	return fmt.Sprintf("openrouteservice status %d: %s", e.Status, e.Body)
}

// orsCall is one API request. A non-nil body is sent as JSON.
type orsCall struct {
	method string
	path   string
	query  url.Values
	body   any
}

// call performs c and decodes the JSON answer into out. Every attempt shares one
// budget of o.timeout; transient failures are retried with doubling backoff
// only while the next attempt can still start before that budget runs out.
func (o *ORSDistanceProvider) call(ctx context.Context, c orsCall, out any) error {
	ctx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	var payload []byte
	if c.body != nil {
		var err error
		if payload, err = json.Marshal(c.body); err != nil {
			return fmt.Errorf("%s %s: encode body: %w", c.method, c.path, err)
		}
	}

	backoff := o.retryBackoff
	for attempt := 1; ; attempt++ {
		err := o.send(ctx, c, payload, out)
		if err == nil {
			return nil
		}
		if !retryable(err) || attempt >= o.maxAttempts || !startsBeforeDeadline(ctx, backoff) {
			return fmt.Errorf("%s %s: attempt %d: %w", c.method, c.path, attempt, err)
		}

		o.log.Debug("retrying openrouteservice call",
			zap.String("path", c.path),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)
		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%s %s: %w", c.method, c.path, ctx.Err())
		case <-timer.C:
		}
		backoff *= 2
	}
}

func (o *ORSDistanceProvider) send(ctx context.Context, c orsCall, payload []byte, out any) error {
	endpoint := o.baseURL + c.path
	if len(c.query) > 0 {
		endpoint += "?" + c.query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, c.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", o.apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := o.session.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &orsError{Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// retryable accepts rate limiting, gateway and server errors, and network failures.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var oe *orsError
	if errors.As(err, &oe) {
		switch oe.Status {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	return errors.As(err, &netErr)
}

func startsBeforeDeadline(ctx context.Context, wait time.Duration) bool {
	deadline, ok := ctx.Deadline()
	return !ok || time.Until(deadline) > wait
}
