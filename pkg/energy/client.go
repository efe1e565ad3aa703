package energy

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gowebpki/jcs"
	"go.uber.org/zap"
)

const (
	PathCreateOrder  = "/order/create"
	PathCheckOrder   = "/order/check"
	PathCheckAddress = "/address/check"

	HeaderSignature = "X-Signature"
	HeaderAPIID     = "X-Api-Id"
)

// ErrNotConfigured is returned when credentials are missing.
var ErrNotConfigured = errors.New("energy marketplace not configured")

// StatusError carries a non-success marketplace response.
type StatusError struct {
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("energy marketplace returned %d: %s", e.Status, e.Body)
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	APIID           string
	APIKey          string
	Timeout         time.Duration
	RetryInitial    time.Duration
	RetryMaxElapsed time.Duration
	HTTPClient      *http.Client
	Logger          *zap.Logger
	Now             func() time.Time
}

// Client signs and forwards requests to the energy-rental marketplace.
type Client struct {
	baseURL      string
	apiID        string
	apiKey       []byte
	http         *http.Client
	retryInitial time.Duration
	maxElapsed   time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// New builds a Client.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{Timeout: opts.Timeout}
	}
	if opts.RetryInitial <= 0 {
		opts.RetryInitial = 500 * time.Millisecond
	}
	if opts.RetryMaxElapsed <= 0 {
		opts.RetryMaxElapsed = 20 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Client{
		baseURL:      strings.TrimRight(opts.BaseURL, "/"),
		apiID:        opts.APIID,
		apiKey:       []byte(opts.APIKey),
		http:         opts.HTTPClient,
		retryInitial: opts.RetryInitial,
		maxElapsed:   opts.RetryMaxElapsed,
		logger:       opts.Logger,
		now:          opts.Now,
	}
}

// Sign canonicalizes body and returns the canonical bytes with their hex HMAC-SHA256.
func Sign(secret []byte, body []byte) ([]byte, string, error) {
	canonical, err := jcs.Transform(body)
	if err != nil {
		return nil, "", fmt.Errorf("canonicalize body: %w", err)
	}
	mac := hmac.New(sha256.New, secret)
	_, _ = mac.Write(canonical)
	return canonical, hex.EncodeToString(mac.Sum(nil)), nil
}

// Post sends payload to path, adding api_id and timestamp before signing.
func (c *Client) Post(ctx context.Context, path string, payload map[string]interface{}) (json.RawMessage, error) {
	if c.baseURL == "" || c.apiID == "" || len(c.apiKey) == 0 {
		return nil, ErrNotConfigured
	}
	body := make(map[string]interface{}, len(payload)+2)
	for k, v := range payload {
		body[k] = v
	}
	body["api_id"] = c.apiID
	body["timestamp"] = c.now().Unix()

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode energy request: %w", err)
	}
	canonical, signature, err := Sign(c.apiKey, raw)
	if err != nil {
		return nil, err
	}

	var respBody []byte
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(canonical))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set(HeaderAPIID, c.apiID)
		req.Header.Set(HeaderSignature, signature)

		resp, err := c.http.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("perform request: %w", err)
		}
		defer resp.Body.Close() //nolint:errcheck

		data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError {
			return &StatusError{Status: resp.StatusCode, Body: string(data)}
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return backoff.Permanent(&StatusError{Status: resp.StatusCode, Body: string(data)})
		}
		respBody = data
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryInitial
	b.MaxInterval = 10 * c.retryInitial
	b.MaxElapsedTime = c.maxElapsed
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5

	notify := func(err error, next time.Duration) {
		c.logger.Warn("energy request failed, retrying", zap.String("path", path), zap.Duration("next", next), zap.Error(err))
	}
	if err := backoff.RetryNotify(operation, backoff.WithContext(b, ctx), notify); err != nil {
		return nil, fmt.Errorf("energy %s: %w", path, err)
	}

	if len(respBody) == 0 || !json.Valid(respBody) {
		return nil, fmt.Errorf("energy %s: invalid json response", path)
	}
	return json.RawMessage(respBody), nil
}
