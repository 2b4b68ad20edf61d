// Package whatsapp sends text messages through an Evolution API style
// WhatsApp gateway: POST {base}/message/sendText/{instance} with an apikey
// header and a {number, text} body.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/coprede/sir-dashboard/internal/infrastructure/monitoring/logging"
	"github.com/coprede/sir-dashboard/pkg/errors"
)

// Config holds the gateway settings.
type Config struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Instance  string        `mapstructure:"instance"`
	Recipient string        `mapstructure:"recipient"`
	Timeout   time.Duration `mapstructure:"timeout"`
	RetryMax  int           `mapstructure:"retry_max"`
}

// Client delivers messages to the gateway.
type Client struct {
	cfg          Config
	endpoint     string
	httpClient   *http.Client
	logger       logging.Logger
	retryWaitMin time.Duration
	retryWaitMax time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithRetryWait sets the backoff bounds between attempts.
func WithRetryWait(min, max time.Duration) Option {
	return func(c *Client) {
		if min > 0 {
			c.retryWaitMin = min
			if max >= min {
				c.retryWaitMax = max
			}
		}
	}
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config, logger logging.Logger, opts ...Option) (*Client, error) {
	if cfg.BaseURL == "" || cfg.Instance == "" || cfg.APIKey == "" {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "whatsapp base_url, instance and api_key are required")
	}
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, errors.New(errors.ErrCodeInvalidConfig, "whatsapp base_url must be an http(s) URL").WithDetail(cfg.BaseURL)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}

	c := &Client{
		cfg:          cfg,
		endpoint:     strings.TrimSuffix(cfg.BaseURL, "/") + "/message/sendText/" + url.PathEscape(cfg.Instance),
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		logger:       logger,
		retryWaitMin: 500 * time.Millisecond,
		retryWaitMax: 5 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

// Send delivers text to recipient, or to the configured default recipient
// when recipient is empty. Network errors and 5xx responses are retried.
func (c *Client) Send(ctx context.Context, recipient, text string) error {
	if recipient == "" {
		recipient = c.cfg.Recipient
	}
	if recipient == "" {
		return errors.New(errors.ErrCodeBadRequest, "no whatsapp recipient")
	}
	body, err := json.Marshal(sendTextRequest{Number: recipient, Text: text})
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeSerialization, "encode whatsapp message")
	}

	var lastErr error
	for attempt := 0; attempt <= c.cfg.RetryMax; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), errors.ErrCodeTimeout, "whatsapp delivery cancelled")
			}
		}

		retry, err := c.post(ctx, body)
		if err == nil {
			c.logger.Info("WhatsApp message sent",
				logging.String("recipient", recipient),
				logging.Int("attempts", attempt+1))
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.logger.Warn("WhatsApp delivery failed, retrying",
			logging.Int("attempt", attempt+1),
			logging.Err(err))
	}
	return lastErr
}

func (c *Client) post(ctx context.Context, body []byte) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, errors.Wrap(err, errors.ErrCodeInternal, "build whatsapp request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", c.cfg.APIKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ctx.Err() == nil, errors.Wrap(err, errors.ErrCodeNotifyDeliveryFailed, "whatsapp gateway unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		_, _ = io.Copy(io.Discard, resp.Body)
		return false, nil
	}
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return resp.StatusCode >= 500, errors.New(errors.ErrCodeNotifyDeliveryFailed, "whatsapp gateway rejected message").
		WithDetailf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}

func (c *Client) backoff(attempt int) time.Duration {
	d := c.retryWaitMin * time.Duration(1<<uint(attempt-1))
	if d > c.retryWaitMax {
		d = c.retryWaitMax
	}
	if q := int64(d / 4); q > 0 {
		d += time.Duration(rand.Int63n(q))
	}
	return d
}
