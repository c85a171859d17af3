// Package backend talks to the booking service that owns orders and inventory.
package backend

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/cimillas/checkin-pay/internal/domain"
)

const (
	DefaultConfirmPath = "/payments/confirm"
	DefaultReleasePath = "/holds/release"
	defaultTimeout     = 10 * time.Second
	maxMessageLen      = 512
)

type Config struct {
	BaseURL     string
	ConfirmPath string
	ReleasePath string
	AuthToken   string
	Timeout     time.Duration
}

// Client calls the confirm and release endpoints. It never retries; the
// confirm flow owns the retry budget.
type Client struct {
	http        *resty.Client
	confirmPath string
	releasePath string
}

func New(cfg Config) *Client {
	return NewWithHTTPClient(cfg, &http.Client{})
}

// NewWithHTTPClient lets tests and callers supply the transport.
func NewWithHTTPClient(cfg Config, hc *http.Client) *Client {
	if cfg.ConfirmPath == "" {
		cfg.ConfirmPath = DefaultConfirmPath
	}
	if cfg.ReleasePath == "" {
		cfg.ReleasePath = DefaultReleasePath
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}

	rc := resty.NewWithClient(hc).
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.AuthToken != "" {
		rc.SetAuthToken(cfg.AuthToken)
	}

	return &Client{
		http:        rc,
		confirmPath: cfg.ConfirmPath,
		releasePath: cfg.ReleasePath,
	}
}

// Confirm posts the order context. Any HTTP answer is returned with its status
// code and a nil error; only transport failures produce an error.
func (c *Client) Confirm(ctx context.Context, req domain.ConfirmRequest) (domain.ConfirmResponse, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.confirmPath)
	if err != nil {
		return domain.ConfirmResponse{}, fmt.Errorf("confirm request failed: %w", err)
	}

	out := domain.ConfirmResponse{StatusCode: resp.StatusCode()}
	body := resp.Body()
	if len(body) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		// Gateways answer 502/504 with HTML; keep the text for the classifier.
		out = domain.ConfirmResponse{StatusCode: resp.StatusCode(), Message: truncate(string(body))}
	}
	out.StatusCode = resp.StatusCode()
	return out, nil
}

// Release hands held inventory back. Any non-2xx answer is an error.
func (c *Client) Release(ctx context.Context, req domain.ReleaseRequest) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(req).
		Post(c.releasePath)
	if err != nil {
		return fmt.Errorf("release request failed: %w", err)
	}
	if resp.IsError() || resp.StatusCode() >= http.StatusMultipleChoices {
		return fmt.Errorf("release failed (%d): %s", resp.StatusCode(), truncate(string(resp.Body())))
	}
	return nil
}

func truncate(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}
