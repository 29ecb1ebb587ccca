// Package webhook delivers result records to the caller's HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/Avadhutgiri/my-online-judge/internal/judge/model"
	appErr "github.com/Avadhutgiri/my-online-judge/pkg/errors"
)

const (
	defaultTimeout = 5 * time.Second
	maxErrorBody   = 512
)

// Config names the webhook target.
type Config struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`
	// Paths overrides the per-mode endpoint paths.
	Paths map[model.Mode]string `yaml:"paths"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 5000
	}
	if c.Timeout <= 0 {
		c.Timeout = defaultTimeout
	}
	paths := map[model.Mode]string{
		model.ModeRun:       "/webhook/run",
		model.ModeSubmit:    "/webhook/submit",
		model.ModeSystemRun: "/webhook/system",
	}
	for mode, path := range c.Paths {
		if path != "" {
			paths[mode] = path
		}
	}
	c.Paths = paths
}

// ResponseInfo carries response details.
type ResponseInfo struct {
	StatusCode int
	Duration   time.Duration
}

// Client posts result records.
type Client struct {
	baseURL string
	paths   map[model.Mode]string
	client  *http.Client
}

// New creates a webhook client.
func New(cfg Config) *Client {
	cfg.ApplyDefaults()
	return &Client{
		baseURL: "http://" + net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port)),
		paths:   cfg.Paths,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// URL returns the endpoint for a mode.
func (c *Client) URL(mode model.Mode) (string, error) {
	path, ok := c.paths[mode]
	if !ok {
		return "", appErr.New(appErr.InvalidParams).WithMessagef("no webhook endpoint for mode %q", mode)
	}
	return c.baseURL + path, nil
}

// Send posts rec as JSON to the endpoint of mode. Non-2xx responses are
// errors.
func (c *Client) Send(ctx context.Context, mode model.Mode, rec model.ResultRecord) (ResponseInfo, error) {
	var info ResponseInfo
	url, err := c.URL(mode)
	if err != nil {
		return info, err
	}
	body, err := json.Marshal(rec)
	if err != nil {
		return info, fmt.Errorf("marshal result failed: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return info, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.client.Do(req)
	info.Duration = time.Since(start)
	if err != nil {
		return info, appErr.Wrapf(err, appErr.WebhookDeliveryFailed, "webhook request failed: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	info.StatusCode = resp.StatusCode
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return info, appErr.New(appErr.WebhookDeliveryFailed).
			WithMessagef("webhook returned %d", resp.StatusCode).
			WithDetail("body", string(snippet))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return info, nil
}
