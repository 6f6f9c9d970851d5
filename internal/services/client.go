// Package services talks to the remote transcription, reply, speech and voice
// catalog endpoints.
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
)

const maxResponseBytes = 32 << 20

// Endpoint names used in errors, logs and metrics.
const (
	EndpointTranscribe = "speech-to-text"
	EndpointReply      = "llm-response"
	EndpointSpeech     = "text-to-speech"
	EndpointVoices     = "elevenlabs-voices"
)

// Config locates the gateway.
type Config struct {
	BaseURL        string
	TranscribePath string
	ReplyPath      string
	SpeechPath     string
	VoicesPath     string
	Timeout        time.Duration
	SpeechTimeout  time.Duration
	HTTPClient     *http.Client
	Logger         *slog.Logger
}

// Client calls the gateway endpoints over JSON.
type Client struct {
	cfg    Config
	base   *url.URL
	http   *http.Client
	logger *slog.Logger
}

// NewClient validates cfg and fills defaults.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("gateway base url cannot be empty")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("gateway base url must be http(s), got %q", cfg.BaseURL)
	}

	if cfg.TranscribePath == "" {
		cfg.TranscribePath = "/" + EndpointTranscribe
	}
	if cfg.ReplyPath == "" {
		cfg.ReplyPath = "/" + EndpointReply
	}
	if cfg.SpeechPath == "" {
		cfg.SpeechPath = "/" + EndpointSpeech
	}
	if cfg.VoicesPath == "" {
		cfg.VoicesPath = "/" + EndpointVoices
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SpeechTimeout <= 0 {
		cfg.SpeechTimeout = 30 * time.Second
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &Client{cfg: cfg, base: base, http: httpClient, logger: logger}, nil
}

// BaseURL returns the normalized gateway root.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type errorBody struct {
	Error string `json:"error"`
}

// do sends one request and decodes a 2xx JSON body into out.
func (c *Client) do(ctx context.Context, endpoint, method, path string, query url.Values, in, out any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	target := c.base.JoinPath(path)
	if len(query) > 0 {
		target.RawQuery = query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := sonic.Marshal(in)
		if err != nil {
			return &ServiceError{Endpoint: endpoint, Err: fmt.Errorf("encode request: %w", err)}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return &ServiceError{Endpoint: endpoint, Err: err}
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("service request failed", "endpoint", endpoint, "request_id", requestID, "error", err.Error())
		return &ServiceError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	c.logger.Debug("service request complete",
		"endpoint", endpoint,
		"request_id", requestID,
		"status", resp.StatusCode,
		"bytes", len(raw),
		"duration_ms", time.Since(started).Milliseconds(),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var eb errorBody
		_ = sonic.Unmarshal(raw, &eb)
		msg := strings.TrimSpace(eb.Error)
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: msg}
	}

	var eb errorBody
	if err := sonic.Unmarshal(raw, &eb); err == nil && strings.TrimSpace(eb.Error) != "" {
		return &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Message: strings.TrimSpace(eb.Error)}
	}
	if err := sonic.Unmarshal(raw, out); err != nil {
		return &ServiceError{Endpoint: endpoint, StatusCode: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
