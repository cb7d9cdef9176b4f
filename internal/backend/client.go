// Package backend reads property records from the marketplace REST API.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/rs/zerolog"

	"propmap/core-go/internal/listing"
	"propmap/core-go/internal/upstream"
)

var (
	ErrPayloadTooLarge = upstream.ErrPayloadTooLarge
	ErrNotConfigured   = errors.New("backend url not configured")
)

type Options struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

type Client struct {
	baseURL string
	token   string
	http    *retryablehttp.Client
}

func NewClient(log zerolog.Logger, opts Options) *Client {
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		token:   strings.TrimSpace(opts.Token),
		http:    upstream.NewClient(log.With().Str("upstream", "backend").Logger(), opts.Timeout),
	}
}

// ListProperties fetches GET {base}/api/properties. The body may be a bare
// array or an object wrapping it under "properties" or "data".
func (c *Client) ListProperties(ctx context.Context) ([]listing.Property, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/properties", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if err := upstream.CheckStatus("backend", resp); err != nil {
		return nil, err
	}
	body, err := upstream.ReadAllLimit(resp.Body, upstream.MaxBody)
	if err != nil {
		return nil, err
	}
	return DecodeProperties(body)
}

type envelope struct {
	Properties json.RawMessage `json:"properties"`
	Data       json.RawMessage `json:"data"`
}

// DecodeProperties accepts the list shapes the backend has used.
func DecodeProperties(body []byte) ([]listing.Property, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, errors.New("empty properties response")
	}
	raw := json.RawMessage(body)
	if body[0] == '{' {
		var env envelope
		if err := json.Unmarshal(body, &env); err != nil {
			return nil, fmt.Errorf("decode properties envelope: %w", err)
		}
		switch {
		case len(env.Properties) > 0:
			raw = env.Properties
		case len(env.Data) > 0:
			raw = env.Data
		default:
			return nil, errors.New("properties response has no list")
		}
	}
	var out []listing.Property
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode properties: %w", err)
	}
	if out == nil {
		out = []listing.Property{}
	}
	return out, nil
}
