// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package client talks to a remote dosemux service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ManuGH/dosemux/internal/jobs"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// DefaultTimeout bounds one remote request.
const DefaultTimeout = 5 * time.Minute

// Error is a non-2xx response from the service.
type Error struct {
	Status    int    `json:"-"`
	Code      string `json:"error"`
	Detail    string `json:"detail"`
	RequestID string `json:"request_id"`
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("remote: %d %s", e.Status, e.Code)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.RequestID != "" {
		msg += " (request " + e.RequestID + ")"
	}
	return msg
}

// Client calls the dosemux HTTP API. Requests carry W3C trace context.
type Client struct {
	base *url.URL
	http *http.Client
}

// New returns a client for the service at baseURL, e.g.
// "http://localhost:8088". A zero timeout uses DefaultTimeout.
func New(baseURL string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		base: u,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// OptimizeResult is the response of a remote optimization.
type OptimizeResult struct {
	JobID    string
	CacheHit bool
	Output   []byte
}

// Optimize uploads a print file and returns the optimized archive.
func (c *Client) Optimize(ctx context.Context, name string, data []byte) (OptimizeResult, error) {
	q := url.Values{}
	if name != "" {
		q.Set("name", name)
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/optimize", q, bytes.NewReader(data))
	if err != nil {
		return OptimizeResult{}, err
	}
	req.Header.Set("Content-Type", "application/zip")

	resp, err := c.http.Do(req)
	if err != nil {
		return OptimizeResult{}, err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp); err != nil {
		return OptimizeResult{}, err
	}

	out, err := io.ReadAll(resp.Body)
	if err != nil {
		return OptimizeResult{}, fmt.Errorf("read response: %w", err)
	}
	return OptimizeResult{
		JobID:    resp.Header.Get("X-Job-ID"),
		CacheHit: resp.Header.Get("X-Cache") == "hit",
		Output:   out,
	}, nil
}

// Job fetches one job record.
func (c *Client) Job(ctx context.Context, id string) (jobs.Record, error) {
	var rec jobs.Record
	err := c.getJSON(ctx, "/api/v1/jobs/"+url.PathEscape(id), nil, &rec)
	return rec, err
}

// Jobs lists the newest job records.
func (c *Client) Jobs(ctx context.Context, limit int) ([]jobs.Record, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	var body struct {
		Jobs []jobs.Record `json:"jobs"`
	}
	err := c.getJSON(ctx, "/api/v1/jobs", q, &body)
	return body.Jobs, err
}

func (c *Client) getJSON(ctx context.Context, path string, q url.Values, dst any) error {
	req, err := c.newRequest(ctx, http.MethodGet, path, q, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if err := checkResponse(resp); err != nil {
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, q url.Values, body io.Reader) (*http.Request, error) {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()
	return http.NewRequestWithContext(ctx, method, u.String(), body)
}

// checkResponse turns non-2xx responses into *Error.
func checkResponse(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	e := &Error{Status: resp.StatusCode}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err := json.Unmarshal(raw, e); err != nil || e.Code == "" {
		e.Code = http.StatusText(resp.StatusCode)
		e.Detail = strings.TrimSpace(string(raw))
	}
	return e
}

// IsStatus reports whether err is a remote error with the given status.
func IsStatus(err error, status int) bool {
	var e *Error
	return errors.As(err, &e) && e.Status == status
}
