// Package client implements the HTTP client for the transfer planner
// backend API.
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
	"os"
	"path"
	"time"

	"transfer-planner/internal/domain"
)

// ErrRejected is returned by Submit when the backend already has a run
// in progress.
var ErrRejected = errors.New("a run is already in progress")

// Client talks to one backend instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// NewWithHTTPClient creates a client using the given http.Client.
func NewWithHTTPClient(baseURL string, hc *http.Client) *Client {
	return &Client{baseURL: baseURL, http: hc}
}

// Submit starts a run with the given parameters. It returns ErrRejected
// when the backend responds with 409 Conflict.
func (c *Client) Submit(ctx context.Context, params domain.JobParameters) error {
	body, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding parameters: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("submitting run: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK, http.StatusAccepted:
		return nil
	case http.StatusConflict:
		return ErrRejected
	default:
		return fmt.Errorf("submitting run: unexpected status %s", resp.Status)
	}
}

// Poll fetches the current run status.
func (c *Client) Poll(ctx context.Context) (domain.JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/status", nil)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return domain.JobStatus{}, fmt.Errorf("fetching status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.JobStatus{}, fmt.Errorf("fetching status: unexpected status %s", resp.Status)
	}

	var status domain.JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return domain.JobStatus{}, fmt.Errorf("decoding status: %w", err)
	}
	return status, nil
}

// Reset clears backend run state so a new run can be submitted.
func (c *Client) Reset(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.baseURL+"/api/reset", nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("resetting run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("resetting run: unexpected status %s", resp.Status)
	}
	return nil
}

// DownloadURL returns the download address for one output file.
func (c *Client) DownloadURL(name string) string {
	return c.baseURL + "/api/download/" + url.PathEscape(name)
}

// Download fetches an output file and writes it into dir, returning the
// local path.
func (c *Client) Download(ctx context.Context, name, dir string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.DownloadURL(name), nil)
	if err != nil {
		return "", fmt.Errorf("building request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: unexpected status %s", name, resp.Status)
	}

	dest := path.Join(dir, path.Base(name))
	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	defer f.Close()

	if _, err := io.Copy(f, resp.Body); err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}
	return dest, nil
}
