// Package client is a Go client for the logwatch admin API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/markb/logwatch/internal/admin"
	"github.com/markb/logwatch/internal/watcher"
)

const basePath = "/admin/v1/logging"

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("logwatch: HTTP %d", e.Status)
	}
	return fmt.Sprintf("logwatch: %s: %s", e.Code, e.Message)
}

// Client talks to a logwatch server.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// New creates a client for the server at baseURL authenticating with apiKey.
func New(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Levels returns the level names the server accepts.
func (c *Client) Levels(ctx context.Context) ([]string, error) {
	var resp admin.LevelsResponse
	if err := c.do(ctx, http.MethodGet, "/levels", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Levels, nil
}

// Loggers returns the logger tree, root first.
func (c *Client) Loggers(ctx context.Context) ([]watcher.LoggerInfo, error) {
	var resp admin.LoggersResponse
	if err := c.do(ctx, http.MethodGet, "/loggers", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Loggers, nil
}

// SetLevel sets the level of the named logger. An empty level turns it off.
func (c *Client) SetLevel(ctx context.Context, name, level string) (watcher.LoggerInfo, error) {
	body := admin.SetLevelRequest{}
	if level != "" {
		body.Level = &level
	}
	var info watcher.LoggerInfo
	err := c.do(ctx, http.MethodPut, "/loggers/"+url.PathEscape(name), body, &info)
	return info, err
}

// Threshold returns the capture threshold.
func (c *Client) Threshold(ctx context.Context) (string, error) {
	var resp admin.ThresholdBody
	if err := c.do(ctx, http.MethodGet, "/threshold", nil, &resp); err != nil {
		return "", err
	}
	return resp.Threshold, nil
}

// SetThreshold changes the capture threshold and returns the new value.
func (c *Client) SetThreshold(ctx context.Context, level string) (string, error) {
	var resp admin.ThresholdBody
	if err := c.do(ctx, http.MethodPut, "/threshold", admin.ThresholdBody{Threshold: level}, &resp); err != nil {
		return "", err
	}
	return resp.Threshold, nil
}

// History returns captured events newer than or equal to since (epoch ms).
func (c *Client) History(ctx context.Context, since int64) (*admin.HistoryResponse, error) {
	var resp admin.HistoryResponse
	path := "/history?since=" + strconv.FormatInt(since, 10)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+basePath+path, rdr)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode}
		var er admin.ErrorResponse
		if json.NewDecoder(resp.Body).Decode(&er) == nil {
			apiErr.Code = er.Error
			apiErr.Message = er.Message
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
