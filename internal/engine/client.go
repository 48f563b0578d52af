// Package engine is the HTTP client for the external analysis engine.
package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/and161185/analysis-keeper/internal/errs"
	"github.com/and161185/analysis-keeper/internal/metrics"
	"github.com/gabriel-vasile/mimetype"
)

const (
	uploadPath = "/api/analysis/upload"
	chartPath  = "/api/analysis/chart/"
	healthPath = "/health"

	// engine error bodies are only kept for diagnostics
	maxErrBody = 4 << 10
)

// Client talks to the analysis engine. Every request is bounded by the
// http.Client timeout.
type Client struct {
	baseURL string
	http    *http.Client
}

// New constructs a client for baseURL with the given request timeout.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Submit uploads data as multipart field "file" named fileName and returns
// the raw response body. Connection failures and non-2xx answers are
// reported as *errs.TransportError.
func (c *Client) Submit(ctx context.Context, data []byte, fileName string) ([]byte, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err = part.Write(data); err != nil {
		return nil, err
	}
	if err = mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+uploadPath, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	raw, _, err := c.do(req, "upload")
	return raw, err
}

// Chart fetches a rendered chart image produced by an earlier analysis.
// A missing or generic content type is replaced by one sniffed from the bytes.
func (c *Client) Chart(ctx context.Context, fileID, chartType string) ([]byte, string, error) {
	u := c.baseURL + chartPath + url.PathEscape(fileID) + "/" + url.PathEscape(chartType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, "", err
	}
	img, ct, err := c.do(req, "chart")
	if err != nil {
		return nil, "", err
	}
	if ct == "" || strings.HasPrefix(ct, "application/octet-stream") {
		ct = mimetype.Detect(img).String()
	}
	return img, ct, nil
}

// Ping checks the engine health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+healthPath, nil)
	if err != nil {
		return err
	}
	_, _, err = c.do(req, "health")
	return err
}

func (c *Client) do(req *http.Request, op string) ([]byte, string, error) {
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.ObserveEngine(op, "error", time.Since(start))
		return nil, "", &errs.TransportError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		metrics.ObserveEngine(op, fmt.Sprint(resp.StatusCode), time.Since(start))
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrBody))
		return nil, "", &errs.TransportError{
			StatusCode: resp.StatusCode,
			Err:        errors.New(strings.TrimSpace(string(msg))),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		metrics.ObserveEngine(op, "error", time.Since(start))
		return nil, "", &errs.TransportError{StatusCode: resp.StatusCode, Err: err}
	}
	metrics.ObserveEngine(op, fmt.Sprint(resp.StatusCode), time.Since(start))
	return raw, resp.Header.Get("Content-Type"), nil
}
