package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// apiClient talks to the analysis-keeper HTTP API.
type apiClient struct {
	base   string
	token  string
	client *http.Client
}

func newAPIClient(base, token string, timeout time.Duration) *apiClient {
	return &apiClient{
		base:   strings.TrimRight(base, "/"),
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

// apiError is a non-2xx answer from the server.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("server: %d %s", e.Status, e.Message)
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
	TokenType   string `json:"tokenType"`
	Email       string `json:"email"`
	Name        string `json:"name"`
}

type record struct {
	ID            int64     `json:"id"`
	FileName      string    `json:"fileName"`
	FileID        *string   `json:"fileId"`
	Summary       *string   `json:"summary"`
	ThumbnailPath *string   `json:"thumbnailPath"`
	ResultData    string    `json:"resultData"`
	CreatedAt     time.Time `json:"createdAt"`
}

func (c *apiClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// send executes req and returns the body of a 2xx response.
func (c *apiClient) send(req *http.Request) ([]byte, string, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode/100 != 2 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(b, &e)
		return nil, "", &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	return b, resp.Header.Get("Content-Type"), nil
}

func (c *apiClient) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	b, _, err := c.send(req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(b, out)
}

func (c *apiClient) signup(ctx context.Context, email, password, name string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/auth/signup",
		map[string]string{"email": email, "password": password, "name": name}, nil)
}

func (c *apiClient) login(ctx context.Context, email, password string) (loginResponse, error) {
	var out loginResponse
	err := c.doJSON(ctx, http.MethodPost, "/api/auth/login",
		map[string]string{"email": email, "password": password}, &out)
	return out, err
}

func (c *apiClient) me(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	err := c.doJSON(ctx, http.MethodGet, "/api/users/me", nil, &out)
	return out, err
}

func (c *apiClient) changePassword(ctx context.Context, current, next string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/users/password",
		map[string]string{"currentPassword": current, "newPassword": next}, nil)
}

func (c *apiClient) rename(ctx context.Context, name string) error {
	return c.doJSON(ctx, http.MethodPut, "/api/users/name", map[string]string{"name": name}, nil)
}

// upload sends data as multipart field "file" and returns the raw answer.
func (c *apiClient) upload(ctx context.Context, fileName string, data []byte) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(data); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, http.MethodPost, "/api/analysis/upload", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	b, _, err := c.send(req)
	return b, err
}

func (c *apiClient) history(ctx context.Context) ([]record, error) {
	var out []record
	err := c.doJSON(ctx, http.MethodGet, "/api/analysis/history", nil, &out)
	return out, err
}

func (c *apiClient) get(ctx context.Context, id int64) (record, error) {
	var out record
	err := c.doJSON(ctx, http.MethodGet, "/api/analysis/"+strconv.FormatInt(id, 10), nil, &out)
	return out, err
}

func (c *apiClient) chart(ctx context.Context, fileID, chartType string) ([]byte, string, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/analysis/chart/"+url.PathEscape(fileID)+"/"+url.PathEscape(chartType), nil)
	if err != nil {
		return nil, "", err
	}
	return c.send(req)
}
