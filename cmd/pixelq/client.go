package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// outcome mirrors the server's response body for every edit route.
type outcome struct {
	Success   bool   `json:"success"`
	Content   string `json:"content"`
	Text      string `json:"text"`
	ErrorKind string `json:"errorKind"`
	Message   string `json:"message"`
}

type creation struct {
	ID        string    `json:"id"`
	Prompt    string    `json:"prompt"`
	Content   string    `json:"content"`
	Publish   bool      `json:"publish"`
	CreatedAt time.Time `json:"createdAt"`
}

func newClient(baseURL, token string) *client {
	// polled features can take a couple of minutes server side
	return &client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: 3 * time.Minute},
	}
}

func (c *client) do(req *http.Request) (int, []byte, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()
	out, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, out, nil
}

// uploadImage posts path as the multipart field "image" with extra form fields.
func (c *client) uploadImage(route, path string, fields map[string]string) (outcome, error) {
	f, err := os.Open(path)
	if err != nil {
		return outcome{}, err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return outcome{}, err
		}
	}
	fw, err := mw.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return outcome{}, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return outcome{}, err
	}
	if err := mw.Close(); err != nil {
		return outcome{}, err
	}

	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/ai/"+route, &body)
	if err != nil {
		return outcome{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return c.outcome(req)
}

func (c *client) postJSON(route string, payload any) (outcome, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return outcome{}, err
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+"/api/ai/"+route, bytes.NewReader(b))
	if err != nil {
		return outcome{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.outcome(req)
}

func (c *client) outcome(req *http.Request) (outcome, error) {
	status, raw, err := c.do(req)
	if err != nil {
		return outcome{}, err
	}
	var out outcome
	if err := json.Unmarshal(raw, &out); err != nil {
		return outcome{}, fmt.Errorf("error (%d): %s", status, strings.TrimSpace(string(raw)))
	}
	if !out.Success && out.Message == "" {
		out.Message = fmt.Sprintf("request failed with status %d", status)
	}
	return out, nil
}

func (c *client) listCreations(published bool, limit int) ([]creation, error) {
	q := url.Values{}
	if published {
		q.Set("published", "true")
	}
	if limit > 0 {
		q.Set("limit", fmt.Sprint(limit))
	}
	u := c.baseURL + "/api/ai/creations"
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	status, raw, err := c.do(req)
	if err != nil {
		return nil, err
	}
	if status >= 300 {
		return nil, fmt.Errorf("error (%d): %s", status, strings.TrimSpace(string(raw)))
	}
	var out struct {
		Creations []creation `json:"creations"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out.Creations, nil
}
