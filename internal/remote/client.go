/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client talks to a server started with NewServer.
type Client struct {
	BaseURL string
	Token   string // bearer token
	client  *http.Client
}

// NewClient creates a client. baseURL may include a trailing slash.
func NewClient(baseURL, token string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u, err := url.Parse(c.BaseURL + path)
	if err != nil {
		return nil, err
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rd)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusNotFound && strings.HasPrefix(path, "/api/decks/") {
		_ = resp.Body.Close()
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_ = resp.Body.Close()
		return nil, fmt.Errorf("server %s %s: %s", method, u.Path, resp.Status)
	}
	return resp, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body []byte, dest any) error {
	resp, err := c.do(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	return dec.Decode(dest)
}

// Authenticate requests a token for subject and keeps it for later calls.
func (c *Client) Authenticate(ctx context.Context, subject string) error {
	body, _ := json.Marshal(map[string]any{"subject": subject})
	var out struct {
		Token string `json:"token"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/auth/token", body, &out); err != nil {
		return err
	}
	c.Token = out.Token
	return nil
}

// List returns the published decks.
func (c *Client) List(ctx context.Context) ([]Deck, error) {
	var list []Deck
	if err := c.doJSON(ctx, http.MethodGet, "/api/decks", nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

// Fetch returns the raw document text of id, or ErrNotFound.
func (c *Client) Fetch(ctx context.Context, id string) (string, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/decks/"+url.PathEscape(id), nil)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxDeckBytes+1))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Publish uploads text as deck id and returns the server-side version.
func (c *Client) Publish(ctx context.Context, id, text string) (int64, error) {
	var out struct {
		Version int64 `json:"version"`
	}
	if err := c.doJSON(ctx, http.MethodPut, "/api/decks/"+url.PathEscape(id), []byte(text), &out); err != nil {
		return 0, err
	}
	return out.Version, nil
}
