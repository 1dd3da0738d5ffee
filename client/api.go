// Copyright (C) 2025 Christian Rößner
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.

package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/loginlog"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// apiClient talks to the admin REST surface of a running server.
type apiClient struct {
	base       string
	username   string
	password   string
	httpClient *http.Client
}

// newAPIClient returns a client for the server at base.
func newAPIClient(base, username, password string, timeout time.Duration) *apiClient {
	return &apiClient{
		base:       strings.TrimRight(base, "/"),
		username:   username,
		password:   password,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// banResult mirrors the server's answer to ban and unban requests.
type banResult struct {
	Applied []string `json:"applied"`
	Skipped []string `json:"skipped"`
}

// banStatus mirrors the server's answer to is-banned requests.
type banStatus struct {
	Value  string `json:"value"`
	Banned bool   `json:"banned"`
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return err
		}

		reader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return err
	}

	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	request.SetBasicAuth(c.username, c.password)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return err
	}

	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return err
	}

	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("server answered %s: %s", response.Status, strings.TrimSpace(string(payload)))
	}

	if out == nil {
		return nil
	}

	return json.Unmarshal(payload, out)
}

// BanIPs bans a list of IPs with the given TTL in seconds.
func (c *apiClient) BanIPs(ctx context.Context, ips []string, ttl int64) (*banResult, error) {
	result := &banResult{}

	err := c.do(ctx, http.MethodPost, "/api/v1/admin/ban/ip", map[string]any{"ips": ips, "ttl": ttl}, result)

	return result, err
}

// UnbanIPs removes ban entries for a list of IPs.
func (c *apiClient) UnbanIPs(ctx context.Context, ips []string) (*banResult, error) {
	result := &banResult{}

	err := c.do(ctx, http.MethodPost, "/api/v1/admin/unban/ip", map[string]any{"ips": ips}, result)

	return result, err
}

// BanUAs bans a list of exact User-Agent strings.
func (c *apiClient) BanUAs(ctx context.Context, userAgents []string, ttl int64) (*banResult, error) {
	result := &banResult{}

	err := c.do(ctx, http.MethodPost, "/api/v1/admin/ban/ua", map[string]any{"user_agents": userAgents, "ttl": ttl}, result)

	return result, err
}

// UnbanUAs removes ban entries for a list of User-Agent strings.
func (c *apiClient) UnbanUAs(ctx context.Context, userAgents []string) (*banResult, error) {
	result := &banResult{}

	err := c.do(ctx, http.MethodPost, "/api/v1/admin/unban/ua", map[string]any{"user_agents": userAgents}, result)

	return result, err
}

// IsIPBanned queries the ban state of one IP.
func (c *apiClient) IsIPBanned(ctx context.Context, ip string) (*banStatus, error) {
	status := &banStatus{}

	err := c.do(ctx, http.MethodGet, "/api/v1/admin/banned/ip/"+url.PathEscape(ip), nil, status)

	return status, err
}

// IsUABanned queries the ban state of one User-Agent.
func (c *apiClient) IsUABanned(ctx context.Context, userAgent string) (*banStatus, error) {
	status := &banStatus{}

	err := c.do(ctx, http.MethodGet, "/api/v1/admin/banned/ua?value="+url.QueryEscape(userAgent), nil, status)

	return status, err
}

// Geolocate resolves a list of IPs, optionally flushing cached records.
func (c *apiClient) Geolocate(ctx context.Context, ips []string, force bool) (map[string]*ipapi.Record, error) {
	result := map[string]*ipapi.Record{}

	err := c.do(ctx, http.MethodPost, "/api/v1/admin/geolocate", map[string]any{"ips": ips, "force": force}, &result)

	return result, err
}

// LoginLog fetches the most recent login journal entries.
func (c *apiClient) LoginLog(ctx context.Context, limit int64) ([]*loginlog.Entry, error) {
	entries := []*loginlog.Entry{}

	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/admin/loginlog?limit=%d", limit), nil, &entries)

	return entries, err
}
