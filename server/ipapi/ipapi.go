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

// Package ipapi is a cache-backed client for the ip-api.com geolocation
// service. Lookups degrade gracefully: any transport error, non-200
// response or unsuccessful status yields no record and caches nothing.
package ipapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/biter777/countries"
	"github.com/croessner/secenh/server/cache"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	jsoniter "github.com/json-iterator/go"
	gocache "github.com/patrickmn/go-cache"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Record is a normalized geolocation result. Mobile, Proxy and Hosting are
// tri-state: nil means the service did not report the field.
type Record struct {
	IP          string `json:"ip"`
	Country     string `json:"country"`
	CountryCode string `json:"cc"`
	Region      string `json:"region"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
	Mobile      *bool  `json:"mobile"`
	Proxy       *bool  `json:"proxy"`
	Hosting     *bool  `json:"hosting"`
}

// wireEntry is one entry of an ip-api.com response.
type wireEntry struct {
	Status      string `json:"status"`
	Query       string `json:"query"`
	Country     string `json:"country"`
	CountryCode string `json:"countryCode"`
	RegionName  string `json:"regionName"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	AS          string `json:"as"`
	Mobile      *bool  `json:"mobile"`
	Proxy       *bool  `json:"proxy"`
	Hosting     *bool  `json:"hosting"`
}

// Client looks up geolocation records with three layers: an in-process
// memoization cache (avoids duplicate remote calls when several components
// ask for the same IP within one request), the shared Redis cache (24h) and
// the remote service.
type Client struct {
	cfg        *config.IPAPISection
	cache      cache.Cache
	httpClient *http.Client
	local      *gocache.Cache
}

// NewClient returns a geolocation client. The HTTP client never follows
// redirects and is bounded by the configured timeout.
func NewClient(cfg *config.IPAPISection, sharedCache cache.Cache) *Client {
	return &Client{
		cfg:   cfg,
		cache: sharedCache,
		httpClient: &http.Client{
			Timeout: cfg.GetTimeout(),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		local: gocache.New(time.Minute, 5*time.Minute),
	}
}

// CacheKey returns the cache key for an IP.
func CacheKey(ip string) string {
	return "ip:" + strings.ToLower(ip)
}

// Geolocate returns the record for a single IP, or nil when no geolocation
// is available.
func (c *Client) Geolocate(ctx context.Context, ip string) *Record {
	if record, ok := c.local.Get(CacheKey(ip)); ok {
		return record.(*Record)
	}

	if record := c.cachedRecord(ctx, ip); record != nil {
		c.local.Set(CacheKey(ip), record, gocache.DefaultExpiration)

		return record
	}

	endpoint := fmt.Sprintf("http://%s/json/%s?fields=%d", c.cfg.GetHost(), url.PathEscape(ip), definitions.IPAPIFields)

	body := c.makeRequest(ctx, endpoint, nil)
	if body == nil {
		return nil
	}

	entry := &wireEntry{}
	if err := json.Unmarshal(body, entry); err != nil {
		return nil
	}

	record := c.decodeEntry(ctx, entry)
	if record != nil {
		c.local.Set(CacheKey(ip), record, gocache.DefaultExpiration)
	}

	return record
}

// BatchGeolocate resolves several IPs at once. Cached records are served
// locally; the rest go out as a single batch request. IPs the service could
// not resolve are absent from the result.
func (c *Client) BatchGeolocate(ctx context.Context, ips []string) map[string]*Record {
	result := make(map[string]*Record, len(ips))
	missing := make([]string, 0, len(ips))

	for _, ip := range ips {
		if record := c.cachedRecord(ctx, ip); record != nil {
			result[ip] = record
		} else {
			missing = append(missing, ip)
		}
	}

	if len(missing) == 0 {
		return result
	}

	requestBody, err := json.Marshal(missing)
	if err != nil {
		return result
	}

	endpoint := fmt.Sprintf("http://%s/batch?fields=%d", c.cfg.GetHost(), definitions.IPAPIFields)

	body := c.makeRequest(ctx, endpoint, requestBody)
	if body == nil {
		return result
	}

	var entries []*wireEntry

	if err := json.Unmarshal(body, &entries); err != nil {
		return result
	}

	for _, entry := range entries {
		if record := c.decodeEntry(ctx, entry); record != nil {
			result[record.IP] = record
		}
	}

	return result
}

// Flush removes the cached record for an IP.
func (c *Client) Flush(ctx context.Context, ip string) error {
	c.local.Delete(CacheKey(ip))

	return c.cache.Delete(ctx, definitions.CacheGroupIPAPI, CacheKey(ip))
}

// cachedRecord returns the shared-cache record for an IP, if any.
func (c *Client) cachedRecord(ctx context.Context, ip string) *Record {
	value, found, err := c.cache.Get(ctx, definitions.CacheGroupIPAPI, CacheKey(ip))
	if err != nil || !found {
		return nil
	}

	record := &Record{}
	if err := json.Unmarshal([]byte(value), record); err != nil {
		return nil
	}

	return record
}

// makeRequest POSTs to the given endpoint and returns the body on HTTP 200,
// nil otherwise. A nil requestBody sends an empty body.
func (c *Client) makeRequest(ctx context.Context, endpoint string, requestBody []byte) []byte {
	var reader io.Reader

	if requestBody != nil {
		reader = bytes.NewReader(requestBody)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, reader)
	if err != nil {
		return nil
	}

	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil
	}

	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return nil
	}

	body, err := io.ReadAll(response.Body)
	if err != nil || len(body) == 0 {
		return nil
	}

	return body
}

// decodeEntry normalizes one response entry and writes it to the shared
// cache. Unsuccessful entries yield nil and are never cached.
func (c *Client) decodeEntry(ctx context.Context, entry *wireEntry) *Record {
	if entry == nil || entry.Status != "success" || entry.Query == "" {
		return nil
	}

	countryCode := entry.CountryCode
	if countryCode == "" && entry.Country != "" {
		if country := countries.ByName(entry.Country); country != countries.Unknown {
			countryCode = country.Alpha2()
		}
	}

	record := &Record{
		IP:          entry.Query,
		Country:     entry.Country,
		CountryCode: countryCode,
		Region:      entry.RegionName,
		City:        entry.City,
		ISP:         entry.ISP,
		Org:         entry.Org,
		AS:          entry.AS,
		Mobile:      entry.Mobile,
		Proxy:       entry.Proxy,
		Hosting:     entry.Hosting,
	}

	if encoded, err := json.Marshal(record); err == nil {
		_ = c.cache.Set(ctx, definitions.CacheGroupIPAPI, CacheKey(record.IP), string(encoded), c.cfg.GetCacheTTL())
	}

	return record
}

// yesNoMaybe renders a tri-state boolean.
func yesNoMaybe(value *bool) string {
	if value == nil {
		return definitions.NotAvailable
	}

	if *value {
		return "Yes"
	}

	return "No"
}

// Describe renders a record as human-readable lines for logs and
// notification mails. A nil record yields no lines.
func Describe(record *Record) []string {
	if record == nil {
		return nil
	}

	orNA := func(value string) string {
		if value == "" {
			return definitions.NotAvailable
		}

		return value
	}

	lines := make([]string, 0, 8)

	lines = append(lines, "Country: "+record.Country)

	if record.Region != "" {
		lines = append(lines, "Region: "+record.Region)
	}

	lines = append(lines,
		"City: "+record.City,
		"ISP: "+orNA(record.ISP),
		"Organization: "+orNA(record.Org),
		"Mobile network: "+yesNoMaybe(record.Mobile),
		"TOR/Proxy/VPN: "+yesNoMaybe(record.Proxy),
		"Hosting: "+yesNoMaybe(record.Hosting),
	)

	return lines
}

// DescribeJoined is Describe collapsed into one comma-separated line.
func DescribeJoined(record *Record) string {
	return strings.Join(Describe(record), ", ")
}
