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

package definitions

import "time"

// Log levels.
const (
	LogLevelNone = iota
	LogLevelError
	LogLevelWarn
	LogLevelInfo
	LogLevelDebug
)

// Log format keys.
const (
	// LogKeyGUID represents the per-request session identifier in log entries.
	LogKeyGUID = "session"

	// LogKeyMsg represents the message content in log entries.
	LogKeyMsg = "msg"

	// LogKeyError represents error information in log entries.
	LogKeyError = "error"

	// LogKeyInstance represents instance identification in log entries.
	LogKeyInstance = "instance"

	// LogKeyUsername represents the username being used for authentication.
	LogKeyUsername = "username"

	// LogKeyClientIP represents the IP address of the client.
	LogKeyClientIP = "client_ip"

	// LogKeyUserAgent represents the user-agent string of the client.
	LogKeyUserAgent = "user_agent"

	// LogKeyUriPath represents the URI path of a request.
	LogKeyUriPath = "uri_path"

	// LogKeyMethod represents the HTTP method of a request.
	LogKeyMethod = "method"

	// LogKeyHTTPStatus represents the HTTP response status code.
	LogKeyHTTPStatus = "http_status"

	// LogKeyLatency represents the processing time of a request.
	LogKeyLatency = "latency"

	// LogKeySite represents the public URL of the protected site.
	LogKeySite = "site"

	// LogKeyCriterion names the request attribute that matched a ban entry.
	LogKeyCriterion = "criterion"

	// LogKeyGeoIP represents the geolocation summary of a client IP.
	LogKeyGeoIP = "geoip"

	// LogKeyStatus represents the general authentication status.
	LogKeyStatus = "authenticated"

	// LogKeyBanhammer indicates that the ban enforcement path triggered.
	LogKeyBanhammer = "banhammer"

	// LogKeyLoginLimiter indicates that the login rate limiter triggered.
	LogKeyLoginLimiter = "login_limiter"
)

// Cache groups. Every Redis key written through the cache layer is
// "<configured prefix><group>:<key>".
const (
	// CacheGroupBan holds presence flags for banned IPs and User-Agents.
	CacheGroupBan = "ban"

	// CacheGroupLimiter holds the sliding-window failure counters.
	CacheGroupLimiter = "limiter"

	// CacheGroupIPAPI caches normalized geolocation records.
	CacheGroupIPAPI = "ipapi"
)

// RedisUserAttrPrefix holds per-user fingerprint history hashes, outside the
// cache layer because the attribute store never expires.
const RedisUserAttrPrefix = "user:"

// Defaults. All of them are overridable through the configuration.
const (
	// DefaultBanTTL is the lifetime of a ban entry.
	DefaultBanTTL = 86400 * time.Second

	// DefaultIdentityTTL is the window of the per-(IP,username) counter.
	DefaultIdentityTTL = 600 * time.Second

	// DefaultIPTTL is the window of the per-IP counter.
	DefaultIPTTL = 3600 * time.Second

	// DefaultIdentityThreshold is the failure count per (IP,username) above
	// which logins are throttled.
	DefaultIdentityThreshold = 3

	// DefaultIPThreshold is the failure count per IP above which logins are
	// throttled.
	DefaultIPThreshold = 10

	// DefaultGeoCacheTTL is the lifetime of a cached geolocation record.
	DefaultGeoCacheTTL = 24 * time.Hour

	// DefaultGracePeriod suppresses new-device notifications for this long
	// after the device salt was first generated.
	DefaultGracePeriod = 14 * 24 * time.Hour

	// DefaultDeviceCookieTTL is the lifetime of the device cookie.
	DefaultDeviceCookieTTL = 5 * 365 * 24 * time.Hour

	// DefaultIPAPIHost is the geolocation endpoint host.
	DefaultIPAPIHost = "ip-api.com"

	// DefaultHTTPTimeout bounds the blocking geolocation request.
	DefaultHTTPTimeout = 10 * time.Second
)

// DeviceCookieName is the name of the long-lived browser cookie that marks a
// known device.
const DeviceCookieName = "secenh_dw"

// IPAPIFields is the fixed ip-api.com field bitmask requesting status, query,
// country, countryCode, regionName, city, isp, org, as, mobile, proxy and
// hosting.
const IPAPIFields = 17034779

// Context keys used with gin.Context.Set/Get.
const (
	// CtxGUIDKey carries the per-request session GUID.
	CtxGUIDKey = "guid"

	// CtxLocationKey carries the resolved location display string.
	CtxLocationKey = "location"
)

// ErrCredentials is the one generic credentials failure presented to end
// users regardless of the underlying cause.
const ErrCredentials = "The credentials provided are incorrect."

// ErrorCodeFailure is the collapsed error code replacing all distinguishing
// credential error codes.
const ErrorCodeFailure = "failure"

// ErrorCodeLoginLimit is the error code for throttled login attempts.
const ErrorCodeLoginLimit = "login_limit_exceeded"

// NotAvailable is the placeholder for missing values in logs and reports.
const NotAvailable = "N/A"

// UnknownIP is the placeholder for an unresolvable client IP.
const UnknownIP = "<unknown IP>"

// UnknownLocation is the placeholder for an unresolvable geolocation.
const UnknownLocation = "Unknown location"
