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

package config

import (
	"fmt"
	"time"

	"github.com/croessner/secenh/server/definitions"
)

// FileSettings is the root of the loadable configuration.
type FileSettings struct {
	Server    ServerSection    `mapstructure:"server"`
	Banhammer BanhammerSection `mapstructure:"banhammer"`
	Limiter   LimiterSection   `mapstructure:"limiter"`
	IPAPI     IPAPISection     `mapstructure:"ipapi"`
	Watcher   WatcherSection   `mapstructure:"watcher"`
	Auth      AuthSection      `mapstructure:"auth"`
	SMTP      SMTPSection      `mapstructure:"smtp"`
}

// GetServer returns the server section. It is safe to call on a nil receiver.
func (f *FileSettings) GetServer() *ServerSection {
	if f == nil {
		return nil
	}

	return &f.Server
}

// GetBanhammer returns the banhammer section.
func (f *FileSettings) GetBanhammer() *BanhammerSection {
	if f == nil {
		return nil
	}

	return &f.Banhammer
}

// GetLimiter returns the limiter section.
func (f *FileSettings) GetLimiter() *LimiterSection {
	if f == nil {
		return nil
	}

	return &f.Limiter
}

// GetIPAPI returns the geolocation section.
func (f *FileSettings) GetIPAPI() *IPAPISection {
	if f == nil {
		return nil
	}

	return &f.IPAPI
}

// GetWatcher returns the watcher section.
func (f *FileSettings) GetWatcher() *WatcherSection {
	if f == nil {
		return nil
	}

	return &f.Watcher
}

// GetAuth returns the authentication section.
func (f *FileSettings) GetAuth() *AuthSection {
	if f == nil {
		return nil
	}

	return &f.Auth
}

// GetSMTP returns the outbound mail section.
func (f *FileSettings) GetSMTP() *SMTPSection {
	if f == nil {
		return nil
	}

	return &f.SMTP
}

// ServerSection configures the HTTP listener, logging and Redis.
type ServerSection struct {
	Address      string       `mapstructure:"address" validate:"omitempty,hostname_port"`
	InstanceName string       `mapstructure:"instance_name"`
	SiteURL      string       `mapstructure:"site_url" validate:"omitempty,url"`
	Log          LogSection   `mapstructure:"log"`
	Redis        RedisSection `mapstructure:"redis"`
}

func (s *ServerSection) String() string {
	if s == nil {
		return "<nil>"
	}

	return fmt.Sprintf("Address: %s, Instance: %s, Redis: %+v", s.Address, s.InstanceName, s.Redis)
}

// GetAddress returns the listen address, defaulting to ":9443".
func (s *ServerSection) GetAddress() string {
	if s == nil || s.Address == "" {
		return ":9443"
	}

	return s.Address
}

// GetInstanceName returns the instance name, defaulting to "secenh".
func (s *ServerSection) GetInstanceName() string {
	if s == nil || s.InstanceName == "" {
		return "secenh"
	}

	return s.InstanceName
}

// GetSiteURL returns the public URL of the protected site.
func (s *ServerSection) GetSiteURL() string {
	if s == nil {
		return ""
	}

	return s.SiteURL
}

// GetLog returns the logging section.
func (s *ServerSection) GetLog() *LogSection {
	if s == nil {
		return nil
	}

	return &s.Log
}

// GetRedis returns the Redis section.
func (s *ServerSection) GetRedis() *RedisSection {
	if s == nil {
		return nil
	}

	return &s.Redis
}

// LogSection configures the global logger.
type LogSection struct {
	Level string `mapstructure:"level" validate:"omitempty,oneof=none error warn info debug"`
	JSON  bool   `mapstructure:"json"`
	Color bool   `mapstructure:"color"`
}

// GetLevel maps the configured level name to the numeric log level.
func (l *LogSection) GetLevel() int {
	if l == nil {
		return definitions.LogLevelInfo
	}

	switch l.Level {
	case "none":
		return definitions.LogLevelNone
	case "error":
		return definitions.LogLevelError
	case "warn":
		return definitions.LogLevelWarn
	case "debug":
		return definitions.LogLevelDebug
	default:
		return definitions.LogLevelInfo
	}
}

// IsJSON returns whether log output is JSON formatted.
func (l *LogSection) IsJSON() bool {
	return l != nil && l.JSON
}

// IsColor returns whether log output uses colors.
func (l *LogSection) IsColor() bool {
	return l != nil && l.Color
}

// RedisSection configures the shared Redis cache.
type RedisSection struct {
	Master       RedisAddress `mapstructure:"master"`
	Replica      RedisAddress `mapstructure:"replica"`
	Prefix       string       `mapstructure:"prefix"`
	DatabaseNmbr int          `mapstructure:"database_number" validate:"omitempty,min=0,max=15"`
	PoolSize     int          `mapstructure:"pool_size" validate:"omitempty,min=1"`
	IdlePoolSize int          `mapstructure:"idle_pool_size" validate:"omitempty,min=0"`
}

// RedisAddress is one Redis endpoint with optional credentials.
type RedisAddress struct {
	Address  string `mapstructure:"address" validate:"omitempty,hostname_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
}

// GetPrefix returns the Redis key prefix, defaulting to "secenh:".
func (r *RedisSection) GetPrefix() string {
	if r == nil || r.Prefix == "" {
		return "secenh:"
	}

	return r.Prefix
}

// GetPoolSize returns the connection pool size, defaulting to 10.
func (r *RedisSection) GetPoolSize() int {
	if r == nil || r.PoolSize == 0 {
		return 10
	}

	return r.PoolSize
}

// BanhammerSection configures ban entries and enforcement.
type BanhammerSection struct {
	DefaultTTL time.Duration `mapstructure:"default_ttl" validate:"omitempty,gt=0"`
	Ranges     []RangeRule   `mapstructure:"ranges" validate:"omitempty,dive"`
	Headers    []HeaderRule  `mapstructure:"headers" validate:"omitempty,dive"`
}

// RangeRule rejects requests carrying a candidate IP inside the inclusive
// range [From, To]. Ranges are evaluated per request and never persisted.
type RangeRule struct {
	From string `mapstructure:"from" validate:"required,ip_addr"`
	To   string `mapstructure:"to" validate:"required,ip_addr"`
}

// HeaderRule rejects requests whose named header carries exactly Value.
type HeaderRule struct {
	Name  string `mapstructure:"name" validate:"required"`
	Value string `mapstructure:"value" validate:"required"`
}

// GetDefaultTTL returns the default ban lifetime.
func (b *BanhammerSection) GetDefaultTTL() time.Duration {
	if b == nil || b.DefaultTTL == 0 {
		return definitions.DefaultBanTTL
	}

	return b.DefaultTTL
}

// GetRanges returns the configured IP range rules.
func (b *BanhammerSection) GetRanges() []RangeRule {
	if b == nil {
		return nil
	}

	return b.Ranges
}

// GetHeaders returns the configured header ban rules.
func (b *BanhammerSection) GetHeaders() []HeaderRule {
	if b == nil {
		return nil
	}

	return b.Headers
}

// LimiterSection configures the login failure rate limiter.
type LimiterSection struct {
	IdentityThreshold uint          `mapstructure:"identity_threshold"`
	IPThreshold       uint          `mapstructure:"ip_threshold"`
	IdentityTTL       time.Duration `mapstructure:"identity_ttl" validate:"omitempty,gt=0"`
	IPTTL             time.Duration `mapstructure:"ip_ttl" validate:"omitempty,gt=0"`
	Whitelist         []string      `mapstructure:"whitelist" validate:"omitempty,dive,ip_addr|cidr"`
}

func (l *LimiterSection) String() string {
	if l == nil {
		return "<nil>"
	}

	return fmt.Sprintf("Thresholds: %d/%d, Whitelist: %+v", l.GetIdentityThreshold(), l.GetIPThreshold(), l.Whitelist)
}

// GetIdentityThreshold returns the per-(IP,username) failure threshold.
func (l *LimiterSection) GetIdentityThreshold() uint {
	if l == nil || l.IdentityThreshold == 0 {
		return definitions.DefaultIdentityThreshold
	}

	return l.IdentityThreshold
}

// GetIPThreshold returns the per-IP failure threshold.
func (l *LimiterSection) GetIPThreshold() uint {
	if l == nil || l.IPThreshold == 0 {
		return definitions.DefaultIPThreshold
	}

	return l.IPThreshold
}

// GetIdentityTTL returns the per-(IP,username) counter window.
func (l *LimiterSection) GetIdentityTTL() time.Duration {
	if l == nil || l.IdentityTTL == 0 {
		return definitions.DefaultIdentityTTL
	}

	return l.IdentityTTL
}

// GetIPTTL returns the per-IP counter window.
func (l *LimiterSection) GetIPTTL() time.Duration {
	if l == nil || l.IPTTL == 0 {
		return definitions.DefaultIPTTL
	}

	return l.IPTTL
}

// GetWhitelist returns the IPs and networks exempt from rate limiting.
func (l *LimiterSection) GetWhitelist() []string {
	if l == nil {
		return nil
	}

	return l.Whitelist
}

// IPAPISection configures the remote geolocation service.
type IPAPISection struct {
	Host     string        `mapstructure:"host" validate:"omitempty,hostname|hostname_port"`
	CacheTTL time.Duration `mapstructure:"cache_ttl" validate:"omitempty,gt=0"`
	Timeout  time.Duration `mapstructure:"timeout" validate:"omitempty,gt=0"`
}

// GetHost returns the geolocation host.
func (i *IPAPISection) GetHost() string {
	if i == nil || i.Host == "" {
		return definitions.DefaultIPAPIHost
	}

	return i.Host
}

// GetCacheTTL returns the cache lifetime of geolocation records.
func (i *IPAPISection) GetCacheTTL() time.Duration {
	if i == nil || i.CacheTTL == 0 {
		return definitions.DefaultGeoCacheTTL
	}

	return i.CacheTTL
}

// GetTimeout returns the HTTP timeout for geolocation requests.
func (i *IPAPISection) GetTimeout() time.Duration {
	if i == nil || i.Timeout == 0 {
		return definitions.DefaultHTTPTimeout
	}

	return i.Timeout
}

// WatcherSection configures the novelty watchers.
type WatcherSection struct {
	Device   DeviceSection   `mapstructure:"device"`
	Location LocationSection `mapstructure:"location"`
}

// GetDevice returns the device watcher section.
func (w *WatcherSection) GetDevice() *DeviceSection {
	if w == nil {
		return nil
	}

	return &w.Device
}

// GetLocation returns the location watcher section.
func (w *WatcherSection) GetLocation() *LocationSection {
	if w == nil {
		return nil
	}

	return &w.Location
}

// DeviceSection configures the new-device watcher.
type DeviceSection struct {
	Enabled     bool          `mapstructure:"enabled"`
	GracePeriod time.Duration `mapstructure:"grace_period" validate:"omitempty,gt=0"`
	CookieTTL   time.Duration `mapstructure:"cookie_ttl" validate:"omitempty,gt=0"`
	CookiePath  string        `mapstructure:"cookie_path"`
}

// GetGracePeriod returns the notification grace period after salt creation.
func (d *DeviceSection) GetGracePeriod() time.Duration {
	if d == nil || d.GracePeriod == 0 {
		return definitions.DefaultGracePeriod
	}

	return d.GracePeriod
}

// GetCookieTTL returns the device cookie lifetime.
func (d *DeviceSection) GetCookieTTL() time.Duration {
	if d == nil || d.CookieTTL == 0 {
		return definitions.DefaultDeviceCookieTTL
	}

	return d.CookieTTL
}

// GetCookiePath returns the device cookie path, defaulting to "/".
func (d *DeviceSection) GetCookiePath() string {
	if d == nil || d.CookiePath == "" {
		return "/"
	}

	return d.CookiePath
}

// IsEnabled returns whether the device watcher runs on successful logins.
func (d *DeviceSection) IsEnabled() bool {
	return d != nil && d.Enabled
}

// LocationSection configures the new-location watcher.
type LocationSection struct {
	Enabled bool `mapstructure:"enabled"`
}

// IsEnabled returns whether the location watcher runs on successful logins.
func (l *LocationSection) IsEnabled() bool {
	return l != nil && l.Enabled
}

// AuthSection configures the credential gate.
type AuthSection struct {
	HtpasswdFile        string   `mapstructure:"htpasswd_file" validate:"omitempty,file"`
	RestrictedUsernames []string `mapstructure:"restricted_usernames"`
}

// GetHtpasswdFile returns the path of the htpasswd credential store.
func (a *AuthSection) GetHtpasswdFile() string {
	if a == nil {
		return ""
	}

	return a.HtpasswdFile
}

// GetRestrictedUsernames returns usernames that always fail authentication.
func (a *AuthSection) GetRestrictedUsernames() []string {
	if a == nil {
		return nil
	}

	return a.RestrictedUsernames
}

// SMTPSection configures the outbound mail transport.
type SMTPSection struct {
	Server   string   `mapstructure:"server" validate:"omitempty,hostname"`
	Port     int      `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	HeloName string   `mapstructure:"helo_name"`
	Username string   `mapstructure:"username"`
	Password string   `mapstructure:"password"`
	From     string   `mapstructure:"from" validate:"omitempty,email"`
	To       []string `mapstructure:"to" validate:"omitempty,dive,email"`
}

// GetServer returns the SMTP server host.
func (s *SMTPSection) GetServer() string {
	if s == nil {
		return ""
	}

	return s.Server
}

// GetPort returns the SMTP port, defaulting to 25.
func (s *SMTPSection) GetPort() int {
	if s == nil || s.Port == 0 {
		return 25
	}

	return s.Port
}

// GetFrom returns the envelope sender address.
func (s *SMTPSection) GetFrom() string {
	if s == nil {
		return ""
	}

	return s.From
}

// GetTo returns the default notification recipients.
func (s *SMTPSection) GetTo() []string {
	if s == nil {
		return nil
	}

	return s.To
}
