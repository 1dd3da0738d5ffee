package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/croessner/secenh/server/definitions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	settings, err := Load("")

	require.NoError(t, err)
	require.NotNil(t, settings)

	assert.Equal(t, ":9443", settings.GetServer().GetAddress())
	assert.Equal(t, "secenh", settings.GetServer().GetInstanceName())
	assert.Equal(t, "secenh:", settings.GetServer().GetRedis().GetPrefix())
	assert.Equal(t, definitions.DefaultBanTTL, settings.GetBanhammer().GetDefaultTTL())
	assert.Equal(t, uint(definitions.DefaultIdentityThreshold), settings.GetLimiter().GetIdentityThreshold())
	assert.Equal(t, uint(definitions.DefaultIPThreshold), settings.GetLimiter().GetIPThreshold())
	assert.Equal(t, definitions.DefaultIdentityTTL, settings.GetLimiter().GetIdentityTTL())
	assert.Equal(t, definitions.DefaultIPTTL, settings.GetLimiter().GetIPTTL())
	assert.Equal(t, definitions.DefaultIPAPIHost, settings.GetIPAPI().GetHost())
	assert.Equal(t, definitions.DefaultGracePeriod, settings.GetWatcher().GetDevice().GetGracePeriod())
}

func TestLoadFromFile(t *testing.T) {
	content := `
server:
  address: "127.0.0.1:8080"
  instance_name: "secenh-test"
  site_url: "https://example.org"
  log:
    level: debug
    json: true
  redis:
    master:
      address: "127.0.0.1:6379"
    prefix: "st:"
limiter:
  identity_threshold: 5
  ip_threshold: 20
  identity_ttl: 5m
  ip_ttl: 2h
  whitelist:
    - 192.0.2.0/24
    - 203.0.113.17
banhammer:
  default_ttl: 12h
  ranges:
    - from: 203.0.113.0
      to: 203.0.113.255
  headers:
    - name: X-Scanner
      value: acunetix
watcher:
  device:
    enabled: true
    grace_period: 336h
  location:
    enabled: true
`

	path := filepath.Join(t.TempDir(), "secenh.yml")

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	settings, err := Load(path)

	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", settings.GetServer().GetAddress())
	assert.Equal(t, "secenh-test", settings.GetServer().GetInstanceName())
	assert.Equal(t, "https://example.org", settings.GetServer().GetSiteURL())
	assert.Equal(t, definitions.LogLevelDebug, settings.GetServer().GetLog().GetLevel())
	assert.True(t, settings.GetServer().GetLog().IsJSON())
	assert.Equal(t, "st:", settings.GetServer().GetRedis().GetPrefix())
	assert.Equal(t, uint(5), settings.GetLimiter().GetIdentityThreshold())
	assert.Equal(t, uint(20), settings.GetLimiter().GetIPThreshold())
	assert.Equal(t, 5*time.Minute, settings.GetLimiter().GetIdentityTTL())
	assert.Equal(t, 2*time.Hour, settings.GetLimiter().GetIPTTL())
	assert.Equal(t, []string{"192.0.2.0/24", "203.0.113.17"}, settings.GetLimiter().GetWhitelist())
	assert.Equal(t, 12*time.Hour, settings.GetBanhammer().GetDefaultTTL())
	assert.Equal(t, []RangeRule{{From: "203.0.113.0", To: "203.0.113.255"}}, settings.GetBanhammer().GetRanges())
	assert.Equal(t, []HeaderRule{{Name: "X-Scanner", Value: "acunetix"}}, settings.GetBanhammer().GetHeaders())
	assert.True(t, settings.GetWatcher().GetDevice().IsEnabled())
	assert.Equal(t, 336*time.Hour, settings.GetWatcher().GetDevice().GetGracePeriod())
	assert.True(t, settings.GetWatcher().GetLocation().IsEnabled())
}

func TestLoadRejectsInvalidWhitelist(t *testing.T) {
	content := `
server:
  address: "127.0.0.1:8080"
limiter:
  whitelist:
    - not-an-ip
`

	path := filepath.Join(t.TempDir(), "secenh.yml")

	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	_, err := Load(path)

	assert.Error(t, err)
}

func TestNilSectionGetters(t *testing.T) {
	var settings *FileSettings

	assert.Nil(t, settings.GetServer())
	assert.Equal(t, definitions.DefaultBanTTL, settings.GetBanhammer().GetDefaultTTL())
	assert.Equal(t, uint(definitions.DefaultIdentityThreshold), settings.GetLimiter().GetIdentityThreshold())
	assert.Empty(t, settings.GetAuth().GetRestrictedUsernames())
	assert.Equal(t, 25, settings.GetSMTP().GetPort())
}
