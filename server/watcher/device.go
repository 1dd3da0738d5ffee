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

// Package watcher tracks the devices and locations each account signs in
// from and notifies the operators about ones never seen before. It runs
// after a successful authentication and never fails the login itself.
package watcher

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"

	"github.com/croessner/secenh/server/attrstore"
	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/ident"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/notify"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
)

// Attribute and option names in the attribute store.
const (
	AttrKnownDevices     = "known_devices"
	AttrKnownLocations   = "known_locations"
	OptionDeviceSalt     = "device_salt"
	OptionDeviceSaltTime = "device_salt_time"
)

// Watcher evaluates the device and location history of an account. The
// notification sender is optional; without one, new sightings are only
// recorded and logged.
type Watcher struct {
	cfg    *config.WatcherSection
	site   string
	store  attrstore.Store
	geo    *ipapi.Client
	sender notify.Sender
	policy notify.Policy
	now    func() time.Time
}

// New returns a Watcher. site is the public URL named in notification mails.
func New(cfg *config.WatcherSection, site string, store attrstore.Store, geo *ipapi.Client, sender notify.Sender) *Watcher {
	return &Watcher{
		cfg:    cfg,
		site:   site,
		store:  store,
		geo:    geo,
		sender: sender,
		now:    time.Now,
	}
}

// SetNowFunc replaces the clock. Only tests call this.
func (w *Watcher) SetNowFunc(now func() time.Time) {
	w.now = now
}

// SetPolicy installs a notification policy. The policy may rewrite the
// recipients, subject or body of a message, or veto it entirely.
func (w *Watcher) SetPolicy(policy notify.Policy) {
	w.policy = policy
}

// DeviceFingerprint derives the fingerprint of one (IP, User-Agent) pair.
func DeviceFingerprint(ip, userAgent string) string {
	sum := sha1.Sum([]byte(ip + "|" + userAgent))

	return hex.EncodeToString(sum[:])
}

// CookieValue derives the device cookie value for a user. The value is
// salted so cookies become invalid in bulk when the salt is regenerated.
func CookieValue(salt, username string) string {
	mac := hmac.New(sha256.New, []byte(salt))
	mac.Write([]byte(username))

	return hex.EncodeToString(mac.Sum(nil))
}

// WatchDevice records the device of a successful login and notifies about an
// unknown one. A valid device cookie short-circuits the history lookup.
// Notifications are suppressed during the grace period following the salt
// creation, so existing users do not get mailed about every device they
// already own.
func (w *Watcher) WatchDevice(ctx *gin.Context, username string) error {
	device := w.cfg.GetDevice()

	if !device.IsEnabled() {
		return nil
	}

	requestCtx := ctx.Request.Context()

	salt, saltCreatedAt, err := w.deviceSalt(requestCtx)
	if err != nil {
		return err
	}

	expected := CookieValue(salt, username)

	if cookie, cookieErr := ctx.Cookie(definitions.DeviceCookieName); cookieErr == nil {
		if hmac.Equal([]byte(cookie), []byte(expected)) {
			return nil
		}
	}

	identity := ident.Resolve(ctx.Request)
	fingerprint := DeviceFingerprint(identity.IP, identity.UserAgent)

	devices, err := attrstore.GetUserMap(requestCtx, w.store, username, AttrKnownDevices)
	if err != nil {
		return err
	}

	_, known := devices[fingerprint]
	devices[fingerprint] = w.now().Unix()

	if err := attrstore.SetUserMap(requestCtx, w.store, username, AttrKnownDevices, devices); err != nil {
		return err
	}

	w.setDeviceCookie(ctx, expected)

	if known {
		return nil
	}

	withinGrace := w.now().Before(saltCreatedAt.Add(device.GetGracePeriod()))

	level.Info(log.Logger).Log(
		definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
		definitions.LogKeyUsername, username,
		definitions.LogKeyClientIP, identity.IP,
		definitions.LogKeyUserAgent, identity.UserAgent,
		definitions.LogKeyMsg, "New device",
		"grace", withinGrace,
	)

	if withinGrace {
		return nil
	}

	w.deliver(ctx, notify.NewDeviceMessage(
		w.site, username, displayIP(identity.IP), identity.UserAgent, w.geoLines(requestCtx, identity.IP), w.now(),
	))

	return nil
}

// deviceSalt returns the persisted device salt, generating it on first use.
func (w *Watcher) deviceSalt(ctx context.Context) (string, time.Time, error) {
	salt, found, err := w.store.GetOption(ctx, OptionDeviceSalt)
	if err != nil {
		return "", time.Time{}, err
	}

	if !found {
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return "", time.Time{}, err
		}

		salt = hex.EncodeToString(raw)
		createdAt := w.now()

		if err := w.store.SetOption(ctx, OptionDeviceSalt, salt); err != nil {
			return "", time.Time{}, err
		}

		if err := w.store.SetOption(ctx, OptionDeviceSaltTime, strconv.FormatInt(createdAt.Unix(), 10)); err != nil {
			return "", time.Time{}, err
		}

		return salt, createdAt, nil
	}

	createdAt := time.Time{}

	if value, found, err := w.store.GetOption(ctx, OptionDeviceSaltTime); err == nil && found {
		if unix, parseErr := strconv.ParseInt(value, 10, 64); parseErr == nil {
			createdAt = time.Unix(unix, 0)
		}
	}

	return salt, createdAt, nil
}

// setDeviceCookie marks the browser as a known device.
func (w *Watcher) setDeviceCookie(ctx *gin.Context, value string) {
	device := w.cfg.GetDevice()
	secure := ctx.Request.TLS != nil || strings.HasPrefix(w.site, "https://")

	ctx.SetCookie(
		definitions.DeviceCookieName,
		value,
		int(device.GetCookieTTL().Seconds()),
		device.GetCookiePath(),
		"",
		secure,
		true,
	)
}

// geoLines returns the human-readable geolocation of an IP, if available.
func (w *Watcher) geoLines(ctx context.Context, ip string) []string {
	if w.geo == nil || ip == "" {
		return nil
	}

	return ipapi.Describe(w.geo.Geolocate(ctx, ip))
}

// deliver sends one notification mail, logging instead of failing. An
// installed policy gets the final word on the message.
func (w *Watcher) deliver(ctx *gin.Context, message *notify.Message) {
	if w.sender == nil {
		return
	}

	if w.policy != nil {
		if message = w.policy(message); message == nil {
			return
		}
	}

	if err := w.sender.Send(ctx.Request.Context(), message); err != nil {
		level.Error(log.Logger).Log(
			definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
			definitions.LogKeyMsg, "Unable to send notification",
			definitions.LogKeyError, err,
		)
	}
}

// displayIP substitutes the placeholder for an unresolvable client IP.
func displayIP(ip string) string {
	if ip == "" {
		return definitions.UnknownIP
	}

	return ip
}
