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

package watcher

import (
	"github.com/croessner/secenh/server/attrstore"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/ident"
	"github.com/croessner/secenh/server/ipapi"
	"github.com/croessner/secenh/server/log"
	"github.com/croessner/secenh/server/notify"
	"github.com/gin-gonic/gin"
	"github.com/go-kit/log/level"
)

// LocationFingerprint derives the fingerprint of a geolocation record. The
// NUL separator keeps adjacent fields from colliding.
func LocationFingerprint(record *ipapi.Record) string {
	return record.Country + "\x00" + record.City + "\x00" + record.ISP
}

// WatchLocation records the location of a successful login and notifies
// about an unknown one. Unlike devices, there is no grace period: a location
// never seen for this account always notifies. Logins whose IP cannot be
// geolocated are skipped.
func (w *Watcher) WatchLocation(ctx *gin.Context, username string) error {
	if !w.cfg.GetLocation().IsEnabled() {
		return nil
	}

	identity := ident.Resolve(ctx.Request)

	if w.geo == nil || identity.IP == "" {
		return nil
	}

	requestCtx := ctx.Request.Context()

	record := w.geo.Geolocate(requestCtx, identity.IP)
	if record == nil {
		ctx.Set(definitions.CtxLocationKey, definitions.UnknownLocation)

		return nil
	}

	ctx.Set(definitions.CtxLocationKey, ipapi.DescribeJoined(record))

	fingerprint := LocationFingerprint(record)

	locations, err := attrstore.GetUserMap(requestCtx, w.store, username, AttrKnownLocations)
	if err != nil {
		return err
	}

	_, known := locations[fingerprint]
	locations[fingerprint] = w.now().Unix()

	if err := attrstore.SetUserMap(requestCtx, w.store, username, AttrKnownLocations, locations); err != nil {
		return err
	}

	if known {
		return nil
	}

	level.Info(log.Logger).Log(
		definitions.LogKeyGUID, ctx.GetString(definitions.CtxGUIDKey),
		definitions.LogKeyUsername, username,
		definitions.LogKeyClientIP, identity.IP,
		definitions.LogKeyGeoIP, ipapi.DescribeJoined(record),
		definitions.LogKeyMsg, "New location",
	)

	w.deliver(ctx, notify.NewLocationMessage(
		w.site, username, identity.IP, ipapi.Describe(record), w.now(),
	))

	return nil
}
