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

// Package authgate screens login requests before the credential check and
// strips information from the answers afterwards. An attacker must not be
// able to tell a wrong username from a wrong password, and requests that do
// not even look like a browser never reach the password verification.
package authgate

import (
	"net/http"
	"strings"

	"github.com/croessner/secenh/server/config"
	"github.com/croessner/secenh/server/definitions"
	"github.com/croessner/secenh/server/errors"
	"github.com/croessner/secenh/server/ident"
)

// revealingCodes are the error codes that disclose which part of the
// credentials was wrong. All of them collapse into one generic code.
var revealingCodes = map[string]struct{}{
	"invalid_username":   {},
	"invalid_email":      {},
	"incorrect_password": {},
	"invalidcombo":       {},
}

// CollapseErrorCode maps every revealing credential error code onto the
// generic failure code. Other codes pass through unchanged.
func CollapseErrorCode(code string) string {
	if _, revealing := revealingCodes[code]; revealing {
		return definitions.ErrorCodeFailure
	}

	return code
}

// Gate is the request-shape pre-filter.
type Gate struct {
	cfg *config.AuthSection
}

// New returns a Gate.
func New(cfg *config.AuthSection) *Gate {
	return &Gate{cfg: cfg}
}

// Screen rejects requests that do not look like they come from a browser: a
// peer address that does not resolve to an IP, a missing or tampered
// User-Agent, or a missing Accept header. The returned error is the same
// generic one a failed credential check produces.
func (g *Gate) Screen(request *http.Request) error {
	identity := ident.Resolve(request)

	if identity.IP == "" {
		return errors.ErrInvalidCredentials
	}

	if ident.IsSuspiciousUA(identity.UserAgent) {
		return errors.ErrInvalidCredentials
	}

	if !ident.HasAcceptHeader(request) {
		return errors.ErrInvalidCredentials
	}

	return nil
}

// IsRestrictedUsername reports whether logins for this username are refused
// outright. The comparison ignores case.
func (g *Gate) IsRestrictedUsername(username string) bool {
	for _, restricted := range g.cfg.GetRestrictedUsernames() {
		if strings.EqualFold(username, restricted) {
			return true
		}
	}

	return false
}
