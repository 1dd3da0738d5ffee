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

package banhammer

import (
	"bytes"
	"net/netip"

	"github.com/croessner/secenh/server/errors"
	"github.com/croessner/secenh/server/ident"
	"github.com/gin-gonic/gin"
)

// MatchRange reports the first collected candidate IP of the request that
// falls inside the inclusive range [from, to]. Ranges are never stored; a
// match terminates exactly the request it was evaluated on. Both endpoints
// must parse and belong to the same address family.
func MatchRange(candidates map[string]string, from, to string) (ip, source string, err error) {
	lower, err := netip.ParseAddr(from)
	if err != nil {
		return "", "", errors.ErrInvalidRange
	}

	upper, err := netip.ParseAddr(to)
	if err != nil {
		return "", "", errors.ErrInvalidRange
	}

	if lower.Is4() != upper.Is4() {
		return "", "", errors.ErrMixedRangeFamily
	}

	lowerBytes := lower.AsSlice()
	upperBytes := upper.AsSlice()

	for candidate, candidateSource := range candidates {
		addr, parseErr := netip.ParseAddr(candidate)
		if parseErr != nil || addr.Is4() != lower.Is4() {
			continue
		}

		candidateBytes := addr.AsSlice()

		if bytes.Compare(candidateBytes, lowerBytes) >= 0 && bytes.Compare(candidateBytes, upperBytes) <= 0 {
			return candidate, candidateSource, nil
		}
	}

	return "", "", nil
}

// CheckRange terminates the request when any of its candidate IPs falls
// inside [from, to]. It returns true when the request was rejected.
func (b *Banhammer) CheckRange(ctx *gin.Context, from, to string) (bool, error) {
	ip, source, err := MatchRange(ident.Candidates(ctx.Request), from, to)
	if err != nil {
		return false, err
	}

	if ip == "" {
		return false, nil
	}

	b.goodbye(ctx, ip, source)

	return true, nil
}
