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

package errors

import (
	"errors"
)

// banhammer.

var (
	ErrInvalidRange     = errors.New("invalid range")
	ErrMixedRangeFamily = errors.New("range endpoints belong to different address families")
)

// limiter.

var (
	ErrLoginLimitExceeded = errors.New("login limit exceeded")
)

// authgate.

var (
	ErrInvalidCredentials = errors.New("the credentials provided are incorrect")
	ErrNoCredentialStore  = errors.New("no credential store configured")
)
