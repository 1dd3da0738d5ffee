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
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Load reads the configuration file (YAML) from the given path, overlays
// SECENH_* environment variables and validates the result. An empty path
// falls back to defaults plus environment.
func Load(path string) (*FileSettings, error) {
	vp := viper.New()

	vp.SetConfigType("yaml")
	vp.SetEnvPrefix("secenh")
	vp.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	vp.AutomaticEnv()

	if path != "" {
		vp.SetConfigFile(path)

		if err := vp.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("unable to read configuration: %w", err)
		}
	}

	settings := &FileSettings{}

	if err := vp.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("unable to parse configuration: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	if err := validate.Struct(settings); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}
