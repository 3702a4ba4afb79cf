// Copyright (c) 2025-present deep.rent GmbH (https://www.deep.rent)
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads a JWK set pipeline's configuration from YAML, so an
// operator can describe a stack declaratively instead of chaining Builder
// calls in code. Every field mirrors a Builder knob by name; a zero value
// leaves the corresponding Builder default untouched.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration parses as a Go duration string ("500ms", "5m") instead of YAML's
// native integer-nanoseconds representation, matching how operators expect
// to write timeouts and intervals by hand.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// Config is the declarative counterpart to Builder: every non-zero field
// corresponds to exactly one Builder method.
type Config struct {
	// URL and File are mutually exclusive leaf sources; exactly one must be
	// set unless the caller installs a leaf via WithSource directly.
	URL  string `yaml:"url"`
	File string `yaml:"file"`

	HTTP struct {
		ConnectTimeout Duration          `yaml:"connectTimeout"`
		ReadTimeout    Duration          `yaml:"readTimeout"`
		SizeLimit      int64             `yaml:"sizeLimit"`
		Headers        map[string]string `yaml:"headers"`
	} `yaml:"http"`

	Cache struct {
		Enabled        bool     `yaml:"enabled"`
		Forever        bool     `yaml:"forever"`
		TimeToLive     Duration `yaml:"timeToLive"`
		RefreshTimeout Duration `yaml:"refreshTimeout"`
	} `yaml:"cache"`

	RefreshAhead struct {
		Enabled   bool     `yaml:"enabled"`
		Scheduled bool     `yaml:"scheduled"`
		Time      Duration `yaml:"time"`
	} `yaml:"refreshAhead"`

	RateLimit struct {
		Enabled     bool     `yaml:"enabled"`
		MinInterval Duration `yaml:"minInterval"`
	} `yaml:"rateLimit"`

	Outage struct {
		Enabled    bool     `yaml:"enabled"`
		TimeToLive Duration `yaml:"timeToLive"`
	} `yaml:"outage"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}
