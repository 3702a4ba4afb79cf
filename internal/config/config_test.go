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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "jwks.yaml")
	body := []byte(`
url: https://issuer.example.com/.well-known/jwks.json
http:
  connectTimeout: 250ms
  headers:
    User-Agent: jwkstack-test
cache:
  enabled: true
  timeToLive: 10m
refreshAhead:
  enabled: true
  time: 45s
rateLimit:
  enabled: true
  minInterval: 20s
outage:
  enabled: true
  timeToLive: 1h
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "https://issuer.example.com/.well-known/jwks.json", cfg.URL)
	assert.Equal(t, Duration(250*time.Millisecond), cfg.HTTP.ConnectTimeout)
	assert.Equal(t, "jwkstack-test", cfg.HTTP.Headers["User-Agent"])
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, Duration(10*time.Minute), cfg.Cache.TimeToLive)
	assert.True(t, cfg.RefreshAhead.Enabled)
	assert.Equal(t, Duration(45*time.Second), cfg.RefreshAhead.Time)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, Duration(20*time.Second), cfg.RateLimit.MinInterval)
	assert.True(t, cfg.Outage.Enabled)
	assert.Equal(t, Duration(time.Hour), cfg.Outage.TimeToLive)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDuration_UnmarshalYAML_RejectsInvalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  timeToLive: not-a-duration\n"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}
