// Copyright 2024 The hubproxy authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package cmd

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestServeDefaults(t *testing.T) {
	assert.Equal(t, uint(10086), serveViper.GetUint(servePortKey))
	assert.Equal(t, 15*time.Second, serveViper.GetDuration(serveTimeoutKey))
	assert.Equal(t, 60*time.Second, serveViper.GetDuration(serveCacheTTLKey))
	assert.Equal(t, 256, serveViper.GetInt(serveCacheMaxEntriesKey))
	assert.Contains(t, serveViper.GetString(serveUserAgentKey), "hubproxy")
	assert.Equal(t, "info", serveViper.GetString(logLevelKey))
}

func TestServeEnvOverrides(t *testing.T) {
	t.Setenv(servePortEnv, "8123")
	t.Setenv(serveTimeoutEnv, "3s")
	t.Setenv(serveCacheTTLEnv, "0")
	t.Setenv(serveCacheMaxEntriesEnv, "16")
	t.Setenv(serveUserAgentEnv, "custom-agent/2.0")

	assert.Equal(t, uint(8123), serveViper.GetUint(servePortKey))
	assert.Equal(t, 3*time.Second, serveViper.GetDuration(serveTimeoutKey))
	assert.Equal(t, time.Duration(0), serveViper.GetDuration(serveCacheTTLKey))
	assert.Equal(t, 16, serveViper.GetInt(serveCacheMaxEntriesKey))
	assert.Equal(t, "custom-agent/2.0", serveViper.GetString(serveUserAgentKey))
}

func TestConfigureLogRejectsUnknownLevel(t *testing.T) {
	t.Setenv(logLevelEnv, "verbose")

	err := configureLog(serveViper)
	assert.Error(t, err)
}

func TestConfigureLogRejectsUnknownFormat(t *testing.T) {
	t.Setenv(logFormatEnv, "xml")

	err := configureLog(serveViper)
	assert.Error(t, err)
}
