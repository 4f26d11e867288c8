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
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	cmdutils "github.com/hubproxy/hubproxy/cmd/utils"
	"github.com/hubproxy/hubproxy/services/relay"
	"github.com/hubproxy/hubproxy/version"
)

// serveViper represents the configuration of the serve command
var serveViper = viper.New()

const servePortKey = "port"
const servePortEnv = "HUBPROXY_PORT"
const serveTimeoutKey = "timeout"
const serveTimeoutEnv = "HUBPROXY_TIMEOUT"
const serveCacheTTLKey = "cache_ttl"
const serveCacheTTLEnv = "HUBPROXY_CACHE_TTL"
const serveCacheMaxEntriesKey = "cache_max_entries"
const serveCacheMaxEntriesEnv = "HUBPROXY_CACHE_MAXSIZE"
const serveUserAgentKey = "user_agent"
const serveUserAgentEnv = "HUBPROXY_USER_AGENT"

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the relay server",
	Args:  cobra.NoArgs,
	RunE: func(_cmd *cobra.Command, _args []string) error {
		err := configureLog(serveViper)
		if err != nil {
			return err
		}

		log.WithFields(logrus.Fields{
			"version": version.Version,
			"hash":    version.Hash,
		}).Info("starting the relay server")

		options := relay.Options{
			Port:            serveViper.GetUint(servePortKey),
			UpstreamTimeout: serveViper.GetDuration(serveTimeoutKey),
			CacheTTL:        serveViper.GetDuration(serveCacheTTLKey),
			CacheMaxEntries: serveViper.GetInt(serveCacheMaxEntriesKey),
			UserAgent:       serveViper.GetString(serveUserAgentKey),
		}

		ctx := cmdutils.ContextWithUserTermination(context.Background())

		err = relay.Run(ctx, options)
		if err != nil {
			if err == context.Canceled {
				log.Info("interrupted by user")
				return nil
			}
			return err
		}
		return nil
	},
}

func init() {
	serveViper.SetDefault(servePortKey, relay.DefaultOptions.Port)
	_ = serveViper.BindEnv(servePortKey, servePortEnv)
	serveCmd.Flags().Uint(
		servePortKey,
		serveViper.GetUint(servePortKey),
		"The http port to listen on",
	)

	serveViper.SetDefault(serveTimeoutKey, relay.DefaultOptions.UpstreamTimeout)
	_ = serveViper.BindEnv(serveTimeoutKey, serveTimeoutEnv)
	serveCmd.Flags().Duration(
		serveTimeoutKey,
		serveViper.GetDuration(serveTimeoutKey),
		"Timeout applied to each upstream request",
	)

	serveViper.SetDefault(serveCacheTTLKey, relay.DefaultOptions.CacheTTL)
	_ = serveViper.BindEnv(serveCacheTTLKey, serveCacheTTLEnv)
	serveCmd.Flags().Duration(
		serveCacheTTLKey,
		serveViper.GetDuration(serveCacheTTLKey),
		"Freshness duration of cached upstream responses, 0 disables the cache",
	)

	serveViper.SetDefault(serveCacheMaxEntriesKey, relay.DefaultOptions.CacheMaxEntries)
	_ = serveViper.BindEnv(serveCacheMaxEntriesKey, serveCacheMaxEntriesEnv)
	serveCmd.Flags().Int(
		serveCacheMaxEntriesKey,
		serveViper.GetInt(serveCacheMaxEntriesKey),
		"Maximum number of cached upstream responses",
	)

	serveViper.SetDefault(serveUserAgentKey, relay.DefaultOptions.UserAgent)
	_ = serveViper.BindEnv(serveUserAgentKey, serveUserAgentEnv)
	serveCmd.Flags().String(
		serveUserAgentKey,
		serveViper.GetString(serveUserAgentKey),
		"User-Agent header sent with upstream requests",
	)

	serveViper.SetDefault(logLevelKey, logrus.InfoLevel.String())
	_ = serveViper.BindEnv(logLevelKey, logLevelEnv)
	serveCmd.Flags().String(
		logLevelKey,
		serveViper.GetString(logLevelKey),
		fmt.Sprintf("Minimum logging level as one of %v", expectedLogLevels),
	)

	_ = serveViper.BindEnv(logFileKey, logFileEnv)
	serveCmd.Flags().String(
		logFileKey,
		serveViper.GetString(logFileKey),
		"Log file output",
	)

	_ = serveViper.BindEnv(logFormatKey, logFormatEnv)
	serveCmd.Flags().String(
		logFormatKey,
		serveViper.GetString(logFormatKey),
		fmt.Sprintf(
			"Log format as one of %v, default is %q, when a log file is specified it is %q",
			expectedLogFormats, text, json,
		),
	)

	// Don't sort alphabetically, keep insertion order
	serveCmd.Flags().SortFlags = false

	// Bind "cobra" flags defined in the CLI with viper
	_ = serveViper.BindPFlags(serveCmd.Flags())
}
