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

package relay

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/hubproxy/hubproxy/services/relay/cache"
	"github.com/hubproxy/hubproxy/services/relay/httpserver"
	"github.com/hubproxy/hubproxy/services/relay/upstream"
)

var log = logrus.WithField("component", "relay")

type Options struct {
	Port            uint
	UpstreamTimeout time.Duration
	CacheTTL        time.Duration
	CacheMaxEntries int
	UserAgent       string
}

var DefaultOptions = Options{
	Port:            10086,
	UpstreamTimeout: 15 * time.Second,
	CacheTTL:        60 * time.Second,
	CacheMaxEntries: 256,
	UserAgent:       "Mozilla/5.0 (Windows NT 10.0; Win64; x64) hubproxy/1.0",
}

func Run(ctx context.Context, options Options) error {
	client := upstream.NewClient(options.UpstreamTimeout, options.UserAgent)

	// A non-positive TTL disables caching entirely
	var responseCache *cache.ResponseCache
	if options.CacheTTL > 0 {
		var err error
		responseCache, err = cache.New(options.CacheMaxEntries, options.CacheTTL)
		if err != nil {
			return err
		}
	}

	httpServer, err := httpserver.New(options.Port, client, responseCache)
	if err != nil {
		return err
	}

	group, ctx := errgroup.WithContext(ctx)

	// Start the http server
	group.Go(func() error {
		log.WithField("port", options.Port).Info("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("unexpected error while serving http routes: %v", err)
		}
		return nil
	})

	group.Go(func() error {
		<-ctx.Done()
		log.Info("Gracefully stopping")

		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(stopCtx); err != nil {
			log.WithField("error", err).Warning("Error while stopping")
		}
		return ctx.Err()
	})

	return group.Wait()
}
