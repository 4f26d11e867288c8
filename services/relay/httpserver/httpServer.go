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

package httpserver

import (
	"fmt"
	"io"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/hubproxy/hubproxy/services/relay/cache"
	"github.com/hubproxy/hubproxy/services/relay/upstream"
)

var log = logrus.WithField("component", "httpserver")

// Responses that declare a body up to this size are buffered and cached,
// larger or unknown-length bodies are streamed.
const maxCacheableBodyBytes = 1 << 20

// Streamed bodies are copied in chunks of this size.
const streamChunkBytes = 64 * 1024

type Server struct {
	http.Server
	client        *upstream.Client
	responseCache *cache.ResponseCache

	gin *gin.Engine
}

func New(port uint, client *upstream.Client, responseCache *cache.ResponseCache) (*Server, error) {
	// Debug mode can be helpful during development
	gin.SetMode(gin.ReleaseMode)
	//gin.SetMode(gin.DebugMode)

	ginEngine := gin.New()

	server := &Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: ginEngine,
		},
		client:        client,
		responseCache: responseCache,
		gin:           ginEngine,
	}

	// Allows all origins
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true

	server.gin.Use(cors.New(corsConfig))

	// Use a custom error handler
	server.gin.Use(ginErrorHandlerMiddleware)

	// Use the custom logger middleware
	server.gin.Use(ginLoggerMiddleware)

	// Recovery middleware recovers from any panics and writes a 500 if there was one.
	server.gin.Use(gin.Recovery())

	server.gin.GET("/", server.getIndex)
	server.gin.GET("/raw/*target", server.relayRaw)

	// gin rejects a root level catch-all next to "/", every other path is a
	// relay target
	server.gin.NoRoute(server.relayDirect)

	return server, nil
}

func (server *Server) getIndex(c *gin.Context) {
	c.String(http.StatusOK, "a high performance web proxy for raw file links")
}

// relayDirect relays any http/https URL given as the request path.
func (server *Server) relayDirect(c *gin.Context) {
	if c.Request.Method != http.MethodGet {
		_ = c.AbortWithError(http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	server.relay(c, c.Request.URL.EscapedPath(), false)
}

// relayRaw relays GitHub blob and raw web URLs as raw content.
func (server *Server) relayRaw(c *gin.Context) {
	server.relay(c, c.Param("target"), true)
}

func (server *Server) relay(c *gin.Context, rawTarget string, convertGitHub bool) {
	target := upstream.NormalizeTarget(rawTarget)
	if !upstream.AllowedScheme(target) {
		_ = c.AbortWithError(http.StatusBadRequest, fmt.Errorf("only http and https targets are supported"))
		return
	}

	if convertGitHub {
		target = upstream.GitHubToRaw(target)
	}

	if server.responseCache != nil {
		if entry, ok := server.responseCache.Get(target); ok {
			log.WithField("target", target).Debug("serving from cache")
			writeEntry(c, entry)
			return
		}
	}

	resp, err := server.client.Fetch(c.Request.Context(), target, c.GetHeader("Range"))
	if err != nil {
		_ = c.AbortWithError(http.StatusBadGateway, fmt.Errorf("upstream request failed: %w", err))
		return
	}
	body := resp.RawBody()
	defer body.Close()

	picked := upstream.PickResponseHeaders(resp.Header())
	statusCode := resp.StatusCode()

	// Buffer and cache small bodies, the declared length keeps unbounded
	// reads out
	contentLength := resp.RawResponse.ContentLength
	if server.responseCache != nil && contentLength >= 0 && contentLength <= maxCacheableBodyBytes {
		content, err := io.ReadAll(body)
		if err != nil {
			_ = c.AbortWithError(http.StatusBadGateway, fmt.Errorf("upstream read failed: %w", err))
			return
		}
		entry := cache.Entry{
			StatusCode: statusCode,
			Header:     picked,
			Body:       content,
		}
		server.responseCache.Set(target, entry)
		writeEntry(c, entry)
		return
	}

	for key, values := range picked {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Status(statusCode)
	buf := make([]byte, streamChunkBytes)
	if _, err := io.CopyBuffer(c.Writer, body, buf); err != nil {
		log.WithFields(logrus.Fields{
			"target": target,
			"error":  err,
		}).Warning("relayed body interrupted")
	}
}

func writeEntry(c *gin.Context, entry cache.Entry) {
	for key, values := range entry.Header {
		for _, value := range values {
			c.Writer.Header().Add(key, value)
		}
	}
	c.Data(entry.StatusCode, entry.Header.Get("Content-Type"), entry.Body)
}
