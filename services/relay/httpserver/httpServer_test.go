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
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hubproxy/hubproxy/services/relay/cache"
	"github.com/hubproxy/hubproxy/services/relay/upstream"
)

func newTestServer(t *testing.T, responseCache *cache.ResponseCache) (*Server, *upstream.Client) {
	client := upstream.NewClient(2*time.Second, "hubproxy-test/1.0")
	server, err := New(0, client, responseCache)
	require.NoError(t, err)
	return server, client
}

func performRequest(server *Server, method string, target string) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(method, target, nil)
	server.gin.ServeHTTP(recorder, request)
	return recorder
}

func TestIndex(t *testing.T) {
	server, _ := newTestServer(t, nil)

	recorder := performRequest(server, http.MethodGet, "/")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "web proxy")
}

func TestRelayFromUpstream(t *testing.T) {
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.Header().Set("ETag", `"abc"`)
		w.Header().Set("X-Upstream-Internal", "yes")
		_, _ = w.Write([]byte("hello upstream"))
	}))
	defer remote.Close()

	server, _ := newTestServer(t, nil)

	recorder := performRequest(server, http.MethodGet, "/"+remote.URL+"/file")

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "hello upstream", recorder.Body.String())
	assert.Equal(t, "text/plain", recorder.Header().Get("Content-Type"))
	assert.Equal(t, `"abc"`, recorder.Header().Get("ETag"))
	assert.Empty(t, recorder.Header().Get("X-Upstream-Internal"))
}

func TestRelayCachesSmallResponses(t *testing.T) {
	upstreamHits := 0
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		upstreamHits++
		_, _ = w.Write([]byte("cacheable"))
	}))
	defer remote.Close()

	responseCache, err := cache.New(8, time.Minute)
	require.NoError(t, err)
	server, _ := newTestServer(t, responseCache)

	first := performRequest(server, http.MethodGet, "/"+remote.URL+"/file")
	second := performRequest(server, http.MethodGet, "/"+remote.URL+"/file")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "cacheable", first.Body.String())
	assert.Equal(t, "cacheable", second.Body.String())
	assert.Equal(t, 1, upstreamHits)
}

func TestRelayStreamsUnknownLength(t *testing.T) {
	upstreamHits := 0
	remote := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		upstreamHits++
		// Flushing forces a chunked response with no declared length
		_, _ = w.Write([]byte("streamed"))
		w.(http.Flusher).Flush()
	}))
	defer remote.Close()

	responseCache, err := cache.New(8, time.Minute)
	require.NoError(t, err)
	server, _ := newTestServer(t, responseCache)

	first := performRequest(server, http.MethodGet, "/"+remote.URL+"/file")
	second := performRequest(server, http.MethodGet, "/"+remote.URL+"/file")

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "streamed", first.Body.String())
	assert.Equal(t, "streamed", second.Body.String())
	assert.Equal(t, 2, upstreamHits)
	assert.Equal(t, 0, responseCache.Len())
}

func TestRelayRawRewritesGitHubLinks(t *testing.T) {
	server, client := newTestServer(t, nil)
	httpmock.ActivateNonDefault(client.HTTPClient())
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder(
		"GET",
		"https://raw.githubusercontent.com/owner/repo/main/README.md",
		httpmock.NewStringResponder(http.StatusOK, "raw content"),
	)

	recorder := performRequest(
		server,
		http.MethodGet,
		"/raw/https://github.com/owner/repo/blob/main/README.md",
	)

	assert.Equal(t, http.StatusOK, recorder.Code)
	assert.Equal(t, "raw content", recorder.Body.String())
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRelayRejectsBadScheme(t *testing.T) {
	server, _ := newTestServer(t, nil)

	recorder := performRequest(server, http.MethodGet, "/ftp://example.com/file")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "only http and https")
}

func TestRelayUpstreamUnreachable(t *testing.T) {
	server, _ := newTestServer(t, nil)

	// Nothing listens on this port
	recorder := performRequest(server, http.MethodGet, "/http://127.0.0.1:1/file")

	assert.Equal(t, http.StatusBadGateway, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "upstream request failed")
}

func TestRelayRejectsNonGetMethods(t *testing.T) {
	server, _ := newTestServer(t, nil)

	recorder := performRequest(server, http.MethodPost, "/https://example.com/file")

	assert.Equal(t, http.StatusMethodNotAllowed, recorder.Code)
}
