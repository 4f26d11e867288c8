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

package upstream

import (
	"context"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// Upstream response headers preserved on the relayed response, everything
// else is dropped.
var pickedResponseHeaders = []string{
	"Content-Type",
	"Content-Length",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
	"Cache-Control",
}

// Client fetches relayed targets over plain HTTP(S), following redirects.
type Client struct {
	resty     *resty.Client
	userAgent string
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	client := resty.New()
	client.SetTimeout(timeout)
	// Bodies are relayed verbatim, possibly streamed
	client.SetDoNotParseResponse(true)

	return &Client{
		resty:     client,
		userAgent: userAgent,
	}
}

// HTTPClient returns the underlying net/http client.
func (c *Client) HTTPClient() *http.Client {
	return c.resty.GetClient()
}

// Fetch issues a GET to the target, forwarding the caller's Range header when
// set. The response body is left unread, closing it is up to the caller.
func (c *Client) Fetch(ctx context.Context, target string, rangeHeader string) (*resty.Response, error) {
	request := c.resty.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.userAgent)
	if rangeHeader != "" {
		request.SetHeader("Range", rangeHeader)
	}
	return request.Get(target)
}

// PickResponseHeaders copies the allow-listed subset of upstream headers.
func PickResponseHeaders(header http.Header) http.Header {
	picked := http.Header{}
	for _, key := range pickedResponseHeaders {
		if value := header.Get(key); value != "" {
			picked.Set(key, value)
		}
	}
	return picked
}
