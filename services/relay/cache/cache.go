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

package cache

import (
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Entry is a fully buffered upstream response.
type Entry struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

type expiringEntry struct {
	entry     Entry
	expiresAt time.Time
}

// ResponseCache retains upstream responses for a fixed freshness duration.
// An LRU bounds the number of retained entries, stale entries are dropped on read.
type ResponseCache struct {
	entries *lru.Cache
	ttl     time.Duration
}

func New(maxEntries int, ttl time.Duration) (*ResponseCache, error) {
	entries, err := lru.New(maxEntries)
	if err != nil {
		return nil, err
	}
	return &ResponseCache{
		entries: entries,
		ttl:     ttl,
	}, nil
}

func (c *ResponseCache) Get(key string) (Entry, bool) {
	value, ok := c.entries.Get(key)
	if !ok {
		return Entry{}, false
	}
	cached := value.(expiringEntry)
	if time.Now().After(cached.expiresAt) {
		c.entries.Remove(key)
		return Entry{}, false
	}
	return cached.entry, true
}

func (c *ResponseCache) Set(key string, entry Entry) {
	c.entries.Add(key, expiringEntry{
		entry:     entry,
		expiresAt: time.Now().Add(c.ttl),
	})
}

func (c *ResponseCache) Len() int {
	return c.entries.Len()
}
