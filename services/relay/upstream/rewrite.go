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
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var githubBlobRegex = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/blob/(.+)$`)
var githubRawRegex = regexp.MustCompile(`(?i)^https?://(?:www\.)?github\.com/([^/]+)/([^/]+)/raw/(.+)$`)

// GitHubToRaw rewrites github.com blob and raw web URLs to their
// raw.githubusercontent.com equivalent. Anything else passes through unchanged.
func GitHubToRaw(target string) string {
	for _, re := range []*regexp.Regexp{githubBlobRegex, githubRawRegex} {
		if m := re.FindStringSubmatch(target); m != nil {
			return fmt.Sprintf("https://raw.githubusercontent.com/%s/%s/%s", m[1], m[2], m[3])
		}
	}
	return target
}

// NormalizeTarget cleans a relayed URL taken from a request path: surrounding
// whitespace is trimmed, percent escapes are decoded and the slash the router
// keeps in front of the scheme is stripped.
func NormalizeTarget(raw string) string {
	target := strings.TrimSpace(raw)
	if decoded, err := url.PathUnescape(target); err == nil {
		target = decoded
	}
	if strings.HasPrefix(target, "/http://") || strings.HasPrefix(target, "/https://") {
		target = target[1:]
	}
	return target
}

// AllowedScheme reports whether the target is an http or https URL.
func AllowedScheme(target string) bool {
	parsed, err := url.Parse(target)
	if err != nil {
		return false
	}
	return parsed.Scheme == "http" || parsed.Scheme == "https"
}
