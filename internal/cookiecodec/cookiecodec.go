// Package cookiecodec parses and encodes HTTP cookies leniently: a malformed
// attribute pair in one cookie never discards the whole header, unlike
// net/http's strict http.ParseCookie. See DESIGN.md for why this one
// function is stdlib + hand rolled rather than a pack dependency.
/*
 * Copyright 2020 Aldelo, LP
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cookiecodec

import (
	"net/http"
	"strings"
)

// Pair is a single decoded name=value cookie pair.
type Pair struct {
	Name  string
	Value string
}

// ParseLenient splits a raw "Cookie:" header value into name=value pairs,
// skipping any segment that doesn't parse instead of failing the whole
// header. Matches §3's "cookie parsing is lenient" requirement and §6's
// "lenient per-server parsing".
func ParseLenient(header string) []Pair {
	if header == "" {
		return nil
	}

	var out []Pair

	for _, part := range strings.Split(header, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		eq := strings.IndexByte(part, '=')
		if eq <= 0 {
			// no '=' or empty name: not a valid pair, skip it and keep going
			continue
		}

		name := strings.TrimSpace(part[:eq])
		value := strings.TrimSpace(part[eq+1:])
		value = strings.Trim(value, `"`)

		if name == "" {
			continue
		}

		out = append(out, Pair{Name: name, Value: value})
	}

	return out
}

// Find returns the value of the first pair named name, and whether it was present.
func Find(pairs []Pair, name string) (string, bool) {
	for _, p := range pairs {
		if p.Name == name {
			return p.Value, true
		}
	}
	return "", false
}

// Encode builds a Set-Cookie header value using the standard library's
// writer (http.Cookie.String already implements RFC 6265 attribute
// encoding correctly; only decoding needed the lenient hand-rolled pass).
func Encode(name, value string, maxAgeSeconds int, path string, httpOnly bool) string {
	if path == "" {
		path = "/"
	}

	c := &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     path,
		HttpOnly: httpOnly,
		MaxAge:   maxAgeSeconds,
	}

	return c.String()
}
