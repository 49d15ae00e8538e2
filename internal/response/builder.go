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

// Package response implements the ResponseBuilder (§4.5): assembling
// FullResponse objects from a status and body, computing the willClose
// decision, and always attaching the session cookie.
//
// Grounded on wrapper/gin/ginhelper.go's small fixed-shape status-coded
// body helpers (BindPostDataFailed, ActionServerFailed, ...) for the error
// body shapes, and wrapper/gin/ginrecover.go's "never itself fail"
// discipline for ForceClose.
package response

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
)

// SetCookie is a page-declared response cookie to append to every outgoing
// response for pages whose fields mark COOKIE_SET (§3's Page.Field.role).
type SetCookie struct {
	Name     string
	Value    string
	Path     string
	HttpOnly bool
	MaxAge   int
}

// Builder composes FullResponse objects for one request context.
type Builder struct {
	SessionCookieName string
}

// New returns a Builder keyed to the configured session cookie name.
func New(sessionCookieName string) *Builder {
	return &Builder{SessionCookieName: sessionCookieName}
}

// Build assembles the response per §4.5.
//
//   - head is nil for a very-early failure (no request head was ever
//     parsed): the response is forced to willClose and gets no Connection
//     header. FullResponse carries no protocol version; the codec writing
//     it chooses one.
//   - priorWillClose is the request context's sticky willClose flag (§3:
//     "monotonic ... once set to true it stays true").
//   - sessionCookieValue is the Session's minted cookie value, used only
//     when the incoming request didn't carry a valid one.
//   - incomingCookies is the lenient-parsed Cookie header from the request,
//     used to decide whether to echo the caller's session cookie.
func (b *Builder) Build(
	status int,
	body []byte,
	head *httpmsg.RequestHead,
	priorWillClose bool,
	sessionCookieValue string,
	incomingCookies []cookiecodec.Pair,
	setCookies []SetCookie,
	refererURI string,
) *httpmsg.FullResponse {
	resp := httpmsg.NewResponse(status)

	if head == nil {
		resp.WillClose = true
		b.applyCookies(resp, sessionCookieValue, incomingCookies, setCookies)
		b.applyBody(resp, body)
		return resp
	}

	resp.WillClose = willClose(priorWillClose, status, head)

	b.applyCookies(resp, sessionCookieValue, incomingCookies, setCookies)
	b.applyBody(resp, body)

	if refererURI != "" {
		resp.Header.Set("Referer", refererURI)
	}

	if resp.WillClose {
		resp.Header.Set("Connection", "close")
	} else {
		resp.Header.Set("Connection", "keep-alive")
	}

	return resp
}

// willClose implements §4.5's formula verbatim:
//
//	prior_willClose ∨ status ≠ 200 ∨ request says Connection: close
//	  ∨ (HTTP/1.0 ∧ ¬keep-alive)
func willClose(priorWillClose bool, status int, head *httpmsg.RequestHead) bool {
	if priorWillClose {
		return true
	}
	if status != http.StatusOK {
		return true
	}

	conn := strings.ToLower(head.Header.Get("Connection"))
	if strings.Contains(conn, "close") {
		return true
	}

	isHTTP10 := head.ProtoMajor == 1 && head.ProtoMinor == 0
	if isHTTP10 {
		return !strings.Contains(conn, "keep-alive")
	}

	return false
}

func (b *Builder) applyBody(resp *httpmsg.FullResponse, body []byte) {
	if body == nil {
		return
	}
	resp.Body = body
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
}

// applyCookies always emits the session cookie (§3's invariant): echoed if
// the incoming request already carried a valid one, minted from the
// Session otherwise. Page-declared COOKIE_SET fields are appended after.
func (b *Builder) applyCookies(resp *httpmsg.FullResponse, sessionCookieValue string, incoming []cookiecodec.Pair, setCookies []SetCookie) {
	value := sessionCookieValue
	if v, ok := cookiecodec.Find(incoming, b.SessionCookieName); ok && v != "" {
		value = v
	}

	resp.Header.Add("Set-Cookie", cookiecodec.Encode(b.SessionCookieName, value, 0, "/", true))

	for _, sc := range setCookies {
		resp.Header.Add("Set-Cookie", cookiecodec.Encode(sc.Name, sc.Value, sc.MaxAge, sc.Path, sc.HttpOnly))
	}
}

// ForceClose builds the catastrophic-failure minimal response described in
// §4.5: a fixed `<html><body>Error <reason></body></html>` body, status
// 500, willClose always true. This path must never itself fail (§9's
// error-in-error guard), so it does no lookups and allocates nothing that
// can error.
func ForceClose(reason string) *httpmsg.FullResponse {
	body := []byte(fmt.Sprintf("<html><body>Error %s</body></html>", reason))

	resp := httpmsg.NewResponse(http.StatusInternalServerError)
	resp.WillClose = true
	resp.Body = body
	resp.Header.Set("Content-Length", strconv.Itoa(len(body)))
	resp.Header.Set("Content-Type", "text/html")
	resp.Header.Set("Connection", "close")

	return resp
}
