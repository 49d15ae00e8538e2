package response

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


import (
	"net/http"
	"strings"
	"testing"

	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
)

func head(proto11 bool, connection string) *httpmsg.RequestHead {
	h := &httpmsg.RequestHead{
		Method:     "GET",
		Path:       "/",
		Header:     make(http.Header),
		ProtoMajor: 1,
		ProtoMinor: 1,
	}
	if !proto11 {
		h.ProtoMinor = 0
	}
	if connection != "" {
		h.Header.Set("Connection", connection)
	}
	return h
}

func TestWillCloseStickyOncePrior(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, []byte("ok"), head(true, ""), true, "abc", nil, nil, "")
	if !resp.WillClose {
		t.Fatalf("expected sticky willClose to stay true")
	}
}

func TestWillCloseOnNonOKStatus(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusNotFound, nil, head(true, ""), false, "abc", nil, nil, "")
	if !resp.WillClose {
		t.Fatalf("expected willClose on non-200 status")
	}
}

func TestWillCloseOnConnectionCloseHeader(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(true, "close"), false, "abc", nil, nil, "")
	if !resp.WillClose {
		t.Fatalf("expected willClose when request sends Connection: close")
	}
}

func TestWillCloseOnHTTP10WithoutKeepAlive(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(false, ""), false, "abc", nil, nil, "")
	if !resp.WillClose {
		t.Fatalf("expected willClose for HTTP/1.0 without explicit keep-alive")
	}
}

func TestNoCloseOnHTTP10WithKeepAlive(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(false, "keep-alive"), false, "abc", nil, nil, "")
	if resp.WillClose {
		t.Fatalf("expected no close for HTTP/1.0 with explicit keep-alive")
	}
}

func TestNoCloseOnOKHTTP11(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(true, ""), false, "abc", nil, nil, "")
	if resp.WillClose {
		t.Fatalf("expected keep-alive to persist for plain 200 over HTTP/1.1")
	}
}

func TestSessionCookieAlwaysSet(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(true, ""), false, "minted-value", nil, nil, "")

	set := resp.Header.Values("Set-Cookie")
	if len(set) != 1 || !strings.Contains(set[0], "minted-value") {
		t.Fatalf("expected minted session cookie to be set, got %v", set)
	}
}

func TestSessionCookieEchoedWhenIncomingValid(t *testing.T) {
	b := New("cookieSession")
	incoming := []cookiecodec.Pair{{Name: "cookieSession", Value: "already-here"}}
	resp := b.Build(http.StatusOK, nil, head(true, ""), false, "minted-value", incoming, nil, "")

	set := resp.Header.Values("Set-Cookie")
	if len(set) != 1 || !strings.Contains(set[0], "already-here") {
		t.Fatalf("expected echoed incoming session cookie, got %v", set)
	}
}

func TestPageDeclaredSetCookiesAppended(t *testing.T) {
	b := New("cookieSession")
	resp := b.Build(http.StatusOK, nil, head(true, ""), false, "minted-value", nil, []SetCookie{
		{Name: "pref", Value: "dark", Path: "/", HttpOnly: false},
	}, "")

	set := resp.Header.Values("Set-Cookie")
	if len(set) != 2 {
		t.Fatalf("expected session cookie + page cookie, got %v", set)
	}
}

func TestForceCloseNeverFails(t *testing.T) {
	resp := ForceClose("internal failure")
	if !resp.WillClose {
		t.Fatalf("expected ForceClose response to close the connection")
	}
	if !strings.Contains(string(resp.Body), "internal failure") {
		t.Fatalf("expected reason embedded in body, got %s", resp.Body)
	}
}
