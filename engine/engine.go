package engine

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
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"sync"

	goerrors "github.com/go-errors/errors"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/config"
	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/internal/response"
	"github.com/socube/WaarpGatewayKernel/internal/session"
	"github.com/socube/WaarpGatewayKernel/page"
	"github.com/socube/WaarpGatewayKernel/rest"
)

// Engine is one connection's ProtocolEngine (§4.1, §9's "one engine value
// per connection; no globals touched during request processing except
// immutable registries"). A connection is one logical actor (§5); every
// public method takes e.mu, so calls on one Engine run one at a time.
type Engine struct {
	mu sync.Mutex

	state State
	caps  Capabilities

	pages   *page.Registry
	methods *rest.Registry

	cfg     *config.Config
	builder *response.Builder

	sess       *session.Session
	remoteAddr string

	rc *RequestContext
}

// New builds an Engine. Either registry may be nil if this connection only
// serves one of the two engines.
func New(caps Capabilities, pages *page.Registry, methods *rest.Registry, cfg *config.Config) *Engine {
	return &Engine{
		caps:    caps,
		pages:   pages,
		methods: methods,
		cfg:     cfg,
		builder: response.New(cfg.SessionCookieName),
		state:   StateIdle,
	}
}

// Activate runs on connection activation (§4.1): mint a Session, set role
// HTML.
func (e *Engine) Activate(remoteAddr string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.remoteAddr = remoteAddr
	e.sess = session.New()
	e.state = StateIdle
}

// Inactivate runs clean() exactly once and tears down the Session (§5:
// "connection inactivation at any point triggers clean() exactly once").
func (e *Engine) Inactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rc.clean()
	e.rc = nil
	e.sess = nil
	e.state = StateClosed
}

// initialize implements §4.1's "On head received" step 1: clean, reset
// status, clear willClose, fresh argument bags.
func (e *Engine) initialize(head *httpmsg.RequestHead) {
	e.rc.clean()
	e.rc = &RequestContext{Head: head, Status: http.StatusOK}
}

// recoverPanic mirrors ginrecover.go's NiceRecovery: capture a stack trace
// for any panic escaping dispatch and fold it into a 500.
func (e *Engine) recoverPanic(outResp **httpmsg.FullResponse, outErr *error) {
	if r := recover(); r != nil {
		wrapped := goerrors.Wrap(r, 2)
		*outErr = nil
		*outResp = e.respondError(http.StatusInternalServerError, wrapped.Error())
		e.state = StateClosed
	}
}

// OnHead processes a freshly parsed request head (§4.1 "On head received").
func (e *Engine) OnHead(head *httpmsg.RequestHead) (resp *httpmsg.FullResponse, decision Decision, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.recoverPanic(&resp, &err)

	e.initialize(head)
	e.state = StateHeadReceived

	path, rawQuery := splitPath(head.Path, head.RawQuery)
	query, qerr := url.ParseQuery(rawQuery)
	if qerr != nil {
		return e.finishWithError(engineerr.New(engineerr.KindMalformed, "malformed query string")), DecisionRespond, nil
	}

	if dup := firstMultiValued(query); dup != "" {
		return e.finishWithError(engineerr.TooManyValues(dup)), DecisionRespond, nil
	}
	if dup := firstMultiValuedHeader(head.Header); dup != "" {
		return e.finishWithError(engineerr.TooManyValues(dup)), DecisionRespond, nil
	}

	e.rc.Cookies = cookiecodec.ParseLenient(head.Header.Get("Cookie"))
	if e.caps != nil {
		kept := e.rc.Cookies[:0]
		for _, c := range e.rc.Cookies {
			if c.Name == e.builder.SessionCookieName && !e.caps.IsCookieValid(c.Name, c.Value) {
				continue
			}
			kept = append(kept, c)
		}
		e.rc.Cookies = kept
	}

	if e.pages != nil {
		if p, factory, ok := e.pages.Lookup(path, head.Method); ok {
			return e.dispatchPage(p, factory, query, head)
		}
	}

	if e.methods != nil {
		if path == "/" && head.Method == http.MethodOptions {
			return e.respondRootOptions(), DecisionRespond, nil
		}
		if handler, uriArgs, ok := e.methods.Lookup(path); ok {
			return e.dispatchRest(handler, uriArgs, path, head)
		}
	}

	if head.Method == http.MethodGet {
		e.state = StateDispatched
		return nil, DecisionStaticFallback, nil
	}

	return e.finishWithError(engineerr.New(engineerr.KindMalformed, "no page or handler for "+path)), DecisionRespond, nil
}

func splitPath(path, rawQuery string) (string, string) {
	if rawQuery != "" {
		return path, rawQuery
	}
	if i := strings.IndexByte(path, '?'); i >= 0 {
		return path[:i], path[i+1:]
	}
	return path, ""
}

func firstMultiValued(values url.Values) string {
	for name, v := range values {
		if len(v) > 1 {
			return name
		}
	}
	return ""
}

func firstMultiValuedHeader(h http.Header) string {
	for name, v := range h {
		if len(v) > 1 {
			return name
		}
	}
	return ""
}

// finishWithError runs the OnError hook, renders the error-kind's response
// via respondError, and closes the connection, per §7's propagation rule.
func (e *Engine) finishWithError(ee *engineerr.Error) *httpmsg.FullResponse {
	if e.caps != nil {
		e.caps.OnError(e.rc, ee)
	}
	status := engineerr.Status(ee.Kind)
	resp := e.respondError(status, ee.Detail)
	e.rc.clean()
	e.state = StateClosed
	return resp
}

// respondError builds the response for a given status, preferring a
// registered canonical error page; when none is registered or rendering it
// fails, it emits a JSON error envelope (command/result/detail), and only
// if that cannot be marshalled does it fall back to the fixed force-close
// body -- "this path must never raise" (§9).
func (e *Engine) respondError(status int, detail string) *httpmsg.FullResponse {
	if e.pages != nil {
		if _, factory, ok := e.pages.ErrorPage(status); ok {
			br := factory(e.remoteAddr)
			_ = br.SetValue("detail", detail, 0)
			if body, err := br.Render(); err == nil {
				return e.builder.Build(status, body, e.rc.Head, true, e.sessionCookieValue(), e.rc.Cookies, nil, "")
			}
		}
	}

	body := map[string]interface{}{"command": "ERROR", "result": "ERROR", "detail": detail}
	if raw, jerr := json.Marshal(body); jerr == nil {
		return e.builder.Build(status, raw, e.rc.Head, true, e.sessionCookieValue(), e.rc.Cookies, nil, "")
	}
	return response.ForceClose(detail)
}

func (e *Engine) sessionCookieValue() string {
	if e.sess == nil {
		return ""
	}
	return e.sess.Cookie
}
