package engine

/*
 * Copyright 2020-2026 Aldelo, LP
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
	"context"
	"net/http"
	"testing"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/config"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/page"
	"github.com/socube/WaarpGatewayKernel/rest"
)

// noopCaps is a Capabilities implementation that never rejects a request;
// individual tests override the fields they care about.
type noopCaps struct {
	checkConnErr  *engineerr.Error
	onErrorCalled int
	cookieValid   bool
}

func (c *noopCaps) CheckConnection(remoteAddr, path string, headers map[string][]string) *engineerr.Error {
	return c.checkConnErr
}
func (c *noopCaps) OnError(rc *RequestContext, err *engineerr.Error) { c.onErrorCalled++ }
func (c *noopCaps) BeforeSimplePage(rc *RequestContext) *engineerr.Error { return nil }
func (c *noopCaps) FinalData(rc *RequestContext, role page.Role) *engineerr.Error { return nil }
func (c *noopCaps) BusinessValidRequestAfterAllDataReceived(rc *RequestContext) *engineerr.Error {
	return nil
}
func (c *noopCaps) IsCookieValid(name, value string) bool { return c.cookieValid }

var _ Capabilities = (*noopCaps)(nil)

func newTestConfig() *config.Config {
	cfg := config.Default()
	cfg.TempDir = ""
	return cfg
}

func htmlPageRegistry() *page.Registry {
	reg := page.NewRegistry()
	p := &page.Page{
		Name:   "home",
		URI:    "/home",
		Method: http.MethodGet,
		Role:   page.RoleHTML,
		Fields: []page.Field{
			{Name: "who", Role: page.FieldURL, Default: "world"},
		},
		Template: page.MustParse("home", "hello {{.who}}"),
	}
	reg.Register(p, page.NewSimpleFactory(p))
	return reg
}

// memStore is a minimal in-memory rest.Store for dispatch tests.
type memStore struct {
	items map[string]rest.Entity
	seq   int
}

func newMemStore() *memStore { return &memStore{items: make(map[string]rest.Entity)} }

func (m *memStore) GetAll(ctx context.Context, limit int) ([]rest.Entity, int, error) {
	var out []rest.Entity
	for _, v := range m.items {
		out = append(out, v)
	}
	return out, len(m.items), nil
}
func (m *memStore) GetOne(ctx context.Context, id string) (rest.Entity, error) {
	v, ok := m.items[id]
	if !ok {
		return nil, errNotFound
	}
	return v, nil
}
func (m *memStore) Insert(ctx context.Context, e rest.Entity) (rest.Entity, error) {
	m.seq++
	e["id"] = "1"
	m.items["1"] = e
	return e, nil
}
func (m *memStore) Update(ctx context.Context, id string, patch rest.Entity) (rest.Entity, error) {
	return patch, nil
}
func (m *memStore) Delete(ctx context.Context, id string) error { return nil }

type sentinelErr string

func (e sentinelErr) Error() string { return string(e) }

const errNotFound = sentinelErr("not found")

func restRegistry() *rest.Registry {
	reg := rest.NewRegistry()
	reg.Register(&rest.DataModelHandler{Base: "/items", PrimaryKey: "id", Backing: newMemStore()})
	return reg
}

func newTestEngine(caps Capabilities, pages *page.Registry, methods *rest.Registry) *Engine {
	e := New(caps, pages, methods, newTestConfig())
	e.Activate("127.0.0.1:1234")
	return e
}

// TestOnHeadCleanRunsExactlyOnce covers §8 item 1: a completed request
// leaves its RequestContext released (Decoder nil, jsonBuf empty), and a
// subsequent Inactivate (which itself calls clean()) must not panic or
// double-release anything.
func TestOnHeadCleanRunsExactlyOnce(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method: http.MethodGet,
		Path:   "/home",
		Header: http.Header{},
	}

	resp, decision, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if decision != DecisionRespond {
		t.Fatalf("decision = %v, want DecisionRespond", decision)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if e.rc.Decoder != nil {
		t.Fatal("expected Decoder to be released after a completed simple page")
	}
	if e.state != StateResponded {
		t.Fatalf("state = %v, want StateResponded", e.state)
	}

	// Inactivate must be safe to call even though clean() already ran once.
	e.Inactivate()
	if e.rc != nil {
		t.Fatal("expected rc to be nil after Inactivate")
	}
	if e.state != StateClosed {
		t.Fatalf("state = %v, want StateClosed", e.state)
	}
}

// TestOnHeadDefaultsMissingURLField covers §8 item 2: a field with a
// Default is filled in rather than rejected when the caller omits it.
func TestOnHeadDefaultsMissingURLField(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method: http.MethodGet,
		Path:   "/home",
		Header: http.Header{},
	}

	resp, _, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if string(resp.Body) != "hello world" {
		t.Fatalf("body = %q, want %q", resp.Body, "hello world")
	}
}

// TestOnHeadRejectsMultiValuedQuery covers §8 item 4: a repeated query
// parameter is rejected with the exact "Too many values for X" message
// before any page/handler lookup happens.
func TestOnHeadRejectsMultiValuedQuery(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method:   http.MethodGet,
		Path:     "/home",
		RawQuery: "who=a&who=b",
		Header:   http.Header{},
	}

	resp, decision, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if decision != DecisionRespond {
		t.Fatalf("decision = %v, want DecisionRespond", decision)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

// TestOnHeadRejectsMultiValuedHeader covers §8 item 4's header-side case.
func TestOnHeadRejectsMultiValuedHeader(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method: http.MethodGet,
		Path:   "/home",
		Header: http.Header{"X-Dup": {"a", "b"}},
	}

	resp, _, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

// TestOnHeadKeepAliveDefaultsToOpen covers §8 item 5: an HTTP/1.1 200
// response with no Connection: close request header stays open, and gets
// Connection: keep-alive plus a Content-Length matching the body.
func TestOnHeadKeepAliveDefaultsToOpen(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method:     http.MethodGet,
		Path:       "/home",
		Header:     http.Header{},
		ProtoMajor: 1,
		ProtoMinor: 1,
	}

	resp, _, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if resp.WillClose {
		t.Fatal("expected a successful HTTP/1.1 response to stay open")
	}
	if resp.Header.Get("Connection") != "keep-alive" {
		t.Fatalf("Connection = %q, want keep-alive", resp.Header.Get("Connection"))
	}
	if resp.Header.Get("Content-Length") != "11" { // len("hello world")
		t.Fatalf("Content-Length = %q, want 11", resp.Header.Get("Content-Length"))
	}
}

// TestOnHeadConnectionCloseRequestForcesClose covers §8 item 5's other
// direction: an explicit request "Connection: close" must force the
// response closed even on a successful 200.
func TestOnHeadConnectionCloseRequestForcesClose(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{
		Method:     http.MethodGet,
		Path:       "/home",
		Header:     http.Header{"Connection": {"close"}},
		ProtoMajor: 1,
		ProtoMinor: 1,
	}

	resp, _, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if !resp.WillClose {
		t.Fatal("expected Connection: close request to force the response closed")
	}
	if resp.Header.Get("Connection") != "close" {
		t.Fatalf("Connection = %q, want close", resp.Header.Get("Connection"))
	}
}

// TestOnHeadCheckConnectionRejectsPage covers the page-engine authorization
// gate (§4.1 step 6): a capability-set rejection short-circuits dispatch
// and still always emits the Set-Cookie header.
func TestOnHeadCheckConnectionRejectsPage(t *testing.T) {
	caps := &noopCaps{checkConnErr: engineerr.New(engineerr.KindForbidden, "nope")}
	e := newTestEngine(caps, htmlPageRegistry(), nil)

	head := &httpmsg.RequestHead{Method: http.MethodGet, Path: "/home", Header: http.Header{}}

	resp, _, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if resp.Status != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.Status)
	}
	if caps.onErrorCalled != 1 {
		t.Fatalf("OnError called %d times, want 1", caps.onErrorCalled)
	}
	if resp.Header.Get("Set-Cookie") == "" {
		t.Fatal("expected Set-Cookie even on a rejected request")
	}
}

// TestOnHeadStaticFallbackForUnmatchedGet covers §4.1 step 4: a GET that
// matches neither a page nor a REST handler falls back to static serving
// instead of erroring.
func TestOnHeadStaticFallbackForUnmatchedGet(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), restRegistry())

	head := &httpmsg.RequestHead{Method: http.MethodGet, Path: "/nothing-here", Header: http.Header{}}

	resp, decision, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if decision != DecisionStaticFallback {
		t.Fatalf("decision = %v, want DecisionStaticFallback", decision)
	}
	if resp != nil {
		t.Fatal("expected a nil response for a static fallback decision")
	}
}

// TestOnHeadRestGetRoundTrip exercises the REST dispatch path end to end:
// a GET by id flows through dispatchRest without a body phase and returns
// a JSON 200.
func TestOnHeadRestGetRoundTrip(t *testing.T) {
	store := newMemStore()
	methods := rest.NewRegistry()
	methods.Register(&rest.DataModelHandler{Base: "/items", PrimaryKey: "id", Backing: store})
	store.items["1"] = rest.Entity{"id": "1", "a": float64(1)}

	e := newTestEngine(&noopCaps{}, nil, methods)

	head := &httpmsg.RequestHead{Method: http.MethodGet, Path: "/items/1", Header: http.Header{}}
	resp, decision, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if decision != DecisionRespond {
		t.Fatalf("decision = %v, want DecisionRespond", decision)
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if resp.Header.Get("Content-Type") != "application/json" {
		t.Fatalf("Content-Type = %q, want application/json", resp.Header.Get("Content-Type"))
	}
}

// TestOnHeadThenOnBodyFragmentJSONPost drives a full POST through OnHead's
// DecisionAwaitBody path and OnBodyFragment's JSON-buffering path, covering
// the REST create dispatch once the terminal fragment arrives.
func TestOnHeadThenOnBodyFragmentJSONPost(t *testing.T) {
	store := newMemStore()
	methods := rest.NewRegistry()
	methods.Register(&rest.DataModelHandler{Base: "/items", PrimaryKey: "id", Backing: store})

	e := newTestEngine(&noopCaps{}, nil, methods)

	head := &httpmsg.RequestHead{
		Method:   http.MethodPost,
		Path:     "/items",
		Header:   http.Header{"Content-Type": {"application/json"}},
		FullBody: false,
	}

	resp, decision, err := e.OnHead(head)
	if err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}
	if decision != DecisionAwaitBody {
		t.Fatalf("decision = %v, want DecisionAwaitBody", decision)
	}
	if resp != nil {
		t.Fatal("expected no response before the body arrives")
	}

	resp, done, err := e.OnBodyFragment(&httpmsg.BodyFragment{Data: []byte(`{"a":1`), Last: false})
	if err != nil {
		t.Fatalf("OnBodyFragment (partial) returned error: %v", err)
	}
	if done || resp != nil {
		t.Fatal("expected a partial fragment to produce neither a response nor done=true")
	}

	resp, done, err = e.OnBodyFragment(&httpmsg.BodyFragment{Data: []byte(`}`), Last: true})
	if err != nil {
		t.Fatalf("OnBodyFragment (terminal) returned error: %v", err)
	}
	if !done {
		t.Fatal("expected the terminal fragment to complete the request")
	}
	if resp.Status != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.Status)
	}
	if len(store.items) != 1 {
		t.Fatalf("expected the create to have inserted one item, got %d", len(store.items))
	}
}

// TestOnBodyFragmentRejectsMalformedJSON covers the error path of
// onJSONFragment: an unparsable terminal body yields a 400 instead of a
// panic or an engine-level error return.
func TestOnBodyFragmentRejectsMalformedJSON(t *testing.T) {
	store := newMemStore()
	methods := rest.NewRegistry()
	methods.Register(&rest.DataModelHandler{Base: "/items", PrimaryKey: "id", Backing: store})

	e := newTestEngine(&noopCaps{}, nil, methods)

	head := &httpmsg.RequestHead{
		Method: http.MethodPost,
		Path:   "/items",
		Header: http.Header{"Content-Type": {"application/json"}},
	}
	if _, _, err := e.OnHead(head); err != nil {
		t.Fatalf("OnHead returned error: %v", err)
	}

	resp, done, err := e.OnBodyFragment(&httpmsg.BodyFragment{Data: []byte(`not json`), Last: true})
	if err != nil {
		t.Fatalf("OnBodyFragment returned error: %v", err)
	}
	if !done {
		t.Fatal("expected a malformed body to terminate the request")
	}
	if resp.Status != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.Status)
	}
}

// TestOnBodyFragmentRequiresActiveContext covers the guard at the top of
// OnBodyFragment: it must not be called without a prior OnHead.
func TestOnBodyFragmentRequiresActiveContext(t *testing.T) {
	e := newTestEngine(&noopCaps{}, htmlPageRegistry(), nil)
	e.rc = &RequestContext{}

	_, done, err := e.OnBodyFragment(&httpmsg.BodyFragment{Data: []byte("x"), Last: true})
	if err == nil {
		t.Fatal("expected an error when no request head is active")
	}
	if !done {
		t.Fatal("expected done=true on the guard failure")
	}
}
