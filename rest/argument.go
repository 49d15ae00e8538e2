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

// RestArgument, the MethodHandler contract, the MethodRegistry with its
// root OPTIONS aggregation (§4.4). The teacher's rest.go HTTP test-client
// helpers were not kept (see DESIGN.md).
package rest

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
)

// Command tags every REST response (§4.4).
type Command string

const (
	CommandMultiGet Command = "MULTIGET"
	CommandGet      Command = "GET"
	CommandCreate   Command = "CREATE"
	CommandUpdate   Command = "UPDATE"
	CommandDelete   Command = "DELETE"
	CommandOptions  Command = "OPTIONS"
)

// RestArgument is the structured bag described in §3: used both as the
// parsed request and as the response description, serialized to JSON for
// REST replies.
type RestArgument struct {
	URI     string
	URIArgs []string
	Method  string
	Headers http.Header
	Cookies []cookiecodec.Pair

	Body   map[string]interface{}
	Answer map[string]interface{}
	Filter map[string]interface{}

	Command Command
	Result  string
	Detail  string
}

// NewArgument returns a RestArgument with its map fields initialized.
func NewArgument(uri, method string) *RestArgument {
	return &RestArgument{
		URI:     uri,
		Method:  method,
		Headers: make(http.Header),
		Body:    make(map[string]interface{}),
		Answer:  make(map[string]interface{}),
		Filter:  make(map[string]interface{}),
	}
}

// JSON returns the answer/result/detail envelope serialized for the wire,
// matching §6's "Content-Type: application/json for data replies".
func (a *RestArgument) JSON() map[string]interface{} {
	return map[string]interface{}{
		"command": a.Command,
		"result":  a.Result,
		"detail":  a.Detail,
		"answer":  a.Answer,
	}
}

// OptionsDescriptor is one handler's contribution to the root OPTIONS
// response (§4.1's "OPTIONS surface", §8 item 7).
type OptionsDescriptor struct {
	BasePath string
	Methods  []string
	// Detail maps method -> command type, for X-Detailed-Allow (§4.1).
	Detail map[string]string
	// CircuitOpen reports the backing persistence's circuit-breaker state,
	// when the handler's Store implements CircuitAware.
	CircuitOpen bool
}

// CircuitAware is an optional Store capability: a backing store that wraps
// its calls in a circuit breaker can report whether it has tripped, so
// OPTIONS discovery can surface degraded state (SPEC_FULL's OPTIONS
// surface addition) instead of only showing it through failed requests.
type CircuitAware interface {
	CircuitOpen() bool
}

// MethodHandler is the REST counterpart of a Page (§3, GLOSSARY): bound to
// a base URI, it authorizes, dispatches by method, and answers OPTIONS.
type MethodHandler interface {
	BaseURI() string
	AllowedMethods() []string
	NeedAuth() bool
	BodyJSONDecoded() bool

	// CheckConnection authorizes the request; a non-nil error should be an
	// *engineerr.Error of kind KindForbidden or KindUnauthenticated, and any
	// other error is treated by the engine as KindUnauthenticated.
	CheckConnection(remoteAddr string, headers http.Header) error

	// Handle dispatches arg.Method against arg.URIArgs, filling in
	// arg.Answer/Command/Result or returning an *engineerr.Error.
	Handle(ctx context.Context, arg *RestArgument) error

	Options() OptionsDescriptor
}

// Registry is the immutable base-URI -> MethodHandler map (§2, §4.4),
// plus the synthesized root OPTIONS handler.
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]MethodHandler
}

// NewRegistry returns an empty, writable builder; like page.Registry, it is
// built once at startup and only read from thereafter (§9).
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]MethodHandler)}
}

// Register binds h under its own BaseURI.
func (r *Registry) Register(h MethodHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.BaseURI()] = h
}

// Lookup resolves a request path to the handler whose BaseURI is the
// longest matching prefix, with anything after the base URI treated as
// positional sub-path segments (§4.4: "sub-URI segments after the base are
// treated as positional IDs").
func (r *Registry) Lookup(path string) (MethodHandler, []string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var best MethodHandler
	var bestBase string

	for base, h := range r.handlers {
		if path == base || strings.HasPrefix(path, strings.TrimSuffix(base, "/")+"/") {
			if len(base) > len(bestBase) {
				best = h
				bestBase = base
			}
		}
	}
	if best == nil {
		return nil, nil, false
	}

	rest := strings.TrimPrefix(path, bestBase)
	rest = strings.Trim(rest, "/")
	var args []string
	if rest != "" {
		args = strings.Split(rest, "/")
	}
	return best, args, true
}

// RootOptions answers OPTIONS / by aggregating every registered handler's
// descriptor (§4.1's OPTIONS surface, §8 item 7).
func (r *Registry) RootOptions() (allow []string, allowURIs []string, detailed map[string]OptionsDescriptor) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	methodSet := map[string]struct{}{}
	uriSet := map[string]struct{}{}
	detailed = make(map[string]OptionsDescriptor)

	for base, h := range r.handlers {
		desc := h.Options()
		detailed[base] = desc
		uriSet[base] = struct{}{}
		for _, m := range desc.Methods {
			methodSet[m] = struct{}{}
		}
	}

	for m := range methodSet {
		allow = append(allow, m)
	}
	for u := range uriSet {
		allowURIs = append(allowURIs, u)
	}
	sort.Strings(allow)
	sort.Strings(allowURIs)
	return allow, allowURIs, detailed
}

// ParseLimit reads a "limit" filter value, defaulting to 0 (no limit),
// matching §4.4's "getAll (respect limit)".
func ParseLimit(arg *RestArgument) int {
	v, ok := arg.Filter["limit"]
	if !ok {
		return 0
	}
	s, ok := v.(string)
	if !ok {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ForbiddenCombination builds the standard error for a method/path-arity
// combination the data-model table doesn't recognize (§4.4: "Any other
// combination raises FORBIDDEN").
func ForbiddenCombination(method string) *engineerr.Error {
	return engineerr.New(engineerr.KindForbidden, "unsupported method/path combination: "+method)
}
