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

// Package page implements the page-oriented engine's declarative side
// (§4.3): Page/Field definitions, the PageRegistry immutable lookup, and
// the AbstractHttpBusinessRequest contract the ProtocolEngine drives
// through newRequest/setValue/isRequestValid/getHtmlPage.
//
// Grounded on wrapper/gin/gintemplate.go's template-keyed rendering idea,
// adapted away from gin-contrib/multitemplate (dropped, see DESIGN.md) onto
// plain text/template, and on helper-error.go's small validator-style
// helpers for Field.Validator.
package page

import (
	"bytes"
	"text/template"
)

// Role is a page's control-flow role (§3).
type Role int

const (
	RoleHTML Role = iota
	RoleMenu
	RoleGetDownload
	RolePost
	RolePostUpload
	RolePut
	RoleDelete
	RoleError
)

// FieldRole names where a Field's value is extracted from (§3).
type FieldRole int

const (
	FieldURL FieldRole = iota
	FieldHeader
	FieldCookie
	FieldBody
	FieldBusinessInputFile
	FieldCookieSet
)

// Field describes one value a Page's business request expects.
type Field struct {
	Name      string
	Role      FieldRole
	Position  int
	Validator func(value string) error
	Default   string

	// ExportCookie marks a FieldCookieSet field whose business-request
	// value becomes a Set-Cookie on the response (§3, §4.5).
	ExportCookie bool
}

// Page is the declarative binding of (uri, method) to a role, its fields,
// and a render template (§3, GLOSSARY "Page").
type Page struct {
	Name        string
	URI         string
	Method      string
	Role        Role
	Fields      []Field
	ContentType string
	Template    *template.Template
}

// Render executes the page's template against data, matching §6's "rendered
// HTML body" outgoing semantics for the page engine.
func (p *Page) Render(data interface{}) ([]byte, error) {
	if p.Template == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := p.Template.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// BusinessRequest is the per-request object a Page's factory builds: the
// "AbstractHttpBusinessRequest" of §4.3, holding field values and producing
// the rendered body.
type BusinessRequest interface {
	// SetValue validates and stores one field value. position is the
	// field's declared position; SimpleRequest keys values by name only and
	// ignores it.
	SetValue(name, value string, position int) error

	// IsValid runs after every field has been set (§4.3: "isRequestValid is
	// called after all data is in").
	IsValid() error

	// Render produces the response body for a page-role request.
	Render() ([]byte, error)

	// Filename returns the transient upload filename, if a
	// BUSINESS_INPUT_FILE field was set (mirrors Session.GetFilename).
	Filename() string
}

// RequestFactory builds a fresh BusinessRequest for one connection, given
// its remote address (§4.3: "newRequest(remoteAddress)").
type RequestFactory func(remoteAddr string) BusinessRequest

type entry struct {
	page    *Page
	factory RequestFactory
}

// Registry is the immutable (path, method) -> Page lookup plus the
// status-code -> error-page map (§2, §4.3). Built once at startup and never
// mutated afterward, matching §9's "Registries as immutable maps" note.
type Registry struct {
	byPathMethod map[string]entry
	errorPages   map[int]entry
}

// NewRegistry returns an empty, writable builder. Stop writing to it once
// startup registration is complete; the engine only ever reads from it,
// satisfying the "build once, never mutate"
// invariant by convention rather than by a frozen type, same as the
// teacher's route-table construction in wrapper/gin/gin.go.
func NewRegistry() *Registry {
	return &Registry{
		byPathMethod: make(map[string]entry),
		errorPages:   make(map[int]entry),
	}
}

func key(path, method string) string {
	return method + " " + path
}

// Register binds a Page and its request factory to (page.URI, page.Method).
func (r *Registry) Register(p *Page, factory RequestFactory) {
	r.byPathMethod[key(p.URI, p.Method)] = entry{page: p, factory: factory}
}

// RegisterError binds a canonical Page to an HTTP status code, used by the
// error-dispatch path of §4.1 step 5 and the error-in-error guard of §9.
func (r *Registry) RegisterError(status int, p *Page, factory RequestFactory) {
	r.errorPages[status] = entry{page: p, factory: factory}
}

// Lookup resolves (path, method) to a Page and its factory (§4.1 step 3).
func (r *Registry) Lookup(path, method string) (*Page, RequestFactory, bool) {
	e, ok := r.byPathMethod[key(path, method)]
	if !ok {
		return nil, nil, false
	}
	return e.page, e.factory, true
}

// ErrorPage resolves a status code to its canonical error Page, if one was
// registered. A miss here is the "setErrorPage can itself fail" case §9
// warns about; the engine then answers with a JSON error envelope, and
// uses response.ForceClose only if that envelope cannot be marshalled.
func (r *Registry) ErrorPage(status int) (*Page, RequestFactory, bool) {
	e, ok := r.errorPages[status]
	if !ok {
		return nil, nil, false
	}
	return e.page, e.factory, true
}
