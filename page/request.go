package page

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
	"bytes"
	"fmt"
	"sort"
	"sync"
	"text/template"
)

// SimpleRequest is a generic BusinessRequest backed by the owning Page's
// field declarations: it validates each incoming value against the
// matching Field.Validator, applies Field.Default for fields never set,
// and renders through the Page's template with its values as data.
//
// Most pages need nothing fancier than "stash named values, validate,
// render" -- this is the default factory product; a page with genuinely
// custom business logic supplies its own BusinessRequest implementation
// instead of using NewSimpleFactory.
type SimpleRequest struct {
	mu         sync.Mutex
	page       *Page
	remoteAddr string
	values     map[string]string
	filename   string
}

// NewSimpleFactory returns a RequestFactory producing SimpleRequest values
// bound to p, suitable for most HTML/MENU/simple-CRUD pages.
func NewSimpleFactory(p *Page) RequestFactory {
	return func(remoteAddr string) BusinessRequest {
		return &SimpleRequest{
			page:       p,
			remoteAddr: remoteAddr,
			values:     make(map[string]string),
		}
	}
}

func (r *SimpleRequest) fieldFor(name string) (*Field, bool) {
	for i := range r.page.Fields {
		if r.page.Fields[i].Name == name {
			return &r.page.Fields[i], true
		}
	}
	return nil, false
}

// SetValue implements BusinessRequest.
func (r *SimpleRequest) SetValue(name, value string, position int) error {
	f, ok := r.fieldFor(name)
	if !ok {
		return fmt.Errorf("page %s: unknown field %q", r.page.Name, name)
	}
	if f.Validator != nil {
		if err := f.Validator(value); err != nil {
			return fmt.Errorf("page %s: field %q: %w", r.page.Name, name, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if f.Role == FieldBusinessInputFile {
		r.filename = value
	}
	r.values[name] = value
	return nil
}

// IsValid implements BusinessRequest: every field without a supplied value
// either has a Default applied or must be optional (no validator requiring
// presence). Fields with a Validator are asked to validate "" when absent,
// so a required field's Validator is expected to reject the empty string.
func (r *SimpleRequest) IsValid() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, f := range r.page.Fields {
		if _, set := r.values[f.Name]; set {
			continue
		}
		if f.Default != "" {
			r.values[f.Name] = f.Default
			continue
		}
		if f.Validator != nil {
			if err := f.Validator(""); err != nil {
				return fmt.Errorf("page %s: missing required field %q", r.page.Name, f.Name)
			}
		}
	}
	return nil
}

// Render implements BusinessRequest, executing the page template with the
// accumulated values as a map[string]string.
func (r *SimpleRequest) Render() ([]byte, error) {
	r.mu.Lock()
	data := make(map[string]string, len(r.values))
	for k, v := range r.values {
		data[k] = v
	}
	r.mu.Unlock()

	if r.page.Template == nil {
		return nil, nil
	}
	var buf bytes.Buffer
	if err := r.page.Template.Execute(&buf, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Filename implements BusinessRequest.
func (r *SimpleRequest) Filename() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filename
}

// Values returns a copy of the current values (a map, so unordered), useful
// for tests and for handlers exporting COOKIE_SET fields back to the
// ResponseBuilder.
func (r *SimpleRequest) Values() map[string]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]string, len(r.values))
	for k, v := range r.values {
		out[k] = v
	}
	return out
}

// CookieSetFields returns the fields declared FieldCookieSet with
// ExportCookie set, ordered by Position (declaration order among equal
// positions). Their current values are read through Values.
func (r *SimpleRequest) CookieSetFields() []Field {
	var out []Field
	for _, f := range r.page.Fields {
		if f.Role == FieldCookieSet && f.ExportCookie {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// MustParse is a small helper mirroring the teacher's fixed, panic-on-bad-template
// construction style for page templates built from literal strings at startup.
func MustParse(name, body string) *template.Template {
	return template.Must(template.New(name).Parse(body))
}
