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

// Package engineerr centralizes the error-kind -> HTTP status mapping (§7)
// so every return path in the page and REST engines composes the same
// table instead of hand-rolling status codes.
package engineerr

import (
	"net/http"

	goerrors "github.com/go-errors/errors"
)

// Kind enumerates the error kinds named in §7.
type Kind int

const (
	KindMalformed Kind = iota
	KindForbidden
	KindUnauthenticated
	KindNotFound
	KindMethodNotAllowed
	KindNotAcceptable
	KindInternal
)

// Status returns the HTTP status code for kind, per §7's table.
func Status(kind Kind) int {
	switch kind {
	case KindMalformed:
		return http.StatusBadRequest
	case KindForbidden:
		return http.StatusForbidden
	case KindUnauthenticated:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindNotAcceptable:
		return http.StatusNotAcceptable
	default:
		return http.StatusInternalServerError
	}
}

// Error is the engine's error type: a Kind, a human-readable Detail, and an
// optional wrapped stack trace captured at the point of failure so it
// survives to the force-close log line (§9's error-in-error guard).
type Error struct {
	Kind    Kind
	Detail  string
	Stack   *goerrors.Error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Detail
}

// New builds an Error of kind with the given detail message.
func New(kind Kind, detail string) *Error {
	return &Error{Kind: kind, Detail: detail}
}

// Wrap captures a stack trace for an arbitrary panic/error value and
// classifies it as an internal error, mirroring the teacher's
// ginrecover.go use of go-errors/errors.Wrap inside a recover().
func Wrap(v interface{}, detail string) *Error {
	return &Error{
		Kind:   KindInternal,
		Detail: detail,
		Stack:  goerrors.Wrap(v, 2),
	}
}

// TooManyValues builds the malformed-request error for a multi-valued
// parameter, matching §4.1 item 7's literal message format and §8 item 4.
func TooManyValues(name string) *Error {
	return New(KindMalformed, "Too many values for "+name)
}
