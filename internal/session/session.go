// Package session models the per-connection Session object (§3): the
// authentication principal, session cookie, current command role, and the
// transient filename/log id a single connection carries across requests.
//
// Grounded on tcp/tcpserver.go's per-connection map-of-state pattern
// (_clients/_clientEnd keyed by remote address), generalized here from raw
// socket bookkeeping to a logical Session keyed by connection id.
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

package session

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/hex"
	"sync"

	"github.com/google/uuid"
)

// Role mirrors the page engine's "current command role" -- the role of the
// page or method handler last dispatched on this connection.
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
	RoleOptions
)

// Session is created on connection activation and destroyed on connection
// inactivation (§3). It is mutated only by the owning ProtocolEngine -- no
// other connection ever touches it.
type Session struct {
	mu sync.Mutex

	// Cookie is the opaque session token, default "Waarp"+hex(random int64).
	Cookie string

	// LogID correlates every log line this connection emits, stamped at activation.
	LogID string

	// Principal is the authenticated identity, empty until auth succeeds.
	Principal string

	// Role is the current command role driving control flow.
	Role Role

	// Filename is the transient filename set by the last upload/download request.
	Filename string
}

// New creates a Session with a freshly minted cookie and log id, matching
// connection-activation behavior in §4.1: "create a Session with a fresh
// session-cookie token; set role HTML."
func New() *Session {
	return &Session{
		Cookie: mintCookie(),
		LogID:  uuid.NewString(),
		Role:   RoleHTML,
	}
}

// mintCookie produces "Waarp" + hex(random int64), matching §3's literal format.
func mintCookie() string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand failing is effectively unrecoverable; fall back to
		// the hex of whatever buf holds (all zeros if nothing was read)
		// rather than panic. That token stays this Session's cookie.
		return "Waarp" + hex.EncodeToString(buf[:])
	}
	n := int64(binary.BigEndian.Uint64(buf[:]))
	if n < 0 {
		n = -n
	}
	return "Waarp" + hex.EncodeToString(encodeInt64(n))
}

func encodeInt64(n int64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(n))
	return b[:]
}

// Reset clears per-request transient fields without discarding the cookie,
// principal, or log id -- those persist for the life of the connection.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filename = ""
}

// SetFilename records the transient filename for the in-flight request.
func (s *Session) SetFilename(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Filename = name
}

// GetFilename returns the transient filename recorded for the in-flight request.
func (s *Session) GetFilename() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.Filename
}

// Store keeps one Session per connection id. The registries it sits beside
// are immutable after startup (§5); Store is the one piece of shared state
// that does mutate, so it is internally synchronized.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewStore returns an empty Store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Activate creates and registers a new Session for connID, per "on
// connection activation" in §4.1.
func (st *Store) Activate(connID string) *Session {
	s := New()

	st.mu.Lock()
	st.sessions[connID] = s
	st.mu.Unlock()

	return s
}

// Inactivate destroys the Session for connID, per "destroyed on connection
// inactivation" in §3.
func (st *Store) Inactivate(connID string) {
	st.mu.Lock()
	delete(st.sessions, connID)
	st.mu.Unlock()
}

// Get returns the Session for connID, or nil if the connection is not active.
func (st *Store) Get(connID string) *Session {
	st.mu.Lock()
	defer st.mu.Unlock()
	return st.sessions[connID]
}

// Len reports how many connections currently hold a Session (diagnostic use).
func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()
	return len(st.sessions)
}
