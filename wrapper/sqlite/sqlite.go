// Package sqlite wraps jmoiron/sqlx + mattn/go-sqlite3 behind the small
// surface store.Table actually drives: Open/Close a single-writer
// connection, GetStruct/GetStructSlice for reads, ExecByNamedMapParam for
// writes. The teacher's wrapper also exposed raw-rows scanning, scalar
// queries, ordinal/struct-param variants, context-aware twins, and a
// named-transaction type; none of it has a caller in this tree, so it was
// trimmed rather than carried unreachable (see DESIGN.md).
package sqlite

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
	"database/sql"
	"errors"
	"reflect"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/socube/WaarpGatewayKernel/internal/strutil"

	// this package is used by database/sql as we are wrapping the sql access functionality in this utility package
	_ "github.com/mattn/go-sqlite3"
)

// ================================================================================================================
// STRUCTS
// ================================================================================================================

// SQLite struct encapsulates the SQLite database access functionality (using sqlx package)
//
//	DatabasePath = full path to the sqlite db file with file name and extension
//	Mode = ro (ReadOnly), rw (ReadWrite), rwc (ReadWriteCreate < Default), memory (In-Memory)
//	JournalMode = DELETE, MEMORY, WAL (< Default)
//	Synchronous = 0 (OFF), 1 (NORMAL < Default), 2 (FULL), 3 (EXTRA)
//	BusyTimeoutMS = 0 if not specified; > 0 if specified
type SQLite struct {
	// SQLite database connection properties
	DatabasePath string // including path, file name, and extension

	Mode          string // mode=ro: readOnly; rw: readwrite; rwc: readWriteCreate; memory: inMemoryOnly (set default to rwc)
	JournalMode   string // _journal_mode=DELETE, MEMORY, WAL (set default to WAL)
	Synchronous   string // _synchronous=0: OFF; 1: NORMAL; 2: FULL; 3: EXTRA (set default to NORMAL)
	BusyTimeoutMS int    // _busy_timeout=milliseconds
	LockingMode   string // _locking_mode=EXCLUSIVE (default), NORMAL

	// Connection pool configuration
	MaxOpenConns    int           // 0 = default (1 for SQLite single-writer)
	MaxIdleConns    int           // 0 = default
	MaxConnIdleTime time.Duration // 0 = no limit

	// Ping cache configuration
	PingFrequencySec int // 0 = default 30 seconds; <0 = ping every time (old behavior)

	// sqlite database state object
	db *sqlx.DB

	// ping cache state
	lastPing time.Time

	mu sync.RWMutex
}

// SQLiteResult defines sql action query result info
// [ Notes ]
//
//	NewlyInsertedID = ONLY FOR INSERT, ONLY IF AUTO_INCREMENT PRIMARY KEY (Custom PK ID Will Have This Field as 0 Always)
type SQLiteResult struct {
	RowsAffected    int64
	NewlyInsertedID int64 // ONLY FOR INSERT, ONLY IF AUTO_INCREMENT PRIMARY KEY (Custom PK ID Will Have This Field as 0 Always)
	Err             error
}

// resetDest clears caller-owned pointer destinations on not-found results.
func resetDest(dest interface{}) {
	rv := reflect.ValueOf(dest)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return
	}
	ev := rv.Elem()
	if ev.CanSet() {
		ev.Set(reflect.Zero(ev.Type()))
	}
}

// ================================================================================================================
// STRUCT FUNCTIONS
// ================================================================================================================

// GetDsn serializes SQLite database dsn to connection string, for use in database connectivity
func (svr *SQLite) GetDsn() (string, error) {
	if svr == nil {
		return "", errors.New("SQLite GetDsn Failed: SQLite receiver is nil")
	}

	if len(svr.DatabasePath) == 0 {
		return "", errors.New("SQLite Database Path is Required")
	}

	// format = test.db?cache=private&mode=rwc
	str := svr.DatabasePath + "?" + "cache=private"
	if strutil.LenTrim(svr.LockingMode) == 0 {
		str += "&_locking_mode=EXCLUSIVE"
	} else {
		str += "&_locking_mode=" + svr.LockingMode
	}
	str += "&_txlock=immediate"
	str += "&_foreign_keys=true"

	if strutil.LenTrim(svr.Mode) == 0 {
		str += "&mode=rwc"
	} else {
		str += "&mode=" + svr.Mode
	}

	if strutil.LenTrim(svr.JournalMode) == 0 {
		str += "&_journal_mode=WAL"
	} else {
		str += "&_journal_mode=" + svr.JournalMode
	}

	if strutil.LenTrim(svr.Synchronous) == 0 {
		str += "&_synchronous=1" // NORMAL
	} else {
		str += "&_synchronous=" + svr.Synchronous
	}

	if svr.BusyTimeoutMS > 0 {
		str += "&_busy_timeout=" + strutil.Itoa(svr.BusyTimeoutMS)
	}

	return str, nil
}

// Open a database by connecting to it, using the dsn properties defined in the struct fields
func (svr *SQLite) Open() error {
	if svr == nil {
		return errors.New("SQLite Open Failed: SQLite receiver is nil")
	}

	str, err := svr.GetDsn()
	if err != nil {
		return err
	}
	if strutil.LenTrim(str) == 0 {
		return errors.New("SQLite Database Connect String Generated Cannot Be Empty")
	}

	svr.mu.Lock() // protect existing db state during open
	if svr.db != nil {
		svr.mu.Unlock()
		return errors.New("SQLite Database is Already Connected")
	}
	svr.mu.Unlock()

	db, e1 := sqlx.Open("sqlite3", str)
	if e1 != nil {
		return e1
	}
	if e1 = db.Ping(); e1 != nil {
		_ = db.Close()
		return e1
	}

	svr.mu.Lock()
	defer svr.mu.Unlock()

	if svr.db != nil { // close the just-opened handle if someone else connected meanwhile
		_ = db.Close()
		return errors.New("SQLite Database is Already Connected")
	}

	svr.db = db

	// Connection pool defaults for SQLite (single-writer)
	if svr.MaxOpenConns > 0 {
		db.SetMaxOpenConns(svr.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(1) // SQLite single-writer default
	}
	if svr.MaxIdleConns > 0 {
		db.SetMaxIdleConns(svr.MaxIdleConns)
	}
	if svr.MaxConnIdleTime > 0 {
		db.SetConnMaxIdleTime(svr.MaxConnIdleTime)
	}
	svr.lastPing = time.Now()

	return nil
}

// Close will close the database connection and set db to nil
func (svr *SQLite) Close() error {
	if svr == nil {
		return nil
	}

	svr.mu.Lock()
	defer svr.mu.Unlock()

	if svr.db != nil {
		if err := svr.db.Close(); err != nil {
			return err
		}
		svr.db = nil
	}

	return nil
}

// Ping tests if current database connection is still active and ready.
// It supports cached pings to reduce overhead: by default pings are skipped
// if the last successful ping was within 30 seconds. Set PingFrequencySec
// to a positive value to change the interval, or to a negative value to
// always ping (backward-compatible behavior).
func (svr *SQLite) Ping() error {
	if svr == nil {
		return errors.New("SQLite Ping Failed: SQLite Receiver is Nil")
	}

	svr.mu.RLock()
	db := svr.db
	lastPing := svr.lastPing
	svr.mu.RUnlock()

	if db == nil {
		return errors.New("SQLite Database is Not Connected")
	}

	freq := 30 * time.Second // default
	if svr.PingFrequencySec > 0 {
		freq = time.Duration(svr.PingFrequencySec) * time.Second
	} else if svr.PingFrequencySec < 0 {
		freq = 0 // always ping (backward compat mode)
	}

	if freq > 0 && time.Since(lastPing) < freq {
		return nil // skip ping, within cache window
	}

	if err := db.Ping(); err != nil {
		return err
	}

	svr.mu.Lock()
	svr.lastPing = time.Now()
	svr.mu.Unlock()
	return nil
}

// ----------------------------------------------------------------------------------------------------------------
// query and marshal to 'struct slice' or 'struct' helpers
// ----------------------------------------------------------------------------------------------------------------

// GetStructSlice performs query with optional variadic parameters, and unmarshal result rows into target struct slice,
// in essence, each row of data is marshaled into the given struct, and multiple struct form the slice,
// such as: []Customer where each row represent a customer, and multiple customers being part of the slice
// [ Parameters ]
//
//	dest = pointer to the struct slice or address of struct slice, this is the result of rows to be marshaled into struct slice
//	query = sql query, optionally having parameters marked as ?, where each represents a parameter position
//	args = conditionally required if positioned parameters are specified, must appear in the same order as the positional parameters
//
// [ Return Values ]
//  1. notFound = indicates no rows found in query (aka sql.ErrNoRows), if error is detected, notFound is always false
//  2. if error != nil, then error is encountered (if error == sql.ErrNoRows, then error is treated as nil, and dest is nil)
func (svr *SQLite) GetStructSlice(dest interface{}, query string, args ...interface{}) (notFound bool, retErr error) {
	if svr == nil {
		return false, errors.New("SQLite GetStructSlice Failed: SQLite receiver is nil")
	}

	if err := svr.Ping(); err != nil {
		return false, err
	}

	svr.mu.RLock()
	defer svr.mu.RUnlock()

	if svr.db == nil {
		return false, errors.New("SQLite Database is Not Connected")
	}

	err := svr.db.Select(dest, query, args...)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		resetDest(dest)
		return true, nil
	}

	return false, err
}

// GetStruct performs query with optional variadic parameters, and unmarshal single result row into single target struct,
// such as: Customer struct where one row of data represent a customer
// [ Parameters ]
//
//	dest = pointer to struct or address of struct, this is the result of row to be marshaled into this struct
//	query = sql query, optionally having parameters marked as ?, where each represents a parameter position
//	args = conditionally required if positioned parameters are specified, must appear in the same order as the positional parameters
//
// [ Return Values ]
//  1. notFound = indicates no rows found in query (aka sql.ErrNoRows), if error is detected, notFound is always false
//  2. if error != nil, then error is encountered (if error == sql.ErrNoRows, then error is treated as nil, and dest is nil)
func (svr *SQLite) GetStruct(dest interface{}, query string, args ...interface{}) (notFound bool, retErr error) {
	if svr == nil {
		return false, errors.New("SQLite GetStruct Failed: SQLite receiver is nil")
	}

	if err := svr.Ping(); err != nil {
		return false, err
	}

	svr.mu.RLock()
	defer svr.mu.RUnlock()

	if svr.db == nil {
		return false, errors.New("SQLite Database is Not Connected")
	}

	err := svr.db.Get(dest, query, args...)
	if err != nil && errors.Is(err, sql.ErrNoRows) {
		resetDest(dest)
		return true, nil
	}

	return false, err
}

// ----------------------------------------------------------------------------------------------------------------
// execute helpers
// ----------------------------------------------------------------------------------------------------------------

// ExecByNamedMapParam executes action query string with named map containing parameters to return result, if error, returns error object within result
// [ Syntax ]
//  1. in sql = instead of defining ordinal parameters ?, each parameter in sql does not need to be ordinal, rather define with :xyz (must have : in front of param name), where xyz is name of parameter, such as :customerID
//  2. in go = setup a map variable: var p = make(map[string]interface{})
//  3. in go = to set values into map variable: p["xyz"] = abc
//     where xyz is the parameter name matching the sql :xyz (do not include : in go map "xyz")
//     note: in using map, just add additional map elements using the p["xyz"] = abc syntax
//  4. in go = when calling this function passing the map variable, simply pass the map variable p into the args parameter
//
// [ Parameters ]
//
//	actionQuery = sql action query, with named parameters using :xyz syntax
//	args = required, the map variable of the named parameters
//
// [ Return Values ]
//  1. SQLiteResult = represents the sql action result received (including error info if applicable)
func (svr *SQLite) ExecByNamedMapParam(actionQuery string, args map[string]interface{}) SQLiteResult {
	if svr == nil {
		return SQLiteResult{Err: errors.New("SQLite ExecByNamedMapParam Failed: SQLite receiver is nil")}
	}

	if err := svr.Ping(); err != nil {
		return SQLiteResult{Err: err}
	}
	if args == nil {
		return SQLiteResult{Err: errors.New("ExecByNamedMapParam() Error: args map cannot be nil")}
	}

	isInsert := strings.HasPrefix(strings.ToUpper(strings.TrimSpace(actionQuery)), "INSERT")

	svr.mu.Lock()
	defer svr.mu.Unlock()

	if svr.db == nil {
		return SQLiteResult{Err: errors.New("SQLite Database is Not Connected")}
	}

	result, err := svr.db.NamedExec(actionQuery, args)
	if err != nil {
		return SQLiteResult{Err: errors.New("ExecByNamedMapParam() Error: " + err.Error())}
	}

	var newID int64
	if isInsert {
		newID, err = result.LastInsertId()
		if err != nil {
			return SQLiteResult{Err: errors.New("ExecByNamedMapParam() Get LastInsertId() Error: " + err.Error())}
		}
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return SQLiteResult{Err: errors.New("ExecByNamedMapParam() Get RowsAffected() Error: " + err.Error())}
	}

	return SQLiteResult{RowsAffected: affected, NewlyInsertedID: newID}
}
