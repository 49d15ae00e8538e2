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

// Package store is the reference persistence layer for DataModelHandler
// (§4.4): a single sqlite-backed table, wrapped in a circuit breaker so a
// stuck or slow database cannot pin down the ProtocolEngine's connection
// actor indefinitely.
//
// Grounded on wrapper/sqlite/sqlite.go for the database access shape
// (Open/ExecByNamedMapParam/GetStructSlice) and wrapper/hystrixgo/hystrixgo.go
// for the circuit-breaker wrapper around each blocking call, matching §5's
// "any blocking persistence call inside a handler" suspension point.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/socube/WaarpGatewayKernel/rest"
	"github.com/socube/WaarpGatewayKernel/wrapper/hystrixgo"
	"github.com/socube/WaarpGatewayKernel/wrapper/sqlite"
)

// ErrNotFound is returned by GetOne/Update/Delete when the primary key
// doesn't exist, mapped by the rest package to engineerr.KindNotFound.
var ErrNotFound = errors.New("store: entity not found")

// Row is the on-disk shape of one entity: a primary key plus its payload
// serialized as a JSON blob, deliberately schemaless so one table backs any
// DataModelHandler without per-resource migrations.
type row struct {
	ID      string `db:"id"`
	Payload string `db:"payload"`
}

// Table is a single sqlite-backed, circuit-breaker-wrapped table
// implementing rest.Store.
type Table struct {
	db      *sqlite.SQLite
	cb      *hystrixgo.CircuitBreaker
	name    string
	nextSeq int
}

var _ rest.Store = (*Table)(nil)

// Open creates (if needed) and opens the backing sqlite database at path,
// ensuring the named table exists, and configures a circuit breaker around
// every call using commandName as its hystrix command.
func Open(path, tableName, commandName string, timeoutMS, maxConcurrent int) (*Table, error) {
	db := &sqlite.SQLite{DatabasePath: path, Mode: "rwc"}
	if err := db.Open(); err != nil {
		return nil, fmt.Errorf("store: open %s: %w", path, err)
	}

	createSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (id TEXT PRIMARY KEY, payload TEXT NOT NULL)`, tableName)
	if res := db.ExecByNamedMapParam(createSQL, map[string]interface{}{}); res.Err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create table %s: %w", tableName, res.Err)
	}

	cb := &hystrixgo.CircuitBreaker{
		CommandName:           commandName,
		TimeOut:                timeoutMS,
		MaxConcurrentRequests:  maxConcurrent,
	}
	if err := cb.Init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: circuit breaker init: %w", err)
	}

	return &Table{db: db, cb: cb, name: tableName}, nil
}

// Close releases the underlying sqlite connection.
func (t *Table) Close() error {
	return t.db.Close()
}

// CircuitOpen reports whether this table's circuit breaker has tripped,
// surfaced by the REST engine's OPTIONS discovery (§4.1's OPTIONS surface
// addition: circuit-breaker state alongside Allow/X-Allow-URIs).
func (t *Table) CircuitOpen() bool {
	return t.cb.IsOpen()
}

func (t *Table) run(ctx context.Context, fn func() (interface{}, error)) (interface{}, error) {
	runErr := make(chan error, 1)
	out, err := t.cb.GoC(ctx, func(_ interface{}, _ ...context.Context) (interface{}, error) {
		v, e := fn()
		if e != nil {
			runErr <- e
		}
		return v, e
	}, nil, nil)
	if err != nil {
		select {
		case e := <-runErr:
			return nil, e
		default:
		}
	}
	return out, err
}

// GetAll implements rest.Store.
func (t *Table) GetAll(ctx context.Context, limit int) ([]rest.Entity, int, error) {
	out, err := t.run(ctx, func() (interface{}, error) {
		var rows []row
		query := fmt.Sprintf("SELECT id, payload FROM %s ORDER BY id", t.name)
		if _, err := t.db.GetStructSlice(&rows, query); err != nil {
			return nil, err
		}

		items := make([]rest.Entity, 0, len(rows))
		for _, r := range rows {
			if limit > 0 && len(items) >= limit {
				break
			}
			e, err := decode(r)
			if err != nil {
				return nil, err
			}
			items = append(items, e)
		}
		return items, nil
	})
	if err != nil {
		return nil, 0, err
	}
	items := out.([]rest.Entity)
	return items, len(items), nil
}

// GetOne implements rest.Store.
func (t *Table) GetOne(ctx context.Context, id string) (rest.Entity, error) {
	out, err := t.run(ctx, func() (interface{}, error) {
		var r row
		query := fmt.Sprintf("SELECT id, payload FROM %s WHERE id = ?", t.name)
		notFound, err := t.db.GetStruct(&r, query, id)
		if err != nil {
			return nil, err
		}
		if notFound {
			return nil, ErrNotFound
		}
		return decode(r)
	})
	if err != nil {
		return nil, err
	}
	return out.(rest.Entity), nil
}

// Insert implements rest.Store, assigning a fresh id when the entity didn't
// already carry one.
func (t *Table) Insert(ctx context.Context, entity rest.Entity) (rest.Entity, error) {
	out, err := t.run(ctx, func() (interface{}, error) {
		id, _ := entity["id"].(string)
		if id == "" {
			t.nextSeq++
			id = fmt.Sprintf("%d", t.nextSeq)
			entity["id"] = id
		}

		payload, err := json.Marshal(entity)
		if err != nil {
			return nil, err
		}

		insertSQL := fmt.Sprintf("INSERT INTO %s (id, payload) VALUES (:id, :payload)", t.name)
		res := t.db.ExecByNamedMapParam(insertSQL, map[string]interface{}{"id": id, "payload": string(payload)})
		if res.Err != nil {
			return nil, res.Err
		}
		return entity, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(rest.Entity), nil
}

// Update implements rest.Store: merges patch onto the existing row.
func (t *Table) Update(ctx context.Context, id string, patch rest.Entity) (rest.Entity, error) {
	existing, err := t.GetOne(ctx, id)
	if err != nil {
		return nil, err
	}

	out, err := t.run(ctx, func() (interface{}, error) {
		for k, v := range patch {
			existing[k] = v
		}
		payload, err := json.Marshal(existing)
		if err != nil {
			return nil, err
		}

		updateSQL := fmt.Sprintf("UPDATE %s SET payload = :payload WHERE id = :id", t.name)
		res := t.db.ExecByNamedMapParam(updateSQL, map[string]interface{}{"id": id, "payload": string(payload)})
		if res.Err != nil {
			return nil, res.Err
		}
		return existing, nil
	})
	if err != nil {
		return nil, err
	}
	return out.(rest.Entity), nil
}

// Delete implements rest.Store.
func (t *Table) Delete(ctx context.Context, id string) error {
	_, err := t.run(ctx, func() (interface{}, error) {
		deleteSQL := fmt.Sprintf("DELETE FROM %s WHERE id = :id", t.name)
		res := t.db.ExecByNamedMapParam(deleteSQL, map[string]interface{}{"id": id})
		if res.Err != nil {
			return nil, res.Err
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
		return nil, nil
	})
	return err
}

func decode(r row) (rest.Entity, error) {
	var e rest.Entity
	if err := json.Unmarshal([]byte(r.Payload), &e); err != nil {
		return nil, err
	}
	e["id"] = r.ID
	return e, nil
}
