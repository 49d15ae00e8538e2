package store

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
	"context"
	"testing"

	"github.com/socube/WaarpGatewayKernel/rest"
)

func TestTableCreateGetUpdateDeleteRoundTrip(t *testing.T) {
	tbl, err := Open(":memory:", "items", "store_test_items", 1000, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tbl.Close()

	ctx := context.Background()

	created, err := tbl.Insert(ctx, rest.Entity{"a": float64(1)})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatalf("expected assigned id, got %+v", created)
	}

	got, err := tbl.GetOne(ctx, id)
	if err != nil {
		t.Fatalf("get one: %v", err)
	}
	if got["a"] != float64(1) {
		t.Fatalf("expected field a=1, got %+v", got)
	}

	updated, err := tbl.Update(ctx, id, rest.Entity{"b": "x"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated["a"] != float64(1) || updated["b"] != "x" {
		t.Fatalf("expected merged update, got %+v", updated)
	}

	items, count, err := tbl.GetAll(ctx, 0)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if count != 1 || len(items) != 1 {
		t.Fatalf("expected one item, got count=%d items=%v", count, items)
	}

	if err := tbl.Delete(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}

	if _, err := tbl.GetOne(ctx, id); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestTableGetAllRespectsLimit(t *testing.T) {
	tbl, err := Open(":memory:", "items", "store_test_limit", 1000, 10)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer tbl.Close()

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		if _, err := tbl.Insert(ctx, rest.Entity{"n": i}); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	items, _, err := tbl.GetAll(ctx, 2)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected limit=2 to cap results, got %d", len(items))
	}
}
