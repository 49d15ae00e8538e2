package rest

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
	"net/http"

	"github.com/socube/WaarpGatewayKernel/engineerr"
)

// Entity is a persisted record as a plain JSON-ish map; DataModelHandler is
// deliberately generic over entity shape so one handler type serves any
// table the store package backs (§3: "DataModelHandler -- a MethodHandler
// specialization that maps to a persistence entity E").
type Entity = map[string]interface{}

// Store is the CRUD contract a DataModelHandler dispatches onto -- the
// "persistence layer" that §1 calls out as an external collaborator, only
// referenced here by its contract. The store package's sqlite-backed,
// hystrix-wrapped implementation satisfies this interface.
type Store interface {
	GetAll(ctx context.Context, limit int) (items []Entity, count int, err error)
	GetOne(ctx context.Context, id string) (Entity, error)
	Insert(ctx context.Context, entity Entity) (Entity, error)
	Update(ctx context.Context, id string, patch Entity) (Entity, error)
	Delete(ctx context.Context, id string) error
}

// DataModelHandler implements MethodHandler against a Store, following the
// GET/POST/PUT/DELETE/OPTIONS table of §4.4.
type DataModelHandler struct {
	Base          string
	PrimaryKey    string
	RequireAuth   bool
	Authenticator func(remoteAddr string, headers http.Header) error
	Backing       Store
}

var _ MethodHandler = (*DataModelHandler)(nil)

func (h *DataModelHandler) BaseURI() string { return h.Base }

func (h *DataModelHandler) AllowedMethods() []string {
	return []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}
}

func (h *DataModelHandler) NeedAuth() bool        { return h.RequireAuth }
func (h *DataModelHandler) BodyJSONDecoded() bool { return true }

func (h *DataModelHandler) CheckConnection(remoteAddr string, headers http.Header) error {
	if !h.RequireAuth || h.Authenticator == nil {
		return nil
	}
	return h.Authenticator(remoteAddr, headers)
}

func (h *DataModelHandler) Options() OptionsDescriptor {
	desc := OptionsDescriptor{
		BasePath: h.Base,
		Methods:  h.AllowedMethods(),
		Detail: map[string]string{
			http.MethodGet:     string(CommandGet) + "/" + string(CommandMultiGet),
			http.MethodPost:    string(CommandCreate),
			http.MethodPut:     string(CommandUpdate),
			http.MethodDelete:  string(CommandDelete),
			http.MethodOptions: string(CommandOptions),
		},
	}
	if ca, ok := h.Backing.(CircuitAware); ok {
		desc.CircuitOpen = ca.CircuitOpen()
	}
	return desc
}

// Handle dispatches per §4.4's table: method plus path-arity determines the
// action; anything else is FORBIDDEN.
func (h *DataModelHandler) Handle(ctx context.Context, arg *RestArgument) error {
	nArgs := len(arg.URIArgs)

	switch arg.Method {
	case http.MethodGet:
		if nArgs == 0 {
			return h.multiGet(ctx, arg)
		}
		if nArgs == 1 {
			return h.getOne(ctx, arg, arg.URIArgs[0])
		}
	case http.MethodPost:
		if nArgs == 0 {
			return h.create(ctx, arg)
		}
	case http.MethodPut:
		if nArgs == 1 {
			return h.update(ctx, arg, arg.URIArgs[0])
		}
	case http.MethodDelete:
		if nArgs == 1 {
			return h.deleteOne(ctx, arg, arg.URIArgs[0])
		}
	case http.MethodOptions:
		return h.describe(arg)
	}

	return ForbiddenCombination(arg.Method)
}

func (h *DataModelHandler) multiGet(ctx context.Context, arg *RestArgument) error {
	limit := ParseLimit(arg)
	items, count, err := h.Backing.GetAll(ctx, limit)
	if err != nil {
		return engineerr.New(engineerr.KindInternal, err.Error())
	}

	arg.Command = CommandMultiGet
	arg.Result = "OK"
	arg.Answer["items"] = items
	arg.Answer["count"] = count
	arg.Answer["limit"] = limit
	return nil
}

func (h *DataModelHandler) getOne(ctx context.Context, arg *RestArgument, id string) error {
	item, err := h.Backing.GetOne(ctx, id)
	if err != nil {
		return engineerr.New(engineerr.KindNotFound, "no such "+h.PrimaryKey+" "+id)
	}

	arg.Command = CommandGet
	arg.Result = "OK"
	arg.Answer = item
	return nil
}

// create sets the created entity's updatedInfo to TOSUBMIT per §4.4, then
// inserts it.
func (h *DataModelHandler) create(ctx context.Context, arg *RestArgument) error {
	entity := Entity{}
	for k, v := range arg.Body {
		entity[k] = v
	}
	entity["updatedInfo"] = "TOSUBMIT"

	created, err := h.Backing.Insert(ctx, entity)
	if err != nil {
		return engineerr.New(engineerr.KindInternal, err.Error())
	}

	arg.Command = CommandCreate
	arg.Result = "OK"
	arg.Answer = created
	return nil
}

// update merges the JSON body onto the existing entity (fetched first to
// guarantee it exists -- §4.4: "getItem + merge JSON + update") and sets
// updatedInfo to TOSUBMIT.
func (h *DataModelHandler) update(ctx context.Context, arg *RestArgument, id string) error {
	if _, err := h.Backing.GetOne(ctx, id); err != nil {
		return engineerr.New(engineerr.KindNotFound, "no such "+h.PrimaryKey+" "+id)
	}

	patch := Entity{}
	for k, v := range arg.Body {
		patch[k] = v
	}
	patch["updatedInfo"] = "TOSUBMIT"

	updated, err := h.Backing.Update(ctx, id, patch)
	if err != nil {
		return engineerr.New(engineerr.KindInternal, err.Error())
	}

	arg.Command = CommandUpdate
	arg.Result = "OK"
	arg.Answer = updated
	return nil
}

func (h *DataModelHandler) deleteOne(ctx context.Context, arg *RestArgument, id string) error {
	if _, err := h.Backing.GetOne(ctx, id); err != nil {
		return engineerr.New(engineerr.KindNotFound, "no such "+h.PrimaryKey+" "+id)
	}
	if err := h.Backing.Delete(ctx, id); err != nil {
		return engineerr.New(engineerr.KindInternal, err.Error())
	}

	arg.Command = CommandDelete
	arg.Result = "OK"
	arg.Answer["deleted"] = id
	return nil
}

func (h *DataModelHandler) describe(arg *RestArgument) error {
	desc := h.Options()
	arg.Command = CommandOptions
	arg.Result = "OK"
	arg.Answer["basePath"] = desc.BasePath
	arg.Answer["methods"] = desc.Methods
	arg.Answer["detail"] = desc.Detail
	return nil
}
