package engine

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
	"encoding/json"
	"net/http"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/internal/multipart"
	"github.com/socube/WaarpGatewayKernel/internal/response"
	"github.com/socube/WaarpGatewayKernel/rest"
)

// dispatchRest implements §4.1 steps 6-8 and §4.4's table for the REST
// engine.
func (e *Engine) dispatchRest(handler rest.MethodHandler, uriArgs []string, path string, head *httpmsg.RequestHead) (*httpmsg.FullResponse, Decision, error) {
	if handler.NeedAuth() {
		if authErr := handler.CheckConnection(e.remoteAddr, head.Header); authErr != nil {
			return e.finishWithError(asEngineErr(authErr)), DecisionRespond, nil
		}
	}

	arg := rest.NewArgument(path, head.Method)
	arg.URIArgs = uriArgs
	arg.Headers = head.Header
	arg.Cookies = e.rc.Cookies

	e.rc.Handler = handler
	e.rc.RestArg = arg
	e.rc.URIArgs = uriArgs

	switch head.Method {
	case http.MethodOptions:
		return e.finishRest(handler, arg), DecisionRespond, nil
	case http.MethodGet, http.MethodDelete:
		return e.finishRest(handler, arg), DecisionRespond, nil
	case http.MethodPost, http.MethodPut:
		return e.beginRestBodyIngestion(handler, head), DecisionAwaitBody, nil
	default:
		return e.finishWithError(engineerr.New(engineerr.KindMethodNotAllowed, "method not allowed: "+head.Method)), DecisionRespond, nil
	}
}

func asEngineErr(err error) *engineerr.Error {
	if ee, ok := err.(*engineerr.Error); ok {
		return ee
	}
	return engineerr.New(engineerr.KindUnauthenticated, err.Error())
}

func (e *Engine) beginRestBodyIngestion(handler rest.MethodHandler, head *httpmsg.RequestHead) *httpmsg.FullResponse {
	if handler.BodyJSONDecoded() && !isMultipart(head.Header.Get("Content-Type")) {
		if head.FullBody {
			e.state = StateFullBody
		} else {
			e.state = StateStreamingBody
		}
		return nil
	}

	opts := []multipart.Option{multipart.WithTempDir(e.cfg.TempDir), multipart.WithMinSize(e.cfg.MultipartMinSize)}
	ct := head.Header.Get("Content-Type")
	if isMultipart(ct) {
		e.rc.Decoder = multipart.NewMultipart(boundaryOf(ct), opts...)
	} else {
		e.rc.Decoder = multipart.NewURLEncoded(opts...)
	}
	if head.FullBody {
		e.state = StateFullBody
	} else {
		e.state = StateStreamingBody
	}
	return nil
}

// finishRest invokes handler.Handle -- directly from dispatchRest for
// GET/DELETE/OPTIONS, and after body ingestion for POST/PUT -- and builds
// the JSON envelope response.
func (e *Engine) finishRest(handler rest.MethodHandler, arg *rest.RestArgument) *httpmsg.FullResponse {
	if err := handler.Handle(context.Background(), arg); err != nil {
		ee := asEngineErr(err)
		return e.finishWithError(ee)
	}
	return e.buildRestSuccess(arg)
}

func (e *Engine) buildRestSuccess(arg *rest.RestArgument) *httpmsg.FullResponse {
	raw, err := json.Marshal(arg.JSON())
	if err != nil {
		return e.finishWithError(engineerr.Wrap(err, "marshal REST answer failed"))
	}
	resp := e.builder.Build(e.rc.Status, raw, e.rc.Head, e.rc.WillClose, e.sessionCookieValue(), e.rc.Cookies, nil, "")
	resp.Header.Set("Content-Type", "application/json")
	e.state = StateResponded
	e.rc.clean()
	return resp
}

// respondRootOptions answers OPTIONS / by aggregating every registered
// handler (§4.1's OPTIONS surface, §8 item 7).
func (e *Engine) respondRootOptions() *httpmsg.FullResponse {
	allow, allowURIs, detailed := e.methods.RootOptions()

	detail, err := json.Marshal(detailed)
	if err != nil {
		return response.ForceClose("options discovery failed")
	}

	resp := e.builder.Build(http.StatusOK, nil, e.rc.Head, e.rc.WillClose, e.sessionCookieValue(), e.rc.Cookies, nil, "")
	resp.Header.Set("Allow", joinComma(allow))
	resp.Header.Set("X-Allow-URIs", joinComma(allowURIs))
	resp.Header.Set("X-Detailed-Allow", string(detail))
	e.state = StateResponded
	e.rc.clean()
	return resp
}

func joinComma(items []string) string {
	out := ""
	for i, s := range items {
		if i > 0 {
			out += ","
		}
		out += s
	}
	return out
}
