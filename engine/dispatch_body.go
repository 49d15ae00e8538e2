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
	"encoding/json"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/internal/multipart"
)

// OnBodyFragment implements §4.1's "On body chunk": feed the multipart
// decoder or accumulate the JSON buffer; on the terminator fragment,
// finalize and produce the response.
func (e *Engine) OnBodyFragment(frag *httpmsg.BodyFragment) (resp *httpmsg.FullResponse, done bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	defer e.recoverPanic(&resp, &err)

	if !e.rc.active() {
		return nil, true, engineerr.New(engineerr.KindInternal, "no active request context")
	}

	if e.rc.Decoder != nil {
		return e.onMultipartFragment(frag)
	}
	return e.onJSONFragment(frag)
}

func (e *Engine) onMultipartFragment(frag *httpmsg.BodyFragment) (*httpmsg.FullResponse, bool, error) {
	if err := e.rc.Decoder.Offer(frag.Data, frag.Last); err != nil {
		resp := e.finishWithError(engineerr.New(engineerr.KindNotAcceptable, "multipart stream error: "+err.Error()))
		return resp, true, nil
	}
	e.drainDecoderItems()

	if !frag.Last {
		return nil, false, nil
	}

	for !e.rc.Decoder.Done() {
		e.drainDecoderItems()
	}
	e.drainDecoderItems()

	if derr := e.rc.Decoder.Err(); derr != nil {
		e.rc.Decoder.Cleanup()
		resp := e.finishWithError(engineerr.New(engineerr.KindNotAcceptable, derr.Error()))
		return resp, true, nil
	}

	return e.finalizeAfterBody()
}

func (e *Engine) drainDecoderItems() {
	for {
		item, ok := e.rc.Decoder.Next()
		if !ok {
			return
		}
		e.absorbItem(item)
	}
}

func (e *Engine) absorbItem(item multipart.Item) {
	switch {
	case e.rc.Page != nil:
		switch item.Kind {
		case multipart.KindAttribute:
			_ = e.rc.BusinessReq.SetValue(item.Name, item.Value, 0)
		case multipart.KindFile:
			value := item.TempPath
			if value == "" {
				value = item.FileName
			}
			_ = e.rc.BusinessReq.SetValue(item.Name, value, 0)
		}
	case e.rc.RestArg != nil:
		switch item.Kind {
		case multipart.KindAttribute:
			e.rc.RestArg.Body[item.Name] = item.Value
		case multipart.KindFile:
			e.rc.RestArg.Body[item.Name] = map[string]interface{}{
				"fileName": item.FileName,
				"tempPath": item.TempPath,
				"size":     len(item.InMemory),
			}
		}
	}
}

func (e *Engine) onJSONFragment(frag *httpmsg.BodyFragment) (*httpmsg.FullResponse, bool, error) {
	e.rc.jsonBuf.Write(frag.Data)
	if !frag.Last {
		return nil, false, nil
	}

	body := map[string]interface{}{}
	if raw := e.rc.jsonBuf.Bytes(); len(raw) > 0 {
		if err := json.Unmarshal(raw, &body); err != nil {
			resp := e.finishWithError(engineerr.New(engineerr.KindMalformed, "invalid JSON body: "+err.Error()))
			return resp, true, nil
		}
	}
	e.rc.RestArg.Body = body

	resp := e.finishRest(e.rc.Handler, e.rc.RestArg)
	return resp, true, nil
}

// finalizeAfterBody completes either a page or a REST request once its
// body (multipart) has been fully ingested.
func (e *Engine) finalizeAfterBody() (*httpmsg.FullResponse, bool, error) {
	if e.rc.Page != nil {
		if err := e.rc.BusinessReq.IsValid(); err != nil {
			return e.finishWithError(engineerr.New(engineerr.KindMalformed, err.Error())), true, nil
		}
		if e.caps != nil {
			if ee := e.caps.FinalData(e.rc, e.rc.Page.Role); ee != nil {
				return e.finishWithError(ee), true, nil
			}
			if ee := e.caps.BusinessValidRequestAfterAllDataReceived(e.rc); ee != nil {
				return e.finishWithError(ee), true, nil
			}
		}
		body, err := e.rc.BusinessReq.Render()
		if err != nil {
			return e.finishWithError(engineerr.Wrap(err, "render failed")), true, nil
		}
		resp := e.buildSuccess(e.rc.Page, body)
		e.state = StateResponded
		e.rc.clean()
		return resp, true, nil
	}

	resp := e.finishRest(e.rc.Handler, e.rc.RestArg)
	return resp, true, nil
}
