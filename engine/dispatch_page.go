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
	"mime"
	"net/http"
	"net/url"

	"github.com/socube/WaarpGatewayKernel/engineerr"
	"github.com/socube/WaarpGatewayKernel/internal/cookiecodec"
	"github.com/socube/WaarpGatewayKernel/internal/httpmsg"
	"github.com/socube/WaarpGatewayKernel/internal/multipart"
	"github.com/socube/WaarpGatewayKernel/internal/response"
	"github.com/socube/WaarpGatewayKernel/page"
)

// dispatchPage implements §4.1 steps 5-8 for the page-oriented engine.
func (e *Engine) dispatchPage(p *page.Page, factory page.RequestFactory, query url.Values, head *httpmsg.RequestHead) (*httpmsg.FullResponse, Decision, error) {
	if p.Role == page.RoleError {
		ee := engineerr.New(engineerr.KindMalformed, "error page dispatched directly")
		if e.caps != nil {
			e.caps.OnError(e.rc, ee)
		}
		resp := e.respondError(http.StatusBadRequest, ee.Detail)
		e.rc.clean()
		e.state = StateClosed
		return resp, DecisionRespond, nil
	}

	if e.caps != nil {
		if ee := e.caps.CheckConnection(e.remoteAddr, head.Path, head.Header); ee != nil {
			return e.finishWithError(ee), DecisionRespond, nil
		}
	}

	br := factory(e.remoteAddr)
	e.rc.Page = p
	e.rc.BusinessReq = br

	if ee := e.extractPageFields(p, query, head); ee != nil {
		return e.finishWithError(ee), DecisionRespond, nil
	}

	switch p.Role {
	case page.RoleHTML, page.RoleMenu:
		return e.finishSimplePage(p)
	case page.RoleDelete, page.RoleGetDownload:
		return e.finishNoBodyAction(p)
	case page.RolePost, page.RolePostUpload, page.RolePut:
		return e.beginBodyIngestion(p, head), DecisionAwaitBody, nil
	default:
		return e.finishWithError(engineerr.New(engineerr.KindMethodNotAllowed, "unsupported page role")), DecisionRespond, nil
	}
}

// extractPageFields pulls URL/header/cookie values into the business
// request (§4.1 step 7); BODY and BUSINESS_INPUT_FILE fields are filled in
// later during body ingestion.
func (e *Engine) extractPageFields(p *page.Page, query url.Values, head *httpmsg.RequestHead) *engineerr.Error {
	for _, f := range p.Fields {
		var value string
		switch f.Role {
		case page.FieldURL:
			value = query.Get(f.Name)
		case page.FieldHeader:
			value = head.Header.Get(f.Name)
		case page.FieldCookie:
			v, ok := cookiecodec.Find(e.rc.Cookies, f.Name)
			if !ok {
				continue
			}
			value = v
		default:
			continue
		}
		if value == "" {
			continue
		}
		if err := e.rc.BusinessReq.SetValue(f.Name, value, f.Position); err != nil {
			return engineerr.New(engineerr.KindMalformed, err.Error())
		}
	}
	return nil
}

func (e *Engine) finishSimplePage(p *page.Page) (*httpmsg.FullResponse, Decision, error) {
	if e.caps != nil {
		if ee := e.caps.BeforeSimplePage(e.rc); ee != nil {
			return e.finishWithError(ee), DecisionRespond, nil
		}
	}
	if err := e.rc.BusinessReq.IsValid(); err != nil {
		return e.finishWithError(engineerr.New(engineerr.KindMalformed, err.Error())), DecisionRespond, nil
	}

	body, err := e.rc.BusinessReq.Render()
	if err != nil {
		return e.finishWithError(engineerr.Wrap(err, "render failed")), DecisionRespond, nil
	}

	resp := e.buildSuccess(p, body)
	e.state = StateResponded
	e.rc.clean()
	return resp, DecisionRespond, nil
}

func (e *Engine) finishNoBodyAction(p *page.Page) (*httpmsg.FullResponse, Decision, error) {
	if err := e.rc.BusinessReq.IsValid(); err != nil {
		return e.finishWithError(engineerr.New(engineerr.KindMalformed, err.Error())), DecisionRespond, nil
	}
	if e.caps != nil {
		if ee := e.caps.FinalData(e.rc, p.Role); ee != nil {
			return e.finishWithError(ee), DecisionRespond, nil
		}
		if ee := e.caps.BusinessValidRequestAfterAllDataReceived(e.rc); ee != nil {
			return e.finishWithError(ee), DecisionRespond, nil
		}
	}

	body, err := e.rc.BusinessReq.Render()
	if err != nil {
		return e.finishWithError(engineerr.Wrap(err, "render failed")), DecisionRespond, nil
	}

	resp := e.buildSuccess(p, body)
	e.state = StateResponded
	e.rc.clean()
	return resp, DecisionRespond, nil
}

// beginBodyIngestion creates the multipart decoder for POST/POSTUPLOAD/PUT
// pages (§4.1 step 8) and moves the state machine into the body-receiving
// states.
func (e *Engine) beginBodyIngestion(p *page.Page, head *httpmsg.RequestHead) *httpmsg.FullResponse {
	ct := head.Header.Get("Content-Type")
	opts := []multipart.Option{multipart.WithTempDir(e.cfg.TempDir), multipart.WithMinSize(e.cfg.MultipartMinSize)}

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

func (e *Engine) buildSuccess(p *page.Page, body []byte) *httpmsg.FullResponse {
	return e.builder.Build(e.rc.Status, body, e.rc.Head, e.rc.WillClose, e.sessionCookieValue(), e.rc.Cookies, e.pageSetCookies(), "")
}

// pageSetCookies collects the current business-request values for any
// FieldCookieSet/ExportCookie fields the page declares (§3, §4.5).
func (e *Engine) pageSetCookies() []response.SetCookie {
	sr, ok := e.rc.BusinessReq.(interface {
		CookieSetFields() []page.Field
		Values() map[string]string
	})
	if !ok {
		return nil
	}

	values := sr.Values()
	var out []response.SetCookie
	for _, f := range sr.CookieSetFields() {
		out = append(out, response.SetCookie{Name: f.Name, Value: values[f.Name], Path: "/", HttpOnly: false})
	}
	return out
}

func isMultipart(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "multipart/form-data"
}

func boundaryOf(contentType string) string {
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return params["boundary"]
}
