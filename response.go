package webx

import (
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/dop251/goja"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/webx-run/webx/internal/werrors"
)

// HTTPResponse is the fully-formed response the runtime hands back to the
// server for one request.
type HTTPResponse struct {
	Status  int
	Headers Headers
	Body    []byte
}

const serverVersion = "0.1.0"

// fixedHeaders builds the header set every response carries regardless of
// outcome.
func fixedHeaders(mode RunMode) Headers {
	h := Headers{}
	h.Set("Access-Control-Allow-Origin", []string{"*"})
	h.Set("Connection", []string{"close"})
	h.Set("Date", []string{time.Now().Format(time.RFC1123Z)})
	h.Set("Cache-Control", []string{"no-cache"})
	h.Set("Pragma", []string{"no-cache"})
	h.Set("Expires", []string{"0"})
	server := "webx"
	if mode.Dev {
		server = "webx/" + serverVersion
	}
	h.Set("Server", []string{server})
	return h
}

func newResponse(status int, contentType string, body []byte, mode RunMode) *HTTPResponse {
	h := fixedHeaders(mode)
	h.Set("Content-Type", []string{contentType})
	h.Set("Content-Length", []string{strconv.Itoa(len(body))})
	return &HTTPResponse{Status: status, Headers: h, Body: body}
}

// wantsMsgpack reports whether the request's first Accept header value
// mentions application/msgpack. The order of the listed types and their
// q-values are not considered.
func wantsMsgpack(req *Request) bool {
	return strings.Contains(req.Headers.First("Accept"), "application/msgpack")
}

// formResponse turns a pipeline value into a response: a string-shaped
// value becomes HTML, anything else becomes JSON (or msgpack, when the
// client asked for it).
func formResponse(host *ScriptHost, value goja.Value, req *Request, mode RunMode) *HTTPResponse {
	if s, ok := host.ToString(value); ok {
		body := []byte(s)
		if !mode.Dev {
			if minified, err := minifierSingleton.minify("text/html", body); err == nil {
				body = minified
			}
		}
		return newResponse(200, "text/html; charset=utf-8", body, mode)
	}

	if wantsMsgpack(req) {
		data, err := msgpack.Marshal(value.Export())
		if err != nil {
			return errorResponse(werrors.New(werrors.ExecRoute, "msgpack encode: %v", err), mode)
		}
		return newResponse(200, "application/msgpack", data, mode)
	}

	jsonStr, err := host.ToJSON(value)
	if err != nil {
		return errorResponse(werrors.New(werrors.ExecRoute, "json encode: %v", err), mode)
	}
	return newResponse(200, "application/json", []byte(jsonStr), mode)
}

// errorResponse renders a 500 (or whatever err.HTTPStatus() says) with a
// server-rendered diagnostic body; the message is included only in
// development mode.
func errorResponse(err *werrors.Error, mode RunMode) *HTTPResponse {
	status := err.HTTPStatus()
	msg := "internal server error"
	if mode.Dev {
		msg = err.Error()
	}
	body := []byte(fmt.Sprintf(
		"<h1>%d %s</h1><p>%s</p>",
		status, strings.ToUpper(err.Kind.String()), html.EscapeString(msg),
	))
	return newResponse(status, "text/html; charset=utf-8", body, mode)
}

// errorResponseForMissingHost renders the exec-route 500 for a resolved
// route whose module has no live script host.
func errorResponseForMissingHost(mode RunMode) *HTTPResponse {
	return errorResponse(werrors.New(werrors.ExecRoute, "script host missing for resolved route's module"), mode)
}

// noMatchResponse renders the 404 naming the attempted method and URL.
func noMatchResponse(method, path string, mode RunMode) *HTTPResponse {
	body := fmt.Sprintf("<h1>404 Not Found</h1><p>%s %s</p>", method, html.EscapeString(path))
	return newResponse(404, "text/html; charset=utf-8", []byte(body), mode)
}
