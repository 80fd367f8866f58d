package webx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"github.com/webx-run/webx/internal/werrors"
)

func newTestHost(t *testing.T) *ScriptHost {
	t.Helper()
	logger := NewLogger()
	assets := newAssetCache(t.TempDir(), logger)
	host, err := NewScriptHost(t.TempDir(), assets)
	require.NoError(t, err)
	return host
}

// A string-shaped value becomes an HTML response.
func TestFormResponseStringValueBecomesHTML(t *testing.T) {
	host := newTestHost(t)
	v, err := host.Evaluate("t", `"<p>hi</p>"`)
	require.NoError(t, err)

	req := &Request{Headers: Headers{}}
	resp := formResponse(host, v, req, RunMode{Dev: true})

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []string{"text/html; charset=utf-8"}, resp.Headers.Get("Content-Type"))
	assert.Equal(t, "<p>hi</p>", string(resp.Body))
}

// Any other value becomes a JSON response.
func TestFormResponseObjectValueBecomesJSON(t *testing.T) {
	host := newTestHost(t)
	v, err := host.Evaluate("t", `({a: 1, b: "x"})`)
	require.NoError(t, err)

	req := &Request{Headers: Headers{}}
	resp := formResponse(host, v, req, RunMode{Dev: true})

	assert.Equal(t, 200, resp.Status)
	assert.Equal(t, []string{"application/json"}, resp.Headers.Get("Content-Type"))
	assert.JSONEq(t, `{"a": 1, "b": "x"}`, string(resp.Body))
}

// Accept: application/msgpack routes a non-string value through msgpack
// instead of JSON.
func TestFormResponseMsgpackNegotiation(t *testing.T) {
	host := newTestHost(t)
	v, err := host.Evaluate("t", `({a: 1})`)
	require.NoError(t, err)

	req := &Request{Headers: Headers{}}
	req.Headers.Set("Accept", []string{"application/msgpack"})
	resp := formResponse(host, v, req, RunMode{Dev: true})

	assert.Equal(t, []string{"application/msgpack"}, resp.Headers.Get("Content-Type"))

	var decoded map[string]interface{}
	require.NoError(t, msgpack.Unmarshal(resp.Body, &decoded))
	assert.EqualValues(t, 1, decoded["a"])
}

// A string-shaped value is never msgpack-encoded: string-vs-other is
// decided before content negotiation.
func TestFormResponseStringValueIgnoresMsgpackAccept(t *testing.T) {
	host := newTestHost(t)
	v, err := host.Evaluate("t", `"plain"`)
	require.NoError(t, err)

	req := &Request{Headers: Headers{}}
	req.Headers.Set("Accept", []string{"application/msgpack"})
	resp := formResponse(host, v, req, RunMode{Dev: true})

	assert.Equal(t, []string{"text/html; charset=utf-8"}, resp.Headers.Get("Content-Type"))
}

// The fixed header set is present on every response.
func TestFixedHeadersPresentOnEveryResponse(t *testing.T) {
	h := fixedHeaders(RunMode{Dev: true})
	for _, name := range []string{"Access-Control-Allow-Origin", "Connection", "Date", "Cache-Control", "Pragma", "Expires", "Server"} {
		assert.NotEmpty(t, h.Get(name), "missing header %s", name)
	}
	assert.Equal(t, []string{"*"}, h.Get("Access-Control-Allow-Origin"))
	assert.Equal(t, []string{"close"}, h.Get("Connection"))
}

func TestFixedHeadersServerNameDiffersByMode(t *testing.T) {
	dev := fixedHeaders(RunMode{Dev: true})
	prod := fixedHeaders(RunMode{Dev: false})
	assert.Equal(t, []string{"webx"}, prod.Get("Server"))
	assert.NotEqual(t, prod.Get("Server"), dev.Get("Server"))
}

// The error message is included only in development mode.
func TestErrorResponseIncludesMessageOnlyInDevMode(t *testing.T) {
	err := werrors.New(werrors.HandlerCall, "boom: something specific")

	dev := errorResponse(err, RunMode{Dev: true})
	assert.Contains(t, string(dev.Body), "boom: something specific")

	prod := errorResponse(err, RunMode{Dev: false})
	assert.NotContains(t, string(prod.Body), "boom: something specific")
	assert.Equal(t, 500, prod.Status)
}

// The no-match body names the attempted method and URL.
func TestNoMatchResponseNamesMethodAndURL(t *testing.T) {
	resp := noMatchResponse("GET", "/missing", RunMode{Dev: true})
	assert.Equal(t, 404, resp.Status)
	assert.Contains(t, string(resp.Body), "GET /missing")
}
