package webx

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequestReadsLineHeadersAndBody(t *testing.T) {
	raw := "POST /submit?debug=1 HTTP/1.1\r\n" +
		"Host: localhost\r\n" +
		"Content-Type: application/json\r\n" +
		"Content-Length: 9\r\n" +
		"\r\n" +
		`{"a": 1}` + "\n"

	req, err := parseRequest(strings.NewReader(raw))
	require.NoError(t, err)

	assert.Equal(t, "POST", req.Method)
	assert.Equal(t, "/submit", req.URL.Path)
	assert.Equal(t, "debug=1", req.URL.Query)
	assert.Equal(t, "HTTP/1.1", req.Proto)
	assert.Equal(t, "application/json", req.Headers.First("Content-Type"))
	assert.Equal(t, int64(9), req.ContentLength)

	body, err := io.ReadAll(req.Body)
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`+"\n", string(body))
}

func TestParseRequestRejectsMalformedRequestLine(t *testing.T) {
	_, err := parseRequest(strings.NewReader("NONSENSE\r\n\r\n"))
	assert.Error(t, err)
}

func TestWriteResponseSerializesStatusHeadersAndBody(t *testing.T) {
	resp := newResponse(200, "text/html; charset=utf-8", []byte("<p>ok</p>"), RunMode{Dev: true})

	var buf bytes.Buffer
	writeResponse(&buf, resp)
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "HTTP/1.1 200 OK\r\n"), out)
	assert.Contains(t, out, "Content-Type: text/html; charset=utf-8\r\n")
	assert.Contains(t, out, "Connection: close\r\n")
	assert.Contains(t, out, "Access-Control-Allow-Origin: *\r\n")
	assert.True(t, strings.HasSuffix(out, "\r\n\r\n<p>ok</p>"), out)
}

func TestIsModuleFileRecognizesBothExtensions(t *testing.T) {
	assert.True(t, isModuleFile("src/main.webx"))
	assert.True(t, isModuleFile("src/main.wx"))
	assert.False(t, isModuleFile("src/main.js"))
}
