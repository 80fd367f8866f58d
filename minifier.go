package webx

import (
	"bytes"
	"strings"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/html"
)

// minifier minifies HTML response bodies in production mode. JSON bodies
// come from the script host's serializer and are already compact, so HTML
// is the only MIME type wired here.
type minifier struct {
	m *minify.M
}

var minifierSingleton = newMinifier()

func newMinifier() *minifier {
	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	return &minifier{m: m}
}

// minify minifies b according to mimeType, ignoring any parameters after
// a ';'. Unrecognized MIME types are returned unchanged.
func (mn *minifier) minify(mimeType string, b []byte) ([]byte, error) {
	if ss := strings.Split(mimeType, ";"); len(ss) > 1 {
		mimeType = ss[0]
	}
	if mimeType != "text/html" {
		return b, nil
	}
	buf := &bytes.Buffer{}
	if err := mn.m.Minify(mimeType, buf, bytes.NewReader(b)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
