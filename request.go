package webx

import "io"

// Request is a parsed HTTP/1.1 request line plus headers and body, as read
// off the wire by the server's per-connection goroutine. It carries no
// framework-level binding machinery: the runtime reads the method, the URL
// path, and the Accept header. The body is read off the wire but is not
// bound into the route pipeline, even for a route with a request-body shape.
type Request struct {
	Method        string
	URL           *URL
	Proto         string
	Headers       Headers
	Body          io.Reader
	ContentLength int64
	RemoteAddr    string
}
