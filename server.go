package webx

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"sync/atomic"
	"time"
)

// Server is the front-end HTTP/1.1 listener. It runs its own
// bounded-timeout Accept loop instead of net/http.Server because the loop
// must observe the shutdown flag on idle ticks, which net/http.Server does
// not expose.
type Server struct {
	addr   string
	rt     *Runtime
	logger *Logger
	mode   RunMode
}

// NewServer binds to 127.0.0.1:8080 in development, 127.0.0.1:80 in
// production. There is no :443 listener; TLS termination belongs in front
// of this process.
func NewServer(mode RunMode, rt *Runtime, logger *Logger) *Server {
	addr := "127.0.0.1:8080"
	if !mode.Dev {
		addr = "127.0.0.1:80"
	}
	return &Server{addr: addr, rt: rt, logger: logger, mode: mode}
}

// ListenAndServe runs the accept loop until shutdown reports true.
func (s *Server) ListenAndServe(shutdown *atomic.Bool) error {
	l, err := listen(s.addr)
	if err != nil {
		return err
	}
	defer l.Close()

	interval := s.mode.ShutdownPollInterval()
	for {
		conn, ok, err := l.acceptWithTimeout(interval)
		if err != nil {
			s.logger.Errorf("", 0, "accept error: %v", err)
			if shutdown.Load() {
				return nil
			}
			continue
		}
		if !ok {
			if shutdown.Load() {
				return nil
			}
			continue
		}
		go s.handleConn(conn)
	}
}

// handleConn parses exactly one HTTP/1.1 request off conn (Connection:
// close, one request per connection), forwards it to the runtime with a
// one-shot reply channel, and writes the reply back.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	req, err := parseRequest(conn)
	if err != nil {
		s.logger.Warnf("", 0, "malformed request from %s: %v", conn.RemoteAddr(), err)
		writeRawStatus(conn, 400, "Bad Request")
		return
	}
	req.RemoteAddr = conn.RemoteAddr().String()

	reply := make(chan *HTTPResponse, 1)
	s.rt.Send(ExecuteRouteMsg{Request: req, PeerAddr: req.RemoteAddr, Reply: reply})

	select {
	case resp := <-reply:
		writeResponse(conn, resp)
	case <-time.After(30 * time.Second):
		// The actor's reply channel was dropped or never answered,
		// likely because the actor exited during shutdown.
		s.logger.Errorf("", 0, "no reply from runtime actor for %s %s", req.Method, req.URL.Path)
		writeRawStatus(conn, 500, "Internal Server Error")
	}
}

// parseRequest reads a single HTTP/1.1 request-line, header block, and
// (if Content-Length is set) body from r.
func parseRequest(r io.Reader) (*Request, error) {
	br := bufio.NewReader(r)

	line, err := br.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("reading request line: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	parts := strings.SplitN(line, " ", 3)
	if len(parts) != 3 {
		return nil, fmt.Errorf("malformed request line: %q", line)
	}
	method, target, proto := strings.ToUpper(parts[0]), parts[1], parts[2]

	headers := Headers{}
	for {
		hl, err := br.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("reading headers: %w", err)
		}
		hl = strings.TrimRight(hl, "\r\n")
		if hl == "" {
			break
		}
		idx := strings.IndexByte(hl, ':')
		if idx < 0 {
			continue
		}
		headers.Append(strings.TrimSpace(hl[:idx]), strings.TrimSpace(hl[idx+1:]))
	}

	var contentLength int64
	if cl := headers.First("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			contentLength = n
		}
	}

	var body io.Reader = bytes.NewReader(nil)
	if contentLength > 0 {
		body = io.LimitReader(br, contentLength)
	}

	return &Request{
		Method:        method,
		URL:           ParseRequestURI(target),
		Proto:         proto,
		Headers:       headers,
		Body:          body,
		ContentLength: contentLength,
	}, nil
}

// writeResponse serializes resp as an HTTP/1.1 response. Header names are
// canonicalized via net/textproto since the Headers map stores them
// lower-cased.
func writeResponse(w io.Writer, resp *HTTPResponse) {
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", resp.Status, http.StatusText(resp.Status))
	for name, values := range resp.Headers {
		canonical := textproto.CanonicalMIMEHeaderKey(name)
		for _, v := range values {
			fmt.Fprintf(w, "%s: %s\r\n", canonical, v)
		}
	}
	fmt.Fprint(w, "\r\n")
	w.Write(resp.Body)
}

func writeRawStatus(w io.Writer, status int, reason string) {
	body := fmt.Sprintf("<h1>%d %s</h1>", status, reason)
	fmt.Fprintf(w, "HTTP/1.1 %d %s\r\n", status, reason)
	fmt.Fprintf(w, "Content-Type: text/html; charset=utf-8\r\n")
	fmt.Fprintf(w, "Content-Length: %d\r\n", len(body))
	fmt.Fprintf(w, "Connection: close\r\n\r\n")
	io.WriteString(w, body)
}
