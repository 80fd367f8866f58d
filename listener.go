package webx

import (
	"net"
	"time"
)

// listener wraps a *net.TCPListener so Accept can be bounded by a
// deadline: the plain net.Listener interface has no SetDeadline, but the
// accept loop must periodically give up waiting and check the shutdown
// flag.
type listener struct {
	*net.TCPListener
}

// listen opens a TCP listener on address.
func listen(address string) (*listener, error) {
	nl, err := net.Listen("tcp", address)
	if err != nil {
		return nil, err
	}
	return &listener{TCPListener: nl.(*net.TCPListener)}, nil
}

// acceptWithTimeout blocks for at most timeout waiting for a connection,
// returning (nil, false, nil) on a plain deadline expiry so the caller can
// re-check its shutdown flag and try again.
func (l *listener) acceptWithTimeout(timeout time.Duration) (net.Conn, bool, error) {
	l.SetDeadline(time.Now().Add(timeout))
	conn, err := l.Accept()
	if err != nil {
		if ne, ok := err.(net.Error); ok && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		tc.SetKeepAlive(true)
		tc.SetKeepAlivePeriod(3 * time.Minute)
	}
	return conn, true, nil
}
