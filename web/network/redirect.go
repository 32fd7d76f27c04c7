// Package network wraps the TLS listener so plain HTTP requests arriving on
// the HTTPS port are redirected instead of failing the handshake.
package network

import (
	"bufio"
	"bytes"
	"fmt"
	"net"
	"net/http"
	"sync"
)

const sniffSize = 2048

// redirectConn sniffs the first read. If it parses as an HTTP request the
// client gets a 307 to the https URL and the connection is closed; anything
// else is replayed to the reader unchanged.
type redirectConn struct {
	net.Conn

	once     sync.Once
	buf      []byte
	bufStart int
	err      error // from the sniffing read, returned once buf is drained
}

func (c *redirectConn) sniff() {
	buf := make([]byte, sniffSize)
	n, err := c.Conn.Read(buf)
	if n > 0 {
		c.buf = buf[:n]
	}
	if err != nil {
		c.err = err
		return
	}
	req, err := http.ReadRequest(bufio.NewReader(bytes.NewReader(c.buf)))
	if err != nil {
		return
	}
	resp := http.Response{
		StatusCode: http.StatusTemporaryRedirect,
		ProtoMajor: 1,
		ProtoMinor: 1,
		Header:     http.Header{},
	}
	resp.Header.Set("Location", fmt.Sprintf("https://%s%s", req.Host, req.RequestURI))
	resp.Header.Set("Connection", "close")
	_ = resp.Write(c.Conn)
	_ = c.Conn.Close()
	c.buf = nil
}

func (c *redirectConn) Read(p []byte) (int, error) {
	c.once.Do(c.sniff)

	if c.buf != nil {
		n := copy(p, c.buf[c.bufStart:])
		c.bufStart += n
		if c.bufStart >= len(c.buf) {
			c.buf = nil
		}
		return n, nil
	}
	if err := c.err; err != nil {
		c.err = nil
		return 0, err
	}
	return c.Conn.Read(p)
}

type redirectListener struct {
	net.Listener
}

// NewHTTPSRedirectListener wraps l. Put it under tls.NewListener.
func NewHTTPSRedirectListener(l net.Listener) net.Listener {
	return &redirectListener{Listener: l}
}

func (l *redirectListener) Accept() (net.Conn, error) {
	conn, err := l.Listener.Accept()
	if err != nil {
		return nil, err
	}
	return &redirectConn{Conn: conn}, nil
}
