// Package auth captures an OAuth redirect on a loopback port. It speaks just
// enough HTTP/1.1 to take the request target from the first request line and
// answer with a static page.
package auth

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go-voxura-native/internal/errs"
	"go-voxura-native/internal/metrics"

	log "github.com/sirupsen/logrus"
)

// DefaultAddr is the loopback address registered as the redirect URI.
const DefaultAddr = "localhost:3432"

// maxRequestBytes bounds how much of a request is read.
const maxRequestBytes = 1000

const (
	readTimeout  = 10 * time.Second
	writeTimeout = 10 * time.Second
)

//go:embed redirect.html
var successPage string

var ErrMalformedRequest = fmt.Errorf("%w: malformed request", errs.ErrProtocol)

// Server listens for the redirect. Create it with Listen.
type Server struct {
	ln        net.Listener
	closeOnce sync.Once
}

// Listen binds addr. A bind failure is returned at once; there is no retry.
func Listen(addr string) (*Server, error) {
	if addr == "" {
		addr = DefaultAddr
	}
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("%w: binding %s: %v", errs.ErrIO, addr, err)
	}
	return &Server{ln: ln}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Close stops the listener. Safe to call more than once.
func (s *Server) Close() error {
	var err error
	s.closeOnce.Do(func() { err = s.ln.Close() })
	return err
}

// Capture serves connections until one carries a well-formed request line and
// returns its target (path and query, unparsed). Malformed requests get a 400
// and the loop continues. The listener is closed on return.
func (s *Server) Capture(ctx context.Context) (string, error) {
	defer s.Close()

	stop := context.AfterFunc(ctx, func() { s.Close() })
	defer stop()

	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return "", fmt.Errorf("%w: listener closed", errs.ErrIO)
			}
			log.WithError(err).Warn("Accept failed")
			continue
		}

		target, err := handle(conn)
		if err != nil {
			metrics.AuthCaptures.WithLabelValues("rejected").Inc()
			log.WithError(err).WithField("remote", conn.RemoteAddr().String()).Warn("Rejected auth redirect request")
			continue
		}
		metrics.AuthCaptures.WithLabelValues("captured").Inc()
		log.Info("Captured auth redirect")
		return target, nil
	}
}

// Code listens on addr and captures one redirect, giving up after timeout
// (zero means no timeout) or when ctx ends.
func Code(ctx context.Context, addr string, timeout time.Duration) (string, error) {
	srv, err := Listen(addr)
	if err != nil {
		return "", err
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return srv.Capture(ctx)
}

func handle(conn net.Conn) (string, error) {
	defer conn.Close()
	_ = conn.SetReadDeadline(time.Now().Add(readTimeout))

	req, err := readRequest(conn)
	// The reply gets its own window however long the read took.
	_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err != nil {
		respondError(conn, "Malformed request")
		return "", fmt.Errorf("%w: %v", errs.ErrProtocol, err)
	}

	target, reason, err := parseTarget(req)
	if err != nil {
		respondError(conn, reason)
		return "", err
	}
	respondSuccess(conn)
	return target, nil
}

// readRequest takes whatever a single read returns, up to maxRequestBytes.
// Browsers send the request line in the first segment, and waiting for more
// would stall on clients that never finish the line.
func readRequest(conn net.Conn) ([]byte, error) {
	buf := make([]byte, maxRequestBytes)
	n, err := conn.Read(buf)
	if n == 0 {
		if err == nil {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("reading request: %v", err)
	}
	return buf[:n], nil
}

// parseTarget returns the second token of the request line, or the reason
// shown to the client when there is none.
func parseTarget(req []byte) (target, reason string, err error) {
	if i := bytes.IndexByte(req, '\n'); i >= 0 {
		req = req[:i]
	}
	if !utf8.Valid(req) {
		return "", "Invalid UTF-8 sequence", fmt.Errorf("%w: invalid UTF-8 sequence", ErrMalformedRequest)
	}
	fields := strings.Fields(string(req))
	if len(fields) < 2 {
		return "", "Malformed request", ErrMalformedRequest
	}
	return fields[1], "", nil
}

func respondSuccess(conn net.Conn) {
	write(conn, "HTTP/1.1 200 OK\r\n\r\n"+successPage)
}

func respondError(conn net.Conn, msg string) {
	write(conn, "HTTP/1.1 400 Bad Request\r\n\r\n400 - Bad Request - "+msg)
}

func write(conn net.Conn, response string) {
	if _, err := conn.Write([]byte(response)); err != nil {
		log.WithError(err).Debug("Failed to write auth response")
	}
}
