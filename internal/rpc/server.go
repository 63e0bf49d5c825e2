package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"strconv"
	"sync"

	"github.com/pkg/errors"

	"scryforge/internal/log"
)

// Server accepts connections on one or more listeners and serves the
// JSON-RPC 2.0 protocol over each: one newline-delimited JSON value per
// message, a batch expressed as a JSON array (spec.md §4.7, §6).
type Server struct {
	handler *Handler
	log     log.Log

	mu        sync.Mutex
	listeners []net.Listener
	wg        sync.WaitGroup
}

// NewServer builds a Server dispatching through handler.
func NewServer(handler *Handler, logger log.Log) *Server {
	return &Server{handler: handler, log: logger}
}

// ListenUnix opens (replacing any stale socket file) a Unix domain socket
// listener at path and begins serving it in the background.
func (s *Server) ListenUnix(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing stale unix socket %s", path)
	}
	l, err := net.Listen("unix", path)
	if err != nil {
		return errors.Wrapf(err, "listening on unix socket %s", path)
	}
	s.addListener(l)
	return nil
}

// ListenTCP opens a TCP listener on 127.0.0.1:port, per spec.md §6's
// optional TCP override of the same JSON-RPC surface.
func (s *Server) ListenTCP(port int) error {
	l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
	if err != nil {
		return errors.Wrapf(err, "listening on tcp port %d", port)
	}
	s.addListener(l)
	return nil
}

func (s *Server) addListener(l net.Listener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, l)
	s.mu.Unlock()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.acceptLoop(l)
	}()
}

func (s *Server) acceptLoop(l net.Listener) {
	for {
		conn, err := l.Accept()
		if err != nil {
			return // listener closed by Shutdown
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	enc := json.NewEncoder(conn)

	for {
		line, err := reader.ReadBytes('\n')
		if len(line) == 0 && err != nil {
			return
		}

		resp := s.handleLine(context.Background(), line)
		if resp == nil {
			continue
		}
		if encErr := enc.Encode(resp); encErr != nil {
			s.log.Errorf("writing rpc response: %v", encErr)
			return
		}

		if err != nil {
			return
		}
	}
}

// handleLine decodes one line as either a single request or a batch
// array, dispatching each and returning the matching response shape.
// Returns nil for a line that was entirely whitespace.
func (s *Server) handleLine(ctx context.Context, line []byte) interface{} {
	trimmed := trimSpace(line)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var reqs []Request
		if err := json.Unmarshal(trimmed, &reqs); err != nil {
			return errorResponse(nil, CodeParse, "invalid JSON batch")
		}
		responses := make([]Response, 0, len(reqs))
		for _, req := range reqs {
			responses = append(responses, s.handler.Handle(ctx, req))
		}
		return responses
	}

	var req Request
	if err := json.Unmarshal(trimmed, &req); err != nil {
		return errorResponse(nil, CodeParse, "invalid JSON")
	}
	return s.handler.Handle(ctx, req)
}

// Shutdown closes every listener and waits for in-flight connections to
// finish handling their current request.
func (s *Server) Shutdown() error {
	s.mu.Lock()
	listeners := s.listeners
	s.mu.Unlock()

	var firstErr error
	for _, l := range listeners {
		if err := l.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	s.wg.Wait()
	return firstErr
}

func trimSpace(b []byte) []byte {
	start, end := 0, len(b)
	for start < end && isSpace(b[start]) {
		start++
	}
	for end > start && isSpace(b[end-1]) {
		end--
	}
	return b[start:end]
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
