package ipc

import (
	"bufio"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"

	"github.com/go-json-experiment/json"
	"go.uber.org/zap"
)

// Handler runs commands and reads properties on behalf of socket clients.
type Handler interface {
	Command(args ...string) error
	Property(name string) (any, error)
}

// Server accepts control connections on a unix socket.
type Server struct {
	path string
	ln   net.Listener
	h    Handler
	log  *zap.Logger

	mu     sync.Mutex
	conns  map[*conn]struct{}
	closed bool
	wg     sync.WaitGroup
}

// Listen starts serving on path. A stale socket left at path by a dead
// process is removed first.
func Listen(path string, h Handler, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := removeStale(path); err != nil {
		return nil, err
	}
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", path, err)
	}
	s := &Server{
		path:  path,
		ln:    ln,
		h:     h,
		log:   log,
		conns: make(map[*conn]struct{}),
	}
	s.wg.Add(1)
	go s.serve()
	log.Debug("listening", zap.String("path", path))
	return s, nil
}

func removeStale(path string) error {
	fi, err := os.Lstat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	if c, err := net.Dial("unix", path); err == nil {
		c.Close()
		return fmt.Errorf("%s is in use", path)
	}
	return os.Remove(path)
}

// Path returns the socket path.
func (s *Server) Path() string { return s.path }

func (s *Server) serve() {
	defer s.wg.Done()
	for {
		nc, err := s.ln.Accept()
		if err != nil {
			if !errors.Is(err, net.ErrClosed) {
				s.log.Warn("accept", zap.Error(err))
			}
			return
		}
		c := newConn(nc)

		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			nc.Close()
			return
		}
		s.conns[c] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(2)
		go func() {
			defer s.wg.Done()
			c.writeLoop()
		}()
		go func() {
			defer s.wg.Done()
			s.readLoop(c)
			s.drop(c)
		}()
	}
}

func (s *Server) readLoop(c *conn) {
	sc := bufio.NewScanner(c.nc)
	sc.Buffer(make([]byte, 0, 4096), 1<<20)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var req Request
		if err := json.Unmarshal(line, &req); err != nil {
			c.send(message{Error: "invalid json"})
			continue
		}
		c.send(s.dispatch(&req))
	}
}

func (s *Server) dispatch(req *Request) message {
	reply := message{Error: success, RequestID: req.RequestID}
	args, err := req.args()
	if err == nil && len(args) == 0 {
		err = errors.New("empty command")
	}
	if err != nil {
		reply.Error = err.Error()
		return reply
	}

	switch args[0] {
	case "get_property":
		if len(args) != 2 {
			err = errors.New("get_property takes one property name")
			break
		}
		reply.Data, err = s.h.Property(args[1])
	case "set_property":
		if len(args) != 3 {
			err = errors.New("set_property takes a name and a value")
			break
		}
		err = s.h.Command("set", args[1], args[2])
	default:
		err = s.h.Command(args...)
	}
	if err != nil {
		reply.Error = err.Error()
		reply.Data = nil
	}
	return reply
}

// Broadcast sends an event to every connected client. Slow clients miss
// events rather than block the caller.
func (s *Server) Broadcast(event string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		c.send(message{Event: event})
	}
}

func (s *Server) drop(c *conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	c.close()
}

// Close stops accepting, disconnects every client and removes the socket
// file.
func (s *Server) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	conns := make([]*conn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	err := s.ln.Close()
	for _, c := range conns {
		c.close()
	}
	s.wg.Wait()
	if rmErr := os.Remove(s.path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) && err == nil {
		err = rmErr
	}
	return err
}

// conn is one client connection. Lines are written by a single goroutine
// so replies and events never interleave.
type conn struct {
	nc        net.Conn
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func newConn(nc net.Conn) *conn {
	return &conn{
		nc:   nc,
		out:  make(chan []byte, 64),
		done: make(chan struct{}),
	}
}

func (c *conn) send(m message) {
	b, err := json.Marshal(m)
	if err != nil {
		b, _ = json.Marshal(message{Error: err.Error(), RequestID: m.RequestID})
	}
	b = append(b, '\n')
	select {
	case c.out <- b:
	case <-c.done:
	default:
	}
}

func (c *conn) writeLoop() {
	for {
		select {
		case b := <-c.out:
			if _, err := c.nc.Write(b); err != nil {
				c.close()
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *conn) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		c.nc.Close()
	})
}
