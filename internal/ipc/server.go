package ipc

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"runtime/debug"
	"sync"

	"github.com/packwisely/patchdesk/internal/constants"
	"github.com/packwisely/patchdesk/internal/events"
	"github.com/packwisely/patchdesk/internal/logging"
	"github.com/packwisely/patchdesk/internal/models"
)

// ErrAddressInUse is returned by Start when another worker already serves the address.
var ErrAddressInUse = errors.New("worker address already in use")

// Emitter pushes events to the client that sent the request being handled.
// Events are tagged with that request's generation.
type Emitter interface {
	Emit(channel events.EventType, payload any) error
}

// Handler serves worker commands. Handle may block; each request runs on
// its own goroutine. A returned *models.WorkerError (or any error) becomes a
// failure response carrying its message.
type Handler interface {
	Handle(ctx context.Context, req *Request, emit Emitter) (any, error)
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request, emit Emitter) (any, error)

func (f HandlerFunc) Handle(ctx context.Context, req *Request, emit Emitter) (any, error) {
	return f(ctx, req, emit)
}

// Server accepts client connections and dispatches their requests.
type Server struct {
	addr     string
	handler  Handler
	logger   *logging.Logger
	listener net.Listener

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu    sync.Mutex
	conns map[*serverConn]struct{}
}

// NewServer creates a server for addr. Start begins listening.
func NewServer(addr string, handler Handler) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:    addr,
		handler: handler,
		logger:  logging.NewLogger("ipc-server"),
		ctx:     ctx,
		cancel:  cancel,
		conns:   make(map[*serverConn]struct{}),
	}
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string { return s.addr }

// Start begins listening for connections.
func (s *Server) Start() error {
	if InUse(s.addr) {
		return fmt.Errorf("%w: %s", ErrAddressInUse, s.addr)
	}

	listener, err := listen(s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener

	s.logger.Info().Str("addr", s.addr).Msg("Worker server started")

	s.wg.Add(1)
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and every connection, cancels running handlers
// and waits for them to return.
func (s *Server) Stop() {
	s.logger.Debug().Msg("Stopping worker server")
	s.cancel()

	if s.listener != nil {
		s.listener.Close()
	}

	s.mu.Lock()
	for sc := range s.conns {
		sc.conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info().Msg("Worker server stopped")
}

// Broadcast sends an untagged event to every connected client.
func (s *Server) Broadcast(channel events.EventType, payload any) error {
	ev, err := NewEvent(channel, 0, payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	conns := make([]*serverConn, 0, len(s.conns))
	for sc := range s.conns {
		conns = append(conns, sc)
	}
	s.mu.Unlock()

	for _, sc := range conns {
		if err := sc.send(ev); err != nil {
			s.logger.Debug().Err(err).Str("channel", string(channel)).Msg("Broadcast to client failed")
		}
	}
	return nil
}

func (s *Server) acceptLoop() {
	defer s.wg.Done()

	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.ctx.Done():
				return
			default:
			}
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.logger.Warn().Err(err).Msg("Failed to accept worker connection")
			continue
		}

		sc := &serverConn{conn: conn}
		s.mu.Lock()
		s.conns[sc] = struct{}{}
		s.mu.Unlock()

		s.wg.Add(1)
		go s.handleConnection(sc)
	}
}

// serverConn serializes writes to one client.
type serverConn struct {
	conn net.Conn
	mu   sync.Mutex
}

func (sc *serverConn) send(msg any) error {
	line, err := Encode(msg)
	if err != nil {
		return err
	}
	sc.mu.Lock()
	defer sc.mu.Unlock()
	_, err = sc.conn.Write(line)
	return err
}

func (s *Server) handleConnection(sc *serverConn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, sc)
		s.mu.Unlock()
		sc.conn.Close()
	}()

	ctx, cancel := context.WithCancel(s.ctx)
	defer cancel()

	var requests sync.WaitGroup
	defer requests.Wait()

	scanner := bufio.NewScanner(sc.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), constants.WorkerMaxMessageSize)

	for scanner.Scan() {
		msg, err := Decode(scanner.Bytes())
		if err != nil {
			s.logger.Warn().Err(err).Msg("Failed to decode client message")
			continue
		}
		req, ok := msg.(*Request)
		if !ok {
			s.logger.Warn().Msg("Ignoring non-request message from client")
			continue
		}

		s.logger.Debug().
			Str("command", string(req.Command)).
			Str("id", req.ID).
			Uint64("generation", req.Generation).
			Msg("Received worker request")

		requests.Add(1)
		go func() {
			defer requests.Done()
			s.serve(ctx, sc, req)
		}()
	}
	cancel()
}

func (s *Server) serve(ctx context.Context, sc *serverConn, req *Request) {
	resp := s.dispatch(ctx, sc, req)
	if err := sc.send(resp); err != nil {
		s.logger.Warn().Err(err).Str("command", string(req.Command)).Msg("Failed to send worker response")
	}
}

func (s *Server) dispatch(ctx context.Context, sc *serverConn, req *Request) (resp *Response) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error().
				Interface("panic", r).
				Str("stack", string(debug.Stack())).
				Str("command", string(req.Command)).
				Msg("Worker handler panicked")
			resp = NewErrorResponse(req.ID, fmt.Sprintf("internal error: %v", r))
		}
	}()

	data, err := s.handler.Handle(ctx, req, &emitter{sc: sc, generation: req.Generation})
	if err != nil {
		var werr *models.WorkerError
		if errors.As(err, &werr) {
			return NewErrorResponse(req.ID, werr.Message)
		}
		return NewErrorResponse(req.ID, err.Error())
	}

	resp, err = NewOKResponse(req.ID, data)
	if err != nil {
		s.logger.Error().Err(err).Str("command", string(req.Command)).Msg("Failed to encode worker result")
		return NewErrorResponse(req.ID, err.Error())
	}
	return resp
}

type emitter struct {
	sc         *serverConn
	generation uint64
}

func (e *emitter) Emit(channel events.EventType, payload any) error {
	ev, err := NewEvent(channel, e.generation, payload)
	if err != nil {
		return err
	}
	return e.sc.send(ev)
}
