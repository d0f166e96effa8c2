package tcpserver

import (
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/cyberinferno/tcpserve/batchqueue"
	"github.com/cyberinferno/tcpserve/logger"
)

const (
	stateOpen int32 = iota
	stateClosing
	stateClosed
)

// SocketSession owns one connection: the raw socket, the receive buffer, and
// the send queue. It drives the receive loop that feeds the framer and the
// send pump that drains the queue to the socket. Close transitions only
// forward (open, closing, closed) and the close reason is recorded exactly
// once; the first closer wins.
type SocketSession struct {
	conn     net.Conn
	app      *AppSession
	server   *Server
	queue    *batchqueue.BatchQueue
	recvBuf  []byte
	state    atomic.Int32
	reason   atomic.Int32
	closeCh  chan struct{}
	sendMu   sync.Mutex
	syncSend bool
	datagram bool
}

func newSocketSession(server *Server, conn net.Conn, datagram bool) *SocketSession {
	s := &SocketSession{
		conn:     conn,
		server:   server,
		queue:    batchqueue.NewBatchQueue(server.config.SendingQueueSize),
		closeCh:  make(chan struct{}),
		syncSend: server.config.SyncSend,
		datagram: datagram,
	}
	if !datagram {
		s.recvBuf = make([]byte, server.config.ReceiveBufferSize)
	}

	return s
}

// RemoteAddr returns the remote endpoint of the connection.
func (s *SocketSession) RemoteAddr() net.Addr {
	return s.conn.RemoteAddr()
}

// LocalAddr returns the local endpoint of the connection.
func (s *SocketSession) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Connected reports whether the session is open.
func (s *SocketSession) Connected() bool {
	return s.state.Load() == stateOpen
}

// CloseReason returns the recorded close reason, or CloseReasonUnknown while
// the session is still open.
func (s *SocketSession) CloseReason() CloseReason {
	return CloseReason(s.reason.Load())
}

// Close closes the session with the given reason. Idempotent: the first
// caller wins and later calls are no-ops. Closing the socket unblocks the
// receive loop; queued but unsent segments are discarded.
//
// Parameters:
//   - reason: Why the session is being closed
func (s *SocketSession) Close(reason CloseReason) {
	if !s.state.CompareAndSwap(stateOpen, stateClosing) {
		return
	}

	s.reason.Store(int32(reason))
	if s.app != nil {
		s.app.markDisconnected()
	}

	close(s.closeCh)
	_ = s.conn.Close()
	s.queue.Close()
	s.state.Store(stateClosed)

	s.server.onSocketClosed(s.app, reason)
}

// start launches the receive loop and, in asynchronous send mode, the send
// pump.
func (s *SocketSession) start() {
	if !s.syncSend {
		go s.sendPump()
	}
	if !s.datagram {
		go s.readLoop()
	}
}

func (s *SocketSession) readLoop() {
	for {
		n, err := s.conn.Read(s.recvBuf)
		if n > 0 {
			if s.server.allowRawData(s.app, s.recvBuf[:n]) {
				if perr := s.app.processReceiveData(s.recvBuf, 0, n); perr != nil {
					s.server.log.Error("protocol error",
						logger.Field{Key: "session", Value: s.app.ID()},
						logger.Field{Key: "error", Value: perr})
					s.Close(CloseReasonProtocolError)
					return
				}
			}
		}
		if err != nil {
			s.closeOnReadError(err)
			return
		}
		if s.state.Load() != stateOpen {
			return
		}
	}
}

func (s *SocketSession) closeOnReadError(err error) {
	if s.state.Load() != stateOpen {
		return
	}

	switch {
	case errors.Is(err, io.EOF):
		s.Close(CloseReasonClientClosing)
	case errors.Is(err, net.ErrClosed):
		s.Close(CloseReasonSocketError)
	case isIgnorableSocketError(err):
		if s.server.config.LogAllSocketException {
			s.server.log.Error("socket read error",
				logger.Field{Key: "session", Value: s.app.ID()},
				logger.Field{Key: "error", Value: err})
		}
		s.Close(CloseReasonSocketError)
	default:
		s.server.log.Error("socket read error",
			logger.Field{Key: "session", Value: s.app.ID()},
			logger.Field{Key: "error", Value: err})
		s.Close(CloseReasonSocketError)
	}
}

// TrySend enqueues the segments atomically without waiting. It fails with
// ErrSessionNotConnected when the session is closing or closed, and with
// ErrSendQueueFull when the queue cannot take all segments.
//
// Parameters:
//   - segments: The byte segments to enqueue, kept contiguous
//
// Returns:
//   - nil on success, ErrSessionNotConnected or ErrSendQueueFull otherwise
func (s *SocketSession) TrySend(segments ...[]byte) error {
	if s.state.Load() != stateOpen {
		return ErrSessionNotConnected
	}

	if !s.queue.EnqueueAll(segments) {
		if s.state.Load() != stateOpen {
			return ErrSessionNotConnected
		}

		return ErrSendQueueFull
	}

	s.startSend()
	return nil
}

func (s *SocketSession) startSend() {
	if s.syncSend {
		s.drainSync()
	}
	// Asynchronous mode: the enqueue already signalled the send pump.
}

func (s *SocketSession) drainSync() {
	s.sendMu.Lock()
	defer s.sendMu.Unlock()

	var segs [][]byte
	for s.queue.TryDequeue(&segs) {
		for _, seg := range segs {
			if err := s.writeFull(seg); err != nil {
				s.handleSendError(err)
				return
			}
		}
		segs = segs[:0]
	}
}

func (s *SocketSession) sendPump() {
	var segs [][]byte
	for {
		select {
		case <-s.queue.Notify():
			segs = segs[:0]
			for s.queue.TryDequeue(&segs) {
				bufs := net.Buffers(segs)
				if _, err := bufs.WriteTo(s.conn); err != nil {
					s.handleSendError(err)
					return
				}
				segs = segs[:0]
			}
		case <-s.closeCh:
			return
		}
	}
}

func (s *SocketSession) writeFull(data []byte) error {
	total := 0
	for total < len(data) {
		n, err := s.conn.Write(data[total:])
		if err != nil {
			return err
		}
		total += n
	}

	return nil
}

func (s *SocketSession) handleSendError(err error) {
	if s.state.Load() != stateOpen {
		return
	}

	if !isIgnorableSocketError(err) || s.server.config.LogAllSocketException {
		s.server.log.Error("socket send error",
			logger.Field{Key: "session", Value: s.app.ID()},
			logger.Field{Key: "error", Value: err})
	}

	s.Close(CloseReasonSocketError)
}

// isIgnorableSocketError reports whether err is one of the socket errors that
// occur in the normal course of peers vanishing: connection reset or aborted,
// broken pipe, interrupted call, or a socket already shut down.
func isIgnorableSocketError(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF) {
		return true
	}

	return errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.EINTR) ||
		errors.Is(err, syscall.ESHUTDOWN)
}
