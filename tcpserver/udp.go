package tcpserver

import (
	"io"
	"net"
	"sync/atomic"
	"time"

	"github.com/cyberinferno/tcpserve/logger"
	"github.com/cyberinferno/tcpserve/safemap"
)

// udpConn adapts one remote endpoint of a shared packet socket to net.Conn
// so a SocketSession can send through it. Reads are not used; the datagram
// loop pushes received packets straight into the app session.
type udpConn struct {
	pc      net.PacketConn
	remote  net.Addr
	onClose func()
	closed  atomic.Bool
}

func (c *udpConn) Read(b []byte) (int, error) {
	return 0, io.EOF
}

func (c *udpConn) Write(b []byte) (int, error) {
	if c.closed.Load() {
		return 0, net.ErrClosed
	}

	return c.pc.WriteTo(b, c.remote)
}

// Close detaches the endpoint from the datagram loop. The shared packet
// socket stays open for other sessions.
func (c *udpConn) Close() error {
	if c.closed.CompareAndSwap(false, true) {
		c.onClose()
	}

	return nil
}

func (c *udpConn) LocalAddr() net.Addr                { return c.pc.LocalAddr() }
func (c *udpConn) RemoteAddr() net.Addr               { return c.remote }
func (c *udpConn) SetDeadline(t time.Time) error      { return nil }
func (c *udpConn) SetReadDeadline(t time.Time) error  { return nil }
func (c *udpConn) SetWriteDeadline(t time.Time) error { return nil }

// datagramLoop serves one UDP listener: each remote endpoint gets its own
// session, and each datagram runs through that session's framer as one
// buffer. Datagrams are processed in arrival order, which also preserves
// per-session receive order.
func (s *Server) datagramLoop(info *listenerInfo) {
	defer s.loopWG.Done()

	peers := safemap.NewSafeMap[string, *AppSession]()
	buf := make([]byte, s.config.ReceiveBufferSize)

	for {
		n, addr, err := info.packet.ReadFrom(buf)
		if err != nil {
			if !s.running.Load() {
				return
			}

			s.log.Error("datagram read error",
				logger.Field{Key: "addr", Value: info.config.Addr()},
				logger.Field{Key: "error", Value: err})
			continue
		}

		key := addr.String()
		session, ok := peers.Load(key)
		if !ok || !session.Connected() {
			if !s.admitConnection(addr) {
				continue
			}

			conn := &udpConn{
				pc:      info.packet,
				remote:  addr,
				onClose: func() { peers.Delete(key) },
			}
			session = s.registerConnection(conn, true)
			if session == nil {
				continue
			}

			peers.Store(key, session)
		}

		if !s.allowRawData(session, buf[:n]) {
			continue
		}

		if perr := session.processReceiveData(buf, 0, n); perr != nil {
			s.log.Error("protocol error",
				logger.Field{Key: "session", Value: session.ID()},
				logger.Field{Key: "error", Value: perr})
			session.CloseWithReason(CloseReasonProtocolError)
		}
	}
}
