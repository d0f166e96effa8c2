package tcpserver

import (
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cyberinferno/tcpserve/logger"
)

func (s *Server) snapshotLoop() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(time.Duration(s.config.SessionSnapshotInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.takeSnapshot()
		}
	}
}

// takeSnapshot publishes an immutable copy of the session registry. Readers
// swap to it with a single atomic load, so enumeration never holds a lock.
func (s *Server) takeSnapshot() {
	s.snapshot.Store(s.liveSessions())
}

func (s *Server) idleSweepLoop() {
	defer s.loopWG.Done()

	ticker := time.NewTicker(time.Duration(s.config.ClearIdleSessionInterval) * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			// Skip the tick when the previous sweep is still running; idle
			// sweeps must not back up behind each other.
			if !s.sweeping.CompareAndSwap(false, true) {
				continue
			}

			go func() {
				defer s.sweeping.Store(false)
				s.sweepIdleSessions()
			}()
		}
	}
}

// sweepIdleSessions closes every session idle longer than the configured
// timeout with CloseReasonTimeout. Sessions are read from the snapshot and
// closed in parallel; Close is idempotent, so racing with another closer is
// harmless.
func (s *Server) sweepIdleSessions() {
	timeout := time.Duration(s.config.IdleSessionTimeOut) * time.Second
	deadline := time.Now().Add(-timeout)

	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())

	for _, session := range s.GetAllSessions() {
		sess := session
		if sess.LastActiveTime().After(deadline) {
			continue
		}

		g.Go(func() error {
			if s.log.InfoEnabled() {
				s.log.Info("closing idle session",
					logger.Field{Key: "session", Value: sess.ID()},
					logger.Field{Key: "idle", Value: time.Since(sess.LastActiveTime()).String()})
			}
			sess.CloseWithReason(CloseReasonTimeout)
			return nil
		})
	}

	_ = g.Wait()
}
