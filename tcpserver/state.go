package tcpserver

import "time"

// ListenerState describes one bound listener in a state record.
type ListenerState struct {
	Addr     string
	Backlog  int
	Security string
}

// ServerState is a point-in-time summary of one server, produced by
// CollectState on a timer or on demand.
type ServerState struct {
	CollectedTime        time.Time
	Name                 string
	StartedTime          time.Time
	IsRunning            bool
	TotalConnections     int
	MaxConnections       int
	TotalHandledRequests uint64
	// RequestHandlingSpeed is requests per second since the previous
	// collection; the first sample is baselined at the start time.
	RequestHandlingSpeed float64
	Listeners            []ListenerState
}

// CollectState produces a ServerState record and advances the collection
// baseline used for the request-handling speed.
//
// Returns:
//   - The collected state
func (s *Server) CollectState() ServerState {
	now := time.Now()
	handled := s.totalHandled.Load()

	s.stateMu.Lock()
	baseline := s.lastCollected
	baseHandled := s.lastHandled
	s.lastCollected = now
	s.lastHandled = handled
	s.stateMu.Unlock()

	var speed float64
	if secs := now.Sub(baseline).Seconds(); secs > 0 {
		speed = float64(handled-baseHandled) / secs
	}

	listeners := make([]ListenerState, 0, len(s.listeners))
	for _, info := range s.listeners {
		listeners = append(listeners, ListenerState{
			Addr:     info.config.Addr(),
			Backlog:  info.config.Backlog,
			Security: info.config.Security,
		})
	}

	return ServerState{
		CollectedTime:        now,
		Name:                 s.Name(),
		StartedTime:          s.startTime,
		IsRunning:            s.running.Load(),
		TotalConnections:     s.SessionCount(),
		MaxConnections:       s.config.MaxConnectionNumber,
		TotalHandledRequests: handled,
		RequestHandlingSpeed: speed,
		Listeners:            listeners,
	}
}
