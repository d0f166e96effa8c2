// Package bootstrap composes one or more server cores, wires their provider
// factories, and starts and stops them together. A JSON configuration
// document can describe the whole deployment, including an endpoint
// replacement map for environment-specific bindings.
package bootstrap

import (
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/cyberinferno/tcpserve/logger"
	"github.com/cyberinferno/tcpserve/safemap"
	"github.com/cyberinferno/tcpserve/tcpserver"
)

// StartResult summarizes a Bootstrap.Start call.
type StartResult int

const (
	// StartResultNone means there was nothing to start.
	StartResultNone StartResult = iota
	// StartResultSuccess means every server started.
	StartResultSuccess
	// StartResultPartialSuccess means some servers started and some failed.
	StartResultPartialSuccess
	// StartResultFailed means no server started.
	StartResultFailed
)

// String returns a human-readable name for the start result.
func (r StartResult) String() string {
	switch r {
	case StartResultSuccess:
		return "Success"
	case StartResultPartialSuccess:
		return "PartialSuccess"
	case StartResultFailed:
		return "Failed"
	default:
		return "None"
	}
}

// ServerDescriptor pairs one server configuration with the provider
// factories it is set up with.
type ServerDescriptor struct {
	Config  *tcpserver.Config
	Options tcpserver.SetupOptions
}

// Bootstrap owns a list of server cores and their shared lifecycle.
type Bootstrap struct {
	log                  logger.Logger
	servers              []*tcpserver.Server
	byName               *safemap.SafeMap[string, *tcpserver.Server]
	endpointReplacements map[string]string

	stateStop chan struct{}
	stateWG   sync.WaitGroup
	stateMu   sync.Mutex
}

// New creates an empty Bootstrap logging through log.
//
// Parameters:
//   - log: The bootstrap logger; nil selects a no-op logger
//
// Returns:
//   - A new Bootstrap
func New(log logger.Logger) *Bootstrap {
	if log == nil {
		log = logger.NewNopLogger()
	}

	return &Bootstrap{
		log:    log,
		byName: safemap.NewSafeMap[string, *tcpserver.Server](),
	}
}

// ReplaceListenEndpoints installs an endpoint replacement map applied to
// every server configuration during Initialize: any configured "ip:port"
// appearing as a key is rebound to the mapped "ip:port". Call before
// Initialize.
//
// Parameters:
//   - replacements: Map from configured endpoint to effective endpoint
func (b *Bootstrap) ReplaceListenEndpoints(replacements map[string]string) {
	b.endpointReplacements = replacements
}

// Initialize creates and sets up one server per descriptor, in order. The
// first setup failure aborts initialization and no further servers are
// created; servers set up before the failure remain registered.
//
// Parameters:
//   - descriptors: The servers to create
//
// Returns:
//   - An error from the first failing setup, or nil
func (b *Bootstrap) Initialize(descriptors []ServerDescriptor) error {
	for _, desc := range descriptors {
		if desc.Config == nil {
			return fmt.Errorf("bootstrap: descriptor without config")
		}

		if err := b.applyEndpointReplacements(desc.Config); err != nil {
			return err
		}

		server := tcpserver.NewServer()
		if err := server.Setup(desc.Config, desc.Options); err != nil {
			b.log.Error("server setup failed",
				logger.Field{Key: "server", Value: desc.Config.Name},
				logger.Field{Key: "error", Value: err})
			return err
		}

		b.servers = append(b.servers, server)
		b.byName.Store(desc.Config.Name, server)
		b.log.Info("server initialized", logger.Field{Key: "server", Value: desc.Config.Name})
	}

	return nil
}

func (b *Bootstrap) applyEndpointReplacements(cfg *tcpserver.Config) error {
	if len(b.endpointReplacements) == 0 {
		return nil
	}

	replace := func(ip string, port int) (string, int, error) {
		key := net.JoinHostPort(ip, strconv.Itoa(port))
		target, ok := b.endpointReplacements[key]
		if !ok {
			return ip, port, nil
		}

		host, portStr, err := net.SplitHostPort(target)
		if err != nil {
			return "", 0, fmt.Errorf("bootstrap: bad replacement endpoint %q: %w", target, err)
		}
		newPort, err := strconv.Atoi(portStr)
		if err != nil {
			return "", 0, fmt.Errorf("bootstrap: bad replacement port in %q: %w", target, err)
		}

		return host, newPort, nil
	}

	if cfg.Port > 0 {
		ip, port, err := replace(cfg.IP, cfg.Port)
		if err != nil {
			return err
		}
		cfg.IP, cfg.Port = ip, port
	}

	for i := range cfg.Listeners {
		ip, port, err := replace(cfg.Listeners[i].IP, cfg.Listeners[i].Port)
		if err != nil {
			return err
		}
		cfg.Listeners[i].IP, cfg.Listeners[i].Port = ip, port
	}

	return nil
}

// GetServerByName returns the server registered under name.
//
// Parameters:
//   - name: The server name
//
// Returns:
//   - The server and true, or nil and false when absent
func (b *Bootstrap) GetServerByName(name string) (*tcpserver.Server, bool) {
	return b.byName.Load(name)
}

// Servers returns the registered servers in initialization order.
//
// Returns:
//   - The servers
func (b *Bootstrap) Servers() []*tcpserver.Server {
	return b.servers
}

// Start starts every registered server and summarizes the outcome: Success
// when all started, PartialSuccess when some did, Failed when none did, and
// None when there was nothing to start. Failures are logged per server and
// do not stop the remaining servers from starting.
//
// Returns:
//   - The summarized start result
func (b *Bootstrap) Start() StartResult {
	if len(b.servers) == 0 {
		return StartResultNone
	}

	started := 0
	for _, server := range b.servers {
		if err := server.Start(); err != nil {
			b.log.Error("server failed to start",
				logger.Field{Key: "server", Value: server.Name()},
				logger.Field{Key: "error", Value: err})
			continue
		}

		started++
	}

	switch started {
	case len(b.servers):
		return StartResultSuccess
	case 0:
		return StartResultFailed
	default:
		return StartResultPartialSuccess
	}
}

// Stop stops every running server and the state collection loop if one is
// active.
func (b *Bootstrap) Stop() {
	for _, server := range b.servers {
		if !server.Running() {
			continue
		}

		if err := server.Stop(); err != nil {
			b.log.Error("server failed to stop",
				logger.Field{Key: "server", Value: server.Name()},
				logger.Field{Key: "error", Value: err})
		}
	}

	b.StopStateCollection()
}

// StartStateCollection logs every server's state record at the given
// interval until StopStateCollection or Stop is called. A second call while
// collection runs is a no-op.
//
// Parameters:
//   - interval: How often states are collected and logged
func (b *Bootstrap) StartStateCollection(interval time.Duration) {
	b.stateMu.Lock()
	defer b.stateMu.Unlock()

	if b.stateStop != nil {
		return
	}

	b.stateStop = make(chan struct{})
	b.stateWG.Add(1)

	go func(stop chan struct{}) {
		defer b.stateWG.Done()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				for _, server := range b.servers {
					state := server.CollectState()
					b.log.Info("server state",
						logger.Field{Key: "server", Value: state.Name},
						logger.Field{Key: "running", Value: state.IsRunning},
						logger.Field{Key: "connections", Value: state.TotalConnections},
						logger.Field{Key: "handled", Value: state.TotalHandledRequests},
						logger.Field{Key: "speed", Value: state.RequestHandlingSpeed})
				}
			}
		}
	}(b.stateStop)
}

// StopStateCollection stops the state collection loop started by
// StartStateCollection. Safe to call when no loop is running.
func (b *Bootstrap) StopStateCollection() {
	b.stateMu.Lock()
	stop := b.stateStop
	b.stateStop = nil
	b.stateMu.Unlock()

	if stop == nil {
		return
	}

	close(stop)
	b.stateWG.Wait()
}
