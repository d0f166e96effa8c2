package tcpserver

import (
	"fmt"
	"strings"
)

// Mode selects the socket mode of a server.
type Mode int

const (
	// ModeTCP serves a byte stream per connection.
	ModeTCP Mode = iota
	// ModeUDP serves datagrams, one session per remote endpoint.
	ModeUDP
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	if m == ModeUDP {
		return "Udp"
	}

	return "Tcp"
}

// SecurityNone is the default listener security value.
const SecurityNone = "none"

// ListenerConfig describes one listening endpoint of a server.
type ListenerConfig struct {
	// IP is the address to bind; empty binds all interfaces.
	IP string
	// Port is the port to bind.
	Port int
	// Backlog is the accept backlog. It is carried into state records only;
	// the listener is bound with the system default backlog.
	Backlog int
	// Security selects TLS for this listener: "none" (default) or a TLS
	// protocol name such as "tls", "tls12", "tls13".
	Security string
}

// Addr returns the listener's bind address in host:port form.
func (l ListenerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", l.IP, l.Port)
}

// Secure reports whether the listener requires TLS.
func (l ListenerConfig) Secure() bool {
	return l.Security != "" && !strings.EqualFold(l.Security, SecurityNone)
}

// CertificateConfig locates the server certificate for secure listeners.
// Either FilePath (a PEM pair or a password-protected PKCS#12 file) or a
// certificate-store thumbprint may be given; store lookups are not supported
// on this platform and are rejected at setup.
type CertificateConfig struct {
	// FilePath is the certificate file. With Password set it is read as
	// PKCS#12; otherwise as PEM.
	FilePath string
	// KeyFilePath is the PEM private key file; empty means FilePath holds
	// both certificate and key.
	KeyFilePath string
	// Password decrypts a PKCS#12 FilePath.
	Password string
	// Thumbprint, StoreName and StoreLocation describe a certificate-store
	// lookup. Recognized for config compatibility, rejected at setup.
	Thumbprint    string
	StoreName     string
	StoreLocation string
}

// Config is the immutable per-server configuration. Durations are given in
// seconds, matching the configuration document surface.
type Config struct {
	// Name identifies the server in logs and state records.
	Name string

	// IP and Port define a single listener. Mutually exclusive with
	// Listeners.
	IP   string
	Port int

	// Listeners defines multiple listening endpoints. Mutually exclusive
	// with IP/Port.
	Listeners []ListenerConfig

	// Mode selects stream (TCP) or datagram (UDP) sockets.
	Mode Mode

	// MaxConnectionNumber caps concurrent sessions. Default 100.
	MaxConnectionNumber int

	// ReceiveBufferSize is the per-session receive buffer in bytes.
	// Default 4096.
	ReceiveBufferSize int

	// SendingQueueSize is the per-session send queue capacity in segments.
	// Default 5, minimum 3; smaller values are clamped up.
	SendingQueueSize int

	// MaxRequestLength is the largest request, in bytes, a framer may
	// retain before the session is closed as oversize. Default 1024.
	MaxRequestLength int

	// IdleSessionTimeOut is the idle seconds after which a session is swept.
	// Default 300.
	IdleSessionTimeOut int

	// ClearIdleSession enables the idle sweep. Default off.
	ClearIdleSession bool

	// ClearIdleSessionInterval is the sweep period in seconds. Default 120.
	ClearIdleSessionInterval int

	// DisableSessionSnapshot turns off the periodic registry snapshot;
	// read-only consumers then walk the live registry.
	DisableSessionSnapshot bool

	// SessionSnapshotInterval is the snapshot period in seconds. Default 5,
	// minimum 1; smaller values are clamped up.
	SessionSnapshotInterval int

	// LogCommand logs every executed command at info level.
	LogCommand bool

	// LogBasicSessionActivity logs ordinary session opens and closes.
	// Default off.
	LogBasicSessionActivity bool

	// LogAllSocketException logs socket errors even when the error is in
	// the ignorable set (reset, abort, interrupt, shutdown).
	LogAllSocketException bool

	// Security selects the default TLS mode for listeners built from
	// IP/Port. "none" by default.
	Security string

	// Certificate locates the TLS certificate when any listener is secure.
	Certificate *CertificateConfig

	// SyncSend drains the send queue inline on the sending goroutine
	// instead of through the asynchronous send pump.
	SyncSend bool

	// TextEncoding is the IANA charset name sessions transcode outgoing
	// strings with. Empty means UTF-8.
	TextEncoding string
}

const (
	defaultMaxConnectionNumber      = 100
	defaultReceiveBufferSize        = 4096
	defaultSendingQueueSize         = 5
	minSendingQueueSize             = 3
	defaultMaxRequestLength         = 1024
	defaultIdleSessionTimeOut       = 300
	defaultClearIdleSessionInterval = 120
	defaultSessionSnapshotInterval  = 5
	minSessionSnapshotInterval      = 1
)

// Normalize fills unset options with their defaults and clamps values to
// their documented minimums. Called by Setup before Validate.
func (c *Config) Normalize() {
	if c.MaxConnectionNumber <= 0 {
		c.MaxConnectionNumber = defaultMaxConnectionNumber
	}
	if c.ReceiveBufferSize <= 0 {
		c.ReceiveBufferSize = defaultReceiveBufferSize
	}
	if c.SendingQueueSize <= 0 {
		c.SendingQueueSize = defaultSendingQueueSize
	}
	if c.SendingQueueSize < minSendingQueueSize {
		c.SendingQueueSize = minSendingQueueSize
	}
	if c.MaxRequestLength <= 0 {
		c.MaxRequestLength = defaultMaxRequestLength
	}
	if c.IdleSessionTimeOut <= 0 {
		c.IdleSessionTimeOut = defaultIdleSessionTimeOut
	}
	if c.ClearIdleSessionInterval <= 0 {
		c.ClearIdleSessionInterval = defaultClearIdleSessionInterval
	}
	if c.SessionSnapshotInterval == 0 {
		c.SessionSnapshotInterval = defaultSessionSnapshotInterval
	}
	if c.SessionSnapshotInterval < minSessionSnapshotInterval {
		c.SessionSnapshotInterval = minSessionSnapshotInterval
	}
	if c.Security == "" {
		c.Security = SecurityNone
	}
}

// Validate checks the configuration for contradictions. Either the
// server-level IP/Port or the Listeners list must be used, never both.
//
// Returns:
//   - An error describing the first problem found, or nil
func (c *Config) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("server name is required")
	}

	hasServerEndpoint := c.Port > 0 || c.IP != ""
	hasListeners := len(c.Listeners) > 0
	if hasServerEndpoint && hasListeners {
		return fmt.Errorf("server %s: both Ip/Port and Listeners are configured; use one", c.Name)
	}
	if !hasServerEndpoint && !hasListeners {
		return fmt.Errorf("server %s: no listening endpoint configured", c.Name)
	}

	for i, l := range c.Listeners {
		if l.Port <= 0 {
			return fmt.Errorf("server %s: listener %d has no port", c.Name, i)
		}
	}

	if c.Mode != ModeTCP && c.Mode != ModeUDP {
		return fmt.Errorf("server %s: unknown socket mode %d", c.Name, c.Mode)
	}

	return nil
}

// EffectiveListeners returns the listener set the server binds: either the
// configured Listeners list or a single listener synthesized from IP/Port
// with the server-level Security. Call after Normalize and Validate.
//
// Returns:
//   - The listeners to bind
func (c *Config) EffectiveListeners() []ListenerConfig {
	if len(c.Listeners) > 0 {
		return c.Listeners
	}

	return []ListenerConfig{{
		IP:       c.IP,
		Port:     c.Port,
		Security: c.Security,
	}}
}

// RequiresTLS reports whether any effective listener is secure.
func (c *Config) RequiresTLS() bool {
	for _, l := range c.EffectiveListeners() {
		if l.Secure() {
			return true
		}
	}

	return false
}
