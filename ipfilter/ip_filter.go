// Package ipfilter provides pre-accept connection admission filters. Filters
// run in order on every new connection; the first denial drops the connection
// before a session is created.
package ipfilter

import "net"

// ConnectionFilter decides whether a new connection from a remote endpoint is
// admitted. Implementations must be safe for concurrent use: the accept loop
// of every listener consults them.
type ConnectionFilter interface {
	// Name identifies the filter in logs.
	Name() string

	// AllowConnect reports whether the connection from remoteAddr may
	// proceed to session creation.
	//
	// Parameters:
	//   - remoteAddr: The remote endpoint of the pending connection
	//
	// Returns:
	//   - true to admit the connection, false to drop it
	AllowConnect(remoteAddr net.Addr) bool
}

// RemoteIP extracts the bare IP from a remote endpoint address, stripping any
// port. Falls back to the full string form when the address has no port.
//
// Parameters:
//   - addr: The remote endpoint
//
// Returns:
//   - The IP portion of the address as a string
func RemoteIP(addr net.Addr) string {
	if addr == nil {
		return ""
	}

	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}

	return host
}
