package ipfilter

import (
	"net"

	"github.com/cyberinferno/tcpserve/safeset"
)

// StaticDenyFilter denies connections from a fixed set of IPs. The set may be
// modified at runtime; membership checks take a shared read lock.
type StaticDenyFilter struct {
	denied *safeset.SafeSet[string]
}

// NewStaticDenyFilter creates a filter denying the given IPs.
//
// Parameters:
//   - deniedIPs: IPs to deny, in textual form
//
// Returns:
//   - A new StaticDenyFilter
func NewStaticDenyFilter(deniedIPs ...string) *StaticDenyFilter {
	f := &StaticDenyFilter{denied: safeset.NewSafeSet[string]()}
	for _, ip := range deniedIPs {
		f.denied.Add(ip)
	}

	return f
}

// Name implements ConnectionFilter.
func (f *StaticDenyFilter) Name() string {
	return "static-deny"
}

// AllowConnect implements ConnectionFilter.
func (f *StaticDenyFilter) AllowConnect(remoteAddr net.Addr) bool {
	return !f.denied.Contains(RemoteIP(remoteAddr))
}

// Deny adds an IP to the deny set.
//
// Parameters:
//   - ip: The IP to deny
func (f *StaticDenyFilter) Deny(ip string) {
	f.denied.Add(ip)
}

// Allow removes an IP from the deny set.
//
// Parameters:
//   - ip: The IP to stop denying
func (f *StaticDenyFilter) Allow(ip string) {
	f.denied.Remove(ip)
}
