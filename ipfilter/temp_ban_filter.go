package ipfilter

import (
	"net"
	"time"

	"github.com/patrickmn/go-cache"
)

// TempBanFilter denies connections from IPs that carry an active temporary
// ban. Bans expire on their own; expired entries are purged in the
// background.
type TempBanFilter struct {
	bans *cache.Cache
}

// NewTempBanFilter creates a filter with no active bans. Expired bans are
// cleaned up at the given interval.
//
// Parameters:
//   - cleanupInterval: How often expired bans are removed from memory
//
// Returns:
//   - A new TempBanFilter
func NewTempBanFilter(cleanupInterval time.Duration) *TempBanFilter {
	return &TempBanFilter{
		bans: cache.New(cache.NoExpiration, cleanupInterval),
	}
}

// Name implements ConnectionFilter.
func (f *TempBanFilter) Name() string {
	return "temp-ban"
}

// AllowConnect implements ConnectionFilter.
func (f *TempBanFilter) AllowConnect(remoteAddr net.Addr) bool {
	_, banned := f.bans.Get(RemoteIP(remoteAddr))
	return !banned
}

// Ban denies connections from ip for the given duration. Banning an already
// banned IP replaces the previous expiry.
//
// Parameters:
//   - ip: The IP to ban
//   - duration: How long the ban lasts
func (f *TempBanFilter) Ban(ip string, duration time.Duration) {
	f.bans.Set(ip, struct{}{}, duration)
}

// Unban lifts a ban before it expires. A no-op when ip is not banned.
//
// Parameters:
//   - ip: The IP to unban
func (f *TempBanFilter) Unban(ip string) {
	f.bans.Delete(ip)
}

// BannedCount returns the number of IPs currently banned, including entries
// whose expiry has passed but which have not been purged yet.
//
// Returns:
//   - The active ban count
func (f *TempBanFilter) BannedCount() int {
	return f.bans.ItemCount()
}
