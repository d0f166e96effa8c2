package ipfilter

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tcpAddr(t *testing.T, addr string) net.Addr {
	t.Helper()
	a, err := net.ResolveTCPAddr("tcp", addr)
	require.NoError(t, err)
	return a
}

func TestRemoteIP(t *testing.T) {
	t.Run("strips the port", func(t *testing.T) {
		assert.Equal(t, "10.0.0.1", RemoteIP(tcpAddr(t, "10.0.0.1:1234")))
	})

	t.Run("nil address yields empty string", func(t *testing.T) {
		assert.Equal(t, "", RemoteIP(nil))
	})
}

func TestStaticDenyFilter(t *testing.T) {
	t.Run("denies listed IPs and admits others", func(t *testing.T) {
		f := NewStaticDenyFilter("10.0.0.1")

		assert.False(t, f.AllowConnect(tcpAddr(t, "10.0.0.1:5000")))
		assert.True(t, f.AllowConnect(tcpAddr(t, "10.0.0.2:5000")))
	})

	t.Run("deny and allow adjust the set at runtime", func(t *testing.T) {
		f := NewStaticDenyFilter()
		addr := tcpAddr(t, "192.168.1.9:80")

		assert.True(t, f.AllowConnect(addr))

		f.Deny("192.168.1.9")
		assert.False(t, f.AllowConnect(addr))

		f.Allow("192.168.1.9")
		assert.True(t, f.AllowConnect(addr))
	})

	t.Run("has a name", func(t *testing.T) {
		assert.Equal(t, "static-deny", NewStaticDenyFilter().Name())
	})
}

func TestTempBanFilter(t *testing.T) {
	t.Run("banned IP is denied until the ban expires", func(t *testing.T) {
		f := NewTempBanFilter(time.Minute)
		addr := tcpAddr(t, "10.1.1.1:42")

		assert.True(t, f.AllowConnect(addr))

		f.Ban("10.1.1.1", 50*time.Millisecond)
		assert.False(t, f.AllowConnect(addr))

		time.Sleep(80 * time.Millisecond)
		assert.True(t, f.AllowConnect(addr))
	})

	t.Run("unban lifts the ban immediately", func(t *testing.T) {
		f := NewTempBanFilter(time.Minute)
		addr := tcpAddr(t, "10.1.1.2:42")

		f.Ban("10.1.1.2", time.Hour)
		assert.False(t, f.AllowConnect(addr))

		f.Unban("10.1.1.2")
		assert.True(t, f.AllowConnect(addr))
	})

	t.Run("counts active bans", func(t *testing.T) {
		f := NewTempBanFilter(time.Minute)
		f.Ban("10.1.1.3", time.Hour)
		f.Ban("10.1.1.4", time.Hour)

		assert.Equal(t, 2, f.BannedCount())
	})
}
