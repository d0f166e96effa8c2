package bootstrap

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/cyberinferno/tcpserve/tcpserver"
)

// RootConfig is a deployment description parsed from a JSON document: the
// server configurations, the optional endpoint replacement map, and the
// process-wide worker pool tuning.
type RootConfig struct {
	Servers              []*tcpserver.Config
	EndpointReplacements map[string]string
	WorkerPool           tcpserver.WorkerPoolConfig
}

// ParseConfig parses a JSON configuration document. Option names follow the
// recognized configuration surface ("Servers", "Name", "Ip", "Port",
// "Listeners", "Mode", ...); the special Ip value "Any" binds all
// interfaces. Unrecognized keys are ignored.
//
// Parameters:
//   - data: The JSON document
//
// Returns:
//   - The parsed configuration, or an error for malformed documents
func ParseConfig(data []byte) (*RootConfig, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("bootstrap: invalid configuration document")
	}

	doc := gjson.ParseBytes(data)
	root := &RootConfig{
		WorkerPool: tcpserver.WorkerPoolConfig{MaxWorkers: -1},
	}

	if v := doc.Get("MaxWorkingThreads"); v.Exists() {
		root.WorkerPool.MaxWorkers = int(v.Int())
	}

	if v := doc.Get("EndpointReplacements"); v.Exists() {
		root.EndpointReplacements = make(map[string]string)
		v.ForEach(func(key, value gjson.Result) bool {
			root.EndpointReplacements[key.String()] = value.String()
			return true
		})
	}

	servers := doc.Get("Servers")
	if !servers.Exists() || !servers.IsArray() {
		return nil, fmt.Errorf("bootstrap: configuration has no Servers array")
	}

	var parseErr error
	servers.ForEach(func(_, server gjson.Result) bool {
		cfg, err := parseServerConfig(server)
		if err != nil {
			parseErr = err
			return false
		}

		root.Servers = append(root.Servers, cfg)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}

	return root, nil
}

func parseServerConfig(server gjson.Result) (*tcpserver.Config, error) {
	cfg := &tcpserver.Config{
		Name: server.Get("Name").String(),
		IP:   parseIP(server.Get("Ip").String()),
		Port: int(server.Get("Port").Int()),
	}

	mode := server.Get("Mode").String()
	switch {
	case mode == "" || strings.EqualFold(mode, "Tcp"):
		cfg.Mode = tcpserver.ModeTCP
	case strings.EqualFold(mode, "Udp"):
		cfg.Mode = tcpserver.ModeUDP
	default:
		return nil, fmt.Errorf("bootstrap: server %s: unknown mode %q", cfg.Name, mode)
	}

	cfg.MaxConnectionNumber = int(server.Get("MaxConnectionNumber").Int())
	cfg.ReceiveBufferSize = int(server.Get("ReceiveBufferSize").Int())
	cfg.SendingQueueSize = int(server.Get("SendingQueueSize").Int())
	cfg.MaxRequestLength = int(server.Get("MaxRequestLength").Int())
	cfg.IdleSessionTimeOut = int(server.Get("IdleSessionTimeOut").Int())
	cfg.ClearIdleSession = server.Get("ClearIdleSession").Bool()
	cfg.ClearIdleSessionInterval = int(server.Get("ClearIdleSessionInterval").Int())
	cfg.DisableSessionSnapshot = server.Get("DisableSessionSnapshot").Bool()
	cfg.SessionSnapshotInterval = int(server.Get("SessionSnapshotInterval").Int())
	cfg.LogCommand = server.Get("LogCommand").Bool()
	cfg.LogBasicSessionActivity = server.Get("LogBasicSessionActivity").Bool()
	cfg.LogAllSocketException = server.Get("LogAllSocketException").Bool()
	cfg.Security = server.Get("Security").String()
	cfg.SyncSend = server.Get("SyncSend").Bool()
	cfg.TextEncoding = server.Get("TextEncoding").String()

	if cert := server.Get("Certificate"); cert.Exists() {
		cfg.Certificate = &tcpserver.CertificateConfig{
			FilePath:      cert.Get("FilePath").String(),
			KeyFilePath:   cert.Get("KeyFilePath").String(),
			Password:      cert.Get("Password").String(),
			Thumbprint:    cert.Get("Thumbprint").String(),
			StoreName:     cert.Get("StoreName").String(),
			StoreLocation: cert.Get("StoreLocation").String(),
		}
	}

	server.Get("Listeners").ForEach(func(_, l gjson.Result) bool {
		cfg.Listeners = append(cfg.Listeners, tcpserver.ListenerConfig{
			IP:       parseIP(l.Get("Ip").String()),
			Port:     int(l.Get("Port").Int()),
			Backlog:  int(l.Get("Backlog").Int()),
			Security: l.Get("Security").String(),
		})
		return true
	})

	return cfg, nil
}

func parseIP(ip string) string {
	if strings.EqualFold(ip, "Any") {
		return ""
	}

	return ip
}
