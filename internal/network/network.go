// Package network holds a WebSocket client/server, the slice of the
// teacher's networking toolkit actually exercised by Lattice's ws_*
// natives. The teacher's port scanner, firewall, intrusion detector,
// reverse proxy, and packet capture code lived alongside this and are
// not part of this module — see DESIGN.md.
package network

import (
	"sync"
)

// NetworkModule holds the live WebSocket connections and servers
// created by the ws_* natives, keyed by connection/server ID.
type NetworkModule struct {
	WebSockets map[string]*WebSocketConn
	WSServers  map[string]*WebSocketServer
	mu         sync.RWMutex
}

// NewNetworkModule creates a new network module.
func NewNetworkModule() *NetworkModule {
	return &NetworkModule{
		WebSockets: make(map[string]*WebSocketConn),
		WSServers:  make(map[string]*WebSocketServer),
	}
}
