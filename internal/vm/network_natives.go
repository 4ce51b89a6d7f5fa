package vm

import (
	"time"

	"lattice/internal/network"
	"lattice/internal/value"
)

// registerNetworkNatives exposes a slim WebSocket surface over
// internal/network's NetworkModule, grounded on that package's own
// connection-ID-keyed API (WebSocketConnect/Send/Receive/Close,
// WebSocketListen/Broadcast). The scanning/firewall/proxy/packet-capture
// parts of internal/network have no equivalent in a general-purpose
// scripting language and aren't wired here.
func registerNetworkNatives(v *VM) {
	net := network.NewNetworkModule()

	v.globals.Define("ws_dial", native("ws_dial", 1, func(args []value.Value) (value.Value, error) {
		conn, err := net.WebSocketConnect(args[0].AsString())
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(conn.ID), nil
	}))

	v.globals.Define("ws_send", native("ws_send", 2, func(args []value.Value) (value.Value, error) {
		if err := net.WebSocketSend(args[0].AsString(), args[1].AsString()); err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))

	v.globals.Define("ws_recv", native("ws_recv", 2, func(args []value.Value) (value.Value, error) {
		timeoutMs := args[1].I
		msg, err := net.WebSocketReceive(args[0].AsString(), time.Duration(timeoutMs)*time.Millisecond)
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(msg), nil
	}))

	v.globals.Define("ws_close", native("ws_close", 1, func(args []value.Value) (value.Value, error) {
		if err := net.WebSocketClose(args[0].AsString()); err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))

	v.globals.Define("ws_serve", native("ws_serve", 2, func(args []value.Value) (value.Value, error) {
		server, err := net.WebSocketListen(args[0].AsString(), int(args[1].I))
		if err != nil {
			return value.Nil(), err
		}
		return value.Str(server.ID), nil
	}))

	v.globals.Define("ws_broadcast", native("ws_broadcast", 2, func(args []value.Value) (value.Value, error) {
		if err := net.WebSocketBroadcast(args[0].AsString(), args[1].AsString()); err != nil {
			return value.Nil(), err
		}
		return value.Unit(), nil
	}))
}
