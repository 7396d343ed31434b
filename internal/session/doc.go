// Package session implements the KNXnet/IP tunneling connection state
// machine: discovery, connect, the online steady state, outbound
// TUNNELING_REQUEST/ACK round trips, inbound L_Data delivery, periodic
// heartbeats, and graceful disconnect.
//
// A Session owns exactly one goroutine that runs the state machine; all
// state mutation happens there. Callers drive it only through channel
// sends (Connect, Disconnect, Read, Write, WriteRaw, Respond, RespondRaw)
// and receive events on the channel Subscribe returns,
// matching the single-owner-goroutine-plus-channel style used elsewhere
// in this codebase for anything that multiplexes a socket.
package session
