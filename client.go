// Package knxnet is a client for the KNXnet/IP tunneling protocol. It
// wires together discovery, connection-state management, and group
// communication behind a small request API; internal/session owns the
// protocol state machine and internal/transport owns the sockets.
package knxnet

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/nerrad567/knxnet/internal/address"
	"github.com/nerrad567/knxnet/internal/config"
	"github.com/nerrad567/knxnet/internal/dpt"
	"github.com/nerrad567/knxnet/internal/knxnet"
	"github.com/nerrad567/knxnet/internal/session"
)

// Client is a connected (or connecting) KNXnet/IP tunneling client. It
// is the package's sole entrypoint: build one with New, Connect it,
// issue ReadGroup/WriteGroup/WriteGroupRaw calls, and Close it when done.
type Client struct {
	sess     *session.Session
	twoLevel bool
}

// Event re-exports session.Event for callers that only import the root
// package.
type Event = session.Event

// Logger is the subset of structured logging Client and its
// subordinate packages need.
type Logger = session.Logger

// New builds a Client from cfg, opening the underlying transport and
// starting the session's event loop. Call Connect to join the bus.
func New(ctx context.Context, cfg *config.Config, logger Logger) (*Client, error) {
	physAddr, err := address.Parse(cfg.PhysAddr, address.Physical, false)
	if err != nil {
		return nil, fmt.Errorf("knxnet: phys_addr: %w", err)
	}

	var physFilter uint16
	if cfg.PhysServerAddr != "" {
		physFilter, err = address.Parse(cfg.PhysServerAddr, address.Physical, false)
		if err != nil {
			return nil, fmt.Errorf("knxnet: phys_server_addr: %w", err)
		}
	}

	var remote *net.UDPAddr
	if cfg.RemoteEndpoint != "" {
		remote, err = net.ResolveUDPAddr("udp4", cfg.RemoteEndpoint)
		if err != nil {
			return nil, fmt.Errorf("knxnet: remote_endpoint: %w", err)
		}
	}

	sessCfg := session.Config{
		RemoteEndpoint: remote,
		PhysAddrFilter: physFilter,
		Options: knxnet.Options{
			SuppressAckLData:   cfg.SuppressAckLDataReq,
			UseTunneling:       cfg.UseTunneling,
			TwoLevelAddressing: cfg.TwoLevelAddressing,
			PhysAddr:           physAddr,
		},
		Codec:    dpt.NewRegistry(),
		TwoLevel: cfg.TwoLevelAddressing,
		Logger:   logger,
	}

	sess, err := session.New(ctx, sessCfg)
	if err != nil {
		return nil, fmt.Errorf("knxnet: %w", err)
	}

	return &Client{sess: sess, twoLevel: cfg.TwoLevelAddressing}, nil
}

// Connect runs discovery (unless a remote endpoint was configured) and
// blocks until the tunnel reaches online, ctx is cancelled, or the
// gateway refuses the connection.
func (c *Client) Connect(ctx context.Context) error {
	return c.sess.Connect(ctx)
}

// Disconnect tears the tunnel down gracefully and blocks until the
// session returns to idle or ctx is cancelled.
func (c *Client) Disconnect(ctx context.Context) error {
	return c.sess.Disconnect(ctx)
}

// Close releases the client's sockets and goroutines. Safe to call
// without a prior Disconnect; idempotent.
func (c *Client) Close() error {
	return c.sess.Close()
}

// ReadGroup sends a group-value read to the textual group address addr
// and waits up to timeout for the matching response.
func (c *Client) ReadGroup(ctx context.Context, addr string, timeout time.Duration) ([]byte, error) {
	ga, err := address.Parse(addr, address.Group, c.twoLevel)
	if err != nil {
		return nil, fmt.Errorf("knxnet: group address %q: %w", addr, err)
	}
	return c.sess.Read(ctx, ga, timeout)
}

// WriteGroup encodes value as dptID and writes it to the textual group
// address addr, waiting up to timeout for the gateway's acknowledgment.
func (c *Client) WriteGroup(ctx context.Context, addr string, value any, dptID dpt.ID, timeout time.Duration) error {
	ga, err := address.Parse(addr, address.Group, c.twoLevel)
	if err != nil {
		return fmt.Errorf("knxnet: group address %q: %w", addr, err)
	}
	return c.sess.Write(ctx, ga, value, dptID, timeout)
}

// WriteGroupRaw writes raw bytes to the textual group address addr,
// bypassing DPT encoding.
func (c *Client) WriteGroupRaw(ctx context.Context, addr string, raw []byte, bitLength int, timeout time.Duration) error {
	ga, err := address.Parse(addr, address.Group, c.twoLevel)
	if err != nil {
		return fmt.Errorf("knxnet: group address %q: %w", addr, err)
	}
	return c.sess.WriteRaw(ctx, ga, raw, bitLength, timeout)
}

// RespondGroup encodes value as dptID and sends a group-value response to
// the textual group address addr, waiting up to timeout for the
// gateway's acknowledgment. Use this to answer an inbound GroupValue_Read.
func (c *Client) RespondGroup(ctx context.Context, addr string, value any, dptID dpt.ID, timeout time.Duration) error {
	ga, err := address.Parse(addr, address.Group, c.twoLevel)
	if err != nil {
		return fmt.Errorf("knxnet: group address %q: %w", addr, err)
	}
	return c.sess.Respond(ctx, ga, value, dptID, timeout)
}

// RespondGroupRaw sends a group-value response of raw bytes to the
// textual group address addr, bypassing DPT encoding.
func (c *Client) RespondGroupRaw(ctx context.Context, addr string, raw []byte, bitLength int, timeout time.Duration) error {
	ga, err := address.Parse(addr, address.Group, c.twoLevel)
	if err != nil {
		return fmt.Errorf("knxnet: group address %q: %w", addr, err)
	}
	return c.sess.RespondRaw(ctx, ga, raw, bitLength, timeout)
}

// Subscribe returns a channel receiving every Event published from this
// point on: connection-state changes and inbound group traffic.
func (c *Client) Subscribe() <-chan Event {
	return c.sess.Subscribe()
}
