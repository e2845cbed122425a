// Package nsca submits passive check results to a Nagios NSCA daemon.
//
// Each submission opens a TCP connection, reads the server's init packet (a
// 128-byte IV and a timestamp), and writes one CRC-sealed data packet
// encrypted with the configured method.
package nsca

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"nethead/internal/domain"
	"nethead/internal/relay"
)

// Config describes how to reach the NSCA daemon
type Config struct {
	Address      string
	Password     string
	Encryption   Encryption
	DialTimeout  time.Duration
	IOTimeout    time.Duration
	OutputLength int
}

// Client implements relay.Relay over NSCA
type Client struct {
	cfg    Config
	dialer net.Dialer
}

// New validates cfg and creates a client
func New(cfg Config) (*Client, error) {
	if cfg.Address == "" {
		return nil, errors.New("nsca: address is required")
	}
	if _, err := newCrypter(cfg.Encryption, cfg.Password, make([]byte, initIVSize)); err != nil {
		return nil, fmt.Errorf("nsca: %w", err)
	}
	if cfg.OutputLength <= 0 {
		cfg.OutputLength = DefaultOutputLength
	}
	if cfg.DialTimeout <= 0 {
		cfg.DialTimeout = 5 * time.Second
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = 5 * time.Second
	}
	return &Client{
		cfg:    cfg,
		dialer: net.Dialer{Timeout: cfg.DialTimeout},
	}, nil
}

// Submit sends req as one passive check result
func (c *Client) Submit(ctx context.Context, req domain.RelayRequest) error {
	conn, err := c.dialer.DialContext(ctx, "tcp", c.cfg.Address)
	if err != nil {
		return fmt.Errorf("nsca dial %s: %w", c.cfg.Address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(c.cfg.IOTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("nsca deadline: %w", err)
	}

	buf := make([]byte, initPacketSize)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return fmt.Errorf("nsca read init packet: %w", err)
	}
	handshake, err := parseInitPacket(buf)
	if err != nil {
		return fmt.Errorf("nsca: %w", err)
	}

	crypt, err := newCrypter(c.cfg.Encryption, c.cfg.Password, handshake.IV)
	if err != nil {
		return fmt.Errorf("nsca: %w", err)
	}

	packet := newDataPacket(req, handshake.Timestamp, relay.PerfData(req)).marshal(c.cfg.OutputLength)
	crypt.encrypt(packet)

	if _, err := conn.Write(packet); err != nil {
		return fmt.Errorf("nsca write: %w", err)
	}
	return nil
}

var _ relay.Relay = (*Client)(nil)
