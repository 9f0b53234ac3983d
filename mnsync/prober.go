// Copyright (c) 2018 The phcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package mnsync

import (
	"net"
	"time"

	"github.com/phcsuite/phcd/mnwire"
)

// defaultProbeTimeout bounds how long a reachability probe may block
// message dispatch.
const defaultProbeTimeout = 5 * time.Second

// DialFunc is the dialer signature the prober uses, matching both
// net.DialTimeout and proxied dialers.
type DialFunc func(network, addr string, timeout time.Duration) (net.Conn, error)

// TCPProber implements Prober by attempting a TCP connection to the
// advertised address.  The dialer is injectable so nodes configured with a
// proxy probe through it.
type TCPProber struct {
	dial    DialFunc
	timeout time.Duration
}

// NewTCPProber returns a prober using the passed dialer, or the plain
// network dialer when nil.
func NewTCPProber(dial DialFunc) *TCPProber {
	if dial == nil {
		dial = net.DialTimeout
	}
	return &TCPProber{dial: dial, timeout: defaultProbeTimeout}
}

// PortOpen returns whether the address accepted a TCP connection.  This is
// part of the Prober interface implementation.
func (p *TCPProber) PortOpen(addr *mnwire.NetAddress) bool {
	conn, err := p.dial("tcp", addr.String(), p.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
